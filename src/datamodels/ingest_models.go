package datamodels

import "time"

type FetchBarsRequest struct {
	Symbol    string
	Venue     Venue
	Timeframe Timeframe
	Start     time.Time
	End       time.Time
	Limit     int
}

// IngestResult carries fetched bars plus any provider failures. Ordinary
// failures (HTTP errors, unsupported timeframes, parse failures) surface in
// Errors/Warnings so callers can continue; they are never returned as errors.
type IngestResult struct {
	Bars     []NormalizedBar `json:"bars"`
	Errors   []string        `json:"errors,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

type QualityIssueType string

const (
	QualityIssueGap     QualityIssueType = "gap"
	QualityIssueOutlier QualityIssueType = "outlier"
)

type QualityIssue struct {
	Type        QualityIssueType `json:"type"`
	Description string           `json:"description"`
}

type QualityCheckResult struct {
	Ok     bool           `json:"ok"`
	Issues []QualityIssue `json:"issues"`
}
