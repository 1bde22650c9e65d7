package datamodels

import "time"

// FeatureFrame holds computed indicator values for one bar. Every computer
// returns exactly one frame per input bar, with Ts matching the bar's Ts.
type FeatureFrame struct {
	Ts     time.Time          `json:"ts"`
	Symbol string             `json:"symbol"`
	Venue  Venue              `json:"venue"`
	Values map[string]float64 `json:"values"`
	Meta   map[string]float64 `json:"meta,omitempty"`
}

// FeatureSet maps a computer id (e.g. "atr", "anchored-vp") to its frames.
type FeatureSet map[string][]FeatureFrame
