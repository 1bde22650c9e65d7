package persistence

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"stratbot/src/datamodels"
)

// RuleStore is the write-through JSON file backing alert threshold rules.
// Load failures are logged and otherwise ignored: a missing or corrupt file
// just means starting with no rules.
type RuleStore struct {
	path string
}

func NewRuleStore(path string) *RuleStore {
	return &RuleStore{path: path}
}

func (s *RuleStore) Load() []datamodels.ThresholdRule {
	if s == nil || s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Failed to read alert rule file", "path", s.path, "error", err)
		}
		return nil
	}
	var rules []datamodels.ThresholdRule
	if err := json.Unmarshal(data, &rules); err != nil {
		slog.Warn("Failed to parse alert rule file", "path", s.path, "error", err)
		return nil
	}
	return rules
}

func (s *RuleStore) Save(rules []datamodels.ThresholdRule) {
	if s == nil || s.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		slog.Warn("Failed to create alert rule dir", "path", s.path, "error", err)
		return
	}
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		slog.Warn("Failed to marshal alert rules", "error", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		slog.Warn("Failed to write alert rule file", "path", s.path, "error", err)
	}
}
