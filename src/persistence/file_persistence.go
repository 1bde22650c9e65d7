package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"stratbot/src/datamodels"
	"stratbot/src/utils/errors"
)

// FilePersistence writes backtest artifacts as JSON files under a base
// directory, one equity file and one trades file per run, stamped with the
// run's unix-millisecond time.
type FilePersistence struct {
	dir string
	now func() time.Time
}

func NewFilePersistence(dir string) *FilePersistence {
	if dir == "" {
		dir = DefaultBacktestDir()
	}
	return &FilePersistence{dir: dir, now: time.Now}
}

// WithClock overrides the stamp source. Used in tests.
func (f *FilePersistence) WithClock(now func() time.Time) *FilePersistence {
	f.now = now
	return f
}

func DefaultBacktestDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home, _ = os.Getwd()
	}
	return filepath.Join(home, ".cache", "stratbot", "backtests")
}

func (f *FilePersistence) SaveBacktest(equity []datamodels.EquityPoint, trades []datamodels.TradeRecord) (string, string, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", "", errors.Wrapf(err, "failed to create backtest dir %s", f.dir)
	}
	stamp := strconv.FormatInt(f.now().UnixMilli(), 10)
	equityRef := filepath.Join(f.dir, "equity-"+stamp+".json")
	tradesRef := filepath.Join(f.dir, "trades-"+stamp+".json")

	if err := writeJSON(equityRef, equity); err != nil {
		return "", "", err
	}
	if err := writeJSON(tradesRef, trades); err != nil {
		return "", "", err
	}
	return equityRef, tradesRef, nil
}

// LoadBacktest reads a previously saved equity curve and trade list back.
func (f *FilePersistence) LoadBacktest(equityRef string, tradesRef string) ([]datamodels.EquityPoint, []datamodels.TradeRecord, error) {
	var equity []datamodels.EquityPoint
	if err := readJSON(equityRef, &equity); err != nil {
		return nil, nil, err
	}
	var trades []datamodels.TradeRecord
	if err := readJSON(tradesRef, &trades); err != nil {
		return nil, nil, err
	}
	return equity, trades, nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to parse %s", path)
	}
	return nil
}
