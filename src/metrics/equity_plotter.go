package metrics

import (
	"log/slog"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"stratbot/src/datamodels"
	"stratbot/src/utils/errors"
)

// EquityPlotter renders a backtest equity curve to a PNG next to the saved
// run artifacts.
type EquityPlotter struct {
	title    string
	filename string
	points   []datamodels.EquityPoint
}

func NewEquityPlotter() *EquityPlotter {
	return &EquityPlotter{title: "Equity Curve"}
}

func (ep *EquityPlotter) WithTitle(title string) *EquityPlotter {
	ep.title = title
	return ep
}

func (ep *EquityPlotter) WithFileOutput(filename string) *EquityPlotter {
	ep.filename = filename
	return ep
}

func (ep *EquityPlotter) WithEquity(points []datamodels.EquityPoint) *EquityPlotter {
	ep.points = points
	return ep
}

func (ep *EquityPlotter) Plot() error {
	if len(ep.points) == 0 {
		return errors.New("no equity points to plot")
	}
	if ep.filename == "" {
		return errors.New("no output filename set")
	}

	p := plot.New()
	p.Title.Text = ep.title
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "Equity"
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02\n15:04"}
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(ep.points))
	for i, point := range ep.points {
		pts[i].X = float64(point.Ts.Unix())
		pts[i].Y = point.Equity
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.WrapE(err, errors.New("cannot build equity line"))
	}
	line.Color = plotutil.Color(0)
	p.Add(line)

	if err := os.MkdirAll(filepath.Dir(ep.filename), 0755); err != nil {
		return errors.WrapE(err, errors.New("cannot create plot directory"))
	}
	if err := p.Save(10*vg.Inch, 6*vg.Inch, ep.filename); err != nil {
		return errors.WrapE(err, errors.New("cannot save plot"))
	}

	slog.Info("Equity curve plotted", "filename", ep.filename, "points", len(ep.points))
	return nil
}
