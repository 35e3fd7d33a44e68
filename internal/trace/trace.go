// Package trace records per-frame reports from the frame core and reduces
// them to staleness statistics and a chart.
package trace

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"hmdlag/internal/frame"
)

// ErrEmpty is returned when there is nothing to summarize or plot.
var ErrEmpty = errors.New("trace: no frames recorded")

// Record is the part of a frame.Report worth keeping.
type Record struct {
	Frame       uint64
	Fresh       bool
	PoseAge     uint64
	TrackingLag int
	RenderLag   int
	// CursorError is the distance in meters between the live hand and the
	// delayed cursor.
	CursorError float64
}

// Recorder is a frame.Observer that keeps the most recent frames.
type Recorder struct {
	mu    sync.Mutex
	limit int
	recs  []Record
}

var _ frame.Observer = (*Recorder)(nil)

func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 1
	}
	return &Recorder{limit: limit, recs: make([]Record, 0, limit)}
}

func (r *Recorder) ObserveFrame(rep frame.Report) {
	rec := Record{
		Frame:       rep.Frame,
		Fresh:       rep.Fresh,
		PoseAge:     rep.PoseAge(),
		TrackingLag: rep.TrackingLag,
		RenderLag:   rep.RenderLag,
		CursorError: rep.Hand.Sub(rep.Cursor).Len(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.recs) == r.limit {
		copy(r.recs, r.recs[1:])
		r.recs = r.recs[:len(r.recs)-1]
	}
	r.recs = append(r.recs, rec)
}

// Records returns a copy of the window, oldest first.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.recs...)
}

type Summary struct {
	Frames          int
	FreshRatio      float64
	PoseAgeMean     float64
	PoseAgeStdDev   float64
	PoseAgeMax      float64
	TrackingLagMean float64
	CursorErrorMean float64
}

func (s Summary) String() string {
	return fmt.Sprintf("frames=%d fresh=%.3f pose_age=%.2f±%.2f (max %.0f) tracking_lag=%.2f cursor_err=%.4fm",
		s.Frames, s.FreshRatio, s.PoseAgeMean, s.PoseAgeStdDev, s.PoseAgeMax, s.TrackingLagMean, s.CursorErrorMean)
}

func Summarize(recs []Record) (Summary, error) {
	if len(recs) == 0 {
		return Summary{}, ErrEmpty
	}
	fresh := make([]float64, len(recs))
	age := make([]float64, len(recs))
	lag := make([]float64, len(recs))
	cursor := make([]float64, len(recs))
	for i, r := range recs {
		if r.Fresh {
			fresh[i] = 1
		}
		age[i] = float64(r.PoseAge)
		lag[i] = float64(r.TrackingLag)
		cursor[i] = r.CursorError
	}

	s := Summary{Frames: len(recs)}
	s.FreshRatio = stat.Mean(fresh, nil)
	s.PoseAgeMean, s.PoseAgeStdDev = stat.MeanStdDev(age, nil)
	if len(recs) == 1 {
		s.PoseAgeStdDev = 0
	}
	s.PoseAgeMax = floats.Max(age)
	s.TrackingLagMean = stat.Mean(lag, nil)
	s.CursorErrorMean = stat.Mean(cursor, nil)
	return s, nil
}

// WritePlot renders pose age and tracking lag over frame index as a PNG,
// with fresh frames marked on the x axis.
func WritePlot(w io.Writer, recs []Record, title string) error {
	if len(recs) == 0 {
		return ErrEmpty
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Frames behind"

	agePts := make(plotter.XYs, 0, len(recs))
	lagPts := make(plotter.XYs, 0, len(recs))
	freshPts := make(plotter.XYs, 0, len(recs))
	for _, r := range recs {
		x := float64(r.Frame)
		agePts = append(agePts, plotter.XY{X: x, Y: float64(r.PoseAge)})
		lagPts = append(lagPts, plotter.XY{X: x, Y: float64(r.TrackingLag)})
		if r.Fresh {
			freshPts = append(freshPts, plotter.XY{X: x, Y: 0})
		}
	}

	ageLine, err := plotter.NewLine(agePts)
	if err != nil {
		return err
	}
	ageLine.Color = color.RGBA{R: 200, A: 255}
	ageLine.Width = vg.Points(1)
	p.Add(ageLine)
	p.Legend.Add("pose age", ageLine)

	lagLine, err := plotter.NewLine(lagPts)
	if err != nil {
		return err
	}
	lagLine.Color = color.RGBA{B: 200, A: 255}
	lagLine.Width = vg.Points(1)
	lagLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(lagLine)
	p.Legend.Add("tracking lag", lagLine)

	if len(freshPts) > 0 {
		sc, err := plotter.NewScatter(freshPts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.RGBA{G: 160, A: 255}
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add("fresh", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = false

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("trace: plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("trace: write plot: %w", err)
	}
	return nil
}
