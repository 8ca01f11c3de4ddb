package monitor

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/lanetrack/internal/lane"
	"github.com/banshee-data/lanetrack/internal/units"
)

var (
	leftColor   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	rightColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	offsetColor = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	staleColor  = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// CurvaturePlotter records per-frame geometry during a run and renders it
// as PNG time series once the run is over.
type CurvaturePlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string
	units     string
	samples   []CurvatureSample
}

// NewCurvaturePlotter creates a plotter that labels distances in the given
// units (see package units).
func NewCurvaturePlotter(distanceUnits string) *CurvaturePlotter {
	if !units.IsValid(distanceUnits) {
		distanceUnits = units.Meters
	}
	return &CurvaturePlotter{units: distanceUnits}
}

// Start initializes the plotter for a new run.
func (cp *CurvaturePlotter) Start(outputDir string) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	cp.outputDir = outputDir
	cp.enabled = true
	cp.samples = nil
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (cp *CurvaturePlotter) Stop() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.enabled = false
}

// Sample records one frame. Ignored unless the plotter is started.
func (cp *CurvaturePlotter) Sample(s CurvatureSample) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if !cp.enabled {
		return
	}
	cp.samples = append(cp.samples, s)
}

// Samples returns a copy of the recorded samples.
func (cp *CurvaturePlotter) Samples() []CurvatureSample {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return append([]CurvatureSample(nil), cp.samples...)
}

// GeneratePlots writes curvature.png and offset.png to the output directory
// and returns the number of files written.
func (cp *CurvaturePlotter) GeneratePlots() (int, error) {
	cp.mu.Lock()
	samples := append([]CurvatureSample(nil), cp.samples...)
	dir := cp.outputDir
	unit := cp.units
	cp.mu.Unlock()

	if dir == "" {
		return 0, fmt.Errorf("plotter not started")
	}
	if len(samples) == 0 {
		return 0, nil
	}

	pr, err := radiusPlot(samples, unit)
	if err != nil {
		return 0, err
	}
	if err := pr.Save(14*vg.Inch, 6*vg.Inch, filepath.Join(dir, "curvature.png")); err != nil {
		return 0, fmt.Errorf("save curvature plot: %w", err)
	}

	po, err := offsetPlot(samples, unit)
	if err != nil {
		return 1, err
	}
	if err := po.Save(14*vg.Inch, 6*vg.Inch, filepath.Join(dir, "offset.png")); err != nil {
		return 1, fmt.Errorf("save offset plot: %w", err)
	}

	lane.Diagf("wrote %d frame samples to %s", len(samples), dir)
	return 2, nil
}

// radiusPlot draws smoothed radii as lines and raw radii as points.
// Straight frames (+Inf) are left out.
func radiusPlot(samples []CurvatureSample, unit string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Radius of Curvature"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = fmt.Sprintf("Radius (%s)", units.Symbol(unit))

	var rawL, rawR, smL, smR plotter.XYs
	for _, s := range samples {
		if !s.HasGeometry {
			continue
		}
		x := float64(s.Frame)
		rawL = appendFinite(rawL, x, units.ConvertDistance(s.LeftRadiusM, unit))
		rawR = appendFinite(rawR, x, units.ConvertDistance(s.RightRadiusM, unit))
		smL = appendFinite(smL, x, units.ConvertDistance(s.SmoothedLeftRadiusM, unit))
		smR = appendFinite(smR, x, units.ConvertDistance(s.SmoothedRightRadiusM, unit))
	}

	for _, series := range []struct {
		name string
		pts  plotter.XYs
		c    color.Color
	}{
		{"left (smoothed)", smL, leftColor},
		{"right (smoothed)", smR, rightColor},
	} {
		if len(series.pts) == 0 {
			continue
		}
		line, err := plotter.NewLine(series.pts)
		if err != nil {
			return nil, err
		}
		line.Color = series.c
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(series.name, line)
	}

	for _, series := range []struct {
		name string
		pts  plotter.XYs
		c    color.Color
	}{
		{"left (raw)", rawL, leftColor},
		{"right (raw)", rawR, rightColor},
	} {
		if len(series.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(series.pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = series.c
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add(series.name, sc)
	}

	configureLegend(p)
	return p, nil
}

// offsetPlot draws the centre offset with stale frames marked.
func offsetPlot(samples []CurvatureSample, unit string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Lane Centre Offset"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = fmt.Sprintf("Offset (%s, + = vehicle left of centre)", units.Symbol(unit))

	var pts, stale plotter.XYs
	for _, s := range samples {
		if !s.HasGeometry {
			continue
		}
		y := units.ConvertDistance(s.CenterOffsetM, unit)
		pts = appendFinite(pts, float64(s.Frame), y)
		if s.Status == lane.FrameStale {
			stale = appendFinite(stale, float64(s.Frame), y)
		}
	}

	if len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = offsetColor
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("offset", line)
	}
	if len(stale) > 0 {
		sc, err := plotter.NewScatter(stale)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle.Color = staleColor
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("stale", sc)
	}

	p.Add(plotter.NewGrid())
	configureLegend(p)
	return p, nil
}

func configureLegend(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}

func appendFinite(pts plotter.XYs, x, y float64) plotter.XYs {
	if math.IsInf(y, 0) || math.IsNaN(y) {
		return pts
	}
	return append(pts, plotter.XY{X: x, Y: y})
}
