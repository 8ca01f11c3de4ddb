package monitor

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/lanetrack/internal/lane"
	"github.com/banshee-data/lanetrack/internal/units"
)

// gap is the echarts marker for a missing point.
const gap = "-"

// WriteHTMLReport renders an interactive page with the radius and offset
// series and a per-status frame count.
func WriteHTMLReport(w io.Writer, title string, samples []CurvatureSample, distanceUnits string) error {
	if !units.IsValid(distanceUnits) {
		return fmt.Errorf("invalid units %q, want one of: %s", distanceUnits, units.GetValidUnitsString())
	}
	sym := units.Symbol(distanceUnits)

	frames := make([]string, len(samples))
	var rawL, rawR, smL, smR, offset []opts.LineData
	for i, s := range samples {
		frames[i] = strconv.FormatInt(s.Frame, 10)
		if !s.HasGeometry {
			rawL = append(rawL, opts.LineData{Value: gap})
			rawR = append(rawR, opts.LineData{Value: gap})
			smL = append(smL, opts.LineData{Value: gap})
			smR = append(smR, opts.LineData{Value: gap})
			offset = append(offset, opts.LineData{Value: gap})
			continue
		}
		rawL = append(rawL, lineValue(units.ConvertDistance(s.LeftRadiusM, distanceUnits)))
		rawR = append(rawR, lineValue(units.ConvertDistance(s.RightRadiusM, distanceUnits)))
		smL = append(smL, lineValue(units.ConvertDistance(s.SmoothedLeftRadiusM, distanceUnits)))
		smR = append(smR, lineValue(units.ConvertDistance(s.SmoothedRightRadiusM, distanceUnits)))
		offset = append(offset, lineValue(units.ConvertDistance(s.CenterOffsetM, distanceUnits)))
	}

	radius := charts.NewLine()
	radius.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Radius of Curvature", Subtitle: fmt.Sprintf("frames=%d straight frames omitted", len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "radius (" + sym + ")", Type: "log"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	radius.SetXAxis(frames).
		AddSeries("left smoothed", smL, charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(false)})).
		AddSeries("right smoothed", smR, charts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(false)})).
		AddSeries("left raw", rawL, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)})).
		AddSeries("right raw", rawR, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))

	off := charts.NewLine()
	off.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px"}),
		charts.WithTitleOpts(opts.Title{Title: "Lane Centre Offset", Subtitle: "positive: vehicle left of lane centre"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "frame", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "offset (" + sym + ")"}),
	)
	off.SetXAxis(frames).AddSeries("offset", offset)

	statuses := []lane.FrameStatus{lane.FrameAcquired, lane.FrameTracked, lane.FrameStale, lane.FrameFailed}
	counts := make(map[lane.FrameStatus]int, len(statuses))
	for _, s := range samples {
		counts[s.Status]++
	}
	labels := make([]string, len(statuses))
	bars := make([]opts.BarData, len(statuses))
	for i, st := range statuses {
		labels[i] = string(st)
		bars[i] = opts.BarData{Value: counts[st]}
	}

	status := charts.NewBar()
	status.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Frame Status"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	status.SetXAxis(labels).
		AddSeries("frames", bars,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(radius, off, status)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func lineValue(v float64) opts.LineData {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return opts.LineData{Value: gap}
	}
	return opts.LineData{Value: v}
}
