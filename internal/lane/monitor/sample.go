// Package monitor renders per-frame lane geometry as PNG plots and HTML
// reports.
package monitor

import (
	"github.com/banshee-data/lanetrack/internal/lane"
	"github.com/banshee-data/lanetrack/internal/lane/storage/sqlite"
)

// CurvatureSample is the geometry reported for one frame. Radii are in
// metres and +Inf when straight.
type CurvatureSample struct {
	Frame                int64
	Status               lane.FrameStatus
	LeftRadiusM          float64
	RightRadiusM         float64
	SmoothedLeftRadiusM  float64
	SmoothedRightRadiusM float64
	CenterOffsetM        float64
	HasGeometry          bool
}

// SampleFromResult converts a tracker result. A nil result is a failed frame
// with no geometry.
func SampleFromResult(frame int64, res *lane.FrameResult) CurvatureSample {
	if res == nil {
		return CurvatureSample{Frame: frame, Status: lane.FrameFailed}
	}
	return CurvatureSample{
		Frame:                res.Frame,
		Status:               res.Status,
		LeftRadiusM:          res.Curvature.LeftRadiusM,
		RightRadiusM:         res.Curvature.RightRadiusM,
		SmoothedLeftRadiusM:  res.SmoothedLeftRadiusM,
		SmoothedRightRadiusM: res.SmoothedRightRadiusM,
		CenterOffsetM:        res.Curvature.CenterOffsetM,
		HasGeometry:          true,
	}
}

// SamplesFromRecords converts stored frames of a run.
func SamplesFromRecords(recs []*sqlite.FrameRecord) []CurvatureSample {
	out := make([]CurvatureSample, 0, len(recs))
	for _, r := range recs {
		out = append(out, CurvatureSample{
			Frame:                r.FrameIndex,
			Status:               r.Status,
			LeftRadiusM:          r.LeftRadiusM,
			RightRadiusM:         r.RightRadiusM,
			SmoothedLeftRadiusM:  r.SmoothedLeftRadiusM,
			SmoothedRightRadiusM: r.SmoothedRightRadiusM,
			CenterOffsetM:        r.CenterOffsetM,
			HasGeometry:          r.HasFit,
		})
	}
	return out
}
