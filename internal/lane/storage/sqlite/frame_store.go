package sqlite

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/banshee-data/lanetrack/internal/lane"
)

// FrameRecord is the persisted outcome of one tracker frame.
type FrameRecord struct {
	RunID      string
	FrameIndex int64
	Status     lane.FrameStatus

	// HasFit is false for failed frames, which carry no geometry.
	HasFit bool
	Fits   lane.FitPair

	LeftRadiusM          float64 // +Inf when straight
	RightRadiusM         float64
	SmoothedLeftRadiusM  float64
	SmoothedRightRadiusM float64
	CenterOffsetM        float64
	StaleFrames          int
	Error                string
}

// FrameRecordFromResult converts a tracker result into a record. A nil
// result (failed acquisition) is recorded as FrameFailed with detectErr.
func FrameRecordFromResult(runID string, frame int64, res *lane.FrameResult, detectErr error) *FrameRecord {
	rec := &FrameRecord{RunID: runID, FrameIndex: frame}
	if res == nil {
		rec.Status = lane.FrameFailed
		if detectErr != nil {
			rec.Error = detectErr.Error()
		}
		return rec
	}

	rec.Status = res.Status
	rec.HasFit = true
	rec.Fits = res.Fits
	rec.LeftRadiusM = res.Curvature.LeftRadiusM
	rec.RightRadiusM = res.Curvature.RightRadiusM
	rec.SmoothedLeftRadiusM = res.SmoothedLeftRadiusM
	rec.SmoothedRightRadiusM = res.SmoothedRightRadiusM
	rec.CenterOffsetM = res.Curvature.CenterOffsetM
	rec.StaleFrames = res.StaleFrames
	if res.StaleCause != nil {
		rec.Error = res.StaleCause.Error()
	}
	return rec
}

// FrameStore provides persistence for per-frame results.
type FrameStore struct {
	db *sql.DB
}

// NewFrameStore creates a new FrameStore.
func NewFrameStore(db *sql.DB) *FrameStore {
	return &FrameStore{db: db}
}

// Insert persists one frame record.
func (s *FrameStore) Insert(rec *FrameRecord) error {
	var coeffs [6]interface{}
	var radii [4]interface{}
	var offset interface{}
	if rec.HasFit {
		f := rec.Fits
		coeffs = [6]interface{}{f.Left.A, f.Left.B, f.Left.C, f.Right.A, f.Right.B, f.Right.C}
		radii = [4]interface{}{
			radiusValue(rec.LeftRadiusM), radiusValue(rec.RightRadiusM),
			radiusValue(rec.SmoothedLeftRadiusM), radiusValue(rec.SmoothedRightRadiusM),
		}
		offset = rec.CenterOffsetM
	}
	var errStr interface{}
	if rec.Error != "" {
		errStr = rec.Error
	}

	return retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO lane_frames (
				run_id, frame_index, status,
				left_a, left_b, left_c, right_a, right_b, right_c,
				left_radius_m, right_radius_m, smoothed_left_radius_m, smoothed_right_radius_m,
				center_offset_m, stale_frames, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.FrameIndex, string(rec.Status),
			coeffs[0], coeffs[1], coeffs[2], coeffs[3], coeffs[4], coeffs[5],
			radii[0], radii[1], radii[2], radii[3],
			offset, rec.StaleFrames, errStr,
		)
		return err
	})
}

// ListByRun returns all frames of a run in frame order.
func (s *FrameStore) ListByRun(runID string) ([]*FrameRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, frame_index, status,
		       left_a, left_b, left_c, right_a, right_b, right_c,
		       left_radius_m, right_radius_m, smoothed_left_radius_m, smoothed_right_radius_m,
		       center_offset_m, stale_frames, error
		FROM lane_frames
		WHERE run_id = ?
		ORDER BY frame_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var out []*FrameRecord
	for rows.Next() {
		rec, err := scanFrame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanFrame(row scanner) (*FrameRecord, error) {
	var rec FrameRecord
	var status string
	var c [6]sql.NullFloat64
	var r [4]sql.NullFloat64
	var offset sql.NullFloat64
	var errStr sql.NullString

	err := row.Scan(
		&rec.RunID, &rec.FrameIndex, &status,
		&c[0], &c[1], &c[2], &c[3], &c[4], &c[5],
		&r[0], &r[1], &r[2], &r[3],
		&offset, &rec.StaleFrames, &errStr,
	)
	if err != nil {
		return nil, fmt.Errorf("scan frame: %w", err)
	}

	rec.Status = lane.FrameStatus(status)
	rec.Error = errStr.String
	rec.HasFit = c[0].Valid
	if !rec.HasFit {
		return &rec, nil
	}
	rec.Fits = lane.FitPair{
		Left:  lane.LaneFit{A: c[0].Float64, B: c[1].Float64, C: c[2].Float64},
		Right: lane.LaneFit{A: c[3].Float64, B: c[4].Float64, C: c[5].Float64},
	}
	rec.LeftRadiusM = radiusFromColumn(r[0])
	rec.RightRadiusM = radiusFromColumn(r[1])
	rec.SmoothedLeftRadiusM = radiusFromColumn(r[2])
	rec.SmoothedRightRadiusM = radiusFromColumn(r[3])
	rec.CenterOffsetM = offset.Float64
	return &rec, nil
}

// radiusValue maps the infinite-radius sentinel to NULL.
func radiusValue(r float64) interface{} {
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return nil
	}
	return r
}

func radiusFromColumn(v sql.NullFloat64) float64 {
	if !v.Valid {
		return lane.InfiniteRadius
	}
	return v.Float64
}
