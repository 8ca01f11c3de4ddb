package monitor

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/banshee-data/lanetrack/internal/httputil"
	"github.com/banshee-data/lanetrack/internal/lane/storage/sqlite"
	"github.com/banshee-data/lanetrack/internal/units"
)

// Server exposes stored runs over HTTP.
type Server struct {
	db    *sqlite.DB
	runs  *sqlite.RunStore
	frame *sqlite.FrameStore
	units string
}

// NewServer creates a Server reading from db and reporting distances in
// distanceUnits.
func NewServer(db *sqlite.DB, distanceUnits string) *Server {
	if !units.IsValid(distanceUnits) {
		distanceUnits = units.Meters
	}
	return &Server{
		db:    db,
		runs:  sqlite.NewRunStore(db.DB),
		frame: sqlite.NewFrameStore(db.DB),
		units: distanceUnits,
	}
}

// Handler returns the route table, including the database debug routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/frames", s.handleListFrames)
	mux.HandleFunc("GET /runs/{id}/report", s.handleReport)
	s.db.AttachAdminRoutes(mux)
	return mux
}

// frameJSON is the API view of a stored frame. Straight radii are null.
type frameJSON struct {
	Frame               int64     `json:"frame"`
	Status              string    `json:"status"`
	LeftRadius          *float64  `json:"left_radius"`
	RightRadius         *float64  `json:"right_radius"`
	SmoothedLeftRadius  *float64  `json:"smoothed_left_radius"`
	SmoothedRightRadius *float64  `json:"smoothed_right_radius"`
	CenterOffset        *float64  `json:"center_offset"`
	LeftCoefficients    []float64 `json:"left_coefficients,omitempty"`
	RightCoefficients   []float64 `json:"right_coefficients,omitempty"`
	StaleFrames         int       `json:"stale_frames"`
	Error               string    `json:"error,omitempty"`
	Units               string    `json:"units"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runs.List()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if runs == nil {
		runs = []*sqlite.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r.PathValue("id"))
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) handleListFrames(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r.PathValue("id"))
	if !ok {
		return
	}
	recs, err := s.frame.ListByRun(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	out := make([]frameJSON, 0, len(recs))
	for _, rec := range recs {
		f := frameJSON{
			Frame:       rec.FrameIndex,
			Status:      string(rec.Status),
			StaleFrames: rec.StaleFrames,
			Error:       rec.Error,
			Units:       s.units,
		}
		if rec.HasFit {
			f.LeftRadius = s.distance(rec.LeftRadiusM)
			f.RightRadius = s.distance(rec.RightRadiusM)
			f.SmoothedLeftRadius = s.distance(rec.SmoothedLeftRadiusM)
			f.SmoothedRightRadius = s.distance(rec.SmoothedRightRadiusM)
			f.CenterOffset = s.distance(rec.CenterOffsetM)
			f.LeftCoefficients = []float64{rec.Fits.Left.A, rec.Fits.Left.B, rec.Fits.Left.C}
			f.RightCoefficients = []float64{rec.Fits.Right.A, rec.Fits.Right.B, rec.Fits.Right.C}
		}
		out = append(out, f)
	}
	httputil.WriteJSONOK(w, out)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r.PathValue("id"))
	if !ok {
		return
	}
	recs, err := s.frame.ListByRun(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if err := WriteHTMLReport(&buf, "lanetrack: "+run.Source, SamplesFromRecords(recs), s.units); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}
	httputil.WriteHTML(w, buf.Bytes())
}

func (s *Server) lookupRun(w http.ResponseWriter, id string) (*sqlite.Run, bool) {
	run, err := s.runs.Get(id)
	if errors.Is(err, sqlite.ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return nil, false
	}
	return run, true
}

func (s *Server) distance(m float64) *float64 {
	v := units.ConvertDistance(m, s.units)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

