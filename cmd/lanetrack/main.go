// Command lanetrack runs the lane boundary tracker over a directory of
// bird's-eye binary masks and reports curvature and centre offset per frame.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/lanetrack/internal/config"
	"github.com/banshee-data/lanetrack/internal/lane"
	"github.com/banshee-data/lanetrack/internal/lane/maskio"
	"github.com/banshee-data/lanetrack/internal/lane/monitor"
	"github.com/banshee-data/lanetrack/internal/lane/storage/sqlite"
	"github.com/banshee-data/lanetrack/internal/units"
	"github.com/banshee-data/lanetrack/internal/version"
)

var (
	masksDir    = flag.String("masks", "", "Directory of mask images (png, bmp, tiff), processed in lexical order")
	configPath  = flag.String("config", config.DefaultConfigPath, "Tuning config JSON file")
	dbPath      = flag.String("db", "", "SQLite database for run results (disabled when empty)")
	plotsDir    = flag.String("plots", "", "Directory for PNG curvature and offset plots")
	htmlPath    = flag.String("html", "", "Write an HTML report to this file")
	unitsFlag   = flag.String("units", units.Meters, "Distance units for output: "+units.GetValidUnitsString())
	threshold   = flag.Uint("threshold", maskio.DefaultThreshold, "Luminance (0-255) above which a mask pixel is active")
	reportRun   = flag.String("report-run", "", "Render -html/-plots for a stored run ID from -db instead of processing masks")
	listen      = flag.String("listen", "", "Serve stored runs from -db on this address (e.g. :8080) instead of processing masks")
	verbose     = flag.Bool("verbose", false, "Log per-frame fits and curvature")
	traceSearch = flag.Bool("trace", false, "Log per-window search detail")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// options is the parsed command line.
type options struct {
	MasksDir   string
	ConfigPath string
	DBPath     string
	PlotsDir   string
	HTMLPath   string
	Units      string
	Threshold  uint8
	ReportRun  string
	Listen     string
}

func (o options) validate() error {
	if !units.IsValid(o.Units) {
		return fmt.Errorf("invalid units %q, want one of: %s", o.Units, units.GetValidUnitsString())
	}
	if o.Listen != "" {
		if o.DBPath == "" {
			return errors.New("-listen requires -db")
		}
		return nil
	}
	if o.ReportRun != "" {
		if o.DBPath == "" {
			return errors.New("-report-run requires -db")
		}
		if o.HTMLPath == "" && o.PlotsDir == "" {
			return errors.New("-report-run requires -html or -plots")
		}
		return nil
	}
	if o.MasksDir == "" {
		return errors.New("-masks is required")
	}
	return nil
}

// summary counts frame outcomes over a run.
type summary struct {
	Frames int
	Stale  int
	Failed int
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *threshold > 255 {
		log.Fatalf("threshold %d out of range 0-255", *threshold)
	}
	opts := options{
		MasksDir:   *masksDir,
		ConfigPath: *configPath,
		DBPath:     *dbPath,
		PlotsDir:   *plotsDir,
		HTMLPath:   *htmlPath,
		Units:      *unitsFlag,
		Threshold:  uint8(*threshold),
		ReportRun:  *reportRun,
		Listen:     *listen,
	}

	lw := lane.LogWriters{Ops: os.Stderr}
	if *verbose {
		lw.Diag = os.Stderr
	}
	if *traceSearch {
		lw.Trace = os.Stderr
	}
	lane.SetLogWriters(lw)

	var err error
	switch {
	case opts.Listen != "":
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		err = serve(ctx, opts)
		stop()
	case opts.ReportRun != "":
		err = report(opts)
	default:
		_, err = run(opts, os.Stdout)
	}
	if err != nil {
		log.Fatalf("lanetrack: %v", err)
	}
}

// run tracks every mask in opts.MasksDir in order, writing one line per
// frame to out and persisting, plotting and reporting as configured.
func run(opts options, out io.Writer) (summary, error) {
	var sum summary
	if err := opts.validate(); err != nil {
		return sum, err
	}

	tuning, err := config.LoadTuningConfig(opts.ConfigPath)
	if err != nil {
		return sum, err
	}
	tracker, err := lane.NewTracker(lane.TrackerConfigFromTuning(tuning))
	if err != nil {
		return sum, err
	}

	fsys := os.DirFS(opts.MasksDir)
	names, err := maskio.ListFrames(fsys, ".")
	if err != nil {
		return sum, err
	}
	if len(names) == 0 {
		return sum, fmt.Errorf("no mask images in %s", opts.MasksDir)
	}

	var (
		runs    *sqlite.RunStore
		frames  *sqlite.FrameStore
		current *sqlite.Run
	)
	if opts.DBPath != "" {
		db, err := sqlite.OpenDB(opts.DBPath)
		if err != nil {
			return sum, err
		}
		defer db.Close()

		params, err := json.Marshal(tuning)
		if err != nil {
			return sum, fmt.Errorf("encode params: %w", err)
		}
		runs = sqlite.NewRunStore(db.DB)
		frames = sqlite.NewFrameStore(db.DB)
		current = &sqlite.Run{Source: opts.MasksDir, ParamsJSON: params}
		if err := runs.Create(current); err != nil {
			return sum, fmt.Errorf("create run: %w", err)
		}
		lane.Opsf("run %s: %d masks from %s", current.RunID, len(names), opts.MasksDir)
	}

	plotter := monitor.NewCurvaturePlotter(opts.Units)
	if opts.PlotsDir != "" {
		if err := plotter.Start(opts.PlotsDir); err != nil {
			return sum, err
		}
	}
	var samples []monitor.CurvatureSample

	sym := units.Symbol(opts.Units)
	fmt.Fprintf(out, "frame\tfile\tstatus\tleft_radius_%s\tright_radius_%s\toffset_%s\n", sym, sym, sym)

	for _, name := range names {
		mask, err := maskio.Load(fsys, name, opts.Threshold)
		if err != nil {
			return sum, err
		}

		res, detectErr := tracker.Detect(mask)
		if detectErr != nil && !errors.Is(detectErr, lane.ErrDetectionFailed) {
			return sum, fmt.Errorf("%s: %w", name, detectErr)
		}
		frame := tracker.FrameCount()

		sum.Frames++
		switch {
		case res == nil:
			sum.Failed++
			lane.Opsf("frame %d (%s): %v", frame, name, detectErr)
		case res.Status == lane.FrameStale:
			sum.Stale++
		}

		sample := monitor.SampleFromResult(frame, res)
		samples = append(samples, sample)
		plotter.Sample(sample)
		writeFrameLine(out, filepath.Base(name), sample, opts.Units)

		if frames != nil {
			rec := sqlite.FrameRecordFromResult(current.RunID, frame, res, detectErr)
			if err := frames.Insert(rec); err != nil {
				return sum, fmt.Errorf("store frame %d: %w", frame, err)
			}
		}
	}

	if runs != nil {
		if err := runs.Finish(current.RunID, sum.Frames, sum.Stale, sum.Failed); err != nil {
			return sum, err
		}
	}
	lane.Opsf("processed %d frames: %d stale, %d failed", sum.Frames, sum.Stale, sum.Failed)

	return sum, render(opts, plotter, samples, opts.MasksDir)
}

// serve exposes the runs stored in opts.DBPath over HTTP until ctx is done.
func serve(ctx context.Context, opts options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	db, err := sqlite.OpenDB(opts.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	server := &http.Server{
		Addr:    opts.Listen,
		Handler: monitor.NewServer(db, opts.Units).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	lane.Opsf("serving runs from %s on %s", opts.DBPath, opts.Listen)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

// report renders plots and HTML for a run already stored in the database.
func report(opts options) error {
	if err := opts.validate(); err != nil {
		return err
	}
	db, err := sqlite.OpenDB(opts.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	stored, err := sqlite.NewRunStore(db.DB).Get(opts.ReportRun)
	if err != nil {
		return err
	}
	recs, err := sqlite.NewFrameStore(db.DB).ListByRun(stored.RunID)
	if err != nil {
		return err
	}
	samples := monitor.SamplesFromRecords(recs)

	plotter := monitor.NewCurvaturePlotter(opts.Units)
	if opts.PlotsDir != "" {
		if err := plotter.Start(opts.PlotsDir); err != nil {
			return err
		}
		for _, s := range samples {
			plotter.Sample(s)
		}
	}
	return render(opts, plotter, samples, stored.Source)
}

func render(opts options, plotter *monitor.CurvaturePlotter, samples []monitor.CurvatureSample, source string) error {
	if opts.PlotsDir != "" {
		plotter.Stop()
		n, err := plotter.GeneratePlots()
		if err != nil {
			return fmt.Errorf("generate plots: %w", err)
		}
		lane.Opsf("wrote %d plots to %s", n, opts.PlotsDir)
	}

	if opts.HTMLPath != "" {
		f, err := os.Create(opts.HTMLPath)
		if err != nil {
			return err
		}
		if err := monitor.WriteHTMLReport(f, "lanetrack: "+source, samples, opts.Units); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		lane.Opsf("wrote report %s", opts.HTMLPath)
	}
	return nil
}

func writeFrameLine(out io.Writer, file string, s monitor.CurvatureSample, unit string) {
	if !s.HasGeometry {
		fmt.Fprintf(out, "%d\t%s\t%s\t-\t-\t-\n", s.Frame, file, s.Status)
		return
	}
	fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%s\t%.3f\n",
		s.Frame, file, s.Status,
		formatRadius(units.ConvertDistance(s.SmoothedLeftRadiusM, unit)),
		formatRadius(units.ConvertDistance(s.SmoothedRightRadiusM, unit)),
		units.ConvertDistance(s.CenterOffsetM, unit))
}

func formatRadius(r float64) string {
	if lane.IsStraight(r) {
		return "inf"
	}
	return fmt.Sprintf("%.1f", r)
}
