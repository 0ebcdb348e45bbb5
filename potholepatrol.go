package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"potholepatrol/debuglog"
	"potholepatrol/detection"
	"potholepatrol/display"
	"potholepatrol/gps"
	"potholepatrol/overlay"
	"potholepatrol/pipeline"
	"potholepatrol/report"
	"potholepatrol/source"
)

// Global debug logger instance
var globalDebugLogger *debuglog.DebugLogger

// debugMsg is the global convenience function for unified debug logging
func debugMsg(component, message string) {
	if globalDebugLogger != nil {
		globalDebugLogger.DebugMsg(component, message)
	}
}

// debugMsgVerbose only outputs if the verbose flag is enabled
func debugMsgVerbose(component, message string) {
	if globalDebugLogger != nil {
		globalDebugLogger.DebugMsgVerbose(component, message)
	}
}

// runConfig is the parsed command line.
type runConfig struct {
	ModelPath    string
	NamesPath    string
	VideoPath    string
	Threshold    float64
	Start        gps.Position
	Delta        gps.Delta
	OutputPath   string
	Zoom         int
	TrackOutput  string
	SnapshotDir  string
	Device       detection.Device
	ModelConf    float64
	Headless     bool
	WindowWidth  int
	WindowHeight int
	QuitKey      rune
	LogFile      string
	Verbose      bool
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "potholepatrol",
		Usage: "detect potholes in a road video and map where they were seen",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "model", Value: "best.onnx", EnvVars: []string{"POTHOLE_MODEL"}, Usage: "YOLO model exported to ONNX"},
			&cli.StringFlag{Name: "names", EnvVars: []string{"POTHOLE_NAMES"}, Usage: "class names file, one per line (default: single class \"pothole\")"},
			&cli.StringFlag{Name: "video", Value: "test_video3.mp4", EnvVars: []string{"POTHOLE_VIDEO"}, Usage: "input video `FILE`"},
			&cli.Float64Flag{Name: "threshold", Value: 0.000001, EnvVars: []string{"POTHOLE_THRESHOLD"}, Usage: "log detections with confidence strictly above this"},
			&cli.Float64Flag{Name: "start-lat", Value: 28.6304, EnvVars: []string{"POTHOLE_START_LAT"}, Usage: "simulated start latitude"},
			&cli.Float64Flag{Name: "start-lon", Value: 77.2177, EnvVars: []string{"POTHOLE_START_LON"}, Usage: "simulated start longitude"},
			&cli.Float64Flag{Name: "delta-lat", Value: 0.00005, EnvVars: []string{"POTHOLE_DELTA_LAT"}, Usage: "latitude step per frame"},
			&cli.Float64Flag{Name: "delta-lon", Value: 0.00005, EnvVars: []string{"POTHOLE_DELTA_LON"}, Usage: "longitude step per frame"},
			&cli.StringFlag{Name: "output", Value: "pothole_map.html", EnvVars: []string{"POTHOLE_OUTPUT"}, Usage: "map report `FILE`"},
			&cli.IntFlag{Name: "zoom", Value: 15, EnvVars: []string{"POTHOLE_ZOOM"}, Usage: "initial map zoom (0-19)"},
			&cli.StringFlag{Name: "track-output", EnvVars: []string{"POTHOLE_TRACK_OUTPUT"}, Usage: "optional route chart `FILE`"},
			&cli.StringFlag{Name: "snapshot-dir", EnvVars: []string{"POTHOLE_SNAPSHOT_DIR"}, Usage: "save annotated frames with detections under `DIR`"},
			&cli.StringFlag{Name: "device", Value: string(detection.DeviceAuto), EnvVars: []string{"POTHOLE_DEVICE"}, Usage: "inference device: auto, cpu or gpu"},
			&cli.Float64Flag{Name: "model-conf", Value: detection.DefaultOptions().MinCandidateScore, EnvVars: []string{"POTHOLE_MODEL_CONF"}, Usage: "detector candidate score floor, 0 keeps every candidate"},
			&cli.BoolFlag{Name: "headless", EnvVars: []string{"POTHOLE_HEADLESS"}, Usage: "run without a display window"},
			&cli.IntFlag{Name: "window-width", Value: display.DefaultWidth, EnvVars: []string{"POTHOLE_WINDOW_WIDTH"}, Usage: "viewer width in pixels"},
			&cli.IntFlag{Name: "window-height", Value: display.DefaultHeight, EnvVars: []string{"POTHOLE_WINDOW_HEIGHT"}, Usage: "viewer height in pixels"},
			&cli.StringFlag{Name: "quit-key", Value: string(display.DefaultQuit), EnvVars: []string{"POTHOLE_QUIT_KEY"}, Usage: "key that stops the run"},
			&cli.StringFlag{Name: "log-file", EnvVars: []string{"POTHOLE_LOG_FILE"}, Usage: "also write JSON logs to `FILE`"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, EnvVars: []string{"POTHOLE_VERBOSE"}, Usage: "log every frame"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := configFromContext(c)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, os.Stdout)
		},
	}
}

func configFromContext(c *cli.Context) (runConfig, error) {
	cfg := runConfig{
		ModelPath:    c.String("model"),
		NamesPath:    c.String("names"),
		VideoPath:    c.String("video"),
		Threshold:    c.Float64("threshold"),
		Start:        gps.Position{Lat: c.Float64("start-lat"), Lon: c.Float64("start-lon")},
		Delta:        gps.Delta{Lat: c.Float64("delta-lat"), Lon: c.Float64("delta-lon")},
		OutputPath:   c.String("output"),
		Zoom:         c.Int("zoom"),
		TrackOutput:  c.String("track-output"),
		SnapshotDir:  c.String("snapshot-dir"),
		ModelConf:    c.Float64("model-conf"),
		Headless:     c.Bool("headless"),
		WindowWidth:  c.Int("window-width"),
		WindowHeight: c.Int("window-height"),
		LogFile:      c.String("log-file"),
		Verbose:      c.Bool("verbose"),
	}

	device, err := detection.ParseDevice(c.String("device"))
	if err != nil {
		return cfg, err
	}
	cfg.Device = device

	quit := c.String("quit-key")
	if utf8.RuneCountInString(quit) != 1 {
		return cfg, errors.Errorf("quit key must be a single character, got %q", quit)
	}
	cfg.QuitKey, _ = utf8.DecodeRuneInString(quit)

	return cfg, cfg.validate()
}

func (cfg runConfig) validate() error {
	switch {
	case cfg.ModelPath == "":
		return errors.New("model path is required")
	case cfg.VideoPath == "":
		return errors.New("video path is required")
	case cfg.OutputPath == "":
		return errors.New("output path is required")
	case cfg.Zoom < 0 || cfg.Zoom > report.MaxZoom:
		return errors.Errorf("zoom must be between 0 and %d, got %d", report.MaxZoom, cfg.Zoom)
	case cfg.ModelConf < 0:
		return errors.Errorf("model-conf must not be negative, got %g", cfg.ModelConf)
	case !cfg.Headless && (cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0):
		return errors.Errorf("invalid window size %dx%d", cfg.WindowWidth, cfg.WindowHeight)
	}
	return nil
}

func installDebugHooks() {
	detection.SetDebugFunction(debugMsg)
	source.SetDebugFunction(debugMsg)
	overlay.SetDebugFunction(debugMsg)
	overlay.SetDebugVerboseFunction(debugMsgVerbose)
	display.SetDebugFunction(debugMsg)
	pipeline.SetDebugFunction(debugMsg)
	pipeline.SetDebugVerboseFunction(debugMsgVerbose)
	report.SetDebugFunction(debugMsg)
}

func run(ctx context.Context, cfg runConfig, out io.Writer) error {
	runID := uuid.NewString()
	globalDebugLogger = debuglog.NewDebugLogger(debuglog.Config{
		Verbose: cfg.Verbose,
		LogFile: cfg.LogFile,
		RunID:   runID,
	})
	defer func() {
		if closeErr := globalDebugLogger.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "closing logger: %v\n", closeErr)
		}
	}()
	installDebugHooks()

	fmt.Fprintln(out, "Loading AI Model... (This might take a moment)")
	opts := detection.DefaultOptions()
	opts.MinCandidateScore = cfg.ModelConf
	detector := detection.NewProviderManager(cfg.Device, opts)
	if err := detector.Initialize(cfg.ModelPath, cfg.NamesPath); err != nil {
		return err
	}
	defer detector.Close()
	info := detector.GetProviderInfo()
	debugMsg("MAIN", fmt.Sprintf("Using %s provider (%s) on %s", info.Type, info.Backend, info.Device))

	video, err := source.Open(cfg.VideoPath)
	if err != nil {
		return err
	}
	vinfo := video.Info()
	debugMsg("MAIN", fmt.Sprintf("Video %s: %s", cfg.VideoPath, vinfo))
	if vinfo.FrameCount > 0 && vinfo.FPS > 0 {
		debugMsg("MAIN", fmt.Sprintf("Expected duration %.1fs", float64(vinfo.FrameCount)/vinfo.FPS))
	}

	var sink display.Sink = &display.Headless{}
	if !cfg.Headless {
		window, werr := display.NewWindow(display.DefaultTitle, cfg.WindowWidth, cfg.WindowHeight, cfg.QuitKey)
		if werr != nil {
			return multierr.Combine(werr, video.Close())
		}
		sink = window
	}

	p := pipeline.New(pipeline.Config{
		Threshold:   cfg.Threshold,
		Start:       cfg.Start,
		Delta:       cfg.Delta,
		SnapshotDir: cfg.SnapshotDir,
		Out:         out,
	}, video, detector, overlay.NewRenderer(), sink)
	states := p.States()
	states.SetStateChangeCallback(func(oldState, newState pipeline.RunState) {
		debugMsg("MAIN", fmt.Sprintf("Run %s: %s -> %s", runID, oldState, newState))
	})

	fmt.Fprintf(out, "Starting Pothole Patrol... Press '%c' to stop.\n", cfg.QuitKey)
	res, runErr := p.Run(ctx)

	debugMsg("MAIN", fmt.Sprintf("Decoded %d frames from %s", video.FramesRead(), cfg.VideoPath))
	if closeErr := multierr.Combine(video.Close(), sink.Close()); closeErr != nil {
		debugMsg("MAIN", fmt.Sprintf("WARNING: releasing video and display: %v", closeErr))
	}

	if reportErr := writeReports(cfg, res, runID, out); reportErr != nil {
		return multierr.Combine(runErr, reportErr)
	}
	if res.Log.Len() > 0 {
		if err := states.Transition(pipeline.ReportGenerated); err != nil {
			return multierr.Combine(runErr, err)
		}
	}
	return multierr.Combine(runErr, states.Transition(pipeline.Done))
}

// writeReports renders the map and the optional track chart from res. With
// an empty log it only prints the all-clear message.
func writeReports(cfg runConfig, res *pipeline.Result, runID string, out io.Writer) error {
	entries := res.Log.Entries()
	travelled := gps.Distance(cfg.Start, res.Final)
	debugMsg("MAIN", fmt.Sprintf("Processed %d frames (%s), travelled %.3f km, %d detections, %d snapshots",
		res.Frames, res.StopReason, travelled, len(entries), res.Snapshots))

	if len(entries) == 0 {
		fmt.Fprintln(out, "No potholes detected. Good roads!")
		return nil
	}

	fmt.Fprintf(out, "\nGenerating Map with %d potholes marked...\n", len(entries))
	mapOpts := report.DefaultMapOptions()
	mapOpts.Zoom = cfg.Zoom
	mapOpts.Caption = fmt.Sprintf("%d potholes in %d frames over %.2f km", len(entries), res.Log.FramesWithDetections(), travelled)
	if _, err := report.RenderMap(entries, cfg.Start, cfg.OutputPath, mapOpts); err != nil {
		return err
	}
	fmt.Fprintf(out, "SUCCESS! Open '%s' to see the report.\n", cfg.OutputPath)

	if cfg.TrackOutput != "" {
		if _, err := report.RenderTrack(entries, res.Route, cfg.TrackOutput, "run "+runID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Route chart written to '%s'.\n", cfg.TrackOutput)
	}
	return nil
}

// exitCode maps fatal startup errors to distinct process exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, detection.ErrModelLoad):
		return 2
	case errors.Is(err, source.ErrVideoOpen):
		return 3
	default:
		return 1
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "potholepatrol: %v\n", err)
		os.Exit(exitCode(err))
	}
}
