// Package pipeline drives the per-frame loop: read a frame, detect, log the
// qualifying detections at the simulated position, annotate, display, step
// the position and check for a stop request.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"potholepatrol/detection"
	"potholepatrol/gps"
	"potholepatrol/overlay"
	"potholepatrol/source"
	"potholepatrol/tracking"
)

var (
	debugMsgFunc        func(component, message string)
	debugMsgVerboseFunc func(component, message string)
)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

// SetDebugVerboseFunction sets the hook for per-frame messages.
func SetDebugVerboseFunction(fn func(component, message string)) {
	debugMsgVerboseFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

func debugMsgVerbose(component, message string) {
	if debugMsgVerboseFunc != nil {
		debugMsgVerboseFunc(component, message)
	}
}

// FrameSource yields decoded frames. The caller owns FrameReady frames.
type FrameSource interface {
	Next() source.Result
}

// Detector runs inference on one frame.
type Detector interface {
	Detect(frame gocv.Mat) ([]detection.Detection, error)
}

// Annotator returns a new annotated copy of frame.
type Annotator interface {
	Annotate(frame gocv.Mat, dets []detection.Detection, threshold float64) gocv.Mat
}

// Display shows frames and reports stop requests.
type Display interface {
	Show(frame gocv.Mat)
	PollStop() bool
}

// StopReason says why the frame loop ended.
type StopReason int

const (
	EndOfStream StopReason = iota
	DecodeError
	UserStop
	Cancelled
)

func (r StopReason) String() string {
	switch r {
	case EndOfStream:
		return "END_OF_STREAM"
	case DecodeError:
		return "DECODE_ERROR"
	case UserStop:
		return "USER_STOP"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Config holds the run parameters.
type Config struct {
	Threshold   float64
	Start       gps.Position
	Delta       gps.Delta
	SnapshotDir string    // annotated frames with qualifying detections are saved here when set
	Out         io.Writer // console lines; defaults to stdout
}

// Result is what a run produced, including on a fatal detector error.
type Result struct {
	Log        *tracking.LocationLog
	Frames     int            // frames processed
	Final      gps.Position   // position after the last processed frame
	Route      []gps.Position // position used for each processed frame
	StopReason StopReason
	Snapshots  int
}

// Pipeline owns the loop state for one run.
type Pipeline struct {
	cfg     Config
	src     FrameSource
	det     Detector
	ann     Annotator
	disp    Display
	sim     *gps.Simulator
	filter  detection.Postprocessor
	log     *tracking.LocationLog
	states  *StateManager
	out     io.Writer
	frameNo int
}

// New creates a pipeline. Nothing is read until Run.
func New(cfg Config, src FrameSource, det Detector, ann Annotator, disp Display) *Pipeline {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	return &Pipeline{
		cfg:    cfg,
		src:    src,
		det:    det,
		ann:    ann,
		disp:   disp,
		sim:    gps.NewSimulator(cfg.Start, cfg.Delta),
		filter: detection.NewScoreFilter(cfg.Threshold),
		log:    tracking.NewLocationLog(),
		states: NewStateManager(),
		out:    out,
	}
}

// States exposes the run state manager so the caller can finish the lifecycle.
func (p *Pipeline) States() *StateManager {
	return p.states
}

// Run processes frames until the stream ends, the display asks to stop, ctx
// is cancelled or the detector fails. The returned Result is always non-nil
// and holds everything logged so far.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{Log: p.log}
	if err := p.states.Transition(Streaming); err != nil {
		return res, err
	}
	step := p.sim.Delta()
	debugMsg("PIPELINE", fmt.Sprintf("Streaming from %s, step %+.5f/%+.5f per frame, threshold %g",
		p.sim.Start(), step.Lat, step.Lon, p.cfg.Threshold))

	runErr := p.loop(ctx, res)

	res.Frames = p.frameNo
	res.Final = p.sim.Current()
	if err := p.states.Transition(Finalizing); err != nil && runErr == nil {
		runErr = err
	}
	debugMsg("PIPELINE", fmt.Sprintf("Stopped after %d frames (%s), position advanced %d steps, %d detections logged",
		res.Frames, res.StopReason, p.sim.Steps(), p.log.Len()))
	return res, runErr
}

func (p *Pipeline) loop(ctx context.Context, res *Result) error {
	for {
		if ctx.Err() != nil {
			res.StopReason = Cancelled
			return nil
		}

		next := p.src.Next()
		switch next.Kind {
		case source.EndOfStream:
			res.StopReason = EndOfStream
			return nil
		case source.DecodeError:
			debugMsg("PIPELINE", fmt.Sprintf("WARNING: decode failed after %d frames: %v", p.frameNo, next.Err))
			res.StopReason = DecodeError
			return nil
		}

		stop, err := p.processFrame(next.Frame, res)
		next.Frame.Close()
		if err != nil {
			return err
		}
		if stop {
			res.StopReason = UserStop
			return nil
		}
	}
}

// processFrame runs one iteration on frame and reports whether the display
// asked to stop.
func (p *Pipeline) processFrame(frame gocv.Mat, res *Result) (bool, error) {
	dets, err := p.det.Detect(frame)
	if err != nil {
		return false, errors.Wrapf(err, "detect frame %d", p.frameNo)
	}

	pos := p.sim.Current()
	res.Route = append(res.Route, pos)
	qualified := p.filter(dets)
	qualifying := len(qualified)
	for _, d := range qualified {
		p.log.Append(tracking.LocationEntry{
			Position:   pos,
			Frame:      p.frameNo,
			Confidence: d.Confidence,
			ClassName:  d.ClassName,
		})
		fmt.Fprintf(p.out, "Pothole found at %s\n", pos)
	}
	debugMsgVerbose("PIPELINE", fmt.Sprintf("Frame %d at %s: %d detections, %d qualifying",
		p.frameNo, pos, len(dets), qualifying))

	annotated := p.ann.Annotate(frame, dets, p.cfg.Threshold)
	if qualifying > 0 {
		path, err := overlay.SaveSnapshot(annotated, p.cfg.SnapshotDir, p.frameNo, qualifying)
		if err != nil {
			debugMsg("PIPELINE", fmt.Sprintf("WARNING: snapshot for frame %d failed: %v", p.frameNo, err))
		} else if path != "" {
			res.Snapshots++
		}
	}
	p.disp.Show(annotated)
	annotated.Close()

	p.sim.Advance()
	p.frameNo++
	return p.disp.PollStop(), nil
}
