// Package source reads frames from a video file in display order.
package source

import (
	"fmt"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrVideoOpen is returned when the video file cannot be opened.
var ErrVideoOpen = errors.New("video open failed")

var debugMsgFunc func(component, message string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// Kind tags the outcome of one read.
type Kind int

const (
	FrameReady Kind = iota
	EndOfStream
	DecodeError
)

func (k Kind) String() string {
	switch k {
	case FrameReady:
		return "FRAME_READY"
	case EndOfStream:
		return "END_OF_STREAM"
	case DecodeError:
		return "DECODE_ERROR"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of one read. Frame is only valid for FrameReady and
// is owned by the caller, who must Close it.
type Result struct {
	Kind  Kind
	Frame gocv.Mat
	Err   error
}

// Info describes the opened video as reported by the container.
type Info struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int // 0 when the container does not report it
}

func (i Info) String() string {
	return fmt.Sprintf("%dx%d @ %.2f fps, %d frames", i.Width, i.Height, i.FPS, i.FrameCount)
}

// VideoSource is a lazy, finite, non-restartable frame sequence.
type VideoSource struct {
	path    string
	capture *gocv.VideoCapture
	info    Info
	read    int
	done    bool
}

// Open opens the video at path.
func Open(path string) (*VideoSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrVideoOpen, "%s: %v", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, errors.Wrapf(ErrVideoOpen, "%s: capture not opened", path)
	}

	vs := &VideoSource{
		path:    path,
		capture: capture,
		info: Info{
			Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
			Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
			FPS:        capture.Get(gocv.VideoCaptureFPS),
			FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
		},
	}
	if vs.info.FrameCount < 0 {
		vs.info.FrameCount = 0
	}
	debugMsg("SOURCE", fmt.Sprintf("Opened %s (%s)", path, vs.info))
	return vs, nil
}

// Info returns the container metadata read at open time.
func (vs *VideoSource) Info() Info {
	return vs.info
}

// FramesRead returns how many frames have been handed out.
func (vs *VideoSource) FramesRead() int {
	return vs.read
}

// Next reads the next frame. Once EndOfStream or DecodeError has been
// returned every later call returns EndOfStream.
func (vs *VideoSource) Next() Result {
	if vs.done || vs.capture == nil {
		return Result{Kind: EndOfStream}
	}

	img := gocv.NewMat()
	if ok := vs.capture.Read(&img); !ok {
		img.Close()
		vs.done = true
		return vs.classifyFailedRead()
	}

	// A successful read that yields no pixels is corrupt data, not the end.
	if img.Empty() {
		img.Close()
		vs.done = true
		return Result{Kind: DecodeError, Err: errors.Errorf("empty frame after %d frames", vs.read)}
	}

	vs.read++
	return Result{Kind: FrameReady, Frame: img}
}

// classifyFailedRead separates a clean end of file from a decode failure
// using the container's frame count. Without a count the two cannot be told
// apart and the read is reported as the end of the stream.
func (vs *VideoSource) classifyFailedRead() Result {
	total := vs.info.FrameCount
	if total <= 0 || vs.read >= total {
		return Result{Kind: EndOfStream}
	}
	pos := int(vs.capture.Get(gocv.VideoCapturePosFrames))
	if pos >= total {
		return Result{Kind: EndOfStream}
	}
	return Result{
		Kind: DecodeError,
		Err:  errors.Errorf("read failed at frame %d of %d", vs.read, total),
	}
}

// Close releases the capture handle. It is safe to call more than once.
func (vs *VideoSource) Close() error {
	if vs.capture == nil {
		return nil
	}
	err := vs.capture.Close()
	vs.capture = nil
	vs.done = true
	return err
}
