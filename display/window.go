// Package display shows annotated frames and watches for the quit key.
package display

import (
	"fmt"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"
)

const (
	DefaultTitle  = "Pothole Patrol Live Feed"
	DefaultWidth  = 1020
	DefaultHeight = 600
	DefaultQuit   = 'q'
)

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

// Sink receives annotated frames and reports whether the user asked to stop.
type Sink interface {
	Show(frame gocv.Mat)
	PollStop() bool
	Close() error
}

// Window is a live viewer window. Frames are resized to a fixed size before
// being shown.
type Window struct {
	window  *gocv.Window
	size    image.Point
	quitKey int
	resized gocv.Mat
}

// NewWindow opens a viewer window.
func NewWindow(title string, width, height int, quitKey rune) (*Window, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid window size %dx%d", width, height)
	}
	w := &Window{
		window:  gocv.NewWindow(title),
		size:    image.Pt(width, height),
		quitKey: int(quitKey) & 0xFF,
		resized: gocv.NewMat(),
	}
	w.window.ResizeWindow(width, height)
	debugMsg("DISPLAY", fmt.Sprintf("Opened window %q (%dx%d), press '%c' to stop", title, width, height, quitKey))
	return w, nil
}

// Show displays frame scaled to the window size.
func (w *Window) Show(frame gocv.Mat) {
	gocv.Resize(frame, &w.resized, w.size, 0, 0, gocv.InterpolationLinear)
	w.window.IMShow(w.resized)
}

// PollStop waits one millisecond for a key press and reports whether it was
// the quit key.
func (w *Window) PollStop() bool {
	return isQuitKey(w.window.WaitKey(1), w.quitKey)
}

// Close destroys the window.
func (w *Window) Close() error {
	if w.window == nil {
		return nil
	}
	err := w.window.Close()
	w.window = nil
	return multierr.Combine(err, w.resized.Close())
}

func isQuitKey(key, quitKey int) bool {
	if key < 0 {
		return false
	}
	return key&0xFF == quitKey
}

// Headless discards frames and never asks to stop.
type Headless struct{}

// Show does nothing.
func (h *Headless) Show(frame gocv.Mat) {}

// PollStop always returns false.
func (h *Headless) PollStop() bool {
	return false
}

// Close is a no-op.
func (h *Headless) Close() error {
	return nil
}

var (
	_ Sink = (*Window)(nil)
	_ Sink = (*Headless)(nil)
)
