package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"potholepatrol/detection"
)

// debugMsgFunc is a function that will be set by main package to use unified logging
var debugMsgFunc func(component, message string)

// SetDebugFunction allows main package to provide the debug logger
func SetDebugFunction(fn func(component, message string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message)
	}
}

// Renderer draws detection boxes and the pothole warning caption.
type Renderer struct {
	boxColor     color.RGBA
	labelColor   color.RGBA
	warningColor color.RGBA

	boxThickness   int
	labelScale     float64
	labelThickness int

	warningOrigin    image.Point
	warningScale     float64
	warningThickness int
}

// NewRenderer creates a new overlay renderer
func NewRenderer() *Renderer {
	return &Renderer{
		boxColor:         color.RGBA{R: 255, G: 128, B: 0, A: 255}, // orange
		labelColor:       color.RGBA{R: 255, G: 255, B: 255, A: 255},
		warningColor:     color.RGBA{R: 255, G: 0, B: 0, A: 255},
		boxThickness:     2,
		labelScale:       0.5,
		labelThickness:   1,
		warningOrigin:    image.Pt(50, 100),
		warningScale:     1,
		warningThickness: 3,
	}
}

// Annotate returns a copy of frame with every detection boxed and labelled.
// Detections above threshold also get the warning caption. The caller owns
// the returned Mat. With no detections the copy is pixel-identical to frame.
func (r *Renderer) Annotate(frame gocv.Mat, dets []detection.Detection, threshold float64) gocv.Mat {
	annotated := frame.Clone()

	for _, d := range dets {
		r.DrawDetection(&annotated, d)
	}

	for _, d := range dets {
		if detection.Qualifies(d, threshold) {
			r.DrawWarning(&annotated, d.Confidence)
		}
	}

	return annotated
}

// DrawDetection draws one box with a "class NN%" tag above it.
func (r *Renderer) DrawDetection(img *gocv.Mat, d detection.Detection) {
	gocv.Rectangle(img, d.Box, r.boxColor, r.boxThickness)

	label := fmt.Sprintf("%s %d%%", d.ClassName, Percent(d.Confidence))
	textSize := gocv.GetTextSize(label, gocv.FontHersheySimplex, r.labelScale, r.labelThickness)

	// Tag sits above the box, or inside it when the box touches the top edge.
	tagTop := d.Box.Min.Y - textSize.Y - 8
	if tagTop < 0 {
		tagTop = d.Box.Min.Y
	}
	tag := image.Rect(d.Box.Min.X, tagTop, d.Box.Min.X+textSize.X+6, tagTop+textSize.Y+8)
	gocv.Rectangle(img, tag, r.boxColor, -1)
	gocv.PutText(img, label, image.Pt(tag.Min.X+3, tag.Max.Y-4), gocv.FontHersheySimplex, r.labelScale, r.labelColor, r.labelThickness)
}

// DrawWarning writes the fixed-position pothole caption.
func (r *Renderer) DrawWarning(img *gocv.Mat, confidence float64) {
	text := WarningText(confidence)
	gocv.PutText(img, text, r.warningOrigin, gocv.FontHersheySimplex, r.warningScale, r.warningColor, r.warningThickness)
	debugMsgVerbose("OVERLAY", text)
}

// WarningText is the caption drawn for a qualifying detection.
func WarningText(confidence float64) string {
	return fmt.Sprintf("POTHOLE DETECTED! (%d%%)", Percent(confidence))
}

// Percent converts a 0..1 confidence to a whole percentage, truncating.
func Percent(confidence float64) int {
	return int(confidence * 100)
}

var debugMsgVerboseFunc func(component, message string)

// SetDebugVerboseFunction allows main package to provide the verbose debug logger
func SetDebugVerboseFunction(fn func(component, message string)) {
	debugMsgVerboseFunc = fn
}

func debugMsgVerbose(component, message string) {
	if debugMsgVerboseFunc != nil {
		debugMsgVerboseFunc(component, message)
	}
}
