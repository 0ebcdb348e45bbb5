package detection

import (
	"fmt"
	"image"
	"sort"

	"github.com/pkg/errors"
)

// decodeYOLOv8 turns a raw YOLOv8 output tensor into detections in frame
// pixel coordinates.
//
// The tensor layout is [1, 4+numClasses, numCandidates]: rows 0..3 hold the
// box center x, center y, width and height in network input pixels, the
// remaining rows hold one score per class.
func decodeYOLOv8(data []float32, dims []int, frameWidth, frameHeight int, opts Options, classNames []string) ([]Detection, error) {
	if len(dims) != 3 || dims[0] != 1 {
		return nil, errors.Errorf("unexpected output shape %v", dims)
	}
	channels, candidates := dims[1], dims[2]
	if channels < 5 {
		return nil, errors.Errorf("output has %d channels, need at least 5", channels)
	}
	if len(data) < channels*candidates {
		return nil, errors.Errorf("output holds %d values, shape %v needs %d", len(data), dims, channels*candidates)
	}

	at := func(c, i int) float32 { return data[c*candidates+i] }

	scaleX := float64(frameWidth) / float64(opts.InputSize)
	scaleY := float64(frameHeight) / float64(opts.InputSize)
	bounds := image.Rect(0, 0, frameWidth, frameHeight)

	var raw []Detection
	for i := 0; i < candidates; i++ {
		classID := 0
		best := at(4, i)
		for c := 5; c < channels; c++ {
			if s := at(c, i); s > best {
				best = s
				classID = c - 4
			}
		}

		confidence := float64(best)
		if confidence <= opts.MinCandidateScore {
			continue
		}

		cx, cy := float64(at(0, i)), float64(at(1, i))
		w, h := float64(at(2, i)), float64(at(3, i))
		box := image.Rect(
			int((cx-w/2)*scaleX),
			int((cy-h/2)*scaleY),
			int((cx+w/2)*scaleX),
			int((cy+h/2)*scaleY),
		).Intersect(bounds)
		if box.Empty() {
			continue
		}

		raw = append(raw, Detection{
			Confidence: confidence,
			ClassID:    classID,
			ClassName:  className(classNames, classID),
			Box:        box,
		})
	}

	return nonMaxSuppression(raw, opts.NMSThreshold, opts.MaxDetections), nil
}

func className(names []string, id int) string {
	if id >= 0 && id < len(names) {
		return names[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// nonMaxSuppression keeps the highest scoring box of every cluster of
// same-class boxes that overlap by more than iouThreshold.
func nonMaxSuppression(dets []Detection, iouThreshold float64, maxDetections int) []Detection {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	kept := make([]Detection, 0, len(dets))
	suppressed := make([]bool, len(dets))
	for i := range dets {
		if suppressed[i] {
			continue
		}
		kept = append(kept, dets[i])
		if maxDetections > 0 && len(kept) == maxDetections {
			break
		}
		for j := i + 1; j < len(dets); j++ {
			if !suppressed[j] && dets[j].ClassID == dets[i].ClassID && iou(dets[i].Box, dets[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func iou(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}
