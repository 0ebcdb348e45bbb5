package detection

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// candidate is one column of a synthetic YOLOv8 output tensor.
type candidate struct {
	cx, cy, w, h float32
	scores       []float32
}

func tensor(numClasses int, cands ...candidate) ([]float32, []int) {
	channels := 4 + numClasses
	n := len(cands)
	data := make([]float32, channels*n)
	for i, c := range cands {
		data[0*n+i] = c.cx
		data[1*n+i] = c.cy
		data[2*n+i] = c.w
		data[3*n+i] = c.h
		for k, s := range c.scores {
			data[(4+k)*n+i] = s
		}
	}
	return data, []int{1, channels, n}
}

func TestDecodeScalesToFrame(t *testing.T) {
	data, dims := tensor(1, candidate{cx: 320, cy: 320, w: 64, h: 32, scores: []float32{0.8}})

	dets, err := decodeYOLOv8(data, dims, 1280, 720, DefaultOptions(), []string{"pothole"})
	require.NoError(t, err)
	require.Len(t, dets, 1)

	d := dets[0]
	assert.InDelta(t, 0.8, d.Confidence, 1e-6)
	assert.Equal(t, 0, d.ClassID)
	assert.Equal(t, "pothole", d.ClassName)
	// x scale 2, y scale 1.125
	assert.Equal(t, image.Rect(576, 342, 704, 378), d.Box)
}

func TestDecodePicksBestClass(t *testing.T) {
	data, dims := tensor(3, candidate{cx: 100, cy: 100, w: 20, h: 20, scores: []float32{0.3, 0.7, 0.4}})

	dets, err := decodeYOLOv8(data, dims, 640, 640, DefaultOptions(), []string{"crack", "pothole"})
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 1, dets[0].ClassID)
	assert.Equal(t, "pothole", dets[0].ClassName)
	assert.InDelta(t, 0.7, dets[0].Confidence, 1e-6)

	data, dims = tensor(3, candidate{cx: 100, cy: 100, w: 20, h: 20, scores: []float32{0.1, 0.2, 0.9}})
	dets, err = decodeYOLOv8(data, dims, 640, 640, DefaultOptions(), []string{"crack", "pothole"})
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "class_2", dets[0].ClassName)
}

func TestDecodeDropsWeakCandidates(t *testing.T) {
	data, dims := tensor(1,
		candidate{cx: 100, cy: 100, w: 20, h: 20, scores: []float32{0.25}},
		candidate{cx: 300, cy: 300, w: 20, h: 20, scores: []float32{0.26}},
	)

	dets, err := decodeYOLOv8(data, dims, 640, 640, DefaultOptions(), nil)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.InDelta(t, 0.26, dets[0].Confidence, 1e-6)
}

func TestDecodeZeroFloorKeepsLowScores(t *testing.T) {
	data, dims := tensor(1,
		candidate{cx: 100, cy: 100, w: 20, h: 20, scores: []float32{0.1}},
		candidate{cx: 300, cy: 300, w: 20, h: 20, scores: []float32{0}},
	)

	opts := DefaultOptions()
	opts.MinCandidateScore = 0
	dets, err := decodeYOLOv8(data, dims, 640, 640, opts, nil)
	require.NoError(t, err)
	require.Len(t, dets, 1, "zero scores are still dropped")
	assert.InDelta(t, 0.1, dets[0].Confidence, 1e-6)
}

func TestDecodeSuppressesOverlaps(t *testing.T) {
	data, dims := tensor(2,
		candidate{cx: 100, cy: 100, w: 40, h: 40, scores: []float32{0.9, 0}},
		candidate{cx: 102, cy: 101, w: 40, h: 40, scores: []float32{0.6, 0}},
		// same place, other class: kept
		candidate{cx: 101, cy: 100, w: 40, h: 40, scores: []float32{0, 0.5}},
		// far away: kept
		candidate{cx: 400, cy: 400, w: 40, h: 40, scores: []float32{0.4, 0}},
	)

	dets, err := decodeYOLOv8(data, dims, 640, 640, DefaultOptions(), []string{"pothole", "crack"})
	require.NoError(t, err)
	require.Len(t, dets, 3)
	assert.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
	assert.InDelta(t, 0.5, dets[1].Confidence, 1e-6)
	assert.InDelta(t, 0.4, dets[2].Confidence, 1e-6)
}

func TestDecodeClipsToFrame(t *testing.T) {
	data, dims := tensor(1,
		candidate{cx: 5, cy: 5, w: 40, h: 40, scores: []float32{0.9}},
		candidate{cx: -100, cy: -100, w: 10, h: 10, scores: []float32{0.9}},
	)

	dets, err := decodeYOLOv8(data, dims, 640, 640, DefaultOptions(), nil)
	require.NoError(t, err)
	require.Len(t, dets, 1, "boxes fully outside the frame are dropped")
	assert.Equal(t, image.Rect(0, 0, 25, 25), dets[0].Box)
}

func TestDecodeMaxDetections(t *testing.T) {
	var cands []candidate
	for i := 0; i < 10; i++ {
		cands = append(cands, candidate{cx: float32(30 + i*60), cy: 100, w: 20, h: 20, scores: []float32{0.5 + float32(i)/100}})
	}
	data, dims := tensor(1, cands...)

	opts := DefaultOptions()
	opts.MaxDetections = 4
	dets, err := decodeYOLOv8(data, dims, 640, 640, opts, nil)
	require.NoError(t, err)
	require.Len(t, dets, 4)
	assert.InDelta(t, 0.59, dets[0].Confidence, 1e-6)
}

func TestDecodeRejectsBadShapes(t *testing.T) {
	_, err := decodeYOLOv8(make([]float32, 8), []int{1, 4, 2}, 640, 640, DefaultOptions(), nil)
	assert.Error(t, err)

	_, err = decodeYOLOv8(make([]float32, 10), []int{5, 2}, 640, 640, DefaultOptions(), nil)
	assert.Error(t, err)

	_, err = decodeYOLOv8(make([]float32, 3), []int{1, 5, 2}, 640, 640, DefaultOptions(), nil)
	assert.Error(t, err)
}

func TestIOU(t *testing.T) {
	a := image.Rect(0, 0, 10, 10)
	assert.InDelta(t, 1.0, iou(a, a), 1e-9)
	assert.InDelta(t, 0.0, iou(a, image.Rect(20, 20, 30, 30)), 1e-9)
	assert.InDelta(t, 25.0/175.0, iou(a, image.Rect(5, 5, 15, 15)), 1e-9)
}
