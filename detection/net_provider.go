package detection

import (
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

const (
	defaultInputSize         = 640
	defaultMinCandidateScore = 0.25
	defaultNMSThreshold      = 0.45
	defaultMaxDetections     = 300
	defaultClassName         = "pothole"
)

// Options tunes model output decoding. Zero sizes and limits take the
// defaults; MinCandidateScore is used as given, so 0 keeps every candidate
// with a positive score.
type Options struct {
	InputSize         int     // square network input in pixels
	MinCandidateScore float64 // raw candidates at or below this score are dropped before NMS
	NMSThreshold      float64 // IoU above which the weaker of two same-class boxes is dropped
	MaxDetections     int
}

// DefaultOptions returns the decoding settings of a stock YOLOv8 export,
// including the 0.25 candidate floor.
func DefaultOptions() Options {
	return Options{
		InputSize:         defaultInputSize,
		MinCandidateScore: defaultMinCandidateScore,
		NMSThreshold:      defaultNMSThreshold,
		MaxDetections:     defaultMaxDetections,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.InputSize > 0 {
		d.InputSize = o.InputSize
	}
	d.MinCandidateScore = o.MinCandidateScore
	if o.NMSThreshold > 0 {
		d.NMSThreshold = o.NMSThreshold
	}
	if o.MaxDetections > 0 {
		d.MaxDetections = o.MaxDetections
	}
	return d
}

// dnnProvider runs an ONNX YOLO model through the OpenCV DNN module. CPU and
// GPU providers only differ in backend and target.
type dnnProvider struct {
	net        gocv.Net
	classNames []string
	options    Options
	backend    gocv.NetBackendType
	target     gocv.NetTargetType
	loaded     bool
	mu         sync.Mutex
}

func (p *dnnProvider) initialize(modelPath, namesPath string) error {
	p.options = p.options.withDefaults()

	classNames, err := loadClassNames(namesPath)
	if err != nil {
		return err
	}
	p.classNames = classNames

	if err := checkONNXModel(modelPath); err != nil {
		return err
	}

	p.net = gocv.ReadNetFromONNX(modelPath)
	if p.net.Empty() {
		p.net.Close()
		return errors.Wrapf(ErrModelLoad, "failed to load ONNX network from %s", modelPath)
	}
	p.loaded = true

	if err := p.net.SetPreferableBackend(p.backend); err != nil {
		return errors.Wrapf(ErrModelLoad, "set backend: %v", err)
	}
	if err := p.net.SetPreferableTarget(p.target); err != nil {
		return errors.Wrapf(ErrModelLoad, "set target: %v", err)
	}

	debugMsg("PROVIDER", fmt.Sprintf("Loaded %s with %d class(es), input %dx%d",
		modelPath, len(p.classNames), p.options.InputSize, p.options.InputSize))
	return nil
}

func (p *dnnProvider) detect(frame gocv.Mat) ([]Detection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		return nil, errors.New("network not loaded")
	}
	if frame.Empty() {
		return nil, errors.New("empty frame")
	}

	size := p.options.InputSize
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	p.net.SetInput(blob, "")
	output := p.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "read network output")
	}

	return decodeYOLOv8(data, output.Size(), frame.Cols(), frame.Rows(), p.options, p.classNames)
}

func (p *dnnProvider) close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		return nil
	}
	p.loaded = false
	return p.net.Close()
}

// loadClassNames reads one class name per line. Without a names file the
// model is assumed to be a single-class pothole detector.
func loadClassNames(namesPath string) ([]string, error) {
	if namesPath == "" {
		return []string{defaultClassName}, nil
	}

	namesBytes, err := os.ReadFile(namesPath)
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "could not read class names: %v", err)
	}

	var names []string
	for _, line := range strings.Split(string(namesBytes), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, errors.Wrapf(ErrModelLoad, "class names file %s is empty", namesPath)
	}
	return names, nil
}
