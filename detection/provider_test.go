package detection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestParseDevice(t *testing.T) {
	for in, want := range map[string]Device{"": DeviceAuto, "auto": DeviceAuto, "CPU": DeviceCPU, " gpu ": DeviceGPU} {
		got, err := ParseDevice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDevice("tpu")
	assert.Error(t, err)
}

func TestLoadClassNames(t *testing.T) {
	names, err := loadClassNames("")
	require.NoError(t, err)
	assert.Equal(t, []string{"pothole"}, names)

	dir := t.TempDir()
	path := filepath.Join(dir, "classes.txt")
	require.NoError(t, os.WriteFile(path, []byte("pothole\r\n crack \n\n"), 0o644))

	names, err = loadClassNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"pothole", "crack"}, names)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n\n"), 0o644))
	_, err = loadClassNames(empty)
	assert.True(t, errors.Is(err, ErrModelLoad))

	_, err = loadClassNames(filepath.Join(dir, "missing.txt"))
	assert.True(t, errors.Is(err, ErrModelLoad))
}

func TestInitializeMissingModel(t *testing.T) {
	pm := NewProviderManager(DeviceCPU, Options{})
	err := pm.Initialize(filepath.Join(t.TempDir(), "best.onnx"), "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelLoad))
	assert.Nil(t, pm.currentProvider)
	assert.NoError(t, pm.Close())
}

func TestInitializeMalformedModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.onnx")
	require.NoError(t, os.WriteFile(path, []byte("this is not an onnx model\n"), 0o644))

	pm := NewProviderManager(DeviceCPU, DefaultOptions())
	err := pm.Initialize(path, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelLoad))
	assert.Nil(t, pm.currentProvider)
}

// stubProvider records calls and fails Initialize with initErr.
type stubProvider struct {
	initErr error
	closed  int
}

func (s *stubProvider) Initialize(modelPath, namesPath string) error { return s.initErr }

func (s *stubProvider) Detect(frame gocv.Mat) ([]Detection, error) { return nil, nil }

func (s *stubProvider) Close() error {
	s.closed++
	return nil
}

func (s *stubProvider) GetProviderInfo() ProviderInfo { return ProviderInfo{Type: "STUB"} }

func writeModelFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "best.onnx")
	require.NoError(t, os.WriteFile(path, []byte{0x08, 0x07}, 0o644))
	return path
}

func TestForcedGPUKeepsCause(t *testing.T) {
	gpu := &stubProvider{initErr: errors.New("CUDA backend not built")}
	cpu := &stubProvider{}
	pm := NewProviderManager(DeviceGPU, DefaultOptions())
	pm.newGPU = func(Options) InferenceProvider { return gpu }
	pm.newCPU = func(Options) InferenceProvider { return cpu }

	err := pm.Initialize(writeModelFile(t), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelLoad))
	assert.Contains(t, err.Error(), "CUDA backend not built")
	assert.Equal(t, 1, gpu.closed)
	assert.Equal(t, 0, cpu.closed, "no CPU fallback when the GPU is forced")
}

func TestFailedCPUProviderIsClosed(t *testing.T) {
	cpu := &stubProvider{initErr: errors.Wrap(ErrModelLoad, "set backend")}
	pm := NewProviderManager(DeviceCPU, DefaultOptions())
	pm.newCPU = func(Options) InferenceProvider { return cpu }

	err := pm.Initialize(writeModelFile(t), "")
	assert.True(t, errors.Is(err, ErrModelLoad))
	assert.Equal(t, 1, cpu.closed)
	assert.Nil(t, pm.currentProvider)
}

func TestCPUProviderSelected(t *testing.T) {
	cpu := &stubProvider{}
	pm := NewProviderManager(DeviceCPU, DefaultOptions())
	pm.newCPU = func(Options) InferenceProvider { return cpu }

	require.NoError(t, pm.Initialize(writeModelFile(t), ""))
	assert.Equal(t, "STUB", pm.GetProviderInfo().Type)
	assert.NoError(t, pm.Close())
	assert.Equal(t, 1, cpu.closed)
}

func TestManagerDetectWithoutProvider(t *testing.T) {
	frame := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	defer frame.Close()

	_, err := NewProviderManager(DeviceAuto, Options{}).Detect(frame)
	assert.Error(t, err)
}

func TestUninitializedProviderRejectsDetect(t *testing.T) {
	frame := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	defer frame.Close()

	p := NewCPUProvider(Options{})
	_, err := p.Detect(frame)
	assert.Error(t, err)
	assert.NoError(t, p.Close())
	assert.Equal(t, "CPU", p.GetProviderInfo().Type)
	assert.Equal(t, "GPU", NewGPUProvider(Options{}).GetProviderInfo().Type)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{MinCandidateScore: 0.5}.withDefaults()

	assert.Equal(t, 640, o.InputSize)
	assert.Equal(t, 0.5, o.MinCandidateScore)
	assert.Equal(t, 0.45, o.NMSThreshold)
	assert.Equal(t, 300, o.MaxDetections)
	assert.Equal(t, DefaultOptions(), DefaultOptions().withDefaults())
	assert.Equal(t, 0.25, DefaultOptions().MinCandidateScore)
}

func TestOptionsZeroFloorIsKept(t *testing.T) {
	o := Options{MinCandidateScore: 0}.withDefaults()

	assert.Equal(t, 0.0, o.MinCandidateScore)
	assert.Equal(t, 640, o.InputSize)
}
