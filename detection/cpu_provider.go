package detection

import (
	"gocv.io/x/gocv"
)

// CPUProvider implements YOLO inference using OpenCV CPU backend
type CPUProvider struct {
	dnnProvider
}

// NewCPUProvider creates an uninitialized CPU provider.
func NewCPUProvider(options Options) *CPUProvider {
	return &CPUProvider{dnnProvider{
		options: options,
		backend: gocv.NetBackendDefault,
		target:  gocv.NetTargetCPU,
	}}
}

// Initialize initializes the CPU provider with model files
func (cp *CPUProvider) Initialize(modelPath, namesPath string) error {
	return cp.initialize(modelPath, namesPath)
}

// Detect performs object detection on a frame using CPU
func (cp *CPUProvider) Detect(frame gocv.Mat) ([]Detection, error) {
	return cp.detect(frame)
}

// Close releases resources used by the CPU provider
func (cp *CPUProvider) Close() error {
	return cp.close()
}

// GetProviderInfo returns information about the CPU provider
func (cp *CPUProvider) GetProviderInfo() ProviderInfo {
	return ProviderInfo{
		Type:         "CPU",
		Backend:      "OpenCV CPU",
		Device:       "CPU",
		EstimatedFPS: 10, // Conservative estimate for CPU inference at 640x640
		MemoryUsage:  "~300MB",
	}
}
