package detector

import (
	"image"
	"sync"
)

// Detector evaluates live frames for a capture session
type Detector interface {
	// Name returns the detector name used in log lines
	Name() string

	// Evaluate scores one frame and advances the detector's state
	Evaluate(frame image.Image) Evaluation

	// Reset re-arms the detector to its initial state
	Reset()

	// IsEnabled reports whether frames are currently evaluated
	IsEnabled() bool

	// SetEnabled pauses or resumes evaluation
	SetEnabled(enabled bool)
}

// BaseDetector provides the name and enabled flag shared by detectors
type BaseDetector struct {
	name    string
	enabled bool
	mu      sync.RWMutex
}

// NewBaseDetector creates an enabled BaseDetector
func NewBaseDetector(name string) *BaseDetector {
	return &BaseDetector{
		name:    name,
		enabled: true,
	}
}

// Name returns the detector name
func (b *BaseDetector) Name() string {
	return b.name
}

// IsEnabled reports whether the detector is enabled
func (b *BaseDetector) IsEnabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled
}

// SetEnabled sets the enabled flag
func (b *BaseDetector) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}
