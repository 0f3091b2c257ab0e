package detector

import (
	"fmt"
	"image"
	"sync"

	"github.com/PhiFever/idbadge-scanner/internal/logger"
)

// String returns a compact representation for logging
func (e Evaluation) String() string {
	if !e.CardPresent {
		return fmt.Sprintf("card: not detected (lum %.1f)", e.Luminance)
	}
	if e.ShouldCapture {
		return "card: stable, capture"
	}
	return fmt.Sprintf("card: detected (lum %.1f, diff %.2f, stability %.0f%%)",
		e.Luminance, e.Difference, e.StabilityRatio*100)
}

var _ Detector = (*CardDetector)(nil)

// CardDetector owns the StabilityState of one capture session
type CardDetector struct {
	*BaseDetector
	params Params

	mu         sync.Mutex
	state      StabilityState
	lastResult Evaluation
}

// NewCardDetector creates a detector with the given heuristics
func NewCardDetector(params Params) *CardDetector {
	return &CardDetector{
		BaseDetector: NewBaseDetector("CardDetector"),
		params:       params,
	}
}

// Evaluate scores a frame. A disabled detector returns a zero Evaluation
// and leaves its state untouched.
func (d *CardDetector) Evaluate(frame image.Image) Evaluation {
	if !d.IsEnabled() || frame == nil {
		return Evaluation{Difference: -1}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	wasDetected := d.state.Detected
	result := Evaluate(&d.state, ToRGBA(frame), d.params)
	d.lastResult = result

	if result.CardPresent != wasDetected {
		logger.Debugf("[%s] %s", d.Name(), result.String())
	}
	if result.ShouldCapture {
		logger.Infof("[%s] card stable for %d frames, capturing", d.Name(), d.params.StabilityTarget)
	}

	return result
}

// Reset re-arms the stability state
func (d *CardDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Reset()
	d.lastResult = Evaluation{Difference: -1}
}

// State returns a copy of the current counters
func (d *CardDetector) State() (detected bool, counter int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Detected, d.state.Counter
}

// GetLastResult returns the most recent evaluation
func (d *CardDetector) GetLastResult() Evaluation {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastResult
}

// Params returns the heuristics in use
func (d *CardDetector) Params() Params {
	return d.params
}
