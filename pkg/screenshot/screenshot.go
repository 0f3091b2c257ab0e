// Package screenshot provides a live frame source backed by screen capture,
// e.g. a camera preview window or a document camera viewer on screen.
package screenshot

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"
)

// ErrClosed is returned after the source has been closed
var ErrClosed = errors.New("screen source closed")

// display is the subset of the screenshot library the source needs
type display interface {
	NumActiveDisplays() int
	GetDisplayBounds(displayIndex int) image.Rectangle
	CaptureRect(rect image.Rectangle) (*image.RGBA, error)
}

type systemDisplay struct{}

func (systemDisplay) NumActiveDisplays() int { return screenshot.NumActiveDisplays() }

func (systemDisplay) GetDisplayBounds(displayIndex int) image.Rectangle {
	return screenshot.GetDisplayBounds(displayIndex)
}

func (systemDisplay) CaptureRect(rect image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(rect)
}

// Source captures one rectangle of a display per frame
type Source struct {
	display display
	rect    image.Rectangle

	mu     sync.Mutex
	closed bool
}

// NewSource captures region (relative to the display origin) of display
// displayIndex. A zero-sized region captures the whole display.
func NewSource(displayIndex int, region image.Rectangle) (*Source, error) {
	return newSource(systemDisplay{}, displayIndex, region)
}

func newSource(d display, displayIndex int, region image.Rectangle) (*Source, error) {
	n := d.NumActiveDisplays()
	if displayIndex < 0 || displayIndex >= n {
		return nil, fmt.Errorf("invalid display index: %d (available: 0-%d)", displayIndex, n-1)
	}

	bounds := d.GetDisplayBounds(displayIndex)
	rect := bounds
	if !region.Empty() {
		rect = region.Add(bounds.Min).Intersect(bounds)
		if rect.Empty() {
			return nil, fmt.Errorf("capture region %v is outside display %d %v", region, displayIndex, bounds)
		}
	}

	return &Source{display: d, rect: rect}, nil
}

// Rect returns the captured rectangle in virtual screen coordinates
func (s *Source) Rect() image.Rectangle {
	return s.rect
}

// Frame captures the region for live evaluation
func (s *Source) Frame() (image.Image, error) {
	return s.grab()
}

// Capture captures the region for recognition
func (s *Source) Capture() (image.Image, error) {
	return s.grab()
}

func (s *Source) grab() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	img, err := s.display.CaptureRect(s.rect)
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return img, nil
}

// Close releases the source; later captures fail with ErrClosed
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// DisplayCount returns the number of available displays
func DisplayCount() int {
	return screenshot.NumActiveDisplays()
}
