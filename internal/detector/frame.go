package detector

import (
	"image"
	"image/draw"

	"github.com/PhiFever/idbadge-scanner/internal/config"
)

// Params are the fixed heuristics of the card evaluator
type Params struct {
	// MinLuminance and MaxLuminance bound the card brightness band (exclusive)
	MinLuminance float64
	MaxLuminance float64
	// NoiseThreshold is the largest mean luminance delta still counted as stable
	NoiseThreshold float64
	// StabilityTarget is the number of consecutive stable frames that fires a capture
	StabilityTarget int
	// PresenceStride samples the center region every N pixels in both axes
	PresenceStride int
	// DiffStride samples every N-th pixel of the flattened buffer for frame difference
	DiffStride int
}

// DefaultParams returns the tuned defaults for the badge template family
func DefaultParams() Params {
	return Params{
		MinLuminance:    100,
		MaxLuminance:    240,
		NoiseThreshold:  5,
		StabilityTarget: 15,
		PresenceStride:  2,
		DiffStride:      10,
	}
}

// ParamsFrom builds Params from the capture section of the config
func ParamsFrom(cfg config.CaptureConfig) Params {
	p := Params{
		MinLuminance:    cfg.MinLuminance,
		MaxLuminance:    cfg.MaxLuminance,
		NoiseThreshold:  cfg.NoiseThreshold,
		StabilityTarget: cfg.StabilityTarget,
		PresenceStride:  cfg.PresenceStride,
		DiffStride:      cfg.DiffStride,
	}
	if p.StabilityTarget < 1 {
		p.StabilityTarget = 1
	}
	if p.PresenceStride < 1 {
		p.PresenceStride = 1
	}
	if p.DiffStride < 1 {
		p.DiffStride = 1
	}
	return p
}

// StabilityState is threaded through successive Evaluate calls of one capture session
type StabilityState struct {
	Detected bool
	Counter  int

	// last accepted frame, copied so callers may reuse their buffer
	last    *image.RGBA
	hasLast bool
}

// Reset returns the state to its initial values
func (s *StabilityState) Reset() {
	s.Detected = false
	s.Counter = 0
	s.hasLast = false
}

// HasReference reports whether a previous frame is held for comparison
func (s *StabilityState) HasReference() bool {
	return s.hasLast
}

func (s *StabilityState) remember(frame *image.RGBA) {
	r := frame.Rect
	if s.last == nil || s.last.Rect.Dx() != r.Dx() || s.last.Rect.Dy() != r.Dy() {
		s.last = image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	}
	draw.Draw(s.last, s.last.Rect, frame, r.Min, draw.Src)
	s.hasLast = true
}

// Evaluation is the verdict for one frame
type Evaluation struct {
	CardPresent bool
	// StabilityRatio is Counter/StabilityTarget in [0,1]; 1 on the capturing frame
	StabilityRatio float64
	ShouldCapture  bool
	// Luminance is the average center brightness, Difference the mean delta
	// against the previous frame (-1 when not computed)
	Luminance  float64
	Difference float64
}

// Evaluate scores one frame and advances state. It performs no I/O.
func Evaluate(state *StabilityState, frame *image.RGBA, p Params) Evaluation {
	eval := Evaluation{Difference: -1}

	avg, ok := CenterLuminance(frame, p.PresenceStride)
	eval.Luminance = avg
	present := ok && IsCardPresent(avg, p.MinLuminance, p.MaxLuminance)

	if !present {
		state.Reset()
		return eval
	}

	state.Detected = true
	eval.CardPresent = true

	if state.hasLast {
		diff, comparable := FrameDifference(frame, state.last, p.DiffStride)
		eval.Difference = diff
		if comparable && diff < p.NoiseThreshold {
			state.Counter++
		} else {
			state.Counter = 0
		}
	}
	state.remember(frame)

	target := p.StabilityTarget
	if target < 1 {
		target = 1
	}
	if state.Counter >= target {
		eval.ShouldCapture = true
		eval.StabilityRatio = 1
		state.Counter = 0
		state.hasLast = false
		return eval
	}

	eval.StabilityRatio = float64(state.Counter) / float64(target)
	return eval
}

// IsCardPresent reports whether avg lies strictly inside (lo, hi)
func IsCardPresent(avg, lo, hi float64) bool {
	return avg > lo && avg < hi
}

// CenterLuminance averages (R+G+B)/3 over the central 50%x50% of the frame,
// sampling every stride pixels. ok is false when nothing was sampled.
func CenterLuminance(frame *image.RGBA, stride int) (avg float64, ok bool) {
	if frame == nil {
		return 0, false
	}
	if stride < 1 {
		stride = 1
	}
	w, h := frame.Rect.Dx(), frame.Rect.Dy()
	x0, y0 := w/4, h/4
	cw, ch := w/2, h/2

	sum := 0.0
	n := 0
	for y := y0; y < y0+ch; y += stride {
		row := frame.Pix[y*frame.Stride:]
		for x := x0; x < x0+cw; x += stride {
			i := x * 4
			sum += (float64(row[i]) + float64(row[i+1]) + float64(row[i+2])) / 3
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// FrameDifference is the mean absolute luminance delta over every stride-th
// pixel of the flattened buffers. Frames of different size are not comparable.
func FrameDifference(a, b *image.RGBA, stride int) (diff float64, comparable bool) {
	if a == nil || b == nil {
		return 0, false
	}
	w, h := a.Rect.Dx(), a.Rect.Dy()
	if w != b.Rect.Dx() || h != b.Rect.Dy() || w == 0 || h == 0 {
		return 0, false
	}
	if stride < 1 {
		stride = 1
	}

	sum := 0.0
	n := 0
	for p := 0; p < w*h; p += stride {
		x, y := p%w, p/w
		ia := y*a.Stride + x*4
		ib := y*b.Stride + x*4
		la := pixelLuminance(a.Pix[ia], a.Pix[ia+1], a.Pix[ia+2])
		lb := pixelLuminance(b.Pix[ib], b.Pix[ib+1], b.Pix[ib+2])
		if la > lb {
			sum += la - lb
		} else {
			sum += lb - la
		}
		n++
	}
	return sum / float64(n), true
}

func pixelLuminance(r, g, b uint8) float64 {
	return 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
}

// ToRGBA returns img as a zero-origin *image.RGBA, converting when needed
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	return rgba
}
