package imageproc

import (
	"image"
	"math"
)

// Histogram counts pixels per luminance value
type Histogram [256]int

// Normalized is the binarized output of Normalize plus the values that produced it
type Normalized struct {
	Image     *image.NRGBA
	Threshold uint8
	Min, Max  uint8
	// Flat is set when the source had a single luminance value and was returned unchanged
	Flat bool
}

// Luminance returns the rounded weighted sum 0.299R + 0.587G + 0.114B
func Luminance(r, g, b uint8) uint8 {
	v := math.Round(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b))
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// LuminanceMap computes the luminance of every pixel in row-major order
func LuminanceMap(img *image.NRGBA) []uint8 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	lum := make([]uint8, 0, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			lum = append(lum, Luminance(row[x], row[x+1], row[x+2]))
		}
	}
	return lum
}

// BuildHistogram counts luminance values
func BuildHistogram(lum []uint8) Histogram {
	var hist Histogram
	for _, v := range lum {
		hist[v]++
	}
	return hist
}

// Range returns the smallest and largest populated buckets.
// ok is false for an empty histogram.
func (h *Histogram) Range() (lo, hi uint8, ok bool) {
	first, last := -1, -1
	for i := 0; i < 256; i++ {
		if h[i] > 0 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, 0, false
	}
	return uint8(first), uint8(last), true
}

// Total returns the number of counted pixels
func (h *Histogram) Total() int {
	total := 0
	for _, c := range h {
		total += c
	}
	return total
}

// StretchTable maps [min,max] linearly onto [0,255]. A zero range yields the identity.
func StretchTable(lo, hi uint8) [256]uint8 {
	var lut [256]uint8
	span := int(hi) - int(lo)
	for v := 0; v < 256; v++ {
		switch {
		case span <= 0:
			lut[v] = uint8(v)
		case v <= int(lo):
			lut[v] = 0
		case v >= int(hi):
			lut[v] = 255
		default:
			lut[v] = uint8(math.Round(float64(v-int(lo)) * 255 / float64(span)))
		}
	}
	return lut
}

// Remap moves every bucket through lut without revisiting pixels
func (h *Histogram) Remap(lut [256]uint8) Histogram {
	var out Histogram
	for v, c := range h {
		out[lut[v]] += c
	}
	return out
}

// OtsuThreshold returns the split maximizing between-class variance
// wB*wF*(mB-mF)^2 in a single pass with running sums.
func OtsuThreshold(hist Histogram) uint8 {
	total := hist.Total()
	if total == 0 {
		return 0
	}

	sum := 0.0
	for i := 0; i < 256; i++ {
		sum += float64(i * hist[i])
	}

	sumB := 0.0
	wB := 0
	maxVariance := 0.0
	threshold := uint8(0)

	for t := 0; t < 256; t++ {
		wB += hist[t]
		if wB == 0 {
			continue
		}

		wF := total - wB
		if wF == 0 {
			break
		}

		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)

		variance := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if variance > maxVariance {
			maxVariance = variance
			threshold = uint8(t)
		}
	}

	return threshold
}

// Normalize converts a photo into a black and white image for recognition:
// luminance, contrast stretch, Otsu threshold, binarize. Alpha is kept.
// The result is deterministic for identical pixels.
func Normalize(img image.Image) (*Normalized, error) {
	src, err := ToNRGBA(img)
	if err != nil {
		return nil, err
	}

	lum := LuminanceMap(src)
	hist := BuildHistogram(lum)
	lo, hi, ok := hist.Range()
	if !ok {
		return nil, ErrImageAccess
	}
	if lo == hi {
		return &Normalized{Image: src, Threshold: lo, Min: lo, Max: hi, Flat: true}, nil
	}

	lut := StretchTable(lo, hi)
	threshold := OtsuThreshold(hist.Remap(lut))

	w, h := src.Rect.Dx(), src.Rect.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	i := 0
	for y := 0; y < h; y++ {
		srow := src.Pix[y*src.Stride : y*src.Stride+w*4]
		drow := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x := 0; x < w*4; x += 4 {
			v := uint8(0)
			if lut[lum[i]] > threshold {
				v = 255
			}
			drow[x], drow[x+1], drow[x+2], drow[x+3] = v, v, v, srow[x+3]
			i++
		}
	}

	return &Normalized{Image: out, Threshold: threshold, Min: lo, Max: hi}, nil
}
