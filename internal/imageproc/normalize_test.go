package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLuminance(t *testing.T) {
	assert.Equal(t, uint8(0), Luminance(0, 0, 0))
	assert.Equal(t, uint8(255), Luminance(255, 255, 255))
	assert.Equal(t, uint8(76), Luminance(255, 0, 0))  // 76.245
	assert.Equal(t, uint8(150), Luminance(0, 255, 0)) // 149.685 rounds up
	assert.Equal(t, uint8(29), Luminance(0, 0, 255))  // 29.07
	assert.Equal(t, uint8(128), Luminance(128, 128, 128))
}

func TestOtsuThresholdBimodal(t *testing.T) {
	var hist Histogram
	for v := 40; v <= 60; v++ {
		hist[v] = 100
	}
	for v := 190; v <= 210; v++ {
		hist[v] = 80
	}

	th := OtsuThreshold(hist)
	// values <= th go black, so th must sit on or above the dark cluster and below the bright one
	assert.GreaterOrEqual(t, int(th), 60)
	assert.Less(t, int(th), 190)
}

func TestOtsuThresholdDegenerate(t *testing.T) {
	var empty Histogram
	assert.Equal(t, uint8(0), OtsuThreshold(empty))

	var single Histogram
	single[77] = 10
	assert.Equal(t, uint8(0), OtsuThreshold(single))
}

func TestStretchTable(t *testing.T) {
	lut := StretchTable(50, 150)
	assert.Equal(t, uint8(0), lut[50])
	assert.Equal(t, uint8(0), lut[10])
	assert.Equal(t, uint8(255), lut[150])
	assert.Equal(t, uint8(255), lut[200])
	assert.Equal(t, uint8(128), lut[100]) // 127.5 rounds up

	identity := StretchTable(90, 90)
	for v := 0; v < 256; v++ {
		assert.Equal(t, uint8(v), identity[v])
	}
}

func TestHistogramRemapKeepsTotal(t *testing.T) {
	lum := []uint8{50, 50, 100, 150, 150, 150}
	hist := BuildHistogram(lum)
	lo, hi, ok := hist.Range()
	require.True(t, ok)
	assert.Equal(t, uint8(50), lo)
	assert.Equal(t, uint8(150), hi)

	stretched := hist.Remap(StretchTable(lo, hi))
	assert.Equal(t, hist.Total(), stretched.Total())
	assert.Equal(t, 2, stretched[0])
	assert.Equal(t, 1, stretched[128])
	assert.Equal(t, 3, stretched[255])
}

// twoTone draws a dark text band on a light card with a little noise
func twoTone(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 200 + uint8(x%7), G: 190 + uint8(y%5), B: 180, A: 255}
			if y > h/3 && y < h/2 {
				c = color.NRGBA{R: 30 + uint8(x%5), G: 35, B: 40 + uint8(y%3), A: 200}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestNormalizeBinarizes(t *testing.T) {
	src := twoTone(60, 40)
	res, err := Normalize(src)
	require.NoError(t, err)
	require.False(t, res.Flat)

	out := res.Image
	assert.Equal(t, src.Bounds().Size(), out.Bounds().Size())

	for y := 0; y < 40; y++ {
		for x := 0; x < 60; x++ {
			c := out.NRGBAAt(x, y)
			assert.True(t, c.R == 0 || c.R == 255, "pixel (%d,%d) not binary: %v", x, y, c)
			assert.Equal(t, c.R, c.G)
			assert.Equal(t, c.R, c.B)
			assert.Equal(t, src.NRGBAAt(x, y).A, c.A, "alpha must be untouched")
		}
	}
	assert.Equal(t, uint8(255), out.NRGBAAt(0, 0).R, "card surface goes white")
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 15).R, "text band goes black")
}

func TestNormalizeDeterministic(t *testing.T) {
	src := twoTone(32, 32)
	a, err := Normalize(src)
	require.NoError(t, err)
	b, err := Normalize(src)
	require.NoError(t, err)
	assert.Equal(t, a.Threshold, b.Threshold)
	assert.Equal(t, a.Image.Pix, b.Image.Pix)
}

func TestNormalizeIdempotentOnBinary(t *testing.T) {
	first, err := Normalize(twoTone(48, 30))
	require.NoError(t, err)

	second, err := Normalize(first.Image)
	require.NoError(t, err)
	assert.Equal(t, first.Image.Pix, second.Image.Pix)
}

func TestNormalizeFlatImageUnchanged(t *testing.T) {
	flat := imaging.New(20, 10, color.NRGBA{R: 120, G: 120, B: 120, A: 255})
	res, err := Normalize(flat)
	require.NoError(t, err)
	assert.True(t, res.Flat)
	assert.Equal(t, flat.Pix, res.Image.Pix)

	white := imaging.New(5, 5, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	res, err = Normalize(white)
	require.NoError(t, err)
	assert.Equal(t, white.Pix, res.Image.Pix)
}

func TestNormalizeRejectsMissingSurface(t *testing.T) {
	_, err := Normalize(nil)
	assert.ErrorIs(t, err, ErrImageAccess)

	_, err = Normalize(image.NewNRGBA(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, ErrImageAccess)
}

func TestNormalizeSubImageOrigin(t *testing.T) {
	big := twoTone(80, 80)
	sub := big.SubImage(image.Rect(10, 10, 50, 50))
	res, err := Normalize(sub)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 40), res.Image.Bounds())
}

func TestDecodeErrors(t *testing.T) {
	_, err := DecodeBytes([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrImageDecode)

	_, err = DecodeBytes(nil)
	assert.ErrorIs(t, err, ErrImageDecode)

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.ErrorIs(t, err, ErrImageAccess)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := twoTone(16, 12)
	data, err := EncodePNG(src)
	require.NoError(t, err)

	decoded, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), decoded.Bounds())

	path := filepath.Join(t.TempDir(), "card.png")
	require.NoError(t, imaging.Save(src, path))
	fromFile, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds().Size(), fromFile.Bounds().Size())
}

func TestFit(t *testing.T) {
	src := imaging.New(400, 200, color.White)

	same := Fit(src, 0)
	assert.Equal(t, src.Bounds(), same.Bounds())

	small := Fit(src, 500)
	assert.Equal(t, src.Bounds(), small.Bounds())

	fitted := Fit(src, 100)
	assert.Equal(t, 100, fitted.Bounds().Dx())
	assert.Equal(t, 50, fitted.Bounds().Dy())
}
