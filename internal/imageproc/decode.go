// Package imageproc prepares photographed badges for text recognition.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var (
	// ErrImageAccess means no pixel surface could be obtained for the image
	ErrImageAccess = errors.New("image access failed")
	// ErrImageDecode means the source bytes are not a decodable image
	ErrImageDecode = errors.New("image decode failed")
)

// Decode reads an encoded photo (JPEG, PNG, GIF, WEBP), applying EXIF orientation
// so phone photos come out upright.
func Decode(r io.Reader) (image.Image, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrImageAccess)
	}
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	return img, nil
}

// DecodeBytes decodes an in-memory photo
func DecodeBytes(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrImageDecode)
	}
	return Decode(bytes.NewReader(data))
}

// DecodeFile opens and decodes a photo from disk
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageAccess, err)
	}
	defer f.Close()
	return Decode(f)
}

// ToNRGBA copies img into a zero-origin NRGBA surface
func ToNRGBA(img image.Image) (*image.NRGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrImageAccess)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty bounds %v", ErrImageAccess, img.Bounds())
	}
	return imaging.Clone(img), nil
}

// Fit downscales img so neither side exceeds maxDim. Smaller images and
// maxDim <= 0 return img untouched.
func Fit(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxDim && b.Dy() <= maxDim {
		return img
	}
	return imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
}

// EncodePNG encodes img losslessly for the recognizer
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrImageAccess)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
