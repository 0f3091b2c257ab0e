//go:build !ocr
// +build !ocr

package recognizer

import (
	"context"
	"fmt"
	"image"
)

// Available reports whether Tesseract support is compiled in
const Available = false

// Tesseract is a placeholder when OCR support is not compiled in
type Tesseract struct{}

// New fails: OCR support not compiled in (use -tags=ocr to enable)
func New() (*Tesseract, error) {
	return nil, fmt.Errorf("%w: built without -tags=ocr", ErrUnavailable)
}

// Recognize always fails with ErrUnavailable
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, opts Options) (string, error) {
	return "", ErrUnavailable
}

// Close is a no-op
func (t *Tesseract) Close() error {
	return nil
}
