//go:build ocr
// +build ocr

package recognizer

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/PhiFever/idbadge-scanner/internal/imageproc"
	"github.com/PhiFever/idbadge-scanner/internal/logger"
	"github.com/otiai10/gosseract/v2"
)

// Available reports whether Tesseract support is compiled in
const Available = true

// Tesseract wraps one long-lived gosseract client. Calls are serialized.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// New loads the engine
func New() (*Tesseract, error) {
	client := gosseract.NewClient()
	if client == nil {
		return nil, ErrUnavailable
	}
	logger.Infof("[Recognizer] tesseract %s loaded", client.Version())
	return &Tesseract{client: client}, nil
}

// Recognize runs one recognition pass over img
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := imageproc.EncodePNG(img)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return "", ErrUnavailable
	}
	if err := t.configure(opts); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := t.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognition failed: %w", err)
	}
	return CheckText(text)
}

func (t *Tesseract) configure(opts Options) error {
	if opts.TessdataPrefix != "" {
		if err := t.client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			return fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := t.client.SetLanguage(opts.Languages...); err != nil {
		return fmt.Errorf("set language: %w", err)
	}
	if err := t.client.SetPageSegMode(gosseract.PageSegMode(opts.PageSegMode)); err != nil {
		return fmt.Errorf("set page segmentation mode: %w", err)
	}
	if err := t.client.SetWhitelist(opts.Whitelist); err != nil {
		return fmt.Errorf("set whitelist: %w", err)
	}
	for k, v := range opts.Variables {
		if err := t.client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return fmt.Errorf("set variable %s: %w", k, err)
		}
	}
	return nil
}

// Close releases the engine. Further calls fail with ErrUnavailable.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
