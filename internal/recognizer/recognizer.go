// Package recognizer invokes the text recognition engine on a normalized
// badge image. One attempt per call; callers decide whether to retry.
package recognizer

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/PhiFever/idbadge-scanner/internal/config"
)

var (
	// ErrUnavailable means the engine is not compiled in, not loaded or already closed
	ErrUnavailable = errors.New("text recognition unavailable")
	// ErrEmptyResult means the engine ran but returned no text
	ErrEmptyResult = errors.New("text recognition returned no text")
)

// Options tune one recognition call
type Options struct {
	Languages      []string
	PageSegMode    int
	Whitelist      string
	TessdataPrefix string
	Variables      map[string]string
}

// DefaultWhitelist is Latin letters, digits, space, period and hyphen
const DefaultWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789. -"

// DefaultOptions targets single-column badge layouts (PSM 4)
func DefaultOptions() Options {
	return Options{
		Languages:   []string{"eng"},
		PageSegMode: 4,
		Whitelist:   DefaultWhitelist,
	}
}

// OptionsFrom builds Options from the recognizer section of the config
func OptionsFrom(cfg config.RecognizerConfig) Options {
	opts := DefaultOptions()
	if len(cfg.Languages) > 0 {
		opts.Languages = append([]string(nil), cfg.Languages...)
	}
	if cfg.PageSegMode > 0 {
		opts.PageSegMode = cfg.PageSegMode
	}
	if cfg.Whitelist != "" {
		opts.Whitelist = cfg.Whitelist
	}
	opts.TessdataPrefix = cfg.TessdataPrefix
	if len(cfg.Variables) > 0 {
		opts.Variables = make(map[string]string, len(cfg.Variables))
		for k, v := range cfg.Variables {
			opts.Variables[k] = v
		}
	}
	return opts
}

// Recognizer turns a prepared image into raw text
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, opts Options) (string, error)
	Close() error
}

// CheckText trims raw engine output and maps blank output to ErrEmptyResult
func CheckText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}
