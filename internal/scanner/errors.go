package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PhiFever/idbadge-scanner/internal/extractor"
	"github.com/PhiFever/idbadge-scanner/internal/imageproc"
	"github.com/PhiFever/idbadge-scanner/internal/recognizer"
)

var (
	// ErrNoScanArea is returned before any processing when no area was selected
	ErrNoScanArea = errors.New("no scan area selected")
	// ErrBusy is returned when a pipeline run is already in flight
	ErrBusy = errors.New("a scan is already in progress")
)

// IncompleteExtractionError means the text was read but required fields
// could not be resolved. Result holds the best-effort parse.
type IncompleteExtractionError struct {
	Missing []string
	Result  extractor.Result
}

func (e *IncompleteExtractionError) Error() string {
	return fmt.Sprintf("incomplete extraction: missing %s", strings.Join(e.Missing, ", "))
}

// UserMessage maps a pipeline error to operator-facing text
func UserMessage(err error) string {
	var incomplete *IncompleteExtractionError
	switch {
	case err == nil:
		return "Scan successful."
	case errors.Is(err, ErrNoScanArea):
		return "Please select a scan area first."
	case errors.Is(err, ErrBusy):
		return "A scan is already being processed, please wait."
	case errors.Is(err, imageproc.ErrImageDecode):
		return "The image could not be read. Use a JPG, PNG or WEBP photo."
	case errors.Is(err, imageproc.ErrImageAccess):
		return "The image could not be processed."
	case errors.Is(err, recognizer.ErrUnavailable):
		return "Text recognition is not available."
	case errors.Is(err, recognizer.ErrEmptyResult):
		return "No text found on the card. Try again with better lighting."
	case errors.As(err, &incomplete):
		return "Failed to read the name or ID number. Hold the card steady and try again."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The scan was cancelled."
	default:
		return "The scan failed. Please try again."
	}
}

// outcome labels an error for metrics
func outcome(err error) string {
	var incomplete *IncompleteExtractionError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoScanArea):
		return "no_area"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, imageproc.ErrImageDecode):
		return "decode"
	case errors.Is(err, imageproc.ErrImageAccess):
		return "image_access"
	case errors.Is(err, recognizer.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, recognizer.ErrEmptyResult):
		return "empty"
	case errors.As(err, &incomplete):
		return "incomplete"
	default:
		return "error"
	}
}
