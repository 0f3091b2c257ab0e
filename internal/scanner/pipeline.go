// Package scanner turns captured badge photos into identity records and
// drives the live capture loop.
package scanner

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/PhiFever/idbadge-scanner/internal/extractor"
	"github.com/PhiFever/idbadge-scanner/internal/imageproc"
	"github.com/PhiFever/idbadge-scanner/internal/logger"
	"github.com/PhiFever/idbadge-scanner/internal/metrics"
	"github.com/PhiFever/idbadge-scanner/internal/models"
	"github.com/PhiFever/idbadge-scanner/internal/recognizer"
	"github.com/PhiFever/idbadge-scanner/internal/store"
)

// Sources label where a scan came from
const (
	SourceLive   = "live"
	SourceUpload = "upload"
	SourceWatch  = "watch"
	SourceCLI    = "cli"
)

// Pipeline runs normalize, recognize, extract and persist. Only one run is
// active at a time; a concurrent call fails with ErrBusy.
type Pipeline struct {
	recognizer recognizer.Recognizer
	store      store.Store
	options    recognizer.Options
	layout     extractor.Layout
	maxDim     int
	metrics    *metrics.Metrics
	now        func() time.Time

	mu sync.Mutex
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithStore persists every complete record
func WithStore(s store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithRecognizerOptions overrides the recognition options
func WithRecognizerOptions(opts recognizer.Options) Option {
	return func(p *Pipeline) { p.options = opts }
}

// WithLayout selects the badge template
func WithLayout(l extractor.Layout) Option {
	return func(p *Pipeline) { p.layout = l }
}

// WithMaxDimension downscales larger photos before normalization
func WithMaxDimension(n int) Option {
	return func(p *Pipeline) { p.maxDim = n }
}

// WithMetrics records outcomes and stage latencies
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock replaces time.Now for scan timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline around rec
func NewPipeline(rec recognizer.Recognizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		recognizer: rec,
		options:    recognizer.DefaultOptions(),
		layout:     extractor.AirportPass,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process scans one photo taken at area. The returned record is only
// valid when err is nil.
func (p *Pipeline) Process(ctx context.Context, img image.Image, area, source string) (models.IdentityRecord, error) {
	rec, err := p.process(ctx, img, area)
	p.metrics.IncrementOutcome(outcome(err), source)
	if err != nil {
		logger.Warningf("[Pipeline] %s scan failed: %v", source, err)
		return models.IdentityRecord{}, err
	}
	logger.Infof("[Pipeline] %s scan at %s: %s (%s)", source, area, rec.Name, rec.IDNumber)
	return rec, nil
}

// ProcessReader decodes an encoded photo and scans it
func (p *Pipeline) ProcessReader(ctx context.Context, r io.Reader, area, source string) (models.IdentityRecord, error) {
	return p.decodeAndProcess(ctx, area, source, func() (image.Image, error) {
		return imageproc.Decode(r)
	})
}

// ProcessFile scans the photo at path
func (p *Pipeline) ProcessFile(ctx context.Context, path, area, source string) (models.IdentityRecord, error) {
	return p.decodeAndProcess(ctx, area, source, func() (image.Image, error) {
		return imageproc.DecodeFile(path)
	})
}

// decodeAndProcess refuses a missing area before paying for the decode
func (p *Pipeline) decodeAndProcess(ctx context.Context, area, source string, decode func() (image.Image, error)) (models.IdentityRecord, error) {
	if area == "" {
		p.metrics.IncrementOutcome(outcome(ErrNoScanArea), source)
		return models.IdentityRecord{}, ErrNoScanArea
	}
	img, err := decode()
	if err != nil {
		p.metrics.IncrementOutcome(outcome(err), source)
		return models.IdentityRecord{}, err
	}
	return p.Process(ctx, img, area, source)
}

func (p *Pipeline) process(ctx context.Context, img image.Image, area string) (models.IdentityRecord, error) {
	if area == "" {
		return models.IdentityRecord{}, ErrNoScanArea
	}
	if !p.mu.TryLock() {
		return models.IdentityRecord{}, ErrBusy
	}
	defer p.mu.Unlock()

	if p.recognizer == nil {
		return models.IdentityRecord{}, recognizer.ErrUnavailable
	}

	start := time.Now()
	if p.maxDim > 0 && img != nil {
		img = imageproc.Fit(img, p.maxDim)
	}
	norm, err := imageproc.Normalize(img)
	if err != nil {
		return models.IdentityRecord{}, err
	}
	p.metrics.ObserveStage("normalize", time.Since(start))
	logger.Debugf("[Pipeline] normalized %dx%d, threshold %d, range %d-%d",
		norm.Image.Rect.Dx(), norm.Image.Rect.Dy(), norm.Threshold, norm.Min, norm.Max)

	if err := ctx.Err(); err != nil {
		return models.IdentityRecord{}, err
	}

	start = time.Now()
	text, err := p.recognizer.Recognize(ctx, norm.Image, p.options)
	if err != nil {
		return models.IdentityRecord{}, err
	}
	p.metrics.ObserveStage("recognize", time.Since(start))
	logger.Debugf("[Pipeline] recognized text:\n%s", text)

	start = time.Now()
	res := p.layout.Extract(text)
	p.metrics.ObserveStage("extract", time.Since(start))
	if !res.Complete() {
		return models.IdentityRecord{}, &IncompleteExtractionError{Missing: res.Missing(), Result: res}
	}

	rec := models.NewIdentityRecord(res.Fields(), area, p.now())

	if p.store != nil {
		start = time.Now()
		if err := p.store.Save(ctx, rec); err != nil {
			return models.IdentityRecord{}, fmt.Errorf("save record: %w", err)
		}
		p.metrics.ObserveStage("save", time.Since(start))
		p.metrics.IncrementSaved(area)
	}
	return rec, nil
}
