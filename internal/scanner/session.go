package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/PhiFever/idbadge-scanner/internal/detector"
	"github.com/PhiFever/idbadge-scanner/internal/logger"
	"github.com/PhiFever/idbadge-scanner/internal/metrics"
	"github.com/PhiFever/idbadge-scanner/internal/models"
)

// FrameSource is the capture device of a session
type FrameSource interface {
	// Frame returns the current live frame
	Frame() (image.Image, error)
	// Capture returns a still at full resolution
	Capture() (image.Image, error)
	// Close releases the device
	Close() error
}

// Outcome is the result of one auto-captured scan
type Outcome struct {
	Record     models.IdentityRecord
	Err        error
	CapturedAt time.Time
}

// Session drives one capture loop: a frame per tick through the card
// detector, and a pipeline run whenever the detector fires. A Session
// runs once; the source is closed when the loop ends.
type Session struct {
	source   FrameSource
	detector detector.Detector
	pipeline *Pipeline
	area     string
	interval time.Duration
	metrics  *metrics.Metrics

	// Channels
	outcomes chan Outcome
	stopChan chan struct{}
	doneChan chan struct{}

	// State
	running bool
	started bool
	mu      sync.RWMutex
	runs    sync.WaitGroup

	// Statistics
	frameCount     uint64
	captureCount   uint64
	lastFrameTime  time.Time
	lastEvaluation detector.Evaluation
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithSessionMetrics records frames and captures
func WithSessionMetrics(m *metrics.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// NewSession creates a session scanning at area, evaluating one frame per interval
func NewSession(source FrameSource, det detector.Detector, pipeline *Pipeline, area string, interval time.Duration, opts ...SessionOption) *Session {
	s := &Session{
		source:   source,
		detector: det,
		pipeline: pipeline,
		area:     area,
		interval: interval,
		outcomes: make(chan Outcome, 16),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the capture loop
func (s *Session) Start(ctx context.Context) error {
	if s.area == "" {
		return ErrNoScanArea
	}
	if s.interval <= 0 {
		return fmt.Errorf("invalid capture interval %v", s.interval)
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("session has already been started")
	}
	s.started = true
	s.running = true
	s.mu.Unlock()

	s.detector.Reset()
	s.detector.SetEnabled(true)

	logger.Infof("[Session] Starting capture at %s (interval: %v)", s.area, s.interval)
	go s.captureLoop(ctx)
	return nil
}

// Stop stops the loop and waits until the source is released. No frame is
// evaluated after Stop returns.
func (s *Session) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New("session is not running")
	}
	s.running = false
	s.mu.Unlock()

	logger.Info("[Session] Stopping...")
	close(s.stopChan)
	<-s.doneChan
	logger.Info("[Session] Stopped")
	return nil
}

// Done is closed once the loop has ended and the source is released
func (s *Session) Done() <-chan struct{} {
	return s.doneChan
}

// IsRunning returns whether the loop is running
func (s *Session) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Outcomes delivers one Outcome per capture. It is closed when the loop ends.
func (s *Session) Outcomes() <-chan Outcome {
	return s.outcomes
}

func (s *Session) captureLoop(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.runs.Wait()
		if err := s.source.Close(); err != nil {
			logger.Warningf("[Session] Failed to release capture device: %v", err)
		}
		close(s.outcomes)

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.doneChan)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Session] Context cancelled, stopping capture loop")
			return

		case <-s.stopChan:
			logger.Info("[Session] Stop signal received, stopping capture loop")
			return

		case <-ticker.C:
			// a stop that raced the tick wins
			select {
			case <-s.stopChan:
				return
			default:
			}
			s.step(runCtx)
		}
	}
}

// step evaluates one frame and launches the pipeline on capture
func (s *Session) step(ctx context.Context) {
	if !s.detector.IsEnabled() {
		// pipeline in flight
		return
	}

	frame, err := s.source.Frame()
	if err != nil {
		logger.ErrorfNoTrace("[Session] Failed to read frame: %v", err)
		return
	}

	eval := s.detector.Evaluate(frame)
	s.metrics.ObserveFrame(eval.CardPresent)

	s.mu.Lock()
	s.frameCount++
	s.lastFrameTime = time.Now()
	s.lastEvaluation = eval
	if eval.ShouldCapture {
		s.captureCount++
	}
	s.mu.Unlock()

	if !eval.ShouldCapture {
		return
	}

	s.metrics.IncrementCaptures()
	s.detector.SetEnabled(false)
	s.runs.Add(1)
	go s.runPipeline(ctx, frame)
}

func (s *Session) runPipeline(ctx context.Context, frame image.Image) {
	defer s.runs.Done()

	capturedAt := time.Now()
	still, err := s.source.Capture()
	if err != nil {
		logger.Warningf("[Session] Still capture failed, using live frame: %v", err)
		still = frame
	}

	rec, err := s.pipeline.Process(ctx, still, s.area, SourceLive)

	select {
	case s.outcomes <- Outcome{Record: rec, Err: err, CapturedAt: capturedAt}:
	case <-ctx.Done():
		return
	}

	// re-arm after both success and failure
	s.detector.Reset()
	s.detector.SetEnabled(true)
}

// LastEvaluation returns the most recent frame verdict
func (s *Session) LastEvaluation() detector.Evaluation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastEvaluation
}

// GetStatistics returns session statistics
func (s *Session) GetStatistics() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"running":         s.running,
		"area":            s.area,
		"frame_count":     s.frameCount,
		"capture_count":   s.captureCount,
		"last_frame_time": s.lastFrameTime,
	}
}
