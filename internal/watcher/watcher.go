// Package watcher scans badge photos dropped into an inbox directory.
//
// Files are picked up once their events settle for the debounce window,
// scanned one at a time, and moved to processed/ or failed/ so a restart
// never scans the same photo twice.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/PhiFever/idbadge-scanner/internal/config"
	"github.com/PhiFever/idbadge-scanner/internal/logger"
	"github.com/PhiFever/idbadge-scanner/internal/models"
	"github.com/PhiFever/idbadge-scanner/internal/scanner"
	"github.com/PhiFever/idbadge-scanner/pkg/utils"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Processor scans one photo file
type Processor interface {
	ProcessFile(ctx context.Context, path, area, source string) (models.IdentityRecord, error)
}

// Result reports one handled file
type Result struct {
	File   string
	Record models.IdentityRecord
	Err    error
}

// Watcher watches one inbox directory
type Watcher struct {
	dir      string
	area     string
	debounce time.Duration
	proc     Processor
	results  chan<- Result
}

// Option configures a Watcher
type Option func(*Watcher)

// WithResults reports every handled file on ch. Sends never block.
func WithResults(ch chan<- Result) Option {
	return func(w *Watcher) { w.results = ch }
}

// New validates cfg and builds a watcher for it
func New(cfg config.WatchConfig, proc Processor, opts ...Option) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch directory not configured")
	}
	if cfg.Area == "" {
		return nil, scanner.ErrNoScanArea
	}
	debounce := time.Duration(cfg.Debounce * float64(time.Second))
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	w := &Watcher{
		dir:      cfg.Dir,
		area:     cfg.Area,
		debounce: debounce,
		proc:     proc,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Dir returns the inbox directory
func (w *Watcher) Dir() string {
	return w.dir
}

// Run sweeps files already in the inbox, then handles new ones until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	for _, sub := range []string{"", ProcessedDir, FailedDir} {
		if _, err := utils.EnsureDir(filepath.Join(w.dir, sub)); err != nil {
			return fmt.Errorf("prepare inbox: %w", err)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logger.Infof("[Watcher] Watching %s for area %q (debounce %v)", w.dir, w.area, w.debounce)

	existing, err := w.sweep()
	if err != nil {
		return err
	}
	pending := make(map[string]time.Time)
	for _, name := range existing {
		if ctx.Err() != nil {
			return nil
		}
		if w.handle(ctx, name) {
			pending[name] = time.Now()
		}
	}

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Watcher] Stopped")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !utils.IsImageFile(name) {
				continue
			}
			pending[name] = time.Now()

		case <-ticker.C:
			for _, name := range settled(pending, time.Now(), w.debounce) {
				delete(pending, name)
				if w.handle(ctx, name) {
					pending[name] = time.Now()
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warningf("[Watcher] watch error: %v", err)
		}
	}
}

// sweep lists image files already waiting in the inbox, oldest name first
func (w *Watcher) sweep() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read inbox: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && utils.IsImageFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// settled returns the pending names quiet for longer than window, sorted
func settled(pending map[string]time.Time, now time.Time, window time.Duration) []string {
	var out []string
	for name, t := range pending {
		if now.Sub(t) >= window {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// handle scans one inbox file. It reports true when the file was left in
// the inbox because the pipeline was busy, so the caller retries it.
func (w *Watcher) handle(ctx context.Context, name string) bool {
	path := filepath.Join(w.dir, name)
	if _, err := os.Stat(path); err != nil {
		// already moved, or removed before it settled
		return false
	}

	rec, err := w.proc.ProcessFile(ctx, path, w.area, scanner.SourceWatch)
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, scanner.ErrBusy) {
		logger.Debugf("[Watcher] %s deferred: %v", name, err)
		return true
	}

	target := ProcessedDir
	if err != nil {
		target = FailedDir
		logger.Warningf("[Watcher] %s: %s (%v)", name, scanner.UserMessage(err), err)
	} else {
		logger.Infof("[Watcher] %s: %s / %s", name, rec.Name, rec.IDNumber)
	}
	if mvErr := os.Rename(path, filepath.Join(w.dir, target, name)); mvErr != nil {
		logger.Errorf("[Watcher] Failed to move %s: %v", name, mvErr)
	}

	if w.results != nil {
		select {
		case w.results <- Result{File: name, Record: rec, Err: err}:
		default:
		}
	}
	return false
}
