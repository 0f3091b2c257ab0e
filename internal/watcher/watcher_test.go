package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PhiFever/idbadge-scanner/internal/config"
	"github.com/PhiFever/idbadge-scanner/internal/imageproc"
	"github.com/PhiFever/idbadge-scanner/internal/models"
	"github.com/PhiFever/idbadge-scanner/internal/scanner"
)

type fakeProcessor struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	// busy counts how many more calls return ErrBusy per file
	busy map[string]int
}

func (p *fakeProcessor) ProcessFile(_ context.Context, path, area, source string) (models.IdentityRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := filepath.Base(path)
	p.calls = append(p.calls, name)
	if p.busy[name] > 0 {
		p.busy[name]--
		return models.IdentityRecord{}, scanner.ErrBusy
	}
	if err := p.fail[name]; err != nil {
		return models.IdentityRecord{}, err
	}
	return models.NewIdentityRecord(models.BadgeFields{Name: name}, area+"/"+source, time.Now()), nil
}

func (p *fakeProcessor) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("photo"), 0644))
}

func startWatcher(t *testing.T, dir string, proc Processor) (<-chan Result, context.CancelFunc, <-chan error) {
	t.Helper()
	results := make(chan Result, 16)
	w, err := New(config.WatchConfig{Dir: dir, Area: "Area Kargo", Debounce: 0.02}, proc, WithResults(results))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return results, cancel, done
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no result from watcher")
		return Result{}
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(config.WatchConfig{Area: "Area Kargo"}, &fakeProcessor{})
	assert.Error(t, err)

	_, err = New(config.WatchConfig{Dir: t.TempDir()}, &fakeProcessor{})
	assert.ErrorIs(t, err, scanner.ErrNoScanArea)

	w, err := New(config.WatchConfig{Dir: "inbox", Area: "Area Kargo"}, &fakeProcessor{})
	require.NoError(t, err)
	assert.Equal(t, 300*time.Millisecond, w.debounce)
	assert.Equal(t, "inbox", w.Dir())
}

func TestSweepHandlesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.jpg"))
	writeFile(t, filepath.Join(dir, "a.png"))
	writeFile(t, filepath.Join(dir, "notes.txt"))

	proc := &fakeProcessor{}
	results, _, _ := startWatcher(t, dir, proc)

	first := waitResult(t, results)
	second := waitResult(t, results)
	assert.Equal(t, "a.png", first.File)
	assert.Equal(t, "b.jpg", second.File)
	assert.Equal(t, "Area Kargo/watch", first.Record.ScanArea)

	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "a.png"))
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "b.jpg"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
	assert.Equal(t, []string{"a.png", "b.jpg"}, proc.Calls())
}

func TestNewFilesAreScanned(t *testing.T) {
	dir := t.TempDir()
	proc := &fakeProcessor{fail: map[string]error{
		"blurry.jpg": &scanner.IncompleteExtractionError{Missing: []string{"idNumber"}},
	}}
	results, _, _ := startWatcher(t, dir, proc)

	// give the watcher time to register
	time.Sleep(50 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "badge.png"))

	r := waitResult(t, results)
	require.NoError(t, r.Err)
	assert.Equal(t, "badge.png", r.File)
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "badge.png"))

	writeFile(t, filepath.Join(dir, "blurry.jpg"))
	r = waitResult(t, results)
	var incomplete *scanner.IncompleteExtractionError
	assert.True(t, errors.As(r.Err, &incomplete))
	assert.FileExists(t, filepath.Join(dir, FailedDir, "blurry.jpg"))
	assert.NoFileExists(t, filepath.Join(dir, "blurry.jpg"))
}

func TestBusyFilesStayInInbox(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "later.png"))
	proc := &fakeProcessor{fail: map[string]error{"later.png": scanner.ErrBusy}}

	w, err := New(config.WatchConfig{Dir: dir, Area: "Area Kargo"}, proc)
	require.NoError(t, err)
	assert.True(t, w.handle(context.Background(), "later.png"))

	assert.FileExists(t, filepath.Join(dir, "later.png"))
	assert.Equal(t, []string{"later.png"}, proc.Calls())
}

func TestBusyFilesAreRetried(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "swept.png"))
	proc := &fakeProcessor{busy: map[string]int{"swept.png": 1, "dropped.png": 2}}
	results, _, _ := startWatcher(t, dir, proc)

	r := waitResult(t, results)
	require.NoError(t, r.Err)
	assert.Equal(t, "swept.png", r.File)
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "swept.png"))

	writeFile(t, filepath.Join(dir, "dropped.png"))
	r = waitResult(t, results)
	require.NoError(t, r.Err)
	assert.Equal(t, "dropped.png", r.File)
	assert.FileExists(t, filepath.Join(dir, ProcessedDir, "dropped.png"))
	assert.NoFileExists(t, filepath.Join(dir, "dropped.png"))

	assert.Equal(t, []string{"swept.png", "swept.png", "dropped.png", "dropped.png", "dropped.png"}, proc.Calls())
}

func TestRunStopsOnCancel(t *testing.T) {
	_, cancel, done := startWatcher(t, t.TempDir(), &fakeProcessor{})
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestSettled(t *testing.T) {
	now := time.Now()
	pending := map[string]time.Time{
		"b.png": now.Add(-time.Second),
		"a.png": now.Add(-time.Second),
		"c.png": now,
	}
	assert.Equal(t, []string{"a.png", "b.png"}, settled(pending, now, 300*time.Millisecond))
}

func TestWithPipeline(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("not a png"), 0644))

	p := scanner.NewPipeline(nil)
	results, _, _ := startWatcher(t, dir, p)

	r := waitResult(t, results)
	assert.ErrorIs(t, r.Err, imageproc.ErrImageDecode)
	assert.FileExists(t, filepath.Join(dir, FailedDir, "broken.png"))
}
