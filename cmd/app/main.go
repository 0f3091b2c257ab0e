package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/PhiFever/idbadge-scanner/internal/config"
	"github.com/PhiFever/idbadge-scanner/internal/logger"
	"github.com/PhiFever/idbadge-scanner/internal/metrics"
	"github.com/PhiFever/idbadge-scanner/internal/recognizer"
	"github.com/PhiFever/idbadge-scanner/internal/scanner"
	"github.com/PhiFever/idbadge-scanner/internal/store"
	"github.com/PhiFever/idbadge-scanner/pkg/version"
)

const usage = `Usage: %s [-config file] <command> [flags]

Commands:
  scan     scan a badge photo file
  live     scan badges held up to the screen capture region
  watch    scan photos dropped into an inbox directory
  serve    run the HTTP API (and the inbox watcher when configured)
  history  list stored scans
  version  print the version
`

type command func(ctx context.Context, app *app, args []string) error

var commands = map[string]command{
	"scan":    runScan,
	"live":    runLive,
	"watch":   runWatch,
	"serve":   runServe,
	"history": runHistory,
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage, os.Args[0])
	}
	configPath := flag.String("config", "", "configuration file (default config.yaml or $IDBADGE_CONFIG)")
	flag.Parse()

	name := flag.Arg(0)
	if name == "" {
		flag.Usage()
		os.Exit(2)
	}
	if name == "version" {
		fmt.Println(version.GetFullName())
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		flag.Usage()
		os.Exit(2)
	}

	if *configPath != "" {
		os.Setenv("IDBADGE_CONFIG", *configPath)
	}

	// Wait for interrupt signal to gracefully shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}
	err = cmd(ctx, a, flag.Args()[1:])
	a.Close()

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		logger.ErrorfNoTrace("[%s] %v", name, err)
		os.Exit(1)
	}
}

// app holds what every command shares
type app struct {
	cfg        *config.Config
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	recognizer recognizer.Recognizer
	store      store.Store
}

func newApp(ctx context.Context, name string) (*app, error) {
	cfg, err := config.Get()
	if err != nil {
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	// stdout is kept for command output
	if _, err := logger.Setup(level, logger.WithConsole(os.Stderr)); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	logger.Infof("%s (%s)", version.GetFullName(), name)
	logger.Debugf("Capture interval: %.3fs, stability target: %d", cfg.Capture.UpdateInterval, cfg.Capture.StabilityTarget)

	a := &app{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
	}
	a.metrics = metrics.New(a.registry)

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	a.store = st

	// history never needs the engine
	if name != "history" {
		rec, err := recognizer.New()
		if err != nil {
			logger.Warningf("Text recognition disabled: %v", err)
		} else {
			a.recognizer = rec
		}
	}
	return a, nil
}

func (a *app) pipeline() *scanner.Pipeline {
	return scanner.NewPipeline(a.recognizer,
		scanner.WithStore(a.store),
		scanner.WithRecognizerOptions(recognizer.OptionsFrom(a.cfg.Recognizer)),
		scanner.WithMaxDimension(a.cfg.Recognizer.MaxDimension),
		scanner.WithMetrics(a.metrics),
	)
}

// areaFlag resolves a scan area flag against the configured areas
func (a *app) areaFlag(area string) (string, error) {
	if area == "" {
		return "", scanner.ErrNoScanArea
	}
	if !a.cfg.HasScanArea(area) {
		return "", fmt.Errorf("unknown scan area %q (configured: %q)", area, a.cfg.ScanAreas)
	}
	return area, nil
}

func (a *app) Close() {
	if a.recognizer != nil {
		if err := a.recognizer.Close(); err != nil {
			logger.Errorf("Error closing recognizer: %v", err)
		}
	}
	if err := a.store.Close(); err != nil {
		logger.Errorf("Error closing store: %v", err)
	}
	logger.Close()
}
