package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PhiFever/idbadge-scanner/internal/api"
	"github.com/PhiFever/idbadge-scanner/internal/detector"
	"github.com/PhiFever/idbadge-scanner/internal/logger"
	"github.com/PhiFever/idbadge-scanner/internal/scanner"
	"github.com/PhiFever/idbadge-scanner/internal/store"
	"github.com/PhiFever/idbadge-scanner/internal/watcher"
	"github.com/PhiFever/idbadge-scanner/pkg/screenshot"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runScan scans one photo file and prints the record
func runScan(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	area := fs.String("area", "", "scan area (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: scan -area <area> <photo>")
	}
	scanArea, err := a.areaFlag(*area)
	if err != nil {
		return err
	}

	rec, err := a.pipeline().ProcessFile(ctx, fs.Arg(0), scanArea, scanner.SourceCLI)
	if err != nil {
		var incomplete *scanner.IncompleteExtractionError
		if errors.As(err, &incomplete) {
			_ = printJSON(incomplete.Result.Fields())
		}
		return fmt.Errorf("%s: %w", scanner.UserMessage(err), err)
	}
	logger.Info(scanner.UserMessage(nil))
	return printJSON(rec)
}

// runLive evaluates the screen capture region until interrupted and
// prints every auto-captured record
func runLive(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("live", flag.ContinueOnError)
	area := fs.String("area", "", "scan area (required)")
	display := fs.Int("display", a.cfg.Capture.DisplayIndex, "display index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	scanArea, err := a.areaFlag(*area)
	if err != nil {
		return err
	}

	r := a.cfg.Capture.Region
	src, err := screenshot.NewSource(*display, image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height))
	if err != nil {
		return err
	}
	logger.Infof("[Live] Capturing %v of display %d (%d available)", src.Rect(), *display, screenshot.DisplayCount())

	det := detector.NewCardDetector(detector.ParamsFrom(a.cfg.Capture))
	interval := time.Duration(a.cfg.Capture.UpdateInterval * float64(time.Second))
	session := scanner.NewSession(src, det, a.pipeline(), scanArea, interval, scanner.WithSessionMetrics(a.metrics))
	if err := session.Start(ctx); err != nil {
		src.Close()
		return err
	}
	logger.Info("Press Ctrl+C to exit")

	for out := range session.Outcomes() {
		if out.Err != nil {
			logger.Warningf("[Live] %s (%v)", scanner.UserMessage(out.Err), out.Err)
			continue
		}
		logger.Infof("[Live] %s", scanner.UserMessage(nil))
		if err := printJSON(out.Record); err != nil {
			return err
		}
	}

	<-session.Done()
	stats := session.GetStatistics()
	logger.Infof("[Live] Evaluated %v frames, %v captures", stats["frame_count"], stats["capture_count"])
	return nil
}

// runWatch scans photos dropped into the inbox directory
func runWatch(ctx context.Context, a *app, args []string) error {
	cfg := a.cfg.Watch
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "inbox directory")
	fs.StringVar(&cfg.Area, "area", cfg.Area, "scan area")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := a.areaFlag(cfg.Area); err != nil {
		return err
	}

	w, err := watcher.New(cfg, a.pipeline())
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// runServe runs the HTTP API, plus the inbox watcher when one is configured
func runServe(ctx context.Context, a *app, args []string) error {
	cfg := a.cfg.Server
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pipeline := a.pipeline()
	var w *watcher.Watcher
	if a.cfg.Watch.Dir != "" {
		if _, err := a.areaFlag(a.cfg.Watch.Area); err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		var err error
		if w, err = watcher.New(a.cfg.Watch, pipeline); err != nil {
			return err
		}
	}
	srv := api.New(cfg, a.cfg.ScanAreas, pipeline, a.store, a.registry)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if w != nil {
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	return g.Wait()
}

// runHistory prints stored scans newest first, or their summary
func runHistory(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	start := fs.String("start", "", "first day (YYYY-MM-DD or RFC 3339)")
	end := fs.String("end", "", "last day (YYYY-MM-DD or RFC 3339)")
	area := fs.String("area", "", "only this scan area")
	summary := fs.Bool("summary", false, "print totals instead of records")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q, err := store.ParseRange(*start, *end)
	if err != nil {
		return err
	}
	recs, err := a.store.Load(ctx, q)
	if err != nil {
		return err
	}
	recs = store.FilterByArea(recs, *area)

	if *summary {
		return printJSON(store.Summarize(recs))
	}
	return printJSON(recs)
}
