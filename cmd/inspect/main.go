// Command inspect opens a river-level cache and checks its integrity: the
// persisted series must be ordered, meaningful, within the retention horizon,
// and agree with its metadata record. It then prints the current status.
//
// Usage:
//
//	go run ./cmd/inspect -cache data/riverlevel.db -feed-url https://... -threshold 1.9
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/couchcryptid/river-level-etl/internal/config"
	"github.com/couchcryptid/river-level-etl/internal/domain"
	"github.com/couchcryptid/river-level-etl/internal/store"
)

// phase tracks pass/fail for an integrity phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	cachePath string
	feedURL   string
	threshold float64
}

func main() {
	cachePath := flag.String("cache", "", "path to the sqlite cache file")
	feedURL := flag.String("feed-url", config.DefaultFeedURL, "feed source address the cache was built for")
	threshold := flag.Float64("threshold", domain.DefaultSafeLevel, "safety threshold in metres")
	flag.Parse()

	if *cachePath == "" || *threshold <= 0 {
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn}))
	if code := run(context.Background(), os.Stdout, logger, options{
		cachePath: *cachePath,
		feedURL:   *feedURL,
		threshold: *threshold,
	}); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, w io.Writer, logger *slog.Logger, opts options) int {
	if _, err := os.Stat(opts.cachePath); err != nil {
		fmt.Fprintf(w, "FATAL: cache file: %v\n", err)
		return 1
	}
	slots, err := store.Open(ctx, "sqlite", opts.cachePath)
	if err != nil {
		fmt.Fprintf(w, "FATAL: open cache: %v\n", err)
		return 1
	}
	defer slots.Close()

	fmt.Fprintln(w, "=== River Level Cache Inspection ===")
	fmt.Fprintf(w, "Cache:  %s\nSource: %s\n\n", opts.cachePath, opts.feedURL)

	raw, ok, err := slots.Get(ctx, store.PointsKey(opts.feedURL))
	if err != nil {
		fmt.Fprintf(w, "FATAL: read points slot: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(w, "FATAL: no cached series for this source")
		return 1
	}

	var persisted []domain.Point
	if err := json.Unmarshal(raw, &persisted); err != nil {
		fmt.Fprintf(w, "FATAL: points slot is not a point array: %v\n", err)
		return 1
	}

	repo := store.New(slots, opts.feedURL, logger)
	meta, hasMeta := repo.Metadata(ctx)

	phases := []*phase{
		checkOrdering(persisted),
		checkMeaningful(persisted),
		checkRetention(persisted, domain.Now()),
		checkMetadata(meta, hasMeta, len(persisted), len(raw)),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-36s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	printSummary(w, persisted, meta, hasMeta)

	points := repo.Load(ctx)
	printStatus(w, domain.ResolveStatus(points, opts.threshold), opts.threshold)

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Fprintf(w, "  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Fprintln(w, "\nAll phases passed.")
	return 0
}

func checkOrdering(points []domain.Point) *phase {
	p := &phase{name: "Phase 1: Ordering"}
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1].Timestamp, points[i].Timestamp
		switch {
		case cur == prev:
			p.errorf("[%d] duplicate timestamp %s", i, domain.FormatTimestamp(cur))
		case cur < prev:
			p.errorf("[%d] %s precedes %s", i, domain.FormatTimestamp(cur), domain.FormatTimestamp(prev))
		}
	}
	return p
}

func checkMeaningful(points []domain.Point) *phase {
	p := &phase{name: "Phase 2: Meaningfulness"}
	for i, pt := range points {
		if !pt.HasValue() {
			p.errorf("[%d] %s has neither observed nor forecast", i, domain.FormatTimestamp(pt.Timestamp))
		}
		if pt.Observed != nil && pt.Forecast != nil {
			p.errorf("[%d] %s carries both observed and forecast", i, domain.FormatTimestamp(pt.Timestamp))
		}
		if pt.TimestampISO != "" && pt.TimestampISO != domain.FormatTimestamp(pt.Timestamp) {
			p.errorf("[%d] timestampIso %q does not match timestamp %d", i, pt.TimestampISO, pt.Timestamp)
		}
	}
	return p
}

func checkRetention(points []domain.Point, now time.Time) *phase {
	p := &phase{name: "Phase 3: Retention horizon"}
	cutoff := now.Add(-domain.RetentionHorizon).UnixMilli()
	for i, pt := range points {
		if pt.Timestamp < cutoff {
			p.errorf("[%d] %s is older than the retention horizon", i, domain.FormatTimestamp(pt.Timestamp))
		}
	}
	return p
}

func checkMetadata(meta domain.CacheMetadata, ok bool, count, size int) *phase {
	p := &phase{name: "Phase 4: Metadata consistency"}
	if !ok {
		p.errorf("metadata record missing or unreadable")
		return p
	}
	if meta.Count != count {
		p.errorf("count: metadata %d, series %d", meta.Count, count)
	}
	if meta.SizeBytes != size {
		p.errorf("sizeBytes: metadata %d, slot %d", meta.SizeBytes, size)
	}
	if _, err := time.Parse(time.RFC3339Nano, meta.LastRefresh); err != nil {
		p.errorf("lastRefresh %q is not RFC3339: %v", meta.LastRefresh, err)
	}
	return p
}

func printSummary(w io.Writer, points []domain.Point, meta domain.CacheMetadata, hasMeta bool) {
	var observed, forecast int
	for _, pt := range points {
		if pt.Observed != nil {
			observed++
		}
		if pt.Forecast != nil {
			forecast++
		}
	}
	fmt.Fprintf(w, "Points: %d (%d observed, %d forecast)\n", len(points), observed, forecast)
	if len(points) > 0 {
		fmt.Fprintf(w, "Range:  %s .. %s\n",
			domain.FormatTimestamp(points[0].Timestamp),
			domain.FormatTimestamp(points[len(points)-1].Timestamp))
	}
	if hasMeta {
		fmt.Fprintf(w, "Last refresh: %s (%d bytes)\n", meta.LastRefresh, meta.SizeBytes)
	}
}

func printStatus(w io.Writer, s domain.Status, threshold float64) {
	if !s.Known() {
		fmt.Fprintf(w, "Status: %s (threshold %.2fm)\n", s.Label, threshold)
		return
	}
	fmt.Fprintf(w, "Status: %s at %.3fm %s %s (threshold %.2fm)\n",
		s.Label, *s.Value, s.Source, domain.FormatTimestamp(*s.Timestamp), threshold)
}
