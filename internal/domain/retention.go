package domain

import (
	"fmt"
	"strings"
	"time"
)

// RetentionHorizon is the maximum age of points kept in persisted state.
const RetentionHorizon = 365 * 24 * time.Hour

// Window is a display-only recency filter. WindowAll shows everything.
type Window time.Duration

// Display window presets.
const (
	WindowAll       Window = 0
	WindowDay       Window = Window(24 * time.Hour)
	WindowWeek      Window = Window(7 * 24 * time.Hour)
	WindowFortnight Window = Window(14 * 24 * time.Hour)
	WindowMonth     Window = Window(30 * 24 * time.Hour)

	DefaultWindow = WindowFortnight
)

// WindowPresets lists the selectable windows in display order.
var WindowPresets = []Window{WindowDay, WindowWeek, WindowFortnight, WindowMonth, WindowAll}

// ParseWindow reads a preset name such as "7d" or "all".
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1d", "24h":
		return WindowDay, nil
	case "7d":
		return WindowWeek, nil
	case "14d":
		return WindowFortnight, nil
	case "30d":
		return WindowMonth, nil
	case "all":
		return WindowAll, nil
	default:
		return 0, fmt.Errorf("unknown display window %q (allowed: 1d, 7d, 14d, 30d, all)", s)
	}
}

// String renders the preset name, e.g. "14d".
func (w Window) String() string {
	if w <= 0 {
		return "all"
	}
	d := time.Duration(w)
	if d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}
	return d.String()
}

// Prune drops every point older than now minus maxAge. A point exactly at the
// cutoff is kept. The result is a new slice; points are not modified.
func Prune(points []Point, maxAge time.Duration) []Point {
	cutoff := Now().Add(-maxAge).UnixMilli()
	return since(points, cutoff)
}

// WindowPoints returns the points inside the display window ending now.
// WindowAll returns a copy of every point. Cached data is never affected.
func WindowPoints(points []Point, w Window) []Point {
	if w <= 0 {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}
	cutoff := Now().Add(-time.Duration(w)).UnixMilli()
	return since(points, cutoff)
}

func since(points []Point, cutoffMs int64) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Timestamp >= cutoffMs {
			out = append(out, p)
		}
	}
	return out
}
