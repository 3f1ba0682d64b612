package domain

import "time"

// StalenessGuard is how far the nearest point may be from now before the
// status becomes Unknown.
const StalenessGuard = 4 * time.Hour

// Status labels.
const (
	LabelSafe    = "Safe"
	LabelUnsafe  = "Unsafe"
	LabelUnknown = "Unknown"
)

// DefaultSafeLevel is the default safety threshold in metres.
const DefaultSafeLevel = 1.9

// Status is the current safety classification.
type Status struct {
	Value     *float64 `json:"value"`
	Unsafe    bool     `json:"unsafe"`
	Label     string   `json:"label"`
	Timestamp *int64   `json:"timestamp,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// Known reports whether the status is Safe or Unsafe.
func (s Status) Known() bool {
	return s.Label != LabelUnknown
}

// UnknownStatus is returned when no usable point is close enough to now.
func UnknownStatus() Status {
	return Status{Label: LabelUnknown}
}

// ResolveStatus classifies the point nearest to now across the whole series.
// Ties resolve to the earlier point. A nearest point further than
// StalenessGuard from now yields Unknown, as does a point with no value.
// The observed value takes precedence over the forecast; only a value strictly
// greater than safeLevel is unsafe.
func ResolveStatus(points []Point, safeLevel float64) Status {
	if len(points) == 0 {
		return UnknownStatus()
	}

	now := Now().UnixMilli()
	best := -1
	var bestDiff int64
	for i, p := range points {
		diff := absDiff(p.Timestamp, now)
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}

	if time.Duration(bestDiff)*time.Millisecond > StalenessGuard {
		return UnknownStatus()
	}

	p := points[best]
	value, source := p.Value()
	if value == nil {
		return UnknownStatus()
	}

	ts := p.Timestamp
	s := Status{
		Value:     Float(*value),
		Unsafe:    *value > safeLevel,
		Label:     LabelSafe,
		Timestamp: &ts,
		Source:    source,
	}
	if s.Unsafe {
		s.Label = LabelUnsafe
	}
	return s
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
