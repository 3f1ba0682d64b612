package domain

import (
	"sort"
	"time"
)

// isoLayout matches the millisecond-precision UTC form used in persisted
// snapshots and exports, e.g. "2024-01-01T00:00:00.000Z".
const isoLayout = "2006-01-02T15:04:05.000Z"

// Point is one timestamp's known water level(s) in metres.
// Observed and Forecast are independent; both may be set transiently.
type Point struct {
	Timestamp    int64    `json:"timestamp"`
	TimestampISO string   `json:"timestampIso"`
	Observed     *float64 `json:"observed,omitempty"`
	Forecast     *float64 `json:"forecast,omitempty"`
}

// NewPoint creates a Point at t with its ISO form filled in.
func NewPoint(t time.Time) Point {
	ms := t.UnixMilli()
	return Point{Timestamp: ms, TimestampISO: FormatTimestamp(ms)}
}

// FormatTimestamp renders epoch milliseconds as a UTC ISO-8601 string.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(isoLayout)
}

// Time returns the point's timestamp as a UTC time.
func (p Point) Time() time.Time {
	return time.UnixMilli(p.Timestamp).UTC()
}

// HasValue reports whether the point carries an observed or forecast height.
func (p Point) HasValue() bool {
	return p.Observed != nil || p.Forecast != nil
}

// Value returns the observed height if present, else the forecast height.
// The second result names which one was used and is empty when neither is set.
func (p Point) Value() (*float64, string) {
	if p.Observed != nil {
		return p.Observed, TypeObserved
	}
	if p.Forecast != nil {
		return p.Forecast, TypeForecast
	}
	return nil, ""
}

// clone returns a copy that shares no pointers with p.
func (p Point) clone() Point {
	c := Point{Timestamp: p.Timestamp, TimestampISO: p.TimestampISO}
	if p.Observed != nil {
		c.Observed = Float(*p.Observed)
	}
	if p.Forecast != nil {
		c.Forecast = Float(*p.Forecast)
	}
	return c
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// sortPoints orders points ascending by timestamp in place.
func sortPoints(points []Point) {
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
}

// fromIndex flattens a timestamp-keyed index into a sorted sequence.
func fromIndex(index map[int64]*Point) []Point {
	out := make([]Point, 0, len(index))
	for _, p := range index {
		out = append(out, *p)
	}
	sortPoints(out)
	return out
}

// Normalize returns a sorted copy of points with one entry per timestamp and
// every ISO form recomputed. When timestamps repeat, the later entry wins.
func Normalize(points []Point) []Point {
	index := make(map[int64]*Point, len(points))
	for _, p := range points {
		c := p.clone()
		c.TimestampISO = FormatTimestamp(c.Timestamp)
		index[c.Timestamp] = &c
	}
	return fromIndex(index)
}
