package domain

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Point type labels as they appear in the feed and in exports.
const (
	TypeObserved = "observed"
	TypeForecast = "forecast"
)

// FieldMatcher locates one logical column in a header row. Substrings are
// matched case-insensitively against each header in order; Literals are exact
// header names tried only when no substring matches.
type FieldMatcher struct {
	Substrings []string
	Literals   []string
}

// HeaderRules holds the matchers for the three logical feed columns.
type HeaderRules struct {
	Timestamp FieldMatcher
	Height    FieldMatcher
	Type      FieldMatcher
}

// DefaultHeaderRules is the column discovery used for river-level feeds.
var DefaultHeaderRules = HeaderRules{
	Timestamp: FieldMatcher{
		Substrings: []string{"timestamp", "time", "date"},
		Literals:   []string{"timestamp", "date", "time", "Timestamp", "Date", "Time"},
	},
	Height: FieldMatcher{
		Substrings: []string{"height", "level"},
		Literals:   []string{"height", "level", "Height", "Level"},
	},
	Type: FieldMatcher{
		Substrings: []string{"type"},
	},
}

// Columns maps logical fields to header indexes; -1 means absent.
type Columns struct {
	Timestamp int
	Height    int
	Type      int
}

// ResolveColumns applies rules to a header row. It is resolved once per parse.
func ResolveColumns(header []string, rules HeaderRules) Columns {
	return Columns{
		Timestamp: rules.Timestamp.find(header),
		Height:    rules.Height.find(header),
		Type:      rules.Type.find(header),
	}
}

func (m FieldMatcher) find(header []string) int {
	for i, h := range header {
		lower := strings.ToLower(h)
		for _, sub := range m.Substrings {
			if strings.Contains(lower, sub) {
				return i
			}
		}
	}
	for _, lit := range m.Literals {
		for i, h := range header {
			if h == lit {
				return i
			}
		}
	}
	return -1
}

// ParseFeed turns raw feed text into points sorted ascending by timestamp,
// one per distinct timestamp. Malformed rows are skipped; it never fails.
// Within one feed, a later row overwrites an earlier row's value of the same type.
func ParseFeed(raw []byte) []Point {
	return ParseFeedWithRules(raw, DefaultHeaderRules)
}

// ParseFeedWithRules is ParseFeed with caller-supplied column discovery.
func ParseFeedWithRules(raw []byte, rules HeaderRules) []Point {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return []Point{}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	cols := ResolveColumns(header, rules)
	if cols.Timestamp < 0 || cols.Height < 0 {
		return []Point{}
	}

	index := make(map[int64]*Point)
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			break
		}
		applyRow(index, row, cols)
	}
	return fromIndex(index)
}

// applyRow coalesces one feed row into the batch index.
func applyRow(index map[int64]*Point, row []string, cols Columns) {
	tsRaw := field(row, cols.Timestamp)
	heightRaw := field(row, cols.Height)
	if tsRaw == "" || heightRaw == "" {
		return
	}

	ts, err := parseTimestamp(tsRaw)
	if err != nil {
		return
	}
	height, err := strconv.ParseFloat(heightRaw, 64)
	if err != nil || math.IsNaN(height) || math.IsInf(height, 0) {
		return
	}

	ms := ts.UnixMilli()
	p, ok := index[ms]
	if !ok {
		p = &Point{Timestamp: ms, TimestampISO: FormatTimestamp(ms)}
		index[ms] = p
	}
	if parseType(field(row, cols.Type)) == TypeForecast {
		p.Forecast = Float(height)
		return
	}
	p.Observed = Float(height)
}

// parseTimestamp accepts ISO-8601, RFC 1123, epoch and the other layouts
// understood by dateparse. Zone-less values are read as UTC.
func parseTimestamp(s string) (time.Time, error) {
	return dateparse.ParseIn(s, time.UTC)
}

// parseType reads the type column; anything but "forecast" counts as observed.
func parseType(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), TypeForecast) {
		return TypeForecast
	}
	return TypeObserved
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
