package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/river-level-etl/internal/domain"
)

// Slots is simple key/value byte storage.
type Slots interface {
	// Get returns the slot value and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put replaces the slot value.
	Put(ctx context.Context, key string, value []byte) error
}

// Store is the persisted point series for one feed source.
type Store struct {
	slots     Slots
	pointsKey string
	metaKey   string
	logger    *slog.Logger
}

// New creates a Store for the given feed source address.
func New(slots Slots, source string, logger *slog.Logger) *Store {
	return &Store{
		slots:     slots,
		pointsKey: PointsKey(source),
		metaKey:   MetaKey(source),
		logger:    logger,
	}
}

// PointsKey is the slot holding the serialized series for source.
func PointsKey(source string) string { return "points:" + source }

// MetaKey is the slot holding snapshot metadata for source.
func MetaKey(source string) string { return "meta:" + source }

// persistedPoint mirrors domain.Point with a required timestamp.
type persistedPoint struct {
	Timestamp *int64   `json:"timestamp"`
	Observed  *float64 `json:"observed"`
	Forecast  *float64 `json:"forecast"`
}

// Load returns the cached series sorted ascending. A missing, unreadable or
// corrupt snapshot yields an empty series; errors are logged, not returned.
func (s *Store) Load(ctx context.Context) []domain.Point {
	data, ok, err := s.slots.Get(ctx, s.pointsKey)
	if err != nil {
		s.logger.Warn("cache read failed, starting empty", "key", s.pointsKey, "error", err)
		return []domain.Point{}
	}
	if !ok {
		return []domain.Point{}
	}

	points, err := decodePoints(data)
	if err != nil {
		s.logger.Warn("cache corrupt, starting empty", "key", s.pointsKey, "size_bytes", len(data), "error", err)
		return []domain.Point{}
	}
	return points
}

func decodePoints(data []byte) ([]domain.Point, error) {
	var raw []persistedPoint
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode points: %w", err)
	}
	points := make([]domain.Point, 0, len(raw))
	for i, r := range raw {
		if r.Timestamp == nil {
			return nil, fmt.Errorf("decode points: entry %d has no timestamp", i)
		}
		points = append(points, domain.Point{
			Timestamp: *r.Timestamp,
			Observed:  r.Observed,
			Forecast:  r.Forecast,
		})
	}
	return domain.Normalize(points), nil
}

// Save writes the full series, then its metadata. Only a failed data write is
// returned; a failed metadata write is logged and the data write stands.
func (s *Store) Save(ctx context.Context, points []domain.Point) error {
	if points == nil {
		points = []domain.Point{}
	}
	data, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("encode points: %w", err)
	}
	if err := s.slots.Put(ctx, s.pointsKey, data); err != nil {
		return fmt.Errorf("write points: %w", err)
	}

	meta := domain.CacheMetadata{
		LastRefresh: domain.Now().UTC().Format(time.RFC3339Nano),
		Count:       len(points),
		SizeBytes:   len(data),
	}
	if err := s.writeMetadata(ctx, meta); err != nil {
		s.logger.Warn("cache metadata write failed", "key", s.metaKey, "error", err)
	}
	return nil
}

func (s *Store) writeMetadata(ctx context.Context, meta domain.CacheMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return s.slots.Put(ctx, s.metaKey, data)
}

// Metadata returns the last persisted metadata record, if any is readable.
func (s *Store) Metadata(ctx context.Context) (domain.CacheMetadata, bool) {
	data, ok, err := s.slots.Get(ctx, s.metaKey)
	if err != nil {
		s.logger.Warn("cache metadata read failed", "key", s.metaKey, "error", err)
		return domain.CacheMetadata{}, false
	}
	if !ok {
		return domain.CacheMetadata{}, false
	}
	var meta domain.CacheMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("cache metadata corrupt", "key", s.metaKey, "error", err)
		return domain.CacheMetadata{}, false
	}
	return meta, true
}

// ErrClosed is returned by slot backends after Close.
var ErrClosed = errors.New("store: slots closed")
