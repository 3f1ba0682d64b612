package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/river-level-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSource = "https://example.org/river/feed.csv"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failingSlots wraps MemorySlots and fails Put for keys with the given prefix.
type failingSlots struct {
	*MemorySlots
	failPutPrefix string
	failGet       bool
}

func (f *failingSlots) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failGet {
		return nil, false, errors.New("read failed")
	}
	return f.MemorySlots.Get(ctx, key)
}

func (f *failingSlots) Put(ctx context.Context, key string, value []byte) error {
	if f.failPutPrefix != "" && strings.HasPrefix(key, f.failPutPrefix) {
		return errors.New("write failed")
	}
	return f.MemorySlots.Put(ctx, key, value)
}

func samplePoints() []domain.Point {
	base := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	a := domain.NewPoint(base)
	a.Observed = domain.Float(1.234)
	b := domain.NewPoint(base.Add(15 * time.Minute))
	b.Observed = domain.Float(1.3)
	b.Forecast = domain.Float(1.35)
	c := domain.NewPoint(base.Add(6 * time.Hour))
	c.Forecast = domain.Float(0.1 + 0.2)
	return []domain.Point{a, b, c}
}

func TestStore_LoadEmpty(t *testing.T) {
	s := New(NewMemorySlots(), testSource, discardLogger())

	points := s.Load(context.Background())
	assert.NotNil(t, points)
	assert.Empty(t, points)

	_, ok := s.Metadata(context.Background())
	assert.False(t, ok)
}

func TestStore_RoundTrip(t *testing.T) {
	s := New(NewMemorySlots(), testSource, discardLogger())
	want := samplePoints()

	require.NoError(t, s.Save(context.Background(), want))
	got := s.Load(context.Background())

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_LoadSortsAndDeduplicates(t *testing.T) {
	slots := NewMemorySlots()
	raw := `[{"timestamp":2000,"observed":2},{"timestamp":1000,"forecast":1},{"timestamp":2000,"observed":3}]`
	require.NoError(t, slots.Put(context.Background(), PointsKey(testSource), []byte(raw)))

	got := New(slots, testSource, discardLogger()).Load(context.Background())

	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].Timestamp)
	assert.Equal(t, "1970-01-01T00:00:01.000Z", got[0].TimestampISO)
	assert.Equal(t, 3.0, *got[1].Observed)
}

func TestStore_CorruptSnapshotDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{{{"},
		{"object instead of array", `{"timestamp":1}`},
		{"array of numbers", `[1,2,3]`},
		{"missing timestamp", `[{"observed":1.2}]`},
		{"wrong value type", `[{"timestamp":1,"observed":"high"}]`},
		{"truncated", `[{"timestamp":1,"observed":1.2},{"timest`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := NewMemorySlots()
			require.NoError(t, slots.Put(context.Background(), PointsKey(testSource), []byte(tt.raw)))

			got := New(slots, testSource, discardLogger()).Load(context.Background())
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestStore_LoadReadErrorDegradesToEmpty(t *testing.T) {
	slots := &failingSlots{MemorySlots: NewMemorySlots(), failGet: true}
	got := New(slots, testSource, discardLogger()).Load(context.Background())
	assert.Empty(t, got)
}

func TestStore_SaveWritesMetadata(t *testing.T) {
	at := time.Date(2024, time.February, 2, 9, 30, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })

	slots := NewMemorySlots()
	s := New(slots, testSource, discardLogger())
	points := samplePoints()

	require.NoError(t, s.Save(context.Background(), points))

	data, ok, err := slots.Get(context.Background(), PointsKey(testSource))
	require.NoError(t, err)
	require.True(t, ok)

	meta, ok := s.Metadata(context.Background())
	require.True(t, ok)
	assert.Equal(t, "2024-02-02T09:30:00Z", meta.LastRefresh)
	assert.Equal(t, len(points), meta.Count)
	assert.Equal(t, len(data), meta.SizeBytes)

	var raw map[string]any
	metaBytes, _, err := slots.Get(context.Background(), MetaKey(testSource))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(metaBytes, &raw))
	assert.Contains(t, raw, "lastRefresh")
	assert.Contains(t, raw, "count")
	assert.Contains(t, raw, "sizeBytes")
}

func TestStore_SaveNilWritesEmptyArray(t *testing.T) {
	slots := NewMemorySlots()
	s := New(slots, testSource, discardLogger())

	require.NoError(t, s.Save(context.Background(), nil))

	data, ok, err := slots.Get(context.Background(), PointsKey(testSource))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[]", string(data))
}

func TestStore_MetadataFailureKeepsData(t *testing.T) {
	slots := &failingSlots{MemorySlots: NewMemorySlots(), failPutPrefix: "meta:"}
	s := New(slots, testSource, discardLogger())
	points := samplePoints()

	require.NoError(t, s.Save(context.Background(), points), "metadata failure must not fail the save")

	assert.Len(t, s.Load(context.Background()), len(points))
	_, ok := s.Metadata(context.Background())
	assert.False(t, ok)
}

func TestStore_DataFailureReturnsError(t *testing.T) {
	slots := &failingSlots{MemorySlots: NewMemorySlots(), failPutPrefix: "points:"}
	s := New(slots, testSource, discardLogger())

	err := s.Save(context.Background(), samplePoints())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "write points")
	_, ok := s.Metadata(context.Background())
	assert.False(t, ok, "metadata is not written when data fails")
}

func TestStore_CorruptMetadata(t *testing.T) {
	slots := NewMemorySlots()
	require.NoError(t, slots.Put(context.Background(), MetaKey(testSource), []byte("nope")))

	_, ok := New(slots, testSource, discardLogger()).Metadata(context.Background())
	assert.False(t, ok)
}

func TestStore_SourcesAreIsolated(t *testing.T) {
	slots := NewMemorySlots()
	a := New(slots, "https://a.example/feed.csv", discardLogger())
	b := New(slots, "https://b.example/feed.csv", discardLogger())

	require.NoError(t, a.Save(context.Background(), samplePoints()))

	assert.Len(t, a.Load(context.Background()), 3)
	assert.Empty(t, b.Load(context.Background()))
}

func TestMemorySlots_CopiesValues(t *testing.T) {
	m := NewMemorySlots()
	v := []byte("abc")
	require.NoError(t, m.Put(context.Background(), "k", v))
	v[0] = 'x'

	got, ok, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))

	require.NoError(t, m.Close())
	_, _, err = m.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Put(context.Background(), "k", v), ErrClosed)
}
