package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/river-level-etl/internal/domain"
)

var genNow = time.Date(2024, 6, 1, 12, 7, 0, 0, time.UTC)

func testOptions() options {
	return options{days: 2, forecastHours: 6, step: 15 * time.Minute, base: 1.2, seed: 7}
}

func TestGenerate_Shape(t *testing.T) {
	points := generate(testOptions(), genNow)

	// 2 days + 6 hours of 15 minute steps, inclusive of both ends.
	require.Len(t, points, (48+6)*4+1)
	assert.Equal(t, time.Date(2024, 5, 30, 12, 0, 0, 0, time.UTC).UnixMilli(), points[0].Timestamp)

	var observed, forecast int
	for i, p := range points {
		if i > 0 {
			assert.Greater(t, p.Timestamp, points[i-1].Timestamp)
		}
		v, _ := p.Value()
		require.NotNil(t, v)
		assert.Positive(t, *v)
		if p.Observed != nil {
			observed++
			assert.LessOrEqual(t, p.Timestamp, genNow.UnixMilli())
		} else {
			forecast++
		}
	}
	assert.Equal(t, 48*4+1, observed)
	assert.Equal(t, 6*4, forecast)
}

func TestGenerate_Deterministic(t *testing.T) {
	a := generate(testOptions(), genNow)
	b := generate(testOptions(), genNow)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different feeds (-a +b):\n%s", diff)
	}

	other := testOptions()
	other.seed = 8
	assert.NotEqual(t, a, generate(other, genNow))
}

func TestGenerate_RoundTripsThroughParser(t *testing.T) {
	points := generate(testOptions(), genNow)

	var buf bytes.Buffer
	require.NoError(t, write(&buf, points))

	parsed := domain.ParseFeed(buf.Bytes())
	if diff := cmp.Diff(points, parsed); diff != "" {
		t.Errorf("parsed feed mismatch (-generated +parsed):\n%s", diff)
	}
}

func TestWriteFile_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mock", "levels.csv")
	require.NoError(t, writeFile(path, generate(testOptions(), genNow)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("Timestamp (UTC),Height (m),Type(observed/forecast)")))
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*options)
	}{
		{"negative days", func(o *options) { o.days = -1 }},
		{"zero step", func(o *options) { o.step = 0 }},
		{"zero base", func(o *options) { o.base = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testOptions()
			tt.mutate(&o)
			require.Error(t, o.validate())
		})
	}
	require.NoError(t, testOptions().validate())
}
