package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTS int64 = 1704067200000 // 2024-01-01T00:00:00Z

func obs(ts int64, v float64) Point {
	return Point{Timestamp: ts, TimestampISO: FormatTimestamp(ts), Observed: Float(v)}
}

func fc(ts int64, v float64) Point {
	return Point{Timestamp: ts, TimestampISO: FormatTimestamp(ts), Forecast: Float(v)}
}

func TestMerge_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		existing Point
		incoming Point
		want     Point
	}{
		{"incoming observed overwrites observed", obs(testTS, 1.0), obs(testTS, 1.5), obs(testTS, 1.5)},
		{"observed erases forecast", fc(testTS, 2.0), obs(testTS, 2.5), obs(testTS, 2.5)},
		{"existing forecast wins over incoming forecast", fc(testTS, 3.0), fc(testTS, 3.5), fc(testTS, 3.0)},
		{"forecast never displaces observed", obs(testTS, 1.0), fc(testTS, 9.9), obs(testTS, 1.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge([]Point{tt.existing}, []Point{tt.incoming})
			require.Len(t, got, 1)
			if diff := cmp.Diff(tt.want, got[0]); diff != "" {
				t.Fatalf("merge mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_IncomingWithBothValues(t *testing.T) {
	both := Point{Timestamp: testTS, Observed: Float(1.1), Forecast: Float(1.4)}

	got := Merge(nil, []Point{both})

	require.Len(t, got, 1)
	assert.Equal(t, 1.1, *got[0].Observed)
	assert.Nil(t, got[0].Forecast, "forecast is superseded by the observed value at the same instant")
	assert.Equal(t, "2024-01-01T00:00:00.000Z", got[0].TimestampISO)
}

func TestMerge_Union(t *testing.T) {
	hour := int64(3600_000)
	existing := []Point{obs(testTS, 1.0), fc(testTS+2*hour, 1.2)}
	incoming := []Point{obs(testTS+hour, 1.1), fc(testTS+3*hour, 1.3)}

	got := Merge(existing, incoming)

	want := []Point{obs(testTS, 1.0), obs(testTS+hour, 1.1), fc(testTS+2*hour, 1.2), fc(testTS+3*hour, 1.3)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	hour := int64(3600_000)
	s := []Point{
		obs(testTS, 1.0),
		fc(testTS+hour, 1.2),
		{Timestamp: testTS + 2*hour, TimestampISO: FormatTimestamp(testTS + 2*hour), Observed: Float(1.3), Forecast: Float(1.5)},
	}

	once := Merge(s, s)
	twice := Merge(s, once)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("merge not idempotent (-once +twice):\n%s", diff)
	}
}

func TestMerge_SortedAndUnique(t *testing.T) {
	existing := []Point{obs(testTS+5, 1), obs(testTS+1, 1), fc(testTS+3, 1)}
	incoming := []Point{fc(testTS+4, 2), obs(testTS+1, 2), obs(testTS+2, 2), fc(testTS+5, 2)}

	got := Merge(existing, incoming)

	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Timestamp, got[i].Timestamp)
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	existing := []Point{fc(testTS, 2.0)}
	incoming := []Point{obs(testTS, 2.5)}

	got := Merge(existing, incoming)
	*got[0].Observed = 99

	assert.Equal(t, 2.0, *existing[0].Forecast)
	assert.Nil(t, existing[0].Observed)
	assert.Equal(t, 2.5, *incoming[0].Observed)
}

func TestMerge_EmptyIncomingIsNoOp(t *testing.T) {
	existing := []Point{obs(testTS, 1.0), fc(testTS+1, 2.0)}

	got := Merge(existing, []Point{})

	assert.Equal(t, existing, got)
}

func TestCountNew(t *testing.T) {
	existing := []Point{obs(testTS, 1)}
	incoming := []Point{obs(testTS, 2), fc(testTS+1, 2), fc(testTS+2, 2)}
	assert.Equal(t, 2, CountNew(existing, incoming))
	assert.Equal(t, 0, CountNew(existing, nil))
}
