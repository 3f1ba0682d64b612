package domain

// Merge reconciles an incoming batch with the existing series. It is pure:
// neither input is modified and the result shares no pointers with them.
//
// For each incoming timestamp:
//   - an observed value is always written and removes any forecast there;
//   - a forecast value is written only if the result has neither an observed
//     nor a forecast value at that timestamp.
//
// Timestamps present in only one input pass through. The result is sorted
// ascending with no duplicate timestamps.
func Merge(existing, incoming []Point) []Point {
	index := make(map[int64]*Point, len(existing)+len(incoming))
	for _, p := range existing {
		c := p.clone()
		index[c.Timestamp] = &c
	}

	for _, in := range incoming {
		cur, ok := index[in.Timestamp]
		if !ok {
			cur = &Point{Timestamp: in.Timestamp, TimestampISO: FormatTimestamp(in.Timestamp)}
			index[in.Timestamp] = cur
		}
		if in.Observed != nil {
			cur.Observed = Float(*in.Observed)
			cur.Forecast = nil
		}
		if in.Forecast != nil && cur.Observed == nil && cur.Forecast == nil {
			cur.Forecast = Float(*in.Forecast)
		}
	}

	return fromIndex(index)
}

// CountNew returns how many timestamps in incoming are absent from existing.
func CountNew(existing, incoming []Point) int {
	seen := make(map[int64]struct{}, len(existing))
	for _, p := range existing {
		seen[p.Timestamp] = struct{}{}
	}
	n := 0
	for _, p := range incoming {
		if _, ok := seen[p.Timestamp]; !ok {
			seen[p.Timestamp] = struct{}{}
			n++
		}
	}
	return n
}
