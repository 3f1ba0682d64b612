package domain

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ExportHeader is the header row of exported sequences. The feed parser
// accepts it, so exports can be fed back in.
var ExportHeader = []string{"Timestamp (UTC)", "Height (m)", "Type(observed/forecast)"}

// WriteCSV writes points in the export format: one line per non-null value,
// observed before forecast when a point carries both.
func WriteCSV(w io.Writer, points []Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, p := range points {
		iso := p.TimestampISO
		if iso == "" {
			iso = FormatTimestamp(p.Timestamp)
		}
		if p.Observed != nil {
			if err := cw.Write([]string{iso, formatHeight(*p.Observed), TypeObserved}); err != nil {
				return fmt.Errorf("write export row: %w", err)
			}
		}
		if p.Forecast != nil {
			if err := cw.Write([]string{iso, formatHeight(*p.Forecast), TypeForecast}); err != nil {
				return fmt.Errorf("write export row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeCSV is WriteCSV into a byte slice.
func EncodeCSV(points []Point) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, points); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatHeight(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
