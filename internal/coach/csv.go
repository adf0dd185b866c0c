package coach

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/ayusman/taiji/internal/detector"
)

// Sample is one recorded live frame.
type Sample struct {
	TimestampMs int64
	Landmarks   *detector.Landmarks
}

// CSVHeader returns timestamp_ms followed by <NAME>_x, _y, _z for every
// landmark in index order.
func CSVHeader() []string {
	header := make([]string, 0, 1+3*detector.NumLandmarks)
	header = append(header, "timestamp_ms")
	for _, name := range detector.Names {
		header = append(header, name+"_x", name+"_y", name+"_z")
	}
	return header
}

// EncodeCSV renders samples in the classifier's upload format. Samples
// without landmarks are skipped. It returns nil when nothing is left.
func EncodeCSV(samples []Sample) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := 0
	for _, s := range samples {
		if s.Landmarks == nil {
			continue
		}
		if rows == 0 {
			if err := w.Write(CSVHeader()); err != nil {
				return nil, err
			}
		}
		record := make([]string, 0, 1+3*detector.NumLandmarks)
		record = append(record, strconv.FormatInt(s.TimestampMs, 10))
		for _, p := range s.Landmarks {
			record = append(record, formatCoord(p.X), formatCoord(p.Y), formatCoord(p.Z))
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
		rows++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, nil
	}
	// The service splits on bare newlines.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
