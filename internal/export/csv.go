package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"hrexport/internal/zones"
)

// CSVHeader is the first line of every heart-rate CSV
var CSVHeader = []string{"timestamp", "date", "heart_rate", "zone"}

// LocalTimeLayout formats the date column: local wall time, no offset
const LocalTimeLayout = "2006-01-02T15:04:05"

// Row is one line of the heart-rate CSV
type Row struct {
	Timestamp int64
	Date      string
	HeartRate int
	Zone      string
}

// WriteCSV writes one row per sample with a value, classified against zs.
// Dates are rendered in loc. It returns the number of rows written.
func WriteCSV(w io.Writer, zs []zones.Zone, samples []zones.Sample, loc *time.Location) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return 0, err
	}

	rows := 0
	for _, s := range samples {
		if s.Value == nil {
			continue
		}
		record := []string{
			strconv.FormatInt(s.Timestamp, 10),
			time.UnixMilli(s.Timestamp).In(loc).Format(LocalTimeLayout),
			strconv.Itoa(*s.Value),
			zones.Classify(zs, *s.Value),
		}
		if err := cw.Write(record); err != nil {
			return rows, err
		}
		rows++
	}

	cw.Flush()
	return rows, cw.Error()
}

// ReadCSV parses a heart-rate CSV written by WriteCSV
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty CSV")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, name := range CSVHeader {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected column %d: %q, want %q", i, header[i], name)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: timestamp: %w", line, err)
		}
		hr, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: heart_rate: %w", line, err)
		}
		rows = append(rows, Row{Timestamp: ts, Date: record[1], HeartRate: hr, Zone: record[3]})
	}
	return rows, nil
}
