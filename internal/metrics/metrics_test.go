package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hrexport/internal/zones"
)

func TestWriteTextfile(t *testing.T) {
	m := New()

	v1, v2 := 80, 150
	d, err := zones.Aggregate([]zones.Zone{
		{Name: "easy", Min: 0, Max: 120},
		{Name: "hard", Min: 121, Max: 220},
	}, []zones.Sample{{Value: &v1}, {Value: &v2}, {Value: &v1}, {}})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	m.SetSamples(4, 3)
	m.SetDistribution(d)
	m.ObserveFetch("heart_rate", 120*time.Millisecond)
	m.FileWritten()
	m.FileWritten()
	m.MarkExported(time.Unix(1709251200, 0))

	path := filepath.Join(t.TempDir(), "2024-03-01.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	out := string(data)

	for _, want := range []string{
		"hrexport_samples_total 4",
		"hrexport_samples_classified 3",
		`hrexport_zone_fraction{zone="easy"} 0.6666666666666666`,
		`hrexport_zone_fraction{zone="hard"} 0.3333333333333333`,
		`hrexport_fetch_duration_seconds_count{dataset="heart_rate"} 1`,
		"hrexport_files_written_total 2",
		"hrexport_last_export_timestamp_seconds 1.7092512e+09",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q\n%s", want, out)
		}
	}
}

func TestNilRunMetrics(t *testing.T) {
	var m *RunMetrics

	// None of these should panic
	m.SetSamples(1, 1)
	m.SetDistribution(zones.Distribution{})
	m.ObserveFetch("hrv", time.Second)
	m.FileWritten()
	m.MarkExported(time.Now())
}
