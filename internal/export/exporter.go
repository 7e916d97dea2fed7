// Package export runs a single day's export: it fetches the four Garmin
// Connect datasets in sequence and writes them, plus the derived heart-rate
// CSV and zone distribution, to the export directory.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"

	"hrexport/internal/garmin"
	"hrexport/internal/metrics"
	"hrexport/internal/store"
	"hrexport/internal/zones"
)

// File kinds recorded in the export history
const (
	KindHeartRate = "heart_rate"
	KindCSV       = "csv"
	KindZones     = "zones"
	KindHRV       = "hrv"
	KindStress    = "stress"
	KindSleep     = "sleep"
	KindMetrics   = "metrics"
)

// Fetcher is the part of the Garmin client the exporter uses
type Fetcher interface {
	DailyHeartRate(ctx context.Context, displayName string, day time.Time) (*garmin.DailyHeartRate, error)
	HRV(ctx context.Context, day time.Time) (json.RawMessage, error)
	DailyStress(ctx context.Context, day time.Time) (json.RawMessage, error)
	DailySleep(ctx context.Context, displayName string, day time.Time, bufferMinutes int) (json.RawMessage, error)
}

// Recorder keeps the export history
type Recorder interface {
	RecordRun(*store.Run) error
	RecordExport(*store.Export) error
	SetSyncState(key, value string) error
}

// Options configures an Exporter
type Options struct {
	Zones              []zones.Zone
	ExportDir          string
	DisplayName        string
	SleepBufferMinutes int
	WriteMetrics       bool
	Location           *time.Location // for the CSV date column; defaults to time.Local
}

// File is an export file written by a run
type File struct {
	Kind  string
	Path  string
	Bytes int64
}

// Result describes a finished run
type Result struct {
	RunID        string
	Day          time.Time
	Samples      []zones.Sample
	Classified   int
	Distribution zones.Distribution
	RestingHR    *int
	Files        []File
	Duration     time.Duration
}

// Exporter exports one day of Garmin Connect data
type Exporter struct {
	fetcher  Fetcher
	recorder Recorder
	opts     Options
	logger   *slog.Logger
	out      io.Writer
	now      func() time.Time
}

// NewExporter creates an exporter. Progress lines are printed to out.
func NewExporter(fetcher Fetcher, recorder Recorder, opts Options, logger *slog.Logger, out io.Writer) *Exporter {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	opts.Zones = append([]zones.Zone(nil), opts.Zones...)
	return &Exporter{
		fetcher:  fetcher,
		recorder: recorder,
		opts:     opts,
		logger:   logger,
		out:      out,
		now:      time.Now,
	}
}

// run carries the state of one Run call
type run struct {
	*Exporter
	id      string
	dayStr  string
	logger  *slog.Logger
	metrics *metrics.RunMetrics
	result  *Result
}

// Run exports day. Any fetch or write failure aborts the run.
func (e *Exporter) Run(ctx context.Context, day time.Time) (*Result, error) {
	started := e.now()
	r := &run{
		Exporter: e,
		id:       uuid.NewString(),
		dayStr:   day.Format(garmin.DateLayout),
		metrics:  metrics.New(),
	}
	r.result = &Result{RunID: r.id, Day: day}
	r.logger = e.logger.With("run_id", r.id, "day", r.dayStr)

	r.logger.Info("starting export")
	fmt.Fprintf(e.out, "Exporting heart rate data for %s\n", r.dayStr)

	r.recordRun(started, time.Time{})

	if err := r.exportHeartRate(ctx); err != nil {
		return nil, err
	}

	if err := r.exportRaw(ctx, KindHRV, "HRV", func() (json.RawMessage, error) {
		return e.fetcher.HRV(ctx, day)
	}); err != nil {
		return nil, err
	}

	if err := r.exportRaw(ctx, KindStress, "Stress", func() (json.RawMessage, error) {
		return e.fetcher.DailyStress(ctx, day)
	}); err != nil {
		return nil, err
	}

	if err := r.exportRaw(ctx, KindSleep, "Sleep", func() (json.RawMessage, error) {
		return e.fetcher.DailySleep(ctx, e.opts.DisplayName, day, e.opts.SleepBufferMinutes)
	}); err != nil {
		return nil, err
	}

	finished := e.now()
	r.metrics.MarkExported(finished)
	if e.opts.WriteMetrics {
		path := r.path(".prom")
		if err := r.metrics.WriteTextfile(path); err != nil {
			return nil, fmt.Errorf("writing metrics: %w", err)
		}
		r.addFile(KindMetrics, path)
	}

	r.recordRun(started, finished)
	if err := e.recorder.SetSyncState(store.KeyLastExportDay, r.dayStr); err != nil {
		r.logger.Warn("could not record last export day", "error", err)
	}

	r.result.Duration = finished.Sub(started)
	r.logger.Info("export finished", "files", len(r.result.Files), "duration", r.result.Duration)
	return r.result, nil
}

func (r *run) exportHeartRate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := r.now()
	hr, err := r.fetcher.DailyHeartRate(ctx, r.opts.DisplayName, r.result.Day)
	if err != nil {
		return fmt.Errorf("fetching heart rate: %w", err)
	}
	r.metrics.ObserveFetch(KindHeartRate, r.now().Sub(start))

	path := r.path(".json")
	if err := r.writeJSON(path, hr.Raw); err != nil {
		return fmt.Errorf("writing heart rate: %w", err)
	}
	r.addFile(KindHeartRate, path)
	fmt.Fprintf(r.out, "Raw heart rate data exported to %s\n", path)

	samples := hr.Samples()
	r.result.Samples = samples
	r.result.RestingHR = hr.RestingHeartRate

	path = r.path(".csv")
	var buf bytes.Buffer
	rows, err := WriteCSV(&buf, r.opts.Zones, samples, r.opts.Location)
	if err != nil {
		return fmt.Errorf("encoding CSV: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing CSV: %w", xerrors.New(err))
	}
	r.addFile(KindCSV, path)
	r.result.Classified = rows
	fmt.Fprintf(r.out, "CSV heart rate data exported to %s\n", path)

	dist, err := zones.Aggregate(r.opts.Zones, samples)
	if errors.Is(err, zones.ErrNoSamples) {
		r.logger.Warn("no heart rate readings for day; zone distribution is empty")
	} else if err != nil {
		return fmt.Errorf("aggregating zones: %w", err)
	}
	r.result.Distribution = dist
	r.metrics.SetSamples(len(samples), rows)
	r.metrics.SetDistribution(dist)

	encoded, err := json.Marshal(dist)
	if err != nil {
		return fmt.Errorf("encoding zones: %w", err)
	}
	path = r.path("-zones.json")
	if err := r.writeJSON(path, encoded); err != nil {
		return fmt.Errorf("writing zones: %w", err)
	}
	r.addFile(KindZones, path)
	fmt.Fprintf(r.out, "Heart rate zones exported to %s\n", path)

	fmt.Fprintln(r.out, "Heart rate zones:")
	for _, s := range dist.Shares() {
		fmt.Fprintf(r.out, "%s: %.2f%%\n", s.Zone, s.Fraction*100)
	}
	return nil
}

// exportRaw fetches a dataset and writes it unchanged to <day>-<kind>.json
func (r *run) exportRaw(ctx context.Context, kind, label string, fetch func() (json.RawMessage, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := r.now()
	raw, err := fetch()
	if err != nil {
		return fmt.Errorf("fetching %s: %w", kind, err)
	}
	r.metrics.ObserveFetch(kind, r.now().Sub(start))

	path := r.path("-" + kind + ".json")
	if err := r.writeJSON(path, raw); err != nil {
		return fmt.Errorf("writing %s: %w", kind, err)
	}
	r.addFile(kind, path)
	fmt.Fprintf(r.out, "%s data exported to %s\n", label, path)
	return nil
}

func (r *run) path(suffix string) string {
	return filepath.Join(r.opts.ExportDir, r.dayStr+suffix)
}

// writeJSON writes raw indented by four spaces, overwriting path
func (r *run) writeJSON(path string, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "    "); err != nil {
		return xerrors.New(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return xerrors.New(err)
	}
	return nil
}

func (r *run) addFile(kind, path string) {
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	f := File{Kind: kind, Path: path, Bytes: size}
	r.result.Files = append(r.result.Files, f)
	r.metrics.FileWritten()

	err := r.recorder.RecordExport(&store.Export{
		RunID: r.id,
		Day:   r.dayStr,
		Kind:  kind,
		Path:  path,
		Bytes: size,
	})
	if err != nil {
		r.logger.Warn("could not record export", "kind", kind, "error", err)
	}
}

func (r *run) recordRun(started, finished time.Time) {
	err := r.recorder.RecordRun(&store.Run{
		RunID:      r.id,
		Day:        r.dayStr,
		Samples:    len(r.result.Samples),
		Classified: r.result.Classified,
		StartedAt:  started,
		FinishedAt: finished,
	})
	if err != nil {
		r.logger.Warn("could not record run", "error", err)
	}
}
