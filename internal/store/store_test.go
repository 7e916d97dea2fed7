package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAuth(t *testing.T) {
	db := setupTestDB(t)

	t.Run("GetAuth with nothing stored", func(t *testing.T) {
		_, err := db.GetAuth()
		if !errors.Is(err, ErrNoAuth) {
			t.Errorf("GetAuth() error = %v, want ErrNoAuth", err)
		}
	})

	t.Run("UpdateTokens with nothing stored", func(t *testing.T) {
		err := db.UpdateTokens("a", "r", time.Now(), time.Time{})
		if !errors.Is(err, ErrNoAuth) {
			t.Errorf("UpdateTokens() error = %v, want ErrNoAuth", err)
		}
	})

	expires := time.Now().Add(time.Hour).Truncate(time.Second)

	t.Run("SaveAuth then GetAuth", func(t *testing.T) {
		err := db.SaveAuth(&Auth{
			DisplayName:  "runner42",
			OAuth1Token:  "oauth1-token",
			OAuth1Secret: "oauth1-secret",
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresAt:    expires,
		})
		if err != nil {
			t.Fatalf("SaveAuth() error = %v", err)
		}

		got, err := db.GetAuth()
		if err != nil {
			t.Fatalf("GetAuth() error = %v", err)
		}
		if got.DisplayName != "runner42" {
			t.Errorf("DisplayName = %q, want runner42", got.DisplayName)
		}
		if got.OAuth1Token != "oauth1-token" || got.OAuth1Secret != "oauth1-secret" {
			t.Errorf("OAuth1 = %q / %q", got.OAuth1Token, got.OAuth1Secret)
		}
		if got.MFAToken != "" {
			t.Errorf("MFAToken = %q, want empty", got.MFAToken)
		}
		if got.AccessToken != "access-1" || got.RefreshToken != "refresh-1" {
			t.Errorf("tokens = %q / %q", got.AccessToken, got.RefreshToken)
		}
		if !got.ExpiresAt.Equal(expires) {
			t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
		}
		if !got.RefreshExpiresAt.IsZero() {
			t.Errorf("RefreshExpiresAt = %v, want zero", got.RefreshExpiresAt)
		}
	})

	refreshExpires := expires.Add(90 * 24 * time.Hour)

	t.Run("UpdateTokens keeps display name", func(t *testing.T) {
		later := expires.Add(time.Hour)
		if err := db.UpdateTokens("access-2", "refresh-2", later, refreshExpires); err != nil {
			t.Fatalf("UpdateTokens() error = %v", err)
		}

		got, err := db.GetAuth()
		if err != nil {
			t.Fatalf("GetAuth() error = %v", err)
		}
		if got.AccessToken != "access-2" {
			t.Errorf("AccessToken = %q, want access-2", got.AccessToken)
		}
		if got.DisplayName != "runner42" {
			t.Errorf("DisplayName = %q, want runner42", got.DisplayName)
		}
		if !got.ExpiresAt.Equal(later) {
			t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, later)
		}
		if !got.RefreshExpiresAt.Equal(refreshExpires) {
			t.Errorf("RefreshExpiresAt = %v, want %v", got.RefreshExpiresAt, refreshExpires)
		}
		if got.OAuth1Token != "oauth1-token" {
			t.Errorf("OAuth1Token = %q, want it kept", got.OAuth1Token)
		}
	})

	t.Run("UpdateTokens without refresh expiry keeps the stored one", func(t *testing.T) {
		if err := db.UpdateTokens("access-3", "refresh-3", expires.Add(2*time.Hour), time.Time{}); err != nil {
			t.Fatalf("UpdateTokens() error = %v", err)
		}

		got, err := db.GetAuth()
		if err != nil {
			t.Fatalf("GetAuth() error = %v", err)
		}
		if !got.RefreshExpiresAt.Equal(refreshExpires) {
			t.Errorf("RefreshExpiresAt = %v, want %v", got.RefreshExpiresAt, refreshExpires)
		}
	})

	t.Run("ClearAuth", func(t *testing.T) {
		if err := db.ClearAuth(); err != nil {
			t.Fatalf("ClearAuth() error = %v", err)
		}
		if _, err := db.GetAuth(); !errors.Is(err, ErrNoAuth) {
			t.Errorf("GetAuth() after clear error = %v, want ErrNoAuth", err)
		}
	})
}

func TestSyncState(t *testing.T) {
	db := setupTestDB(t)

	v, err := db.GetSyncState(KeyLastExportDay)
	if err != nil {
		t.Fatalf("GetSyncState() error = %v", err)
	}
	if v != "" {
		t.Errorf("GetSyncState() = %q, want empty", v)
	}

	for _, day := range []string{"2024-03-01", "2024-03-02"} {
		if err := db.SetSyncState(KeyLastExportDay, day); err != nil {
			t.Fatalf("SetSyncState() error = %v", err)
		}
	}

	v, err = db.GetSyncState(KeyLastExportDay)
	if err != nil {
		t.Fatalf("GetSyncState() error = %v", err)
	}
	if v != "2024-03-02" {
		t.Errorf("GetSyncState() = %q, want 2024-03-02", v)
	}
}

func TestRunsAndExports(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.LastRun(); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("LastRun() error = %v, want ErrRunNotFound", err)
	}

	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	runs := []*Run{
		{RunID: "run-1", Day: "2024-03-01", Samples: 720, Classified: 700, StartedAt: start, FinishedAt: start.Add(2 * time.Second)},
		{RunID: "run-2", Day: "2024-03-01", Samples: 720, Classified: 710, StartedAt: start.Add(500 * time.Millisecond), FinishedAt: start.Add(3 * time.Second)},
	}
	for _, r := range runs {
		if err := db.RecordRun(r); err != nil {
			t.Fatalf("RecordRun(%s) error = %v", r.RunID, err)
		}
	}

	exports := []*Export{
		{RunID: "run-1", Day: "2024-03-01", Kind: "heart_rate", Path: "/x/2024-03-01.json", Bytes: 100},
		{RunID: "run-2", Day: "2024-03-01", Kind: "heart_rate", Path: "/x/2024-03-01.json", Bytes: 120},
		{RunID: "run-2", Day: "2024-03-01", Kind: "csv", Path: "/x/2024-03-01.csv", Bytes: 80},
	}
	for _, e := range exports {
		if err := db.RecordExport(e); err != nil {
			t.Fatalf("RecordExport(%s/%s) error = %v", e.RunID, e.Kind, err)
		}
	}

	t.Run("LastRun picks the latest start", func(t *testing.T) {
		last, err := db.LastRun()
		if err != nil {
			t.Fatalf("LastRun() error = %v", err)
		}
		if last.RunID != "run-2" {
			t.Errorf("RunID = %q, want run-2", last.RunID)
		}
		if last.Classified != 710 {
			t.Errorf("Classified = %d, want 710", last.Classified)
		}
		if !last.StartedAt.Equal(runs[1].StartedAt) {
			t.Errorf("StartedAt = %v, want %v", last.StartedAt, runs[1].StartedAt)
		}
	})

	t.Run("unfinished run has no finish time", func(t *testing.T) {
		pending := &Run{RunID: "run-3", Day: "2024-03-02", StartedAt: start.Add(time.Minute)}
		if err := db.RecordRun(pending); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}

		last, err := db.LastRun()
		if err != nil {
			t.Fatalf("LastRun() error = %v", err)
		}
		if last.RunID != "run-3" || !last.FinishedAt.IsZero() {
			t.Errorf("LastRun() = %s finished %v, want run-3 unfinished", last.RunID, last.FinishedAt)
		}

		pending.Samples = 10
		pending.FinishedAt = start.Add(2 * time.Minute)
		if err := db.RecordRun(pending); err != nil {
			t.Fatalf("RecordRun() finish error = %v", err)
		}
		last, err = db.LastRun()
		if err != nil {
			t.Fatalf("LastRun() error = %v", err)
		}
		if !last.FinishedAt.Equal(pending.FinishedAt) {
			t.Errorf("FinishedAt = %v, want %v", last.FinishedAt, pending.FinishedAt)
		}
	})

	t.Run("ListExports newest run first", func(t *testing.T) {
		got, err := db.ListExports("2024-03-01")
		if err != nil {
			t.Fatalf("ListExports() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		if got[0].RunID != "run-2" || got[0].Kind != "heart_rate" {
			t.Errorf("first export = %+v", got[0])
		}
		if got[2].RunID != "run-1" {
			t.Errorf("last export should belong to run-1, got %+v", got[2])
		}
	})

	t.Run("ListExports other day", func(t *testing.T) {
		got, err := db.ListExports("2024-03-02")
		if err != nil {
			t.Fatalf("ListExports() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("len = %d, want 0", len(got))
		}
	})

	t.Run("RecordExport requires a run", func(t *testing.T) {
		err := db.RecordExport(&Export{RunID: "missing", Day: "2024-03-01", Kind: "csv", Path: "p"})
		if err == nil {
			t.Error("expected foreign key error, got nil")
		}
	})
}

func TestOpenCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tokens")

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.SetSyncState("k", "v"); err != nil {
		t.Fatalf("SetSyncState() error = %v", err)
	}
	db.Close()

	// Reopen and read back
	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()

	v, err := db.GetSyncState("k")
	if err != nil || v != "v" {
		t.Errorf("GetSyncState() = %q, %v; want v", v, err)
	}
}
