package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"agency_listings/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "listings.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := newTestStore(t)

	run := &models.FetchRun{
		UUID:       uuid.New(),
		AgentKey:   "2644",
		StartedAt:  time.Now().UTC().Truncate(time.Second),
		Status:     models.RunStatusRunning,
		OutputPath: "public/listings.json",
	}
	id, err := store.CreateRun(run)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	run.ID = id

	counts := []models.FeedCount{
		{Feed: "current", RT: "CMNCMN", Count: 12},
		{Feed: "pastLeased", RT: "PASTLEASED", Optional: true, Failed: true},
	}
	if err := store.SaveFeedCounts(id, counts); err != nil {
		t.Fatalf("save counts: %v", err)
	}
	if err := store.Log(&id, models.LogLevelWarn, "RT PASTLEASED not available", "pastLeased"); err != nil {
		t.Fatalf("log: %v", err)
	}

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.ListingsFound = 12
	run.ListingsWritten = 9
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("update run: %v", err)
	}

	got, err := store.GetRun(id)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got == nil {
		t.Fatal("expected run row")
	}
	if got.UUID != run.UUID {
		t.Fatalf("expected uuid %s, got %s", run.UUID, got.UUID)
	}
	if got.Status != models.RunStatusCompleted || got.ListingsWritten != 9 {
		t.Fatalf("unexpected run %+v", got)
	}
	if got.FinishedAt == nil {
		t.Fatal("expected finished_at")
	}

	gotCounts, err := store.GetFeedCounts(id)
	if err != nil {
		t.Fatalf("get counts: %v", err)
	}
	if len(gotCounts) != 2 {
		t.Fatalf("expected 2 feed counts, got %d", len(gotCounts))
	}
	if gotCounts[0].Feed != "current" || gotCounts[0].Count != 12 {
		t.Fatalf("unexpected first count %+v", gotCounts[0])
	}
	if !gotCounts[1].Failed || !gotCounts[1].Optional {
		t.Fatalf("expected failed optional feed, got %+v", gotCounts[1])
	}

	logs, err := store.GetLogs(id)
	if err != nil {
		t.Fatalf("get logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Level != models.LogLevelWarn || logs[0].Feed != "pastLeased" {
		t.Fatalf("unexpected logs %+v", logs)
	}

	last, err := store.GetLastRunTime()
	if err != nil {
		t.Fatalf("last run time: %v", err)
	}
	if !last.Equal(run.StartedAt) {
		t.Fatalf("expected last run %v, got %v", run.StartedAt, last)
	}
}

func TestSQLiteStore_GetRunMissing(t *testing.T) {
	store := newTestStore(t)

	run, err := store.GetRun(99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil run, got %+v", run)
	}

	last, err := store.GetLastRunTime()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !last.IsZero() {
		t.Fatalf("expected zero time, got %v", last)
	}
}
