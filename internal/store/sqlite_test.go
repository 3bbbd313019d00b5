package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRecordAndQueryRuns(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for i, runtime := range []float64{58, 62} {
		rec := &RunRecord{
			ID:             uuid.New().String(),
			SessionID:      "session-1",
			Workflow:       "mapmaking",
			Command:        "so-site-pipeline make-ml-map",
			Cores:          112,
			MemoryMB:       4096,
			RuntimeMinutes: runtime,
			State:          "COMPLETED",
			RecordedAt:     time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		if err := st.RecordRun(ctx, rec); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}

	recs, err := st.RunsByWorkflow(ctx, "mapmaking")
	if err != nil {
		t.Fatalf("RunsByWorkflow: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].RuntimeMinutes != 58 || recs[1].RuntimeMinutes != 62 {
		t.Errorf("records out of order: %v, %v", recs[0].RuntimeMinutes, recs[1].RuntimeMinutes)
	}
	if recs[0].Cores != 112 {
		t.Errorf("Cores = %d, want 112", recs[0].Cores)
	}
}

func TestRunsByWorkflowEmpty(t *testing.T) {
	st := testStore(t)

	recs, err := st.RunsByWorkflow(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("RunsByWorkflow: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
}

func TestMigrateIdempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}
