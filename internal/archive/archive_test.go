package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/trustfit/internal/session"
	"github.com/MikeSquared-Agency/trustfit/internal/trust"
)

func tempArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "estimates.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestRecordAndList(t *testing.T) {
	a := tempArchive(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, fb := range []int{80, 30, 55} {
		u := session.Update{
			SessionID:     "p07",
			Index:         i,
			Performance:   i % 2,
			Feedback:      fb,
			PriorEstimate: 0.5,
			NewEstimate:   0.6,
			Params:        trust.InitialGuess(fb),
			Optimized:     i > 0,
			Status:        "xtol_reached",
			Evaluations:   i * 3,
			RecordedAt:    base.Add(time.Duration(i) * time.Second),
		}
		if err := a.Record(ctx, u); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := a.Record(ctx, session.Update{SessionID: "other", RecordedAt: base}); err != nil {
		t.Fatalf("Record other: %v", err)
	}

	got, err := a.List(ctx, "p07")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	for i, u := range got {
		if u.Index != i {
			t.Errorf("row %d index = %d", i, u.Index)
		}
	}
	if got[1].Feedback != 30 || !got[1].Optimized || got[1].Evaluations != 3 {
		t.Errorf("row 1 = %+v", got[1])
	}
	if got[0].Optimized {
		t.Error("row 0 should not be optimized")
	}
	if want := trust.InitialGuess(55); got[2].Params != want {
		t.Errorf("row 2 params = %+v, want %+v", got[2].Params, want)
	}
	if !got[2].RecordedAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("row 2 recorded_at = %v", got[2].RecordedAt)
	}
}

func TestListUnknownSession(t *testing.T) {
	a := tempArchive(t)
	got, err := a.List(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no rows, got %d", len(got))
	}
}

func TestList_SubSecondOrder(t *testing.T) {
	a := tempArchive(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	offsets := []time.Duration{0, 500 * time.Millisecond, 510 * time.Millisecond, 510*time.Millisecond + 7}
	for i, off := range offsets {
		u := session.Update{SessionID: "p07", Index: i, Status: "initial_guess", RecordedAt: base.Add(off)}
		if err := a.Record(ctx, u); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := a.List(ctx, "p07")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != len(offsets) {
		t.Fatalf("expected %d rows, got %d", len(offsets), len(got))
	}
	for i, u := range got {
		if u.Index != i {
			t.Errorf("position %d holds index %d", i, u.Index)
		}
		if !u.RecordedAt.Equal(base.Add(offsets[i])) {
			t.Errorf("position %d recorded_at = %v, want %v", i, u.RecordedAt, base.Add(offsets[i]))
		}
	}
}

func TestList_SameInstantKeepsInsertionOrder(t *testing.T) {
	a := tempArchive(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// a reset restarts idx, so idx alone cannot order rows
	for _, idx := range []int{0, 1, 0} {
		if err := a.Record(ctx, session.Update{SessionID: "p07", Index: idx, RecordedAt: at}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := a.List(ctx, "p07")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 || got[0].Index != 0 || got[1].Index != 1 || got[2].Index != 0 {
		t.Errorf("rows out of insertion order: %+v", got)
	}
}

func TestList_CorruptTimestamp(t *testing.T) {
	a := tempArchive(t)
	ctx := context.Background()

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO estimates (id, session_id, idx, performance, feedback, prior_estimate, new_estimate,
			alpha0, beta0, ws, wf, optimized, status, evaluations, recorded_at)
		 VALUES ('x', 'p07', 0, 1, 80, 0.5, 0.8, 80, 20, 1, 2, 0, 'initial_guess', 0, 'yesterday')`)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := a.List(ctx, "p07"); err == nil {
		t.Error("expected an error for an unparseable recorded_at")
	}
}
