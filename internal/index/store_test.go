package index

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvoigt/decledger/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func entryAt(pos int64, ts time.Time, tier model.Criticality) *model.AuditEntry {
	return &model.AuditEntry{
		ID:          fmt.Sprintf("e-%03d", pos),
		Position:    pos,
		Timestamp:   ts,
		Criticality: tier,
		Compliance:  model.ComplianceStatus{Compliant: tier < model.CriticalityHigh},
		Checksum:    fmt.Sprintf("sha256:%03d", pos),
		PrevHash:    fmt.Sprintf("sha256:%03d", pos-1),
		Payload: model.DecisionRecord{
			SessionID:    fmt.Sprintf("session-%d", pos%3),
			DecisionPath: "full_evaluation/approved",
			Confidence:   0.9,
		},
	}
}

func seed(t *testing.T, s *Store, n int) time.Time {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		tier := model.CriticalityLow
		if i%5 == 0 {
			tier = model.CriticalityHigh
		}
		e := entryAt(int64(i), base.Add(time.Duration(i)*time.Minute), tier)
		if i%4 == 0 {
			e.Payload.Violations = []string{"bias"}
		}
		if err := s.Insert(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}
	return base
}

func TestInsertAndGet(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, 3)

	e, err := s.Get(context.Background(), "e-002")
	if err != nil {
		t.Fatal(err)
	}
	if e == nil || e.Position != 2 {
		t.Fatalf("get e-002 = %+v", e)
	}

	missing, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestInsertRejectsDuplicatePosition(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC()
	if err := s.Insert(context.Background(), entryAt(1, base, model.CriticalityLow)); err != nil {
		t.Fatal(err)
	}
	dup := entryAt(1, base, model.CriticalityLow)
	dup.ID = "other-id"
	if err := s.Insert(context.Background(), dup); err == nil {
		t.Error("expected unique-position violation")
	}
}

func TestTail(t *testing.T) {
	s := openTestStore(t)

	_, _, ok, err := s.Tail(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("empty index must report no tail")
	}

	seed(t, s, 7)
	checksum, pos, ok, err := s.Tail(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !ok || pos != 7 || checksum != "sha256:007" {
		t.Errorf("tail = %s @ %d ok=%v", checksum, pos, ok)
	}
}

func TestRangeAndCount(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, 10)

	entries, err := s.Range(context.Background(), 3, 6)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("range [3,6] returned %d entries", len(entries))
	}
	for i, e := range entries {
		if e.Position != int64(3+i) {
			t.Errorf("entries[%d].Position = %d, want %d", i, e.Position, 3+i)
		}
	}

	// Open-ended range runs to the tail.
	entries, err = s.Range(context.Background(), 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Errorf("open range returned %d entries, want 3", len(entries))
	}

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Errorf("count = %d, want 10", n)
	}
}

func TestQueryFilters(t *testing.T) {
	s := openTestStore(t)
	base := seed(t, s, 20)
	ctx := context.Background()

	// Criticality floor.
	res, err := s.Query(ctx, model.QueryCriteria{MinCriticality: model.CriticalityHigh}, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 4 {
		t.Errorf("high+ query returned %d, want 4", len(res))
	}

	// Time range covers entries 5..10 inclusive.
	res, err = s.Query(ctx, model.QueryCriteria{
		From: base.Add(5 * time.Minute),
		To:   base.Add(10 * time.Minute),
	}, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 6 {
		t.Errorf("time range returned %d, want 6", len(res))
	}
	// Newest first.
	if len(res) > 1 && !res[0].Timestamp.After(res[1].Timestamp) {
		t.Error("results not ordered newest first")
	}

	// Session filter.
	res, err = s.Query(ctx, model.QueryCriteria{SessionID: "session-0"}, 100)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range res {
		if e.Payload.SessionID != "session-0" {
			t.Errorf("session filter leaked %s", e.Payload.SessionID)
		}
	}

	// Violations filter is applied post-decode.
	res, err = s.Query(ctx, model.QueryCriteria{HasViolations: true}, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 5 {
		t.Errorf("violations query returned %d, want 5", len(res))
	}

	// Limit.
	res, err = s.Query(ctx, model.QueryCriteria{}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 3 {
		t.Errorf("limited query returned %d, want 3", len(res))
	}
}

func TestCollectStats(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, 10)

	st, err := s.CollectStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.Total != 10 {
		t.Errorf("total = %d, want 10", st.Total)
	}
	if st.ByCriticality[model.CriticalityHigh] != 2 {
		t.Errorf("high count = %d, want 2", st.ByCriticality[model.CriticalityHigh])
	}
	if st.Compliant != 8 {
		t.Errorf("compliant = %d, want 8", st.Compliant)
	}
	if st.AvgConfidence < 0.89 || st.AvgConfidence > 0.91 {
		t.Errorf("avg confidence = %f", st.AvgConfidence)
	}
}

func TestDeleteRangeAndDelete(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, 10)
	ctx := context.Background()

	n, err := s.DeleteRange(ctx, 1, 4)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("deleted %d rows, want 4", n)
	}
	count, _ := s.Count(ctx)
	if count != 6 {
		t.Errorf("count after delete = %d, want 6", count)
	}

	if err := s.Delete(ctx, "e-010"); err != nil {
		t.Fatal(err)
	}
	e, _ := s.Get(ctx, "e-010")
	if e != nil {
		t.Error("e-010 survived Delete")
	}
}
