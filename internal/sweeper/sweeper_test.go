package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingExpirer struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int64
	err     error
}

func (e *recordingExpirer) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cutoffs = append(e.cutoffs, before)
	return e.n, e.err
}

func (e *recordingExpirer) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cutoffs)
}

func TestSweepOnce_CutoffsAndCounts(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	sessions := &recordingExpirer{n: 3}
	audit := &recordingExpirer{n: 7}
	s := New(
		Target{Name: "sessions", Expirer: sessions},
		Target{Name: "audit_logs", Expirer: audit, Retention: 24 * time.Hour},
	)
	s.now = func() time.Time { return now }

	got := s.SweepOnce(context.Background())
	if got["sessions"] != 3 || got["audit_logs"] != 7 {
		t.Errorf("counts = %v", got)
	}
	if !sessions.cutoffs[0].Equal(now) {
		t.Errorf("sessions cutoff = %v, want %v", sessions.cutoffs[0], now)
	}
	if !audit.cutoffs[0].Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("audit cutoff = %v", audit.cutoffs[0])
	}
}

func TestSweepOnce_FailureIsolated(t *testing.T) {
	ok := &recordingExpirer{n: 1}
	s := New(
		Target{Name: "broken", Expirer: &recordingExpirer{err: errors.New("db down")}},
		Target{Name: "challenges", Expirer: ok},
	)
	got := s.SweepOnce(context.Background())
	if _, present := got["broken"]; present {
		t.Error("failed target should not report a count")
	}
	if got["challenges"] != 1 {
		t.Errorf("counts = %v", got)
	}
}

func TestExpirerFunc(t *testing.T) {
	var seen time.Time
	f := ExpirerFunc(func(ctx context.Context, before time.Time) (int64, error) {
		seen = before
		return 2, nil
	})
	at := time.Unix(100, 0)
	if n, err := f.DeleteExpired(context.Background(), at); err != nil || n != 2 || !seen.Equal(at) {
		t.Errorf("n=%d err=%v seen=%v", n, err, seen)
	}
}

func TestRun_SweepsImmediatelyAndStops(t *testing.T) {
	e := &recordingExpirer{}
	s := New(Target{Name: "sessions", Expirer: e})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Hour)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for e.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if e.calls() != 1 {
		t.Errorf("calls = %d, want 1", e.calls())
	}
}
