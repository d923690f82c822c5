// Package sweeper periodically deletes expired rows. Expired sessions and challenges are already
// rejected on read; sweeping only keeps the tables small.
package sweeper

import (
	"context"
	"log"
	"time"
)

// Expirer deletes rows that expired before the given time.
type Expirer interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ExpirerFunc adapts a function to Expirer.
type ExpirerFunc func(ctx context.Context, before time.Time) (int64, error)

// DeleteExpired calls f.
func (f ExpirerFunc) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return f(ctx, before)
}

// Target is one table to sweep. Retention is subtracted from now to get the cutoff; zero means
// rows are deleted as soon as they expire.
type Target struct {
	Name      string
	Expirer   Expirer
	Retention time.Duration
}

// Sweeper runs every target on each tick.
type Sweeper struct {
	targets []Target
	now     func() time.Time
}

// New returns a Sweeper over targets.
func New(targets ...Target) *Sweeper {
	return &Sweeper{targets: targets, now: time.Now}
}

// SweepOnce runs every target once and returns the rows deleted per target name. A failing
// target is logged and does not stop the others.
func (s *Sweeper) SweepOnce(ctx context.Context) map[string]int64 {
	out := make(map[string]int64, len(s.targets))
	now := s.now()
	for _, t := range s.targets {
		n, err := t.Expirer.DeleteExpired(ctx, now.Add(-t.Retention))
		if err != nil {
			log.Printf("sweeper: %s: %v", t.Name, err)
			continue
		}
		out[t.Name] = n
		if n > 0 {
			log.Printf("sweeper: deleted %d expired %s", n, t.Name)
		}
	}
	return out
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}
