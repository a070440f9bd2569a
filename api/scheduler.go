/*
scheduler.go - Message log retention scheduler

PURPOSE:
  Periodically deletes message logs older than the retention window so
  the per-month counters only cover recent months.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Retention is counted in calendar months (month_key), not days

USAGE:
  scheduler := NewLogRetentionScheduler(store, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - store/sqlite/sqlite.go: CleanupOldMonthLogs
*/
package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/warp/incentive-engine/store/sqlite"
)

// LogRetentionScheduler purges old message logs on an interval.
type LogRetentionScheduler struct {
	Store         *sqlite.Store
	Metrics       *Metrics
	Logger        log.FieldLogger
	CheckInterval time.Duration
	KeepMonths    int
	Enabled       bool

	// Now is the clock; tests replace it.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewLogRetentionScheduler creates a scheduler keeping the current month.
func NewLogRetentionScheduler(store *sqlite.Store, logger log.FieldLogger) *LogRetentionScheduler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &LogRetentionScheduler{
		Store:         store,
		Logger:        logger.WithField("component", "log_retention"),
		CheckInterval: 1 * time.Hour,
		KeepMonths:    1,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the scheduler.
func (s *LogRetentionScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.WithFields(log.Fields{
		"interval":    s.CheckInterval,
		"keep_months": s.KeepMonths,
	}).Info("scheduler started")
}

// Stop stops the scheduler and waits for a running purge.
func (s *LogRetentionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Logger.Info("scheduler stopped")
	}
}

func (s *LogRetentionScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow purges once and returns the number of deleted rows.
func (s *LogRetentionScheduler) RunNow(ctx context.Context) int64 {
	n, err := s.Store.CleanupOldMonthLogs(ctx, s.Now(), s.KeepMonths)
	if err != nil {
		s.Logger.WithError(err).Error("message log cleanup failed")
		return 0
	}
	s.Metrics.observePurge(n)
	if n > 0 {
		s.Logger.WithField("deleted", n).Info("old message logs removed")
	}
	return n
}

// NextRunTime returns when the next scheduled check will occur.
func (s *LogRetentionScheduler) NextRunTime() time.Time {
	return s.Now().Add(s.CheckInterval)
}
