// Package cron drives the background idle-runtime sweep: beyond the
// on-demand EvictIdleRuntimes(nowMs) the runtime pool exposes, a
// cron-scheduled sweep reclaims idle runtimes even without inbound traffic
// to trigger it.
//
// Same parse/sleep-until-due/tick loop shape and cancel+WaitGroup shutdown
// as a typical cron-expression scheduler, pointed at a single static cron
// expression driving one sweep collaborator instead of a store-backed
// schedule table.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// cronParser parses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// defaultCronExpr sweeps once a minute.
const defaultCronExpr = "* * * * *"

// Sweeper evicts idle runtimes as of nowMs and returns the evicted agent IDs.
type Sweeper func(nowMs int64) []string

// Config holds the dependencies for the idle-runtime sweep scheduler.
type Config struct {
	CronExpr string // defaults to "* * * * *" (every minute)
	Sweep    Sweeper
	Logger   *slog.Logger
}

// Scheduler periodically sweeps the runtime pool for idle runtimes to evict.
type Scheduler struct {
	cronExpr string
	sweep    Sweeper
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new Scheduler with the given config.
func NewScheduler(cfg Config) *Scheduler {
	expr := cfg.CronExpr
	if expr == "" {
		expr = defaultCronExpr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cronExpr: expr,
		sweep:    cfg.Sweep,
		logger:   logger,
	}
}

// Start begins the scheduler loop. It runs in a background goroutine and
// respects the provided context for shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("idle runtime sweep scheduler started", "cron_expr", s.cronExpr)
}

// Stop cancels the scheduler loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("idle runtime sweep scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		next, err := NextRunTime(s.cronExpr, time.Now())
		if err != nil {
			s.logger.Error("cron: invalid expression, sweep disabled", "cron_expr", s.cronExpr, "error", err)
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	if s.sweep == nil {
		return
	}
	evicted := s.sweep(time.Now().UnixMilli())
	if len(evicted) > 0 {
		s.logger.Info("idle runtime sweep evicted agents", "agent_ids", evicted, "count", len(evicted))
	}
}

// NextRunTime parses the cron expression and returns the next run time after the given time.
func NextRunTime(cronExpr string, after time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}
