package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"agency_listings/config"
	"agency_listings/scraper"
)

// Runner performs one fetch run. *scraper.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context) (*scraper.RunResult, error)
}

// LastRunSource reports when the previous run started, zero if never.
// *storage.SQLiteStore implements it.
type LastRunSource interface {
	GetLastRunTime() (time.Time, error)
}

var ErrNoSchedule = errors.New("no schedule configured: set SCRAPE_CRON or SCRAPE_INTERVAL")

type Scheduler struct {
	cfg     config.SchedulerConfig
	runner  Runner
	history LastRunSource
	cron    *cron.Cron
	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(cfg config.SchedulerConfig, runner Runner, history LastRunSource) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		runner:  runner,
		history: history,
		cron:    cron.New(),
		stopCh:  make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Cron != "" {
		slog.Info("starting scheduler", "cron", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.runOnce(ctx, "cron")
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		slog.Info("starting scheduler", "interval", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.runOnce(ctx, "interval")
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		return ErrNoSchedule
	}

	if s.catchUpDue() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runOnce(ctx, "catch-up")
		}()
	}
	return nil
}

// Stop halts the schedule and waits for ticker and catch-up runs to return.
// A cron job already running is waited for as well.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) TriggerNow(ctx context.Context) error {
	_, err := s.runner.Run(ctx)
	return err
}

// catchUpDue reports whether the last recorded run is older than one
// schedule period, so a restarted daemon does not wait a full period.
func (s *Scheduler) catchUpDue() bool {
	if s.history == nil {
		return false
	}
	last, err := s.history.GetLastRunTime()
	if err != nil {
		slog.Warn("could not read last run time", "error", err)
		return false
	}
	if last.IsZero() {
		return true
	}

	period := s.cfg.Interval
	if s.cfg.Cron != "" {
		sched, err := cron.ParseStandard(s.cfg.Cron)
		if err != nil {
			return false
		}
		next := sched.Next(last)
		return !next.After(time.Now())
	}
	return time.Since(last) >= period
}

func (s *Scheduler) runOnce(ctx context.Context, trigger string) {
	result, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, scraper.ErrRunInProgress):
		slog.Info("skipping scheduled run, previous run still in progress", "trigger", trigger)
	case err != nil:
		slog.Error("scheduled run failed", "trigger", trigger, "error", err)
	default:
		slog.Info("scheduled run complete", "trigger", trigger, "written", result.Written)
	}
}
