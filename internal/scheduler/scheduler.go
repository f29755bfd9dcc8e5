// Package scheduler drives the decision loop. A trigger fires at interval
// boundaries aligned to the wall clock (or on a cron expression), runs one
// cycle, and persists a checkpoint of the last completed boundary so a
// restart can tell how much time it missed.
//
// Overlap policy is drop: if a cycle is still running when the next boundary
// fires, the new trigger is skipped and logged. Cycles never queue.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ProjectTradeAI/agentrader/internal/config"
	apperrors "github.com/ProjectTradeAI/agentrader/internal/errors"
)

// Task is one decision cycle. boundary is the interval boundary that
// triggered it.
type Task func(ctx context.Context, boundary time.Time) error

// Checkpointer persists the last completed boundary across restarts.
// Satisfied by store.DataStore.
type Checkpointer interface {
	GetCheckpoint(ctx context.Context, name string) (time.Time, error)
	SetCheckpoint(ctx context.Context, name string, t time.Time) error
}

// Scheduler fires a Task on aligned boundaries.
type Scheduler struct {
	interval       time.Duration
	cronSchedule   cron.Schedule
	runImmediately bool
	checkpointName string

	checkpoints Checkpointer
	logger      zerolog.Logger
	nowFn       func() time.Time

	mu      sync.Mutex
	wg      sync.WaitGroup
	running bool // a cycle is in flight
	started bool

	skipped int // boundaries dropped due to overlap
}

// New builds a scheduler from config. When cfg.Cron is set it takes
// precedence over the fixed interval. checkpoints may be nil, in which case
// boundaries are not persisted.
func New(cfg config.SchedulerConfig, checkpoints Checkpointer, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		interval:       cfg.Interval,
		runImmediately: cfg.RunImmediately,
		checkpointName: cfg.Checkpoint,
		checkpoints:    checkpoints,
		logger:         logger.With().Str("component", "scheduler").Logger(),
		nowFn:          time.Now,
	}
	if s.checkpointName == "" {
		s.checkpointName = "scheduler"
	}
	if cfg.Cron != "" {
		sched, err := cron.ParseStandard(cfg.Cron)
		if err != nil {
			return nil, fmt.Errorf("parsing cron expression %q: %w", cfg.Cron, err)
		}
		s.cronSchedule = sched
	} else if cfg.Interval <= 0 {
		return nil, fmt.Errorf("scheduler interval must be positive")
	}
	return s, nil
}

// Run blocks until ctx is cancelled, firing task at each boundary. It waits
// for an in-flight cycle to finish before returning. Only one Run may be
// active per scheduler.
func (s *Scheduler) Run(ctx context.Context, task Task) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return apperrors.ErrSchedulerRunning
	}
	s.started = true
	s.mu.Unlock()
	defer func() {
		s.wg.Wait()
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
	}()

	start := s.nowFn().UTC()
	s.reportGap(ctx, start)
	s.logger.Info().
		Dur("interval", s.interval).
		Bool("run_immediately", s.runImmediately).
		Time("started_at", start).
		Msg("scheduler started")

	if s.runImmediately {
		s.fire(ctx, task, start)
	}

	for {
		now := s.nowFn().UTC()
		boundary := s.nextBoundary(now)
		wait := boundary.Sub(now)

		s.logger.Debug().
			Time("next_boundary", boundary).
			Dur("wait", wait.Truncate(time.Second)).
			Msg("waiting for next boundary")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}
		s.fire(ctx, task, boundary)
	}
}

// fire starts one cycle unless one is already in flight. The cycle runs on
// its own goroutine so the timer loop keeps reaching this gate while a slow
// cycle straddles boundaries. The drop decision and the running flag flip
// happen under one lock acquisition so two boundaries can never both pass.
func (s *Scheduler) fire(ctx context.Context, task Task, boundary time.Time) {
	s.mu.Lock()
	if s.running {
		s.skipped++
		n := s.skipped
		s.mu.Unlock()
		s.logger.Warn().
			Time("boundary", boundary).
			Int("total_skipped", n).
			Msg("previous cycle still running, dropping trigger")
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()

		startedAt := s.nowFn()
		err := task(ctx, boundary)
		elapsed := s.nowFn().Sub(startedAt)

		if err != nil {
			s.logger.Error().Err(err).
				Time("boundary", boundary).
				Dur("elapsed", elapsed.Truncate(time.Millisecond)).
				Msg("cycle failed")
		} else {
			s.logger.Info().
				Time("boundary", boundary).
				Dur("elapsed", elapsed.Truncate(time.Millisecond)).
				Msg("cycle finished")
		}

		// The checkpoint records the last boundary a cycle ran for, whether
		// or not the cycle succeeded: a failed cycle is still a consumed
		// trigger.
		if s.checkpoints != nil {
			if cerr := s.checkpoints.SetCheckpoint(ctx, s.checkpointName, boundary); cerr != nil {
				s.logger.Error().Err(cerr).Msg("persisting checkpoint")
			}
		}
	}()
}

// Skipped returns how many triggers were dropped due to overlap.
func (s *Scheduler) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// nextBoundary returns the next activation strictly after now.
func (s *Scheduler) nextBoundary(now time.Time) time.Time {
	if s.cronSchedule != nil {
		return s.cronSchedule.Next(now)
	}
	return now.Truncate(s.interval).Add(s.interval)
}

// reportGap logs how many boundaries elapsed since the persisted checkpoint.
// Missed cycles are not replayed; the snapshot at the next boundary already
// reflects everything that happened while down.
func (s *Scheduler) reportGap(ctx context.Context, now time.Time) {
	if s.checkpoints == nil {
		return
	}
	last, err := s.checkpoints.GetCheckpoint(ctx, s.checkpointName)
	if err != nil {
		s.logger.Warn().Err(err).Msg("reading checkpoint")
		return
	}
	if last.IsZero() {
		s.logger.Info().Msg("no prior checkpoint, starting fresh")
		return
	}
	gap := now.Sub(last)
	missed := 0
	if s.cronSchedule != nil {
		for t := s.cronSchedule.Next(last); t.Before(now); t = s.cronSchedule.Next(t) {
			missed++
		}
	} else if s.interval > 0 {
		missed = int(gap / s.interval)
	}
	if missed > 0 {
		s.logger.Warn().
			Time("last_boundary", last).
			Int("missed_boundaries", missed).
			Msg("resuming after downtime, missed boundaries are not replayed")
	}
}
