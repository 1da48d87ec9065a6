// Package schedule starts runs with the configured default parameters on a
// cron expression.
package schedule

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jorge-barreto/tome/internal/pipeline"
)

// Starter starts one background run. *pipeline.Launcher implements it.
type Starter interface {
	Start(req pipeline.Request) (string, error)
}

// Scheduler fires Request on every tick of Spec in Location.
type Scheduler struct {
	cron    *cron.Cron
	starter Starter
	req     pipeline.Request
	log     *slog.Logger
	entry   cron.EntryID
}

// New parses spec (standard five-field cron) in loc.
func New(spec string, loc *time.Location, s Starter, req pipeline.Request, log *slog.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	sc := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		starter: s,
		req:     req,
		log:     log,
	}
	id, err := sc.cron.AddFunc(spec, sc.Fire)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	sc.entry = id
	return sc, nil
}

// Fire starts one run now. A busy launcher skips the tick.
func (s *Scheduler) Fire() {
	runID, err := s.starter.Start(s.req)
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		s.log.Warn("scheduled run skipped", "reason", "busy", "topic", s.req.Topic)
	case err != nil:
		s.log.Error("scheduled run not started", "topic", s.req.Topic, "error", err)
	default:
		s.log.Info("scheduled run started", "run_id", runID, "topic", s.req.Topic)
	}
}

// Next is the time of the next tick after Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts further ticks. It does not wait for started runs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
