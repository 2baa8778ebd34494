package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/mikey/opportunity-agent/internal/config"
	"github.com/mikey/opportunity-agent/internal/core"
	"go.uber.org/zap"
)

// State is the phase of the monitoring loop
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "POLLING"
	case StateProcessing:
		return "PROCESSING"
	default:
		return "IDLE"
	}
}

// Pipeline is the batch side of core.OpportunityService
type Pipeline interface {
	Poll(ctx context.Context, force bool) (core.FetchMode, []*core.Opportunity, error)
	ProcessAll(ctx context.Context, session *core.Session, mode core.FetchMode, opportunities []*core.Opportunity) core.BatchReport
}

// Scheduler drives the pipeline on a fixed poll interval and sends the
// daily report once a day. One batch runs at a time.
type Scheduler struct {
	pipeline Pipeline
	reporter core.Reporter
	session  *core.Session
	cfg      config.SchedulerConfig
	logger   *zap.Logger
	now      func() time.Time

	state      atomic.Int32
	nextPoll   time.Time
	lastReport string
}

// New creates a scheduler. reporter may be nil to disable the daily report.
func New(pipeline Pipeline, reporter core.Reporter, session *core.Session, cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	return &Scheduler{
		pipeline: pipeline,
		reporter: reporter,
		session:  session,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// State returns the current phase
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// RunOnce runs a single batch
func (s *Scheduler) RunOnce(ctx context.Context, force bool) core.BatchReport {
	defer s.state.Store(int32(StateIdle))

	s.state.Store(int32(StatePolling))
	mode, opportunities, err := s.pipeline.Poll(ctx, force)
	if err != nil {
		return core.BatchReport{Mode: mode}
	}

	s.state.Store(int32(StateProcessing))
	return s.pipeline.ProcessAll(ctx, s.session, mode, opportunities)
}

// Run polls immediately, then on every poll deadline until ctx is
// cancelled. A batch in flight always completes: cancellation is only
// observed between ticks.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Monitoring started",
		zap.Duration("poll_interval", s.cfg.PollInterval),
		zap.Duration("check_interval", s.cfg.CheckInterval),
		zap.Bool("daily_report", s.reporter != nil))

	// the report is not sent for a day that has already passed its time
	if s.reportDue(s.now()) {
		s.lastReport = s.now().Format(time.DateOnly)
	}

	s.poll(ctx)

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Shutdown requested, monitoring stopped",
				zap.Int("opportunities_seen", s.session.Len()),
				zap.Duration("uptime", s.now().Sub(s.session.StartedAt()).Round(time.Second)))
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	if !now.Before(s.nextPoll) {
		s.poll(ctx)
	}
	if s.reportDue(now) {
		s.sendReport(ctx, now)
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	s.RunOnce(context.WithoutCancel(ctx), false)
	s.nextPoll = s.now().Add(s.cfg.PollInterval)
}

// reportDue reports whether today's report time has passed and the
// report was not sent yet
func (s *Scheduler) reportDue(now time.Time) bool {
	if s.reporter == nil {
		return false
	}
	local := now.Local()
	if local.Format(time.DateOnly) == s.lastReport {
		return false
	}
	at := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.ReportHour, s.cfg.ReportMinute, 0, 0, time.Local)
	return !local.Before(at)
}

func (s *Scheduler) sendReport(ctx context.Context, now time.Time) {
	s.lastReport = now.Local().Format(time.DateOnly)
	if err := s.reporter.SendDailyReport(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("Failed to send daily report", zap.Error(err))
	}
}
