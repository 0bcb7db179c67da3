package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs the periodic report job.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	ctx    context.Context
	cancel context.CancelFunc
	job    func(ctx context.Context) error
	log    *zap.Logger
}

// New builds a UTC scheduler for the given cron spec (five fields).
func New(spec string, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		spec:   spec,
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

func (s *Scheduler) SetJob(f func(ctx context.Context) error) {
	s.job = f
}

// Start registers the job and starts the cron loop. Without a job it does nothing.
func (s *Scheduler) Start() error {
	if s.job == nil {
		s.log.Warn("report job not set, scheduler idle")
		return nil
	}
	if s.spec == "" {
		return errors.New("empty cron spec")
	}

	_, err := s.cron.AddFunc(s.spec, s.run)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.String("spec", s.spec))
	return nil
}

func (s *Scheduler) run() {
	s.log.Info("report job triggered")
	if err := s.job(s.ctx); err != nil {
		s.log.Error("report job failed", zap.Error(err))
	}
}

// Stop waits for a running job to finish and cancels its context.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
