package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper periodically removes expired windows so memory stays bounded
// by active keys.
type Sweeper struct {
	cron   *cron.Cron
	store  Store
	logger *zap.Logger
}

// NewSweeper schedules store sweeps on schedule, e.g. "@every 60s".
func NewSweeper(store Store, schedule string, logger *zap.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = "@every 60s"
	}
	logger = logger.With(zap.String("component", "rate-limit-sweeper"))
	cl := cronLogger{logger.Sugar()}

	s := &Sweeper{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		store:  store,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.SweepNow(ctx)
	}); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// SweepNow runs one sweep immediately.
func (s *Sweeper) SweepNow(ctx context.Context) int {
	removed, err := s.store.Sweep(ctx, time.Now())
	if err != nil {
		s.logger.Warn("Rate limit sweep failed", zap.Error(err))
		return 0
	}
	if removed > 0 {
		s.logger.Debug("Expired rate limit windows removed", zap.Int("removed", removed))
	}
	return removed
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
