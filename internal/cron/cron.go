// Package cron runs the periodic maintenance jobs of the server.
package cron

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tgdrive/dropshare/internal/config"
	"github.com/tgdrive/dropshare/internal/logging"
	"github.com/tgdrive/dropshare/pkg/services"
	"go.uber.org/zap"
)

type Pruner interface {
	Prune(ctx context.Context, now time.Time) (*services.PruneResult, error)
}

type Scheduler struct {
	cron *cron.Cron
	// initial tracks the run started at startup, which the cron does not own.
	initial sync.WaitGroup
}

// cronLogger adapts zap to the logger interface the scheduler expects.
type cronLogger struct {
	lg *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.lg.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.lg.Errorw(msg, append(keysAndValues, "err", err)...)
}

// StartCronJobs schedules the expired file sweep every conf.PruneInterval and
// runs it once right away. It returns nil when jobs are disabled.
func StartCronJobs(ctx context.Context, conf *config.CronJobConfig, pruner Pruner) *Scheduler {
	if !conf.Enable || conf.PruneInterval <= 0 {
		return nil
	}

	lg := logging.FromContext(ctx)
	clog := cronLogger{lg: lg.Sugar()}

	c := cron.New(cron.WithLocation(time.UTC), cron.WithLogger(clog))

	job := cron.NewChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)).Then(cron.FuncJob(func() {
		res, err := pruner.Prune(ctx, time.Now().UTC())
		if err != nil {
			lg.Error("prune failed", zap.Error(err))
			return
		}
		if res.Records > 0 || res.Failed > 0 {
			lg.Info("prune finished", zap.Int("removed", res.Records), zap.Int("failed", res.Failed))
		}
	}))

	c.Schedule(cron.Every(conf.PruneInterval), job)
	c.Start()

	s := &Scheduler{cron: c}
	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		job.Run()
	}()
	return s
}

// Stop halts scheduling and waits for running jobs, including the startup
// run, until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.initial.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
