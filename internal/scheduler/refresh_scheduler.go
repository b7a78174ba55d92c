package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bassista/weather_collector/internal/collector"
	"github.com/bassista/weather_collector/internal/logger"
	"github.com/bassista/weather_collector/internal/metrics"
	"github.com/robfig/cron/v3"
)

type Refresher interface {
	Refresh(ctx context.Context, target string) collector.Result
}

// RefreshScheduler refreshes the cities table and then the weather table
// every interval, so cities added to the list after bootstrap are known
// before their first reading. A tick that fires while the previous one is
// still running is skipped, so refreshes never overlap.
type RefreshScheduler struct {
	refresher Refresher
	interval  time.Duration
	targets   []string
	metrics   *metrics.Recorder

	cron    *cron.Cron
	running sync.Mutex
}

// NewRefreshScheduler creates the scheduler. Intervals under one second
// behave as one second.
func NewRefreshScheduler(r Refresher, interval time.Duration, rec *metrics.Recorder) *RefreshScheduler {
	s := &RefreshScheduler{
		refresher: r,
		interval:  interval,
		targets:   []string{collector.TargetCities, collector.TargetWeather},
		metrics:   rec,
	}
	cronLog := cron.PrintfLogger(logger.WithComponent("sched"))
	s.cron = cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), s.skipIfStillRunning()),
	)
	return s
}

// Start schedules the job and returns. The schedule stops when ctx is done.
func (s *RefreshScheduler) Start(ctx context.Context) error {
	every := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddJob(every, cron.FuncJob(func() { s.tick(ctx) })); err != nil {
		return fmt.Errorf("schedule refresh %q: %w", every, err)
	}

	logger.WithComponent("sched").Infof("starting refresh scheduler with interval: %v", s.interval)
	s.cron.Start()

	go func() {
		<-ctx.Done()
		<-s.Stop().Done()
		logger.WithComponent("sched").Info("scheduler stopped")
	}()
	return nil
}

// Stop halts the schedule. The returned context is done once a running
// refresh has returned.
func (s *RefreshScheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *RefreshScheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	log := logger.WithComponent("sched")
	log.Debug("refresh tick started")
	for _, target := range s.targets {
		if ctx.Err() != nil {
			return
		}
		res := s.refresher.Refresh(ctx, target)
		log.Debugf("refresh %s finished: %s, %d rows", target, res.State, res.Staged)
	}
}

// skipIfStillRunning mirrors cron.SkipIfStillRunning and also counts skips.
func (s *RefreshScheduler) skipIfStillRunning() cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			if !s.running.TryLock() {
				s.metrics.TickSkipped()
				logger.WithComponent("sched").Info("previous refresh still running, tick skipped")
				return
			}
			defer s.running.Unlock()
			j.Run()
		})
	}
}
