package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bassista/weather_collector/internal/citystore"
	"github.com/bassista/weather_collector/internal/collector"
	"github.com/bassista/weather_collector/internal/config"
	"github.com/bassista/weather_collector/internal/logger"
	"github.com/bassista/weather_collector/internal/metrics"
	"github.com/bassista/weather_collector/internal/notify"
	"github.com/bassista/weather_collector/internal/scheduler"
	"github.com/bassista/weather_collector/internal/storage"
	"github.com/bassista/weather_collector/internal/weatherapi"
	"github.com/hashicorp/go-multierror"
)

// App is the application container (immutable dependencies + lifecycle context).
// It is not a request context; handlers should still use gin's request context.
type App struct {
	Config    *config.Config
	Cities    citystore.Store
	Gateway   *storage.Gateway
	Collector *collector.Collector
	Scheduler *scheduler.RefreshScheduler
	Metrics   *metrics.Recorder
	Notifier  notify.Notifier

	BaseCtx context.Context
	Cancel  context.CancelFunc
}

func New(cfg *config.Config, cities citystore.Store, gw *storage.Gateway, client weatherapi.Fetcher) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if cities == nil {
		return nil, errors.New("city store is nil")
	}
	if gw == nil {
		return nil, errors.New("gateway is nil")
	}
	if client == nil {
		return nil, errors.New("weather api client is nil")
	}

	rec := metrics.NewRecorder()
	notifier := notify.Configure(cfg.Misc.HoneybadgerAPIKey, cfg.Misc.Env)
	coll := collector.New(cities, client, collector.FromStorage(gw),
		collector.WithMetrics(rec),
		collector.WithNotifier(notifier),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		Config:    cfg,
		Cities:    cities,
		Gateway:   gw,
		Collector: coll,
		Scheduler: scheduler.NewRefreshScheduler(coll, cfg.Scheduler.Interval, rec),
		Metrics:   rec,
		Notifier:  notifier,
		BaseCtx:   ctx,
		Cancel:    cancel,
	}, nil
}

// Start bootstraps the collector, then starts the city list watcher and the
// refresh schedule. Only a city list that cannot be read is an error.
func (a *App) Start() error {
	if err := a.Collector.Bootstrap(a.BaseCtx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	if a.Config.Data.Watch {
		if err := a.Cities.StartWatcher(a.BaseCtx); err != nil {
			logger.WithComponent("main").Warnf("city list watcher not started: %v", err)
		}
	}

	if !a.Config.Scheduler.Enabled {
		logger.WithComponent("main").Info("scheduler disabled, only the bootstrap refresh ran")
		return nil
	}
	return a.Scheduler.Start(a.BaseCtx)
}

// Shutdown stops the schedule, waits for a running refresh up to the
// configured shutdown timeout and closes the database.
func (a *App) Shutdown() error {
	if a == nil || a.Cancel == nil {
		return nil
	}
	a.Cancel()

	var result *multierror.Error

	timeout := a.Config.Server.ShutDownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-a.Scheduler.Stop().Done():
	case <-time.After(timeout):
		result = multierror.Append(result, errors.New("refresh still running at shutdown"))
	}

	if err := a.Gateway.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close database: %w", err))
	}
	notify.Flush()

	return result.ErrorOrNil()
}
