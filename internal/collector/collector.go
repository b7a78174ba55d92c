package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bassista/weather_collector/internal/citystore"
	"github.com/bassista/weather_collector/internal/logger"
	"github.com/bassista/weather_collector/internal/metrics"
	"github.com/bassista/weather_collector/internal/notify"
	"github.com/bassista/weather_collector/internal/storage"
	"github.com/bassista/weather_collector/internal/weatherapi"
)

const (
	TargetCities  = storage.TableCities
	TargetWeather = storage.TableWeather
)

var ErrUnknownTarget = errors.New("unknown table target")

type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateNormalizing State = "normalizing"
	StateStaging     State = "staging"
	StateCommitted   State = "committed"
	StateAborted     State = "aborted"
)

// Result describes one finished refresh call. State is StateIdle when the
// call had nothing to commit.
type Result struct {
	Target     string
	State      State
	Staged     int
	FailedCity string
	Err        error
}

type Collector struct {
	cities   citystore.Lister
	client   weatherapi.Fetcher
	gateway  Gateway
	notifier notify.Notifier
	metrics  *metrics.Recorder
	now      func() time.Time
}

type Option func(*Collector)

func WithNotifier(n notify.Notifier) Option {
	return func(c *Collector) { c.notifier = n }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Collector) { c.metrics = r }
}

func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

func New(cities citystore.Lister, client weatherapi.Fetcher, gateway Gateway, opts ...Option) *Collector {
	c := &Collector{
		cities:   cities,
		client:   client,
		gateway:  gateway,
		notifier: notify.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bootstrap prepares the database and seeds both tables. A city list that
// cannot be read fails before any database call; database problems are
// logged and left to the refresh calls.
func (c *Collector) Bootstrap(ctx context.Context) error {
	log := logger.WithComponent("collector")

	if _, err := c.cities.GetCityList(ctx); err != nil {
		log.Errorf("bootstrap: %v", err)
		return fmt.Errorf("load city list: %w", err)
	}

	if err := c.gateway.EnsureDatabase(ctx); err != nil {
		log.Warnf("ensure database: %v", err)
	}
	if err := c.gateway.CreateSchema(ctx); err != nil {
		log.Warnf("create schema: %v", err)
	}

	c.Refresh(ctx, TargetCities)
	c.Refresh(ctx, TargetWeather)
	return nil
}

// Refresh polls every listed city in order and stages one row per city for
// target in a single unit of work. The first fetch or stage error rolls back
// everything staged so far and skips the remaining cities.
func (c *Collector) Refresh(ctx context.Context, target string) (res Result) {
	start := time.Now()
	log := logger.WithComponent("collector").WithField("target", target)
	res = Result{Target: target, State: StateIdle}
	defer func() {
		c.metrics.ObserveRefresh(target, string(res.State), res.Staged, time.Since(start))
	}()

	cities, err := c.cities.GetCityList(ctx)
	if err != nil {
		return c.abort(res, nil, "", err)
	}

	var batch UnitOfWork
	for _, city := range cities {
		res.State = StateFetching
		snap, err := c.client.Fetch(ctx, city.Name)
		if err != nil {
			c.metrics.FetchFailed(fetchFailureKind(err))
			return c.abort(res, batch, city.Name, err)
		}
		if snap == nil {
			log.Debugf("no data for %s, skipping", city.Name)
			continue
		}

		res.State = StateNormalizing
		entity, err := c.normalize(target, snap)
		if err != nil {
			log.Errorf("%v, nothing staged for %s", err, city.Name)
			continue
		}

		res.State = StateStaging
		if batch == nil {
			if batch, err = c.gateway.Begin(ctx); err != nil {
				return c.abort(res, nil, city.Name, err)
			}
		}
		if err := batch.Stage(entity); err != nil {
			return c.abort(res, batch, city.Name, err)
		}
	}

	if batch == nil || batch.Staged() == 0 {
		if batch != nil {
			batch.Rollback()
		}
		res.State = StateIdle
		log.Debug("nothing to commit")
		return res
	}

	if err := batch.Commit(); err != nil {
		return c.abort(res, nil, "", err)
	}
	res.State = StateCommitted
	res.Staged = batch.Staged()
	log.Infof("committed %d rows", res.Staged)
	return res
}

func (c *Collector) abort(res Result, batch UnitOfWork, city string, err error) Result {
	if batch != nil {
		if rbErr := batch.Rollback(); rbErr != nil {
			logger.WithComponent("collector").Errorf("rollback failed: %v", rbErr)
		}
	}
	res.State = StateAborted
	res.Staged = 0
	res.FailedCity = city
	res.Err = err

	entry := logger.WithComponent("collector").WithField("target", res.Target)
	if city != "" {
		entry = entry.WithField("city", city)
	}
	entry.Errorf("refresh aborted: %v", err)

	c.notifier.Notify(err, map[string]any{"target": res.Target, "city": city})
	return res
}

func (c *Collector) normalize(target string, snap *weatherapi.Snapshot) (any, error) {
	switch target {
	case TargetCities:
		return &storage.City{
			CityName:  snap.CityName,
			Latitude:  snap.Latitude,
			Longitude: snap.Longitude,
			Country:   snap.Country,
		}, nil
	case TargetWeather:
		local := LocalTime(snap.TimezoneOffset, c.now())
		return &storage.WeatherReading{
			CityName:    snap.CityName,
			LocalTime:   &local,
			Weather:     snap.Weather,
			Description: snap.Description,
			Temperature: snap.Temperature,
			FeelsLike:   snap.FeelsLike,
			TempMin:     snap.TempMin,
			TempMax:     snap.TempMax,
			Pressure:    snap.Pressure,
			Humidity:    snap.Humidity,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}
}

// LocalTime is the city's wall clock: now in UTC shifted by the provider's
// offset in seconds. The result carries the UTC location.
func LocalTime(offsetSeconds int, now time.Time) time.Time {
	return now.UTC().Add(time.Duration(offsetSeconds) * time.Second)
}

func fetchFailureKind(err error) string {
	switch {
	case errors.Is(err, weatherapi.ErrCityName):
		return "city_name"
	case errors.Is(err, weatherapi.ErrAPIKey):
		return "api_key"
	default:
		return "transport"
	}
}
