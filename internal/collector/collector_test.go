package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bassista/weather_collector/internal/citystore"
	"github.com/bassista/weather_collector/internal/config"
	"github.com/bassista/weather_collector/internal/metrics"
	"github.com/bassista/weather_collector/internal/storage"
	"github.com/bassista/weather_collector/internal/weatherapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	cities []citystore.City
	err    error
}

func (f *fakeLister) GetCityList(ctx context.Context) ([]citystore.City, error) {
	return f.cities, f.err
}

func listOf(names ...string) *fakeLister {
	l := &fakeLister{}
	for _, n := range names {
		l.cities = append(l.cities, citystore.City{Name: n})
	}
	return l
}

type fetchResult struct {
	snap *weatherapi.Snapshot
	err  error
}

// fakeFetcher answers 200 for every city unless overridden.
type fakeFetcher struct {
	overrides map[string]fetchResult
	calls     []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, city string) (*weatherapi.Snapshot, error) {
	f.calls = append(f.calls, city)
	if r, ok := f.overrides[city]; ok {
		return r.snap, r.err
	}
	return &weatherapi.Snapshot{
		CityName:       city,
		Latitude:       43.25,
		Longitude:      76.95,
		Country:        "KZ",
		TimezoneOffset: 21600,
		Weather:        "Clear",
		Description:    "clear sky",
		Temperature:    20,
		Pressure:       1012,
		Humidity:       40,
	}, nil
}

type fakeBatch struct {
	staged     []any
	failAt     int
	committed  bool
	rolledBack bool
}

func (b *fakeBatch) Stage(entity any) error {
	if b.failAt > 0 && len(b.staged)+1 == b.failAt {
		return &storage.StageError{Kind: storage.KindConstraint, Entity: "test", Err: errors.New("constraint violated")}
	}
	b.staged = append(b.staged, entity)
	return nil
}

func (b *fakeBatch) Commit() error   { b.committed = true; return nil }
func (b *fakeBatch) Rollback() error { b.rolledBack = true; return nil }
func (b *fakeBatch) Staged() int     { return len(b.staged) }

type fakeGateway struct {
	calls []string
	batch *fakeBatch
}

func (g *fakeGateway) EnsureDatabase(ctx context.Context) error {
	g.calls = append(g.calls, "ensure")
	return nil
}

func (g *fakeGateway) CreateSchema(ctx context.Context) error {
	g.calls = append(g.calls, "schema")
	return nil
}

func (g *fakeGateway) Begin(ctx context.Context) (UnitOfWork, error) {
	g.calls = append(g.calls, "begin")
	if g.batch == nil {
		g.batch = &fakeBatch{}
	}
	return g.batch, nil
}

type recordingNotifier struct {
	errs []error
}

func (n *recordingNotifier) Notify(err error, fields map[string]any) {
	n.errs = append(n.errs, err)
}

func newSQLiteGateway(t *testing.T) *storage.Gateway {
	t.Helper()
	gw, err := storage.NewGateway(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Name:   filepath.Join(t.TempDir(), "collector.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })
	return gw
}

func TestRefresh_EarlyAbortOnCityName(t *testing.T) {
	fetcher := &fakeFetcher{overrides: map[string]fetchResult{
		"BadCity": {err: weatherapi.ErrCityName},
	}}
	gw := &fakeGateway{}
	notifier := &recordingNotifier{}
	c := New(listOf("Almaty", "BadCity", "Astana"), fetcher, gw, WithNotifier(notifier))

	res := c.Refresh(context.Background(), TargetWeather)

	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, "BadCity", res.FailedCity)
	assert.ErrorIs(t, res.Err, weatherapi.ErrCityName)
	assert.Equal(t, []string{"Almaty", "BadCity"}, fetcher.calls, "cities after the failure must not be fetched")
	assert.True(t, gw.batch.rolledBack)
	assert.False(t, gw.batch.committed)
	assert.Len(t, notifier.errs, 1)
}

func TestRefresh_APIKeyAborts(t *testing.T) {
	fetcher := &fakeFetcher{overrides: map[string]fetchResult{
		"Almaty": {err: weatherapi.ErrAPIKey},
	}}
	gw := &fakeGateway{}
	c := New(listOf("Almaty", "Astana"), fetcher, gw)

	res := c.Refresh(context.Background(), TargetCities)

	assert.Equal(t, StateAborted, res.State)
	assert.ErrorIs(t, res.Err, weatherapi.ErrAPIKey)
	assert.Equal(t, []string{"Almaty"}, fetcher.calls)
	assert.Empty(t, gw.calls, "no unit of work is opened before the first stage")
}

func TestRefresh_StageFailureAborts(t *testing.T) {
	fetcher := &fakeFetcher{}
	gw := &fakeGateway{batch: &fakeBatch{failAt: 2}}
	c := New(listOf("Almaty", "Astana", "Shymkent"), fetcher, gw)

	res := c.Refresh(context.Background(), TargetWeather)

	var stageErr *storage.StageError
	require.ErrorAs(t, res.Err, &stageErr)
	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, "Astana", res.FailedCity)
	assert.Equal(t, []string{"Almaty", "Astana"}, fetcher.calls)
	assert.True(t, gw.batch.rolledBack)
	assert.False(t, gw.batch.committed)
}

func TestRefresh_SoftNoOpSkipsCity(t *testing.T) {
	fetcher := &fakeFetcher{overrides: map[string]fetchResult{
		"Almaty": {},
	}}
	gw := &fakeGateway{}
	c := New(listOf("Almaty", "Astana"), fetcher, gw)

	res := c.Refresh(context.Background(), TargetWeather)

	assert.NoError(t, res.Err)
	assert.Equal(t, StateCommitted, res.State)
	assert.Equal(t, 1, res.Staged)
	assert.Equal(t, []string{"Almaty", "Astana"}, fetcher.calls)
	assert.True(t, gw.batch.committed)
}

func TestRefresh_UnknownTargetStagesNothing(t *testing.T) {
	fetcher := &fakeFetcher{}
	gw := &fakeGateway{}
	c := New(listOf("Almaty", "Astana"), fetcher, gw)

	res := c.Refresh(context.Background(), "forecast")

	assert.NoError(t, res.Err)
	assert.Equal(t, StateIdle, res.State)
	assert.Equal(t, []string{"Almaty", "Astana"}, fetcher.calls)
	assert.Empty(t, gw.calls)
}

func TestRefresh_EmptyListIsNoop(t *testing.T) {
	gw := &fakeGateway{}
	c := New(listOf(), &fakeFetcher{}, gw)

	res := c.Refresh(context.Background(), TargetCities)

	assert.Equal(t, StateIdle, res.State)
	assert.NoError(t, res.Err)
	assert.Empty(t, gw.calls)
}

func TestRefresh_CityListErrorAborts(t *testing.T) {
	fetcher := &fakeFetcher{}
	c := New(&fakeLister{err: citystore.ErrJSONWrongStructure}, fetcher, &fakeGateway{})

	res := c.Refresh(context.Background(), TargetWeather)

	assert.Equal(t, StateAborted, res.State)
	assert.ErrorIs(t, res.Err, citystore.ErrJSONWrongStructure)
	assert.Empty(t, fetcher.calls)
}

func TestRefresh_PreservesListOrder(t *testing.T) {
	gw := &fakeGateway{}
	c := New(listOf("Zhezkazgan", "Almaty", "Kostanay"), &fakeFetcher{}, gw)

	c.Refresh(context.Background(), TargetCities)

	require.Len(t, gw.batch.staged, 3)
	var names []string
	for _, e := range gw.batch.staged {
		names = append(names, e.(*storage.City).CityName)
	}
	assert.Equal(t, []string{"Zhezkazgan", "Almaty", "Kostanay"}, names)
}

func TestRefresh_WeatherLocalTime(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	gw := &fakeGateway{}
	c := New(listOf("Almaty"), &fakeFetcher{}, gw, WithClock(func() time.Time { return now }))

	c.Refresh(context.Background(), TargetWeather)

	require.Len(t, gw.batch.staged, 1)
	reading := gw.batch.staged[0].(*storage.WeatherReading)
	require.NotNil(t, reading.LocalTime)
	assert.Equal(t, time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC), *reading.LocalTime)
	assert.Equal(t, "Almaty", reading.CityName)
}

func TestRefresh_CitiesOnlyOncePerName(t *testing.T) {
	gw := newSQLiteGateway(t)
	ctx := context.Background()
	require.NoError(t, gw.CreateSchema(ctx))
	c := New(listOf("Almaty", "Astana"), &fakeFetcher{}, FromStorage(gw), WithMetrics(metrics.NewRecorder()))

	first := c.Refresh(ctx, TargetCities)
	assert.Equal(t, StateCommitted, first.State)
	assert.Equal(t, 2, first.Staged)

	second := c.Refresh(ctx, TargetCities)
	assert.Equal(t, StateIdle, second.State)
	assert.Equal(t, 0, second.Staged)

	cities, err := gw.QueryCities(ctx)
	require.NoError(t, err)
	assert.Len(t, cities, 2)
}

func TestRefresh_WeatherHistoryAccumulates(t *testing.T) {
	gw := newSQLiteGateway(t)
	ctx := context.Background()
	c := New(listOf("Almaty", "Astana"), &fakeFetcher{}, FromStorage(gw))

	require.NoError(t, c.Bootstrap(ctx))
	res := c.Refresh(ctx, TargetWeather)
	assert.Equal(t, 2, res.Staged)

	readings, err := gw.QueryReadings(ctx)
	require.NoError(t, err)
	assert.Len(t, readings, 4)
}

func TestRefresh_WeatherForUnknownCityRollsBack(t *testing.T) {
	gw := newSQLiteGateway(t)
	ctx := context.Background()
	require.NoError(t, gw.CreateSchema(ctx))
	fetcher := &fakeFetcher{}
	c := New(listOf("Almaty", "Astana"), fetcher, FromStorage(gw))

	// only Almaty is known
	require.Equal(t, StateCommitted, New(listOf("Almaty"), fetcher, FromStorage(gw)).Refresh(ctx, TargetCities).State)

	res := c.Refresh(ctx, TargetWeather)
	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, "Astana", res.FailedCity)

	readings, err := gw.QueryReadings(ctx)
	require.NoError(t, err)
	assert.Empty(t, readings, "the Almaty reading staged before the failure must be discarded")
}

func TestBootstrap_SeedsBothTables(t *testing.T) {
	gw := newSQLiteGateway(t)
	ctx := context.Background()
	c := New(listOf("Almaty", "Astana"), &fakeFetcher{}, FromStorage(gw))

	require.NoError(t, c.Bootstrap(ctx))

	cities, err := gw.QueryCities(ctx)
	require.NoError(t, err)
	readings, err := gw.QueryReadings(ctx)
	require.NoError(t, err)
	assert.Len(t, cities, 2)
	assert.Len(t, readings, 2)
	assert.Equal(t, "Almaty", cities[0].CityName)
}

func TestBootstrap_BadCityCommitsNothing(t *testing.T) {
	gw := newSQLiteGateway(t)
	ctx := context.Background()
	fetcher := &fakeFetcher{overrides: map[string]fetchResult{
		"BadCity": {err: weatherapi.ErrCityName},
	}}
	c := New(listOf("BadCity"), fetcher, FromStorage(gw))

	assert.NoError(t, c.Bootstrap(ctx))

	cities, err := gw.QueryCities(ctx)
	require.NoError(t, err)
	readings, err := gw.QueryReadings(ctx)
	require.NoError(t, err)
	assert.Empty(t, cities)
	assert.Empty(t, readings)
}

func TestBootstrap_EmptyFileFailsBeforeDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "city_list.json")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	store, err := citystore.NewJSONStore(path)
	require.NoError(t, err)

	gw := &fakeGateway{}
	fetcher := &fakeFetcher{}
	c := New(store, fetcher, gw)

	err = c.Bootstrap(context.Background())
	assert.ErrorIs(t, err, citystore.ErrEmptyFile)
	assert.Empty(t, gw.calls)
	assert.Empty(t, fetcher.calls)
}

func TestBootstrap_Order(t *testing.T) {
	gw := &fakeGateway{}
	c := New(listOf("Almaty"), &fakeFetcher{}, gw)

	require.NoError(t, c.Bootstrap(context.Background()))
	assert.Equal(t, []string{"ensure", "schema", "begin", "begin"}, gw.calls)
}

func TestLocalTime(t *testing.T) {
	now := time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)
	tests := []struct {
		offset int
		want   time.Time
	}{
		{0, now},
		{3600, time.Date(2024, 1, 2, 0, 30, 0, 0, time.UTC)},
		{-18000, time.Date(2024, 1, 1, 18, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LocalTime(tt.offset, now), "offset %d", tt.offset)
	}
}
