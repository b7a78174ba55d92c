package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"syscall"

	"github.com/bassista/weather_collector/internal/api/middleware"
	route "github.com/bassista/weather_collector/internal/api/route"
	appctx "github.com/bassista/weather_collector/internal/app"
	"github.com/bassista/weather_collector/internal/citystore"
	"github.com/bassista/weather_collector/internal/config"
	"github.com/bassista/weather_collector/internal/logger"
	"github.com/bassista/weather_collector/internal/storage"
	"github.com/bassista/weather_collector/internal/weatherapi"
	"github.com/gin-gonic/gin"

	"github.com/enrichman/httpgrace"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithComponent("main").Fatalf("configuration error: %v", err)
	}

	logLevel, err := logger.ApplyLevel(cfg.Misc.LogLevel)
	if err != nil {
		logger.WithComponent("main").Warnf("invalid log level '%s', keeping '%s': %v", cfg.Misc.LogLevel, logLevel, err)
	}
	logger.WithComponent("main").Debugf("log level set to: %s", logLevel.String())
	logger.WithComponent("main").Infof("App will run on port: %d", cfg.Server.Port)

	cities, err := citystore.NewJSONStore(cfg.Data.FilePath)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init city store: %v", err)
	}

	gw, err := storage.NewGateway(cfg.Database)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init gateway: %v", err)
	}

	client := weatherapi.NewClient(weatherapi.Options{
		BaseURL:          cfg.WeatherAPI.BaseURL,
		APIKey:           cfg.WeatherAPI.APIKey,
		Timeout:          cfg.WeatherAPI.Timeout,
		BreakerThreshold: cfg.WeatherAPI.BreakerThreshold,
		BreakerTimeout:   cfg.WeatherAPI.BreakerTimeout,
	})

	app, err := appctx.New(cfg, cities, gw, client)
	if err != nil {
		logger.WithComponent("main").Fatalf("cannot init app: %v", err)
	}
	defer func() {
		if err := app.Shutdown(); err != nil {
			logger.WithComponent("main").Errorf("shutdown: %v", err)
		}
	}()

	// a missing or corrupt city list stops the process before serving
	if err := app.Start(); err != nil {
		app.Shutdown()
		logger.WithComponent("main").Fatalf("cannot start collector: %v", err)
	}

	gin.SetMode(cfg.Misc.GinMode)
	gin.DefaultWriter = logger.Logger.Writer()
	gin.DefaultErrorWriter = logger.Logger.Writer()

	r := gin.New()
	r.Use(middleware.HoneybadgerMiddleware(logger.Logger, cfg.Misc.HoneybadgerAPIKey != ""))
	r.Use(gin.Recovery())
	route.SetupRoutes(r, app)

	srv := createGraceHttpServer(app.BaseCtx, "main-server", cfg.Server, r)
	if err := srv.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithComponent("main").Error(err)
	}
}

func createGraceHttpServer(ctx context.Context, name string, serverConfig config.ServerConfig, r *gin.Engine) *httpgrace.Server {
	slogLogger := slog.New(slog.NewTextHandler(logger.Logger.Writer(), nil))

	srv := httpgrace.NewServer(r,
		httpgrace.WithTimeout(serverConfig.ShutDownTimeout),
		httpgrace.WithSignals(syscall.SIGTERM, syscall.SIGINT),
		httpgrace.WithLogger(slogLogger),
		httpgrace.WithBeforeShutdown(func() {
			logger.WithComponent("http").Infof("Shutting down %s server....", name)
		}),
		httpgrace.WithServerOptions(
			httpgrace.WithReadTimeout(serverConfig.ReadTimeout),
			httpgrace.WithWriteTimeout(serverConfig.WriteTimeout),
			httpgrace.WithIdleTimeout(serverConfig.IdleTimeout),
			func(srv *http.Server) {
				srv.BaseContext = func(_ net.Listener) context.Context {
					return ctx
				}
			},
			func(srv *http.Server) {
				srv.ErrorLog = log.New(logger.Logger.Writer(), fmt.Sprintf("[%s] ", name), log.LstdFlags)
			},
		),
	)
	return srv
}
