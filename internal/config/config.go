package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bassista/weather_collector/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"

	// DefaultDatabaseName is the database the collector owns when none is configured.
	DefaultDatabaseName = "weather_collector"
)

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutDownTimeout time.Duration
	RequestTimeout  time.Duration
}

type DataConfig struct {
	FilePath string
	Watch    bool
}

type DatabaseConfig struct {
	Driver        string
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MaintenanceDB string
	MaxOpenConns  int
	MaxIdleConns  int
	SlowThreshold time.Duration
}

type WeatherAPIConfig struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

type MiscConfig struct {
	LogLevel          string
	GinMode           string
	HoneybadgerAPIKey string
	Env               string
}

// Config is built once at start and never mutated afterwards.
type Config struct {
	Server     ServerConfig
	Data       DataConfig
	Database   DatabaseConfig
	WeatherAPI WeatherAPIConfig
	Scheduler  SchedulerConfig
	Misc       MiscConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.request_timeout", "2s")

	v.SetDefault("data.file_path", "./data/city_list.json")
	v.SetDefault("data.watch", true)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", DefaultDatabaseName)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maintenance_db", "postgres")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.slow_threshold", "500ms")

	v.SetDefault("weather_api.base_url", "https://api.openweathermap.org/data/2.5/weather")
	v.SetDefault("weather_api.timeout", "10s")
	v.SetDefault("weather_api.breaker_threshold", 5)
	v.SetDefault("weather_api.breaker_timeout", "30s")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "1s")

	v.SetDefault("misc.log_level", "info")
	v.SetDefault("misc.gin_mode", "release")
}

// LoadConfig reads .env, config.yaml and WEATHER_COLLECTOR_* environment
// variables, in increasing order of precedence.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.WithComponent("config").Debug("no .env file found, using environment variables")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getEnvOrDefault("WEATHER_COLLECTOR_CONFIG_PATH", "./config"))
	v.SetEnvPrefix("WEATHER_COLLECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		logger.WithComponent("config").Info("no config file found, using defaults and env vars")
	}

	port, err := getEnvOrViperPort(v, "PORT", "server.port")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutDownTimeout: v.GetDuration("server.shutdown_timeout"),
			RequestTimeout:  v.GetDuration("server.request_timeout"),
		},
		Data: DataConfig{
			FilePath: v.GetString("data.file_path"),
			Watch:    v.GetBool("data.watch"),
		},
		Database: DatabaseConfig{
			Driver:        strings.ToLower(v.GetString("database.driver")),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			User:          getEnvOrDefault("DB_USER", v.GetString("database.user")),
			Password:      getEnvOrDefault("DB_PASSWORD", v.GetString("database.password")),
			Name:          v.GetString("database.name"),
			SSLMode:       v.GetString("database.sslmode"),
			MaintenanceDB: v.GetString("database.maintenance_db"),
			MaxOpenConns:  v.GetInt("database.max_open_conns"),
			MaxIdleConns:  v.GetInt("database.max_idle_conns"),
			SlowThreshold: v.GetDuration("database.slow_threshold"),
		},
		WeatherAPI: WeatherAPIConfig{
			BaseURL:          v.GetString("weather_api.base_url"),
			APIKey:           getEnvOrDefault("OPENWEATHER_API_KEY", v.GetString("weather_api.api_key")),
			Timeout:          v.GetDuration("weather_api.timeout"),
			BreakerThreshold: v.GetUint32("weather_api.breaker_threshold"),
			BreakerTimeout:   v.GetDuration("weather_api.breaker_timeout"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  v.GetBool("scheduler.enabled"),
			Interval: v.GetDuration("scheduler.interval"),
		},
		Misc: MiscConfig{
			LogLevel:          v.GetString("misc.log_level"),
			GinMode:           v.GetString("misc.gin_mode"),
			HoneybadgerAPIKey: os.Getenv("HONEYBADGER_API_KEY"),
			Env:               os.Getenv("GO_ENV"),
		},
	}

	if cfg.Database.Name == "" {
		cfg.Database.Name = DefaultDatabaseName
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Data.FilePath == "" {
		return errors.New("data.file_path is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return errors.New("server read/write/idle timeouts must be positive")
	}
	if c.Server.ShutDownTimeout <= 0 {
		return errors.New("server shutdown timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("server request timeout must be positive")
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.WeatherAPI.BaseURL == "" {
		return errors.New("weather_api.base_url is required")
	}
	if c.WeatherAPI.Timeout <= 0 {
		return errors.New("weather_api.timeout must be positive")
	}
	if c.Scheduler.Interval <= 0 {
		return errors.New("scheduler.interval must be positive")
	}
	return nil
}

// getEnvOrViperPort prefers a plain env var (PORT) over the viper key.
func getEnvOrViperPort(v *viper.Viper, envKey, viperKey string) (int, error) {
	if raw := os.Getenv(envKey); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", envKey, raw, err)
		}
		return port, nil
	}
	return v.GetInt(viperKey), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
