package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bassista/weather_collector/internal/config"
	"github.com/bassista/weather_collector/internal/logger"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// pgDuplicateDatabase is the SQLSTATE for CREATE DATABASE on an existing name.
const pgDuplicateDatabase = "42P04"

// Gateway owns the database connection and the two collector tables.
//
// The connection is opened lazily by the first operation that needs it.
// When opening fails the operation logs and returns ErrNotReady, and the
// next operation tries again.
type Gateway struct {
	cfg     config.DatabaseConfig
	factory DialectorFactory

	mu sync.Mutex
	db *gorm.DB
}

func NewGateway(cfg config.DatabaseConfig) (*Gateway, error) {
	factory, err := lookupDialector(cfg.Driver)
	if err != nil {
		return nil, err
	}
	return &Gateway{cfg: cfg, factory: factory}, nil
}

// NewGatewayWithDB wraps an already opened connection.
func NewGatewayWithDB(db *gorm.DB) *Gateway {
	return &Gateway{db: db}
}

func (g *Gateway) gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGormLogger("gateway", g.cfg.SlowThreshold),
		TranslateError: true,
	}
}

func (g *Gateway) conn(ctx context.Context) (*gorm.DB, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.db != nil {
		return g.db.WithContext(ctx), nil
	}
	if g.factory == nil {
		return nil, ErrNotReady
	}

	db, err := gorm.Open(g.factory(g.cfg, g.cfg.Name), g.gormConfig())
	if err != nil {
		logger.WithComponent("gateway").Errorf("database connection failed: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		if g.cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(g.cfg.MaxOpenConns)
		}
		if g.cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(g.cfg.MaxIdleConns)
		}
	}

	logger.WithComponent("gateway").Debugf("connected to %s database %s", g.cfg.Driver, g.cfg.Name)
	g.db = db
	return db.WithContext(ctx), nil
}

// EnsureDatabase creates the collector database when it does not exist yet.
// An already existing database is logged and not an error.
func (g *Gateway) EnsureDatabase(ctx context.Context) error {
	if g.factory == nil || g.cfg.Driver == config.DriverSQLite {
		return nil
	}

	db, err := gorm.Open(g.factory(g.cfg, ""), g.gormConfig())
	if err != nil {
		logger.WithComponent("gateway").Errorf("maintenance connection failed: %v", err)
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	return createDatabase(db.WithContext(ctx), g.cfg.Driver, g.cfg.Name)
}

func createDatabase(db *gorm.DB, driver, name string) error {
	log := logger.WithComponent("gateway")

	stmt := "CREATE DATABASE ?"
	if driver == config.DriverMySQL {
		stmt = "CREATE DATABASE IF NOT EXISTS ?"
	}

	err := db.Exec(stmt, clause.Table{Name: name}).Error
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateDatabase {
			log.Warnf("database %s already exists", name)
			return nil
		}
		log.Errorf("create database %s failed: %v", name, err)
		return fmt.Errorf("create database %s: %w", name, err)
	}

	log.Infof("database %s is created", name)
	return nil
}

// CreateSchema creates both tables if missing. Safe to call repeatedly.
func (g *Gateway) CreateSchema(ctx context.Context) error {
	db, err := g.conn(ctx)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&City{}, &WeatherReading{}); err != nil {
		logger.WithComponent("gateway").Errorf("create tables failed: %v", err)
		return fmt.Errorf("create schema: %w", err)
	}
	logger.WithComponent("gateway").Debug("tables created")
	return nil
}

// DropSchema drops both tables if present, dependents first.
func (g *Gateway) DropSchema(ctx context.Context) error {
	db, err := g.conn(ctx)
	if err != nil {
		return err
	}
	if err := db.Migrator().DropTable(&WeatherReading{}, &City{}); err != nil {
		logger.WithComponent("gateway").Errorf("drop tables failed: %v", err)
		return fmt.Errorf("drop schema: %w", err)
	}
	logger.WithComponent("gateway").Debug("all tables deleted")
	return nil
}

// HasTable reports whether the named collector table exists.
func (g *Gateway) HasTable(ctx context.Context, table string) (bool, error) {
	if err := checkTable(table); err != nil {
		return false, err
	}
	db, err := g.conn(ctx)
	if err != nil {
		return false, err
	}
	return db.Migrator().HasTable(table), nil
}

func checkTable(table string) error {
	switch table {
	case TableCities, TableWeather:
		return nil
	default:
		return &SchemaError{Table: table}
	}
}

// Truncate deletes every row of table in one transaction. Truncating cities
// removes the dependent readings as well.
func (g *Gateway) Truncate(ctx context.Context, table string) error {
	if err := checkTable(table); err != nil {
		logger.WithComponent("gateway").Errorf("truncate: %v", err)
		return err
	}
	db, err := g.conn(ctx)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		switch table {
		case TableWeather:
			return all.Delete(&WeatherReading{}).Error
		case TableCities:
			if err := all.Delete(&WeatherReading{}).Error; err != nil {
				return err
			}
			return all.Delete(&City{}).Error
		}
		return nil
	})
	if err != nil {
		logger.WithComponent("gateway").Errorf("truncate %s rolled back: %v", table, err)
		return err
	}
	logger.WithComponent("gateway").Infof("table %s truncated", table)
	return nil
}

// Begin opens the unit of work for one refresh call.
func (g *Gateway) Begin(ctx context.Context) (*Batch, error) {
	db, err := g.conn(ctx)
	if err != nil {
		return nil, err
	}
	tx := db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	return &Batch{tx: tx}, nil
}

// QueryReadings returns every reading joined with its city name.
func (g *Gateway) QueryReadings(ctx context.Context) ([]WeatherReading, error) {
	db, err := g.conn(ctx)
	if err != nil {
		return nil, err
	}
	var readings []WeatherReading
	err = db.Model(&WeatherReading{}).
		Select(TableWeather + ".*, " + TableCities + ".city_name AS city_name").
		Joins("JOIN " + TableCities + " ON " + TableCities + ".id = " + TableWeather + ".city_id").
		Order(TableWeather + ".id").
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	return readings, nil
}

// QueryCities returns every city row.
func (g *Gateway) QueryCities(ctx context.Context) ([]City, error) {
	db, err := g.conn(ctx)
	if err != nil {
		return nil, err
	}
	var cities []City
	if err := db.Order("id").Find(&cities).Error; err != nil {
		return nil, fmt.Errorf("query cities: %w", err)
	}
	return cities, nil
}

// Ping checks the connection, opening it if needed.
func (g *Gateway) Ping(ctx context.Context) error {
	db, err := g.conn(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	g.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
