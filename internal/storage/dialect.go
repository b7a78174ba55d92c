package storage

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bassista/weather_collector/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DialectorFactory opens a dialector for the named database. An empty name
// selects the server's maintenance database.
type DialectorFactory func(cfg config.DatabaseConfig, dbName string) gorm.Dialector

var (
	dialectorsMu sync.RWMutex
	dialectors   = map[string]DialectorFactory{
		config.DriverPostgres: func(cfg config.DatabaseConfig, dbName string) gorm.Dialector {
			return postgres.Open(postgresDSN(cfg, dbName))
		},
		config.DriverMySQL: func(cfg config.DatabaseConfig, dbName string) gorm.Dialector {
			return mysql.Open(mysqlDSN(cfg, dbName))
		},
		config.DriverSQLite: func(cfg config.DatabaseConfig, dbName string) gorm.Dialector {
			return sqlite.Open(sqliteDSN(dbName))
		},
	}
)

// RegisterDialector adds or replaces the factory for a driver name.
func RegisterDialector(driver string, factory DialectorFactory) {
	dialectorsMu.Lock()
	defer dialectorsMu.Unlock()
	dialectors[driver] = factory
}

func lookupDialector(driver string) (DialectorFactory, error) {
	dialectorsMu.RLock()
	defer dialectorsMu.RUnlock()
	factory, ok := dialectors[driver]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for driver %q", driver)
	}
	return factory, nil
}

func postgresDSN(cfg config.DatabaseConfig, dbName string) string {
	if dbName == "" {
		dbName = cfg.MaintenanceDB
	}
	parts := []string{
		"host=" + cfg.Host,
		fmt.Sprintf("port=%d", cfg.Port),
		"dbname=" + dbName,
	}
	if cfg.User != "" {
		parts = append(parts, "user="+cfg.User)
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+cfg.Password)
	}
	if cfg.SSLMode != "" {
		parts = append(parts, "sslmode="+cfg.SSLMode)
	}
	return strings.Join(parts, " ")
}

func mysqlDSN(cfg config.DatabaseConfig, dbName string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, dbName)
}

// sqliteDSN treats the database name as a file path.
func sqliteDSN(dbName string) string {
	if dbName == "" {
		dbName = config.DefaultDatabaseName
	}
	if dbName != ":memory:" && !strings.HasSuffix(dbName, ".db") {
		dbName += ".db"
	}
	return dbName + "?_foreign_keys=1"
}
