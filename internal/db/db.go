package db

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"github.com/zeuslawyer/remix-simulator/internal/config"
	"github.com/zeuslawyer/remix-simulator/internal/db/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const memoryDatabase = ":memory:"

func MakeDB(config *config.Config) (db *gorm.DB, err error) {
	dialector, err := dialectorFor(config.Persistence.Database)
	if err != nil {
		return nil, err
	}

	db, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(slogWriter{}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return db, fmt.Errorf("failed to open database: %w", err)
	}
	if config.HTTP.Tracing.Enabled {
		if err = db.Use(otelgorm.NewPlugin()); err != nil {
			return db, fmt.Errorf("failed to trace database: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return db, fmt.Errorf("failed to open database: %w", err)
	}
	if isMemory(config.Persistence.Database) {
		// Each connection to an in-memory database sees its own empty database.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxIdleTime(0)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxIdleConns(runtime.GOMAXPROCS(0))
		const connsPerCPU = 10
		sqlDB.SetMaxOpenConns(runtime.GOMAXPROCS(0) * connsPerCPU)
		const maxIdleTime = 10 * time.Minute
		sqlDB.SetConnMaxIdleTime(maxIdleTime)
	}

	err = db.AutoMigrate(
		&models.Account{},
		&models.Block{},
		&models.Transaction{})
	if err != nil {
		return db, fmt.Errorf("failed to migrate database: %w", err)
	}

	return
}

func isMemory(database config.Database) bool {
	return database.Driver == config.DatabaseDriverSQLite && database.Database == memoryDatabase
}

func dialectorFor(database config.Database) (gorm.Dialector, error) {
	switch database.Driver {
	case config.DatabaseDriverSQLite:
		if database.Database == memoryDatabase {
			return sqlite.Open(memoryDatabase), nil
		}
		dsn := database.Database + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
		if database.ExtraParameters != "" {
			dsn += "&" + database.ExtraParameters
		}
		return sqlite.Open(dsn), nil
	case config.DatabaseDriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			database.Username,
			database.Password,
			database.Host,
			database.Port,
			database.Database,
		)
		if database.ExtraParameters != "" {
			dsn += "&" + database.ExtraParameters
		}
		return mysql.Open(dsn), nil
	case config.DatabaseDriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
			database.Host,
			database.Port,
			database.Username,
			database.Password,
			database.Database,
		)
		if database.ExtraParameters != "" {
			dsn += " " + database.ExtraParameters
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrDatabaseDriverInvalid, database.Driver)
	}
}

type slogWriter struct{}

func (slogWriter) Printf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...), "component", "gorm")
}
