package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/voicebox/pkg/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// Open connects to the configured database and migrates the schema.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*gorm.DB, error) {
	o := options{maxOpenConns: 10, maxIdleConns: 5, connMaxLifetime: time.Hour}
	for _, opt := range opts {
		opt(&o)
	}

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
		// One writer at a time; also keeps ":memory:" databases on a single connection.
		o.maxOpenConns = 1
	case "mysql":
		dialector = mysql.New(mysql.Config{
			DSN:                       dsn,
			SkipInitializeWithVersion: true,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDB, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(&logWriter{log: logger.Get().Named("gorm")}, gormlogger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(o.maxOpenConns)
	sqlDB.SetMaxIdleConns(o.maxIdleConns)
	sqlDB.SetConnMaxLifetime(o.connMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the feedback and tickets tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&FeedbackModel{}, &TicketModel{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// logWriter routes gorm's printf-style output into the service logger.
type logWriter struct {
	log logger.Logger
}

func (w *logWriter) Printf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	ctx := context.Background()
	switch {
	case strings.Contains(msg, "SLOW SQL"):
		w.log.Warn(ctx, "slow query", logger.String("details", msg))
	case strings.Contains(msg, "[error]"):
		w.log.Error(ctx, "database error", logger.String("details", msg))
	default:
		w.log.Debug(ctx, "database query", logger.String("details", msg))
	}
}
