package db

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/fatflowers/deliveryhub/internal/models"
	cfgpkg "github.com/fatflowers/deliveryhub/pkg/config"
	gormzap "github.com/fatflowers/deliveryhub/pkg/gormlog"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open returns the dialector for the configured driver.
func Open(cfg cfgpkg.DBConfig) (gorm.Dialector, error) {
	if cfg.DSN == "" {
		return nil, gorm.ErrInvalidDB
	}
	switch cfg.Driver {
	case "", DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	case DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	dialector, err := Open(cfg.Database)
	if err != nil {
		l.Errorf("invalid database config: %v", err)
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormzap.New(l, cfg.Database.SlowThreshold)})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	l.Infow("connected to database", "driver", dialector.Name())
	return db, nil
}

var Module = fx.Options(
	fx.Provide(NewDB),
	fx.Invoke(AutoMigrate),
	fx.Invoke(registerDBClose),
)

// AutoMigrate runs GORM migrations on startup
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	l.Infow("automigrate completed")
	return nil
}

// Models lists every table owned by the service.
func Models() []any {
	return []any{
		&models.Customer{},
		&models.Delivery{},
		&models.DeliveryEventLog{},
		&models.Recurrency{},
		&models.RecurrencyLog{},
		&models.RecurrencyDailySnapshot{},
	}
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing database connection pool")
			return sqlDB.Close()
		},
	})
}
