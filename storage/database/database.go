package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/MehulDev0228/aurin-platform-sub001/config"
	pkgdb "github.com/MehulDev0228/aurin-platform-sub001/pkg/database"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

func Init() error {
	dbOnce.Do(func() {
		cfg := config.Cfg
		gormCfg := &gorm.Config{
			Logger:                                   newLogger(),
			DisableForeignKeyConstraintWhenMigrating: true,
			PrepareStmt:                              true,
			SkipDefaultTransaction:                   true,
			// 唯一索引冲突统一翻译为 gorm.ErrDuplicatedKey
			TranslateError: true,
		}

		var gormDB *gorm.DB
		gormDB, dbErr = gorm.Open(postgres.Open(cfg.GetDSN()), gormCfg)
		if dbErr != nil {
			logger.Logger.Error("Failed to open database", zap.String("dsn", "please check database connection"), zap.Error(dbErr))
			return
		}

		// 只读副本承担扫描和轮询读，写和事务仍走主库
		if cfg.PostgreSQLReplicaDSN != "" {
			if err := gormDB.Use(dbresolver.Register(dbresolver.Config{
				Replicas: []gorm.Dialector{postgres.Open(cfg.PostgreSQLReplicaDSN)},
				Policy:   dbresolver.RandomPolicy{},
			})); err != nil {
				dbErr = fmt.Errorf("failed to register read replica: %w", err)
				return
			}
			logger.Logger.Info("Database read replica registered")
		}

		if cfg.OTelEnabled {
			if err := pkgdb.WithDefaultOTELPlugin(gormDB, cfg.ServiceName); err != nil {
				logger.Logger.Warn("Failed to install gorm tracing plugin", zap.Error(err))
			}
		}

		sqlDB, err := gormDB.DB()
		if err != nil {
			dbErr = err
			logger.Logger.Error("Failed to get sql.DB from gorm", zap.Error(err))
			return
		}

		configureConnectionPool(sqlDB)

		if err := sqlDB.Ping(); err != nil {
			dbErr = err
			logger.Logger.Error("Failed to ping database", zap.Error(err))
			return
		}

		db = gormDB
		if err := Migrate(); err != nil {
			dbErr = fmt.Errorf("failed to run database migration: %w", err)
			return
		}
		logger.Logger.Info("Database initialized successfully")
	})

	return dbErr
}

func DB() *gorm.DB {
	return db
}

func Close(ctx context.Context) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- sqlDB.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func configureConnectionPool(sqlDB *sql.DB) {
	cfg := config.Cfg

	sqlDB.SetMaxIdleConns(cfg.PostgreSQLMaxIdle)
	sqlDB.SetMaxOpenConns(cfg.PostgreSQLMaxOpen)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	sqlDB.SetConnMaxLifetime(2 * time.Hour)
}

func newLogger() gormlogger.Interface {
	var level gormlogger.LogLevel
	switch config.Cfg.LoggerLevel {
	case "DEBUG":
		level = gormlogger.Info
	case "ERROR":
		level = gormlogger.Error
	default:
		level = gormlogger.Warn
	}

	return gormlogger.New(zapWriter{}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

type zapWriter struct{}

func (zapWriter) Printf(format string, args ...interface{}) {
	logger.Named("gorm").Sugar().Infof(format, args...)
}
