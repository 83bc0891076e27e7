package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// Database wraps DB connectivity.
// Keep transaction helpers here to support outbox + state consistency.
type Database struct {
	DB *gorm.DB
}

// Connect opens postgres, or sqlite when dsn starts with "sqlite:". GORM
// logging stays silent unless debug is set.
func Connect(dsn string, debug bool) (*Database, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}

	conf := &gorm.Config{TranslateError: true}
	if debug {
		conf.Logger = logger.Default.LogMode(logger.Info)
	} else {
		conf.Logger = logger.Default.LogMode(logger.Silent)
	}

	var (
		db  *gorm.DB
		err error
	)
	if path, ok := strings.CutPrefix(dsn, sqlitePrefix); ok {
		slog.Info("open sqlite database", "event", "db_open", "module", "internal/platform/db", "layer", "platform", "path", path)
		db, err = gorm.Open(sqlite.Open(path), conf)
	} else {
		slog.Info("open postgres database", "event", "db_open", "module", "internal/platform/db", "layer", "platform")
		db, err = gorm.Open(postgres.Open(dsn), conf)
	}
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sql db handle: %w", err)
	}
	if db.Dialector.Name() == "sqlite" {
		// sqlite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
