// MIT License
//
// Copyright (c) 2026 Eboreg
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package database

import (
	"context"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int
}

// gormLogger bridges GORM's logger interface onto pterm. Unique-constraint
// violations are silenced: the upsert and GeoIP get-or-create paths hit
// them by design and handle them at the repository layer.
type gormLogger struct {
	logger        *pterm.Logger
	slowThreshold time.Duration
	level         logger.LogLevel
}

func newGormLogger(ptermLogger *pterm.Logger) *gormLogger {
	return &gormLogger{
		logger:        ptermLogger,
		slowThreshold: 500 * time.Millisecond,
		level:         logger.Warn,
	}
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	l.level = level
	return l
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.logger.Info(msg, l.logger.Args("data", data))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.logger.Warn(msg, l.logger.Args("data", data))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.logger.Error(msg, l.logger.Args("data", data))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	if err != nil && !strings.Contains(err.Error(), "UNIQUE constraint failed") &&
		!strings.Contains(err.Error(), "record not found") {
		sql, rows := fc()
		l.logger.Warn("Database query failed",
			l.logger.Args("error", err, "sql", sql, "rows", rows))
		return
	}

	if elapsed >= l.slowThreshold {
		sql, rows := fc()
		l.logger.Debug("Slow query",
			l.logger.Args("duration_ms", elapsed.Milliseconds(), "rows", rows, "sql", sql))
	}
}

// Connect opens the SQLite database, applies pragmas suited for a
// read-mostly analytics workload, and runs migrations.
func Connect(cfg Config, ptermLogger *pterm.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: newGormLogger(ptermLogger),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 4
	}
	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 2
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Hour)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			ptermLogger.Warn("Failed to apply pragma", ptermLogger.Args("pragma", pragma, "error", err))
		}
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	ptermLogger.Info("Database ready", ptermLogger.Args("path", cfg.Path))
	return db, nil
}
