// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package syncstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when no record or run matches.
var ErrNotFound = errors.New("sync state not found")

const (
	appDir   = "toolhive-marketplace"
	fileName = "sync.db"
)

// DefaultPath returns the database location under the XDG state home.
func DefaultPath() string {
	return filepath.Join(xdg.StateHome, appDir, fileName)
}

// Options configures Open.
type Options struct {
	// Logger receives gorm's slow query and error logs; discarded when nil
	Logger *slog.Logger
	// LogLevel is the gorm log level; Warn when zero
	LogLevel gormlogger.LogLevel
	// Now overrides the clock
	Now func() time.Time
}

// Store reads and writes sync state.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string, opts Options) (*Store, error) {
	if opts.LogLevel == 0 {
		opts.LogLevel = gormlogger.Warn
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", path)

	var gl gormlogger.Interface = gormlogger.Discard
	if opts.Logger != nil {
		gl = gormlogger.New(slogWriter{opts.Logger}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gl, NowFunc: opts.Now})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(&Record{}, &Run{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db, now: opts.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// List returns every record of target ordered by plugin name.
func (s *Store) List(ctx context.Context, target string) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).
		Where("target = ?", target).
		Order("plugin").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("list sync records: %w", err)
	}
	return records, nil
}

// Get returns the record of plugin in target.
func (s *Store) Get(ctx context.Context, target, plugin string) (*Record, error) {
	var r Record
	err := s.db.WithContext(ctx).
		Where("target = ? AND plugin = ?", target, plugin).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sync record %s: %w", plugin, err)
	}
	return &r, nil
}

// Upsert inserts r or updates the existing record of the same target and plugin.
func (s *Store) Upsert(ctx context.Context, r *Record) error {
	if r.Target == "" || r.Plugin == "" {
		return errors.New("sync record requires a target and a plugin")
	}
	if r.SyncedAt.IsZero() {
		r.SyncedAt = s.now()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target"}, {Name: "plugin"}},
		DoUpdates: clause.AssignmentColumns([]string{"record_id", "hash", "synced_at", "run_id", "updated_at"}),
	}).Create(r).Error
	if err != nil {
		return fmt.Errorf("save sync record %s: %w", r.Plugin, err)
	}
	return nil
}

// Delete removes the record of plugin in target. Deleting a missing record is
// not an error.
func (s *Store) Delete(ctx context.Context, target, plugin string) error {
	err := s.db.WithContext(ctx).
		Where("target = ? AND plugin = ?", target, plugin).
		Delete(&Record{}).Error
	if err != nil {
		return fmt.Errorf("delete sync record %s: %w", plugin, err)
	}
	return nil
}

// BeginRun records the start of a sync run.
func (s *Store) BeginRun(ctx context.Context, target string, dryRun bool) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Target:    target,
		StartedAt: s.now(),
		DryRun:    dryRun,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("begin sync run: %w", err)
	}
	return run, nil
}

// FinishRun stamps run as finished, recording runErr when it is not nil.
func (s *Store) FinishRun(ctx context.Context, run *Run, runErr error) error {
	now := s.now()
	run.FinishedAt = &now
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("finish sync run: %w", err)
	}
	return nil
}

// LastRun returns the most recently started run of target.
func (s *Store) LastRun(ctx context.Context, target string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).
		Where("target = ?", target).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get last sync run: %w", err)
	}
	return &run, nil
}

// slogWriter satisfies gorm's logger.Writer.
type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.logger.Debug(fmt.Sprintf(format, args...), "component", "gorm")
}
