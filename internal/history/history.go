package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mediaconv/internal/dispatch"
	"mediaconv/internal/model"
	"mediaconv/internal/runstore"
)

// Session is one closed dispatch session.
type Session struct {
	ID         string       `gorm:"primaryKey;size:36" json:"id"`
	StartedAt  time.Time    `gorm:"index" json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Format     string       `gorm:"size:16" json:"format"`
	PoolSize   int          `json:"pool_size"`
	Total      int          `json:"total"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Cancelled  int          `json:"cancelled"`
	ElapsedMS  int64        `json:"elapsed_ms"`
	OutputSize int64        `json:"output_size_bytes"`
	Jobs       []SessionJob `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"jobs,omitempty"`
}

// SessionJob is one recorded job result, kept in completion order.
type SessionJob struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	SessionID  string `gorm:"index;size:36" json:"-"`
	Position   int    `json:"position"`
	Slot       int    `json:"slot"`
	Filename   string `json:"filename"`
	InputPath  string `json:"input_path"`
	OutputPath string `json:"output_path,omitempty"`
	Succeeded  bool   `json:"succeeded"`
	ElapsedMS  int64  `json:"elapsed_ms"`
	OutputSize int64  `json:"output_size_bytes,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s Session) Elapsed() time.Duration {
	return time.Duration(s.ElapsedMS) * time.Millisecond
}

type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) the SQLite history database at path. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("history path is required")
	}
	if p != ":memory:" {
		if err := runstore.Mkdir(filepath.Dir(p)); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(p), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", p, err)
	}
	if p == ":memory:" {
		// every pooled connection would get its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("open history %s: %w", p, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(&Session{}, &SessionJob{}); err != nil {
		return nil, fmt.Errorf("migrate history %s: %w", p, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record stores a closed session with its results.
func (s *Store) Record(ctx context.Context, sum dispatch.Summary, format model.TargetFormat) error {
	row := Session{
		ID:         sum.SessionID,
		StartedAt:  sum.StartedAt.UTC(),
		FinishedAt: sum.FinishedAt.UTC(),
		Format:     string(format),
		PoolSize:   sum.PoolSize,
		Total:      sum.Total,
		Succeeded:  len(sum.Succeeded),
		Failed:     len(sum.Failed),
		Cancelled:  len(sum.Cancelled),
		ElapsedMS:  sum.Elapsed.Milliseconds(),
		OutputSize: sum.OutputBytes(),
		Jobs:       make([]SessionJob, 0, len(sum.Results)),
	}
	for i, r := range sum.Results {
		row.Jobs = append(row.Jobs, SessionJob{
			Position:   i + 1,
			Slot:       r.Slot,
			Filename:   r.Filename,
			InputPath:  r.InputPath,
			OutputPath: r.OutputPath,
			Succeeded:  r.Succeeded,
			ElapsedMS:  r.Elapsed.Milliseconds(),
			OutputSize: r.OutputSize,
			Error:      r.Err,
		})
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("record session %s: %w", sum.SessionID, err)
	}
	return nil
}

// Recent returns the newest sessions first, with their jobs.
func (s *Store) Recent(ctx context.Context, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []Session
	err := s.db.WithContext(ctx).
		Preload("Jobs", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("started_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (Session, error) {
	var out Session
	err := s.db.WithContext(ctx).
		Preload("Jobs", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Session{}, fmt.Errorf("session %s not found", id)
		}
		return Session{}, fmt.Errorf("load session %s: %w", id, err)
	}
	return out, nil
}
