package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var _ Store = (*SQLiteStore)(nil)

// sessionModel is the analysis_sessions row
type sessionModel struct {
	ID        string    `gorm:"primaryKey;type:text"`
	FileName  string    `gorm:"uniqueIndex;not null"`
	Messages  string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"index;not null"`
}

func (sessionModel) TableName() string { return "analysis_sessions" }

// SQLiteStore implements Store on a SQLite file through GORM
type SQLiteStore struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a SQLiteStore
type Option func(*SQLiteStore)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.now = now
	}
}

// Open opens or creates the database at path and migrates the schema
func Open(path string, log *zap.Logger, opts ...Option) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	s := &SQLiteStore{
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)

	gormLogger := logger.New(
		zapWriter{log.Named("gorm")},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: s.now,
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&sessionModel{}); err != nil {
		return nil, fmt.Errorf("migrating sqlite database: %w", err)
	}
	s.db = db

	log.Info("conversation store opened", zap.String("path", path))
	return s, nil
}

func (s *SQLiteStore) Save(ctx context.Context, fileName string, messages []Message) error {
	if messages == nil {
		messages = []Message{}
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		var existing sessionModel
		err := tx.Where("file_name = ?", fileName).First(&existing).Error
		switch {
		case err == nil:
			err = tx.Model(&existing).Updates(map[string]any{
				"messages":   string(payload),
				"updated_at": now,
			}).Error
			if err != nil {
				return fmt.Errorf("updating session: %w", err)
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			model := sessionModel{
				ID:        uuid.NewString(),
				FileName:  fileName,
				Messages:  string(payload),
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Create(&model).Error; err != nil {
				return fmt.Errorf("creating session: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("looking up session: %w", err)
		}
	})
}

func (s *SQLiteStore) Load(ctx context.Context, fileName string) (*Session, error) {
	var model sessionModel
	err := s.db.WithContext(ctx).Where("file_name = ?", fileName).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var messages []Message
	if err := json.Unmarshal([]byte(model.Messages), &messages); err != nil {
		return nil, fmt.Errorf("decoding messages of %s: %w", fileName, err)
	}
	return &Session{
		ID:        model.ID,
		FileName:  model.FileName,
		Messages:  messages,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]SessionInfo, error) {
	var models []sessionModel
	err := s.db.WithContext(ctx).
		Select("id", "file_name", "created_at", "updated_at").
		Order("updated_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	out := make([]SessionInfo, len(models))
	for i, m := range models {
		out[i] = SessionInfo{ID: m.ID, FileName: m.FileName, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
	}
	return out, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&sessionModel{}).Error
	if err != nil {
		return fmt.Errorf("clearing sessions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("updated_at < ?", before).Delete(&sessionModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close releases the underlying connection pool
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// zapWriter adapts zap to GORM's logger.Writer
type zapWriter struct {
	logger *zap.Logger
}

func (w zapWriter) Printf(format string, args ...any) {
	w.logger.Warn(fmt.Sprintf(format, args...))
}
