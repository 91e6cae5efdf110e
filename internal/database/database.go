// Package database is the SQL storage adapter, built on gorm.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CatalogBot/internal/database/models"
	"CatalogBot/internal/storage"
	domain "CatalogBot/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connection holds the MySQL settings read from DB_USERNAME, DB_PASSWORD,
// DB_HOST, DB_PORT and DB_DATABASE.
type Connection struct {
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

func (c Connection) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

// Connect opens a MySQL connection and checks it with a ping.
func Connect(ctx context.Context, conn Connection, logger *zap.Logger) (*gorm.DB, error) {
	return Open(ctx, mysql.Open(conn.DSN()), logger)
}

func Open(ctx context.Context, dialector gorm.Dialector, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Connecting to database", zap.String("dialect", dialector.Name()))

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewLogger(logger.Named("gorm"), gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection error: %w", storage.Unavailable(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database connection error: %w", storage.Unavailable(err))
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping error: %w", storage.Unavailable(err))
	}

	logger.Info("Connected to database")
	return db, nil
}

type Storage struct {
	db     *gorm.DB
	ttl    time.Duration
	logger *zap.Logger
}

var (
	_ storage.CategoryStore = (*Storage)(nil)
	_ storage.ChainStore    = (*Storage)(nil)
)

func New(db *gorm.DB, ttl time.Duration, logger *zap.Logger) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Storage{db: db, ttl: ttl, logger: logger}
}

func (s *Storage) AutoMigrate() error {
	err := s.db.AutoMigrate(
		&models.Category{},
		&models.ChainSegment{},
	)
	if err != nil {
		return err
	}

	s.logger.Info("GORM migrations completed successfully")
	return nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func wrap(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return storage.Unavailable(err)
}

func (s *Storage) getRow(ctx context.Context, id string) (*models.Category, error) {
	var row models.Category
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, wrap(err)
	}
	return &row, nil
}

func (s *Storage) Get(ctx context.Context, id string) (*domain.Category, error) {
	if id == domain.RootID {
		return nil, storage.ErrNotFound
	}
	row, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return row.Domain()
}

func (s *Storage) Children(ctx context.Context, parentID string) ([]*domain.Category, error) {
	var rows []models.Category
	result := s.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("seq ASC").Order("id ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, wrap(result.Error)
	}

	children := make([]*domain.Category, 0, len(rows))
	for i := range rows {
		c, err := rows[i].Domain()
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, nil
}

func (s *Storage) Branch(ctx context.Context, rootID string) ([]*domain.Category, error) {
	return storage.CollectBranch(ctx, s, rootID)
}

func (s *Storage) Insert(ctx context.Context, c *domain.Category) (*domain.Category, error) {
	stored := c.Clone()
	stored.ID = uuid.NewString()
	if stored.ParentID == "" {
		stored.ParentID = domain.RootID
	}
	if stored.Subcategories == nil {
		stored.Subcategories = []string{}
	}

	row, err := models.NewCategory(stored)
	if err != nil {
		return nil, err
	}
	row.Seq = time.Now().UnixNano()
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, wrap(err)
	}
	return stored, nil
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Category{})
	if result.Error != nil {
		return wrap(result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Storage) UpdateField(ctx context.Context, id string, field storage.Field, value any) (*domain.Category, error) {
	row, err := s.getRow(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := row.Domain()
	if err != nil {
		return nil, err
	}
	if err := storage.ApplyField(c, field, value); err != nil {
		return nil, err
	}

	stored, err := column(c, field)
	if err != nil {
		return nil, err
	}
	// Only the changed column is written; a concurrent update of another
	// field survives.
	err = s.db.WithContext(ctx).
		Model(&models.Category{}).
		Where("id = ?", id).
		Update(string(field), stored).Error
	if err != nil {
		return nil, wrap(err)
	}
	return c, nil
}

// column returns the stored form of field as read from c. Field names double
// as column names.
func column(c *domain.Category, field storage.Field) (any, error) {
	switch field {
	case storage.FieldName:
		return c.Name, nil
	case storage.FieldParentID:
		return c.ParentID, nil
	case storage.FieldDescription:
		return models.EncodeDescription(c.Description)
	case storage.FieldSubcategories:
		return models.EncodeSubcategories(c.Subcategories)
	case storage.FieldExtra:
		return models.EncodeExtra(c.Extra)
	}
	return nil, fmt.Errorf("%w: unknown field %q", storage.ErrInvalidField, field)
}

func (s *Storage) Clear(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("session_key = ?", key).Delete(&models.ChainSegment{}).Error; err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Storage) Append(ctx context.Context, key string, segment domain.Segment) error {
	row := &models.ChainSegment{
		SessionKey: key,
		Segment:    segment.Record(),
		ExpiresAt:  time.Now().Add(s.ttl).UnixNano(),
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Storage) Segments(ctx context.Context, key string) ([]domain.Segment, error) {
	var rows []models.ChainSegment
	result := s.db.WithContext(ctx).
		Where("session_key = ? AND expires_at > ?", key, time.Now().UnixNano()).
		Order("id ASC").
		Find(&rows)
	if result.Error != nil {
		return nil, wrap(result.Error)
	}

	segments := make([]domain.Segment, 0, len(rows))
	for _, row := range rows {
		seg, err := row.Segment.Segment()
		if err != nil {
			return nil, fmt.Errorf("decode segment: %w", err)
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// PurgeExpired removes chain rows past their expiry and reports how many went.
func (s *Storage) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at <= ?", time.Now().UnixNano()).
		Delete(&models.ChainSegment{})
	if result.Error != nil {
		return 0, wrap(result.Error)
	}
	if result.RowsAffected > 0 {
		s.logger.Debug("purged expired chain segments", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// Stats reports row counts, mirroring the memory adapter's Stats.
func (s *Storage) Stats(ctx context.Context) map[string]interface{} {
	var categories, segments int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Count(&categories).Error; err != nil {
		s.logger.Warn("failed to count categories", zap.Error(err))
	}
	if err := s.db.WithContext(ctx).Model(&models.ChainSegment{}).Count(&segments).Error; err != nil {
		s.logger.Warn("failed to count chain segments", zap.Error(err))
	}
	return map[string]interface{}{
		"categories":     categories,
		"chain_segments": segments,
		"chain_ttl":      s.ttl.String(),
	}
}
