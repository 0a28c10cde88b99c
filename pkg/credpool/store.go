package credpool

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store is the persistence contract for credentials. The relational
// backend serializes row updates, so no locking beyond single atomic
// updates is required.
type Store interface {
	Create(ctx context.Context, cred *Credential) error
	Get(ctx context.Context, id string) (*Credential, error)
	Update(ctx context.Context, cred *Credential) error
	Delete(ctx context.Context, id string) error
	ListByPlatform(ctx context.Context, platform string) ([]Credential, error)

	// MarkSelected applies selection side effects in one atomic update:
	// reclaim to healthy, clear cooldown, bump use count, stamp last use.
	MarkSelected(ctx context.Context, id string, now time.Time) error
	// IncrementSuccess bumps the success counter.
	IncrementSuccess(ctx context.Context, id string) error
	// IncrementError bumps the error counter and returns the new total.
	IncrementError(ctx context.Context, id string) (int64, error)
	// SetCooldown moves the credential into cooldown until the given time.
	SetCooldown(ctx context.Context, id string, until time.Time) error
	// SetStatus force-sets the status (expired, disabled, healthy).
	SetStatus(ctx context.Context, id string, status Status) error

	Stats(ctx context.Context, platform string) (*PoolStats, error)
}

// gormStore is the postgres-backed Store.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore opens the relational credential store and runs migration.
func NewGormStore(dsn string) (Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	if err := db.AutoMigrate(&Credential{}); err != nil {
		return nil, fmt.Errorf("failed to migrate credential store: %w", err)
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) Create(ctx context.Context, cred *Credential) error {
	return s.db.WithContext(ctx).Create(cred).Error
}

func (s *gormStore) Get(ctx context.Context, id string) (*Credential, error) {
	var cred Credential
	if err := s.db.WithContext(ctx).First(&cred, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *gormStore) Update(ctx context.Context, cred *Credential) error {
	return s.db.WithContext(ctx).Save(cred).Error
}

func (s *gormStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&Credential{}, "id = ?", id).Error
}

func (s *gormStore) ListByPlatform(ctx context.Context, platform string) ([]Credential, error) {
	var creds []Credential
	err := s.db.WithContext(ctx).
		Where("platform = ?", platform).
		Order("last_used_at ASC NULLS FIRST").
		Find(&creds).Error
	return creds, err
}

func (s *gormStore) MarkSelected(ctx context.Context, id string, now time.Time) error {
	return s.db.WithContext(ctx).Model(&Credential{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         StatusHealthy,
			"cooldown_until": nil,
			"use_count":      gorm.Expr("use_count + 1"),
			"last_used_at":   now,
		}).Error
}

func (s *gormStore) IncrementSuccess(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&Credential{}).
		Where("id = ?", id).
		Update("success_count", gorm.Expr("success_count + 1")).Error
}

func (s *gormStore) IncrementError(ctx context.Context, id string) (int64, error) {
	err := s.db.WithContext(ctx).Model(&Credential{}).
		Where("id = ?", id).
		Update("error_count", gorm.Expr("error_count + 1")).Error
	if err != nil {
		return 0, err
	}
	var count int64
	err = s.db.WithContext(ctx).Model(&Credential{}).
		Where("id = ?", id).
		Pluck("error_count", &count).Error
	return count, err
}

func (s *gormStore) SetCooldown(ctx context.Context, id string, until time.Time) error {
	return s.db.WithContext(ctx).Model(&Credential{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         StatusCooldown,
			"cooldown_until": until,
		}).Error
}

func (s *gormStore) SetStatus(ctx context.Context, id string, status Status) error {
	return s.db.WithContext(ctx).Model(&Credential{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (s *gormStore) Stats(ctx context.Context, platform string) (*PoolStats, error) {
	stats := &PoolStats{
		Platform: platform,
		ByStatus: make(map[Status]int64),
	}

	type row struct {
		Status Status
		N      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&Credential{}).
		Select("status, count(*) as n").
		Where("platform = ?", platform).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.N
		stats.Total += r.N
	}

	type sums struct {
		UseCount     int64
		SuccessCount int64
		ErrorCount   int64
	}
	var s2 sums
	err = s.db.WithContext(ctx).Model(&Credential{}).
		Select("coalesce(sum(use_count),0) as use_count, coalesce(sum(success_count),0) as success_count, coalesce(sum(error_count),0) as error_count").
		Where("platform = ?", platform).
		Scan(&s2).Error
	if err != nil {
		return nil, err
	}
	stats.UseCount = s2.UseCount
	stats.SuccessCount = s2.SuccessCount
	stats.ErrorCount = s2.ErrorCount
	return stats, nil
}
