package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-discussion-engine/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateDiscussion inserts a new active discussion.
func CreateDiscussion(ctx context.Context, db *gorm.DB, title string, premium bool, roundEndsAt *time.Time) (*domain.Discussion, error) {
	now := time.Now().UTC()
	d := &domain.Discussion{
		ID:          uuid.NewString(),
		Title:       title,
		Active:      true,
		Premium:     premium,
		RoundEndsAt: roundEndsAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetDiscussion fetches an active, non-deleted discussion by id.
// Inactive or soft-deleted discussions are reported as ErrNotFound.
func GetDiscussion(ctx context.Context, db *gorm.DB, id string) (*domain.Discussion, error) {
	var d domain.Discussion
	err := db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeactivateDiscussion closes a discussion for voting and posting.
func DeactivateDiscussion(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Discussion{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
