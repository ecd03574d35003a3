package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-discussion-engine/internal/domain"
)

// GetProfile returns the stored profile of userID. A user without a row
// gets a zero-value, non-premium profile that is not persisted.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.Profile{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LockProfile creates the profile row if missing, takes its write lock for
// the rest of the transaction and returns the current state. Use it before
// deciding on a transition so the decision cannot go stale.
func LockProfile(ctx context.Context, tx *gorm.DB, userID string) (*domain.Profile, error) {
	tx = tx.WithContext(ctx)
	now := time.Now().UTC()
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.Profile{UserID: userID, CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&domain.Profile{}).
		Where("user_id = ?", userID).
		UpdateColumn("updated_at", now).Error; err != nil {
		return nil, err
	}
	var p domain.Profile
	if err := tx.Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ApplyRewardTransition mutates a profile with a single statement per
// transition. Counters are incremented in SQL, never read-modify-written.
// Premium expiry is measured from now.
func ApplyRewardTransition(ctx context.Context, db *gorm.DB, userID string, tr domain.RewardTransition, now time.Time) error {
	now = now.UTC()
	q := db.WithContext(ctx).Model(&domain.Profile{}).Where("user_id = ?", userID)

	var res *gorm.DB
	switch tr.Kind {
	case domain.TransitionActivatePremium:
		months := tr.Amount
		if months < 1 {
			months = 1
		}
		res = q.Updates(map[string]any{
			"premium":            true,
			"premium_expires_at": now.AddDate(0, months, 0),
			"badge":              tr.Badge,
			"updated_at":         now,
		})
	case domain.TransitionBankOneMonth:
		res = q.UpdateColumns(map[string]any{
			"banked_months": gorm.Expr("banked_months + ?", 1),
			"updated_at":    now,
		})
	case domain.TransitionGrantKarma:
		if tr.Amount < 0 {
			return fmt.Errorf("karma grant must be non-negative, got %d", tr.Amount)
		}
		res = q.UpdateColumns(map[string]any{
			"karma":      gorm.Expr("karma + ?", tr.Amount),
			"updated_at": now,
		})
	default:
		return fmt.Errorf("unknown reward transition %q", tr.Kind)
	}
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateRewardGrant appends a row to the reward audit ledger.
func CreateRewardGrant(ctx context.Context, db *gorm.DB, userID, postID string, tr domain.RewardTransition, at time.Time) (*domain.RewardGrant, error) {
	g := &domain.RewardGrant{
		ID:         uuid.NewString(),
		UserID:     userID,
		PostID:     postID,
		Transition: string(tr.Kind),
		Amount:     tr.Amount,
		CreatedAt:  at.UTC(),
	}
	if err := db.WithContext(ctx).Create(g).Error; err != nil {
		return nil, err
	}
	return g, nil
}

// ListRewardGrants returns the reward history of userID, newest first.
func ListRewardGrants(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.RewardGrant, error) {
	var out []domain.RewardGrant
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
