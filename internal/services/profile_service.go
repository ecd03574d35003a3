package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-discussion-engine/internal/domain"
	"github.com/tbourn/go-discussion-engine/internal/repo"
)

// ProfileView is the read model of a user's reward state.
type ProfileView struct {
	Profile     domain.Profile       `json:"profile"`
	State       string               `json:"state"`
	UnreadCount int64                `json:"unread_notifications"`
	Grants      []domain.RewardGrant `json:"recent_rewards"`
}

// ProfileService reads profiles. It never mutates them; the reward
// dispatcher is the only writer in this module.
type ProfileService struct {
	DB *gorm.DB
}

// Get returns the reward state of userID with the most recent grants.
func (s *ProfileService) Get(ctx context.Context, userID string) (*ProfileView, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUnauthorized
	}
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	grants, err := repo.ListRewardGrants(ctx, s.DB, userID, 20)
	if err != nil {
		return nil, storageErr(err)
	}
	unread, err := repo.CountNotifications(ctx, s.DB, userID, true)
	if err != nil {
		return nil, storageErr(err)
	}
	return &ProfileView{
		Profile:     *p,
		State:       StateOf(p, nowUTC()).String(),
		UnreadCount: unread,
		Grants:      grants,
	}, nil
}
