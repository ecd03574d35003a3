package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-discussion-engine/internal/domain"
)

// rankOrder is the total order used for rankings: most likes first, then
// the earlier post, then id so equal timestamps stay deterministic.
const rankOrder = "like_count DESC, created_at ASC, id ASC"

// TopPosts returns up to limit non-hidden posts of a discussion, at any
// depth, in rank order. It reads the live counters; there is no separate
// ranking table.
func TopPosts(ctx context.Context, db *gorm.DB, discussionID string, limit int) ([]domain.Post, error) {
	var out []domain.Post
	err := db.WithContext(ctx).
		Where("discussion_id = ? AND hidden = ?", discussionID, false).
		Order(rankOrder).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TopPostIDs is TopPosts without the row payload.
func TopPostIDs(ctx context.Context, db *gorm.DB, discussionID string, limit int) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("discussion_id = ? AND hidden = ?", discussionID, false).
		Order(rankOrder).
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
