package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-discussion-engine/internal/domain"
)

// liveDiscussion restricts post queries to posts whose discussion is active
// and not soft-deleted.
const liveDiscussion = "discussion_id IN (SELECT id FROM discussions WHERE active = ? AND deleted_at IS NULL)"

// CreatePost inserts a post. Counters start at zero and are only ever
// written by RecomputeTally.
func CreatePost(ctx context.Context, db *gorm.DB, discussionID, authorID string, parentID *string, content string) (*domain.Post, error) {
	now := time.Now().UTC()
	p := &domain.Post{
		ID:           uuid.NewString(),
		DiscussionID: discussionID,
		ParentID:     parentID,
		AuthorID:     authorID,
		Content:      content,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetPost fetches a post by id regardless of its hidden flag.
func GetPost(ctx context.Context, db *gorm.DB, id string) (*domain.Post, error) {
	var p domain.Post
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetVisiblePost fetches a non-hidden post of a live discussion.
func GetVisiblePost(ctx context.Context, db *gorm.DB, id string) (*domain.Post, error) {
	var p domain.Post
	err := db.WithContext(ctx).
		Where("id = ? AND hidden = ?", id, false).
		Where(liveDiscussion, true).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPosts returns every post of a discussion, hidden ones included,
// ordered by creation time (oldest first).
func ListPosts(ctx context.Context, db *gorm.DB, discussionID string) ([]domain.Post, error) {
	var out []domain.Post
	err := db.WithContext(ctx).
		Where("discussion_id = ?", discussionID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// SetPostHidden updates the moderation flag of a post. It returns
// ErrNotFound when no post has the given id.
func SetPostHidden(ctx context.Context, db *gorm.DB, id string, hidden bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Post{}).
		Where("id = ?", id).
		Update("hidden", hidden)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LockPost writes to the post row without changing it, taking the row lock
// (Postgres) or the database write lock (SQLite) for the rest of the
// transaction. Hidden posts and posts of closed discussions are reported as
// ErrNotFound.
func LockPost(ctx context.Context, tx *gorm.DB, id string) error {
	res := tx.WithContext(ctx).Exec(
		"UPDATE posts SET like_count = like_count WHERE id = ? AND hidden = ? AND "+liveDiscussion,
		id, false, true,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
