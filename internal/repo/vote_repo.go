package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-discussion-engine/internal/domain"
)

// GetVote returns the ledger row of voterID on postID, or ErrNotFound.
func GetVote(ctx context.Context, db *gorm.DB, postID, voterID string) (*domain.Vote, error) {
	var v domain.Vote
	err := db.WithContext(ctx).
		Where("post_id = ? AND voter_id = ?", postID, voterID).
		First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// InsertVote appends a ledger row. A second row for the same (post, voter)
// is rejected by the unique index and reported as ErrDuplicate.
func InsertVote(ctx context.Context, db *gorm.DB, postID, voterID string, t domain.VoteType) (*domain.Vote, error) {
	now := time.Now().UTC()
	v := &domain.Vote{
		ID:        uuid.NewString(),
		PostID:    postID,
		VoterID:   voterID,
		Type:      t,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(v).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return v, nil
}

// UpdateVoteType switches an existing ledger row to t.
func UpdateVoteType(ctx context.Context, db *gorm.DB, id string, t domain.VoteType) error {
	res := db.WithContext(ctx).
		Model(&domain.Vote{}).
		Where("id = ?", id).
		Update("type", t)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteVote removes a ledger row.
func DeleteVote(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Vote{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountVotes counts ledger rows of the given type on a post.
func CountVotes(ctx context.Context, db *gorm.DB, postID string, t domain.VoteType) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Vote{}).
		Where("post_id = ? AND type = ?", postID, t).
		Count(&n).Error
	return n, err
}

// RecomputeTally recounts the ledger rows of a post and writes both counters
// in one statement, then reads them back. Run it in the same transaction as
// the ledger write it follows.
func RecomputeTally(ctx context.Context, db *gorm.DB, postID string) (likes, dislikes int, err error) {
	db = db.WithContext(ctx)
	res := db.Exec(`UPDATE posts SET
		like_count = (SELECT COUNT(*) FROM votes WHERE votes.post_id = posts.id AND votes.type = ?),
		dislike_count = (SELECT COUNT(*) FROM votes WHERE votes.post_id = posts.id AND votes.type = ?),
		updated_at = ?
		WHERE id = ?`,
		domain.VoteLike, domain.VoteDislike, time.Now().UTC(), postID,
	)
	if res.Error != nil {
		return 0, 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, 0, ErrNotFound
	}

	var row struct {
		LikeCount    int
		DislikeCount int
	}
	if err := db.Model(&domain.Post{}).
		Select("like_count, dislike_count").
		Where("id = ?", postID).
		Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return row.LikeCount, row.DislikeCount, nil
}
