package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-discussion-engine/internal/domain"
)

// PostsStats returns how many posts a discussion has and the newest
// updated_at among them, or (0, nil) when it has none. Tally writes bump
// updated_at, so the pair changes whenever the ranking can; the ranking
// handler derives its ETag from it.
func PostsStats(ctx context.Context, db *gorm.DB, discussionID string) (int64, *time.Time, error) {
	posts := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Post{}).Where("discussion_id = ?", discussionID)
	}

	var count int64
	if err := posts().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// ORDER BY instead of MAX(): SQLite returns MAX over DATETIME as TEXT.
	var latest struct{ UpdatedAt time.Time }
	if err := posts().Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&latest).Error; err != nil {
		return 0, nil, err
	}
	return count, &latest.UpdatedAt, nil
}
