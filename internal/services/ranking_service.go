// Package services – RankingService
//
// RankingService orders the posts of a discussion by like count. Rankings
// are computed from the live post counters on every call; nothing is cached
// or stored, so a ranking can never disagree with the vote ledger.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-discussion-engine/internal/repo"
)

// MaxTopN caps the size of a TopN request.
const MaxTopN = 100

// DefaultTopCutoff is the rank cutoff used when none is configured.
const DefaultTopCutoff = 5

// PostSummary is one entry of a ranking.
type PostSummary struct {
	Rank         int       `json:"rank"`
	ID           string    `json:"id"`
	DiscussionID string    `json:"discussion_id"`
	ParentID     *string   `json:"parent_id,omitempty"`
	AuthorID     string    `json:"author_id"`
	Likes        int       `json:"likes"`
	Dislikes     int       `json:"dislikes"`
	CreatedAt    time.Time `json:"created_at"`
}

// RankingService answers TopN and RankOf queries.
type RankingService struct {
	DB *gorm.DB

	// Cutoff is the size of the rewarded top list (default 5).
	Cutoff int
}

// NewRankingService returns a RankingService with the given cutoff.
func NewRankingService(db *gorm.DB, cutoff int) *RankingService {
	if cutoff < 1 {
		cutoff = DefaultTopCutoff
	}
	return &RankingService{DB: db, Cutoff: cutoff}
}

func (s *RankingService) cutoff() int {
	if s.Cutoff < 1 {
		return DefaultTopCutoff
	}
	return s.Cutoff
}

// TopN returns up to n non-hidden posts of a live discussion, most liked
// first; ties go to the earlier post. n <= 0 means the configured cutoff
// and n is capped at MaxTopN.
func (s *RankingService) TopN(ctx context.Context, discussionID string, n int) ([]PostSummary, error) {
	tr := otel.Tracer("services/RankingService")
	ctx, span := tr.Start(ctx, "TopN",
		trace.WithAttributes(
			attribute.String("discussion.id", discussionID),
			attribute.Int("n", n),
		),
	)
	defer span.End()

	if n <= 0 {
		n = s.cutoff()
	}
	if n > MaxTopN {
		n = MaxTopN
	}

	if _, err := repo.GetDiscussion(ctx, s.DB, discussionID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDiscussionNotFound
		}
		return nil, storageErr(err)
	}

	posts, err := repo.TopPosts(ctx, s.DB, discussionID, n)
	if err != nil {
		return nil, storageErr(err)
	}
	out := make([]PostSummary, len(posts))
	for i, p := range posts {
		out[i] = PostSummary{
			Rank:         i,
			ID:           p.ID,
			DiscussionID: p.DiscussionID,
			ParentID:     p.ParentID,
			AuthorID:     p.AuthorID,
			Likes:        p.LikeCount,
			Dislikes:     p.DislikeCount,
			CreatedAt:    p.CreatedAt,
		}
	}
	return out, nil
}

// RankOf returns the zero-based position of postID within the top cutoff
// of its discussion, or nil when the post is not ranked. A missing or
// closed discussion yields ErrDiscussionNotFound.
func (s *RankingService) RankOf(ctx context.Context, discussionID, postID string) (*int, error) {
	tr := otel.Tracer("services/RankingService")
	ctx, span := tr.Start(ctx, "RankOf",
		trace.WithAttributes(
			attribute.String("discussion.id", discussionID),
			attribute.String("post.id", postID),
		),
	)
	defer span.End()

	if _, err := repo.GetDiscussion(ctx, s.DB, discussionID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDiscussionNotFound
		}
		return nil, storageErr(err)
	}

	ids, err := repo.TopPostIDs(ctx, s.DB, discussionID, s.cutoff())
	if err != nil {
		return nil, storageErr(err)
	}
	for i, id := range ids {
		if id == postID {
			rank := i
			return &rank, nil
		}
	}
	return nil, nil
}

// Stats returns the post count and latest update time of a discussion,
// used to derive ETags for ranking responses.
func (s *RankingService) Stats(ctx context.Context, discussionID string) (int64, *time.Time, error) {
	return repo.PostsStats(ctx, s.DB, discussionID)
}
