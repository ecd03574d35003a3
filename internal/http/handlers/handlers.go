// Package handlers exposes the engagement engine over HTTP.
//
// Handlers are transport-thin: they validate input, call application
// services through the narrow interfaces below, and translate results and
// service errors into the JSON envelope defined in response.go.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-discussion-engine/internal/domain"
	"github.com/tbourn/go-discussion-engine/internal/http/middleware"
	"github.com/tbourn/go-discussion-engine/internal/services"
	"github.com/tbourn/go-discussion-engine/internal/utils"
)

//
// Service contracts (context-aware)
//

// VoteService casts votes.
type VoteService interface {
	CastVote(ctx context.Context, postID, voterID string, t domain.VoteType) (*services.VoteResult, error)
}

// ThreadService manages discussions, posts and moderation.
type ThreadService interface {
	CreateDiscussion(ctx context.Context, title string, premium bool, roundEndsAt *time.Time) (*domain.Discussion, error)
	GetDiscussion(ctx context.Context, id string) (*domain.Discussion, error)
	CreatePost(ctx context.Context, discussionID, authorID string, parentID *string, content string) (*domain.Post, error)
	SetHidden(ctx context.Context, postID string, hidden bool) error
	CloseDiscussion(ctx context.Context, id string) error
	Thread(ctx context.Context, discussionID, viewerID string) (*services.Thread, error)
}

// RankingService answers ranking queries. Stats feeds the ETag of TopN.
type RankingService interface {
	TopN(ctx context.Context, discussionID string, n int) ([]services.PostSummary, error)
	RankOf(ctx context.Context, discussionID, postID string) (*int, error)
	Stats(ctx context.Context, discussionID string) (int64, *time.Time, error)
}

// NotificationService reads and acknowledges a user's inbox.
type NotificationService interface {
	ListPage(ctx context.Context, recipientID string, unreadOnly bool, page, pageSize int) ([]domain.Notification, int64, error)
	UnreadCount(ctx context.Context, recipientID string) (int64, error)
	MarkRead(ctx context.Context, recipientID, id string) error
}

// ProfileService reads a user's reward state.
type ProfileService interface {
	Get(ctx context.Context, userID string) (*services.ProfileView, error)
}

// IdempotencyStore records vote results per (user, post, key) so a retried
// request replays the stored tally instead of toggling the vote again.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, scopeID, key string, now time.Time) (*domain.Idempotency, error)
	Save(ctx context.Context, userID, scopeID, key string, tally services.Tally, status int) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the engine.
type Handlers struct {
	votes    VoteService
	threads  ThreadService
	ranking  RankingService
	notes    NotificationService
	profiles ProfileService
	idem     IdempotencyStore
}

// New constructs Handlers bound to the given services.
func New(votes VoteService, threads ThreadService, ranking RankingService, notes NotificationService, profiles ProfileService) *Handlers {
	return &Handlers{votes: votes, threads: threads, ranking: ranking, notes: notes, profiles: profiles}
}

// WithIdempotency enables Idempotency-Key replay on the vote endpoint.
func (h *Handlers) WithIdempotency(store IdempotencyStore) *Handlers {
	h.idem = store
	return h
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses page and page_size, applying defaults and caps.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		maxPage         = 1_000_000
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.Clamp(utils.AtoiDefault(c.Query("page"), defaultPage), 1, maxPage)
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// requireUser returns the caller's id or aborts with 401.
func requireUser(c *gin.Context) (string, bool) {
	uid := middleware.UserID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing "+middleware.HeaderUserID)
		return "", false
	}
	return uid, true
}

// failService maps a service error onto the error envelope. Errors that
// are not service sentinels become 500 with the given code and message, so
// storage details never reach the client.
func failService(c *gin.Context, err error, code, msg string) {
	switch {
	case errors.Is(err, services.ErrPostNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "this post no longer exists")
	case errors.Is(err, services.ErrDiscussionNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "discussion not found")
	case errors.Is(err, services.ErrNotificationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "notification not found")
	case errors.Is(err, services.ErrUnauthorized):
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing "+middleware.HeaderUserID)
	case errors.Is(err, services.ErrPremiumRequired):
		fail(c, http.StatusForbidden, ErrCodePremiumRequired, "this discussion is for premium members")
	case errors.Is(err, services.ErrInvalidVoteType):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type must be like or dislike")
	case errors.Is(err, services.ErrInvalidParent):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "parent post not found in this discussion")
	case errors.Is(err, services.ErrEmptyContent):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
	case errors.Is(err, services.ErrContentTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content too long")
	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, code, msg)
	}
}
