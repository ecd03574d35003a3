// Vote HTTP handler.
//
//   - POST /posts/{id}/votes   (cast, switch or retract a vote)
//
// Votes toggle: sending the same type twice retracts the vote. Clients that
// retry should send an Idempotency-Key; a repeated key replays the stored
// tally with `Idempotency-Replayed: true` instead of toggling again.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-discussion-engine/internal/domain"
	"github.com/tbourn/go-discussion-engine/internal/http/middleware"
)

// CastVoteRequest is the JSON payload of a vote.
type CastVoteRequest struct {
	// Type is "like" or "dislike".
	Type string `json:"type" binding:"required" example:"like"`
}

// VoteResponse is the post's tally after the vote.
type VoteResponse struct {
	PostID   string `json:"post_id"`
	Likes    int    `json:"likes"`
	Dislikes int    `json:"dislikes"`
	// Outcome is created, changed or retracted; empty on a replay.
	Outcome  string `json:"outcome,omitempty"`
	Replayed bool   `json:"replayed,omitempty"`
}

// CastVote godoc
// @ID          castVote
// @Summary     Vote on a post
// @Description Casts, switches or retracts the caller's vote and returns the post's new tally.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Votes
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  true  "Voter ID"                              example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"     example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Post ID (UUID)"                       format(uuid)
// @Param       body             body    handlers.CastVoteRequest  true  "Vote payload"
//
// @Success     200  {object}  handlers.VoteResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     404  {object}  handlers.ErrorResponse  "Post no longer exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Vote not counted"
// @Router      /posts/{id}/votes [post]
func (h *Handlers) CastVote(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	postID := c.Param("id")
	if _, err := uuid.Parse(postID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "post id must be a UUID")
		return
	}

	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type must be like or dislike")
		return
	}
	vt := domain.VoteType(strings.ToLower(strings.TrimSpace(req.Type)))

	// Replay path.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.idem != nil {
		if rec, err := h.idem.Lookup(ctx, uid, postID, idemKey, time.Now().UTC()); err == nil && rec != nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, VoteResponse{
				PostID:   postID,
				Likes:    rec.Likes,
				Dislikes: rec.Dislikes,
				Replayed: true,
			})
			return
		}
	}

	res, err := h.votes.CastVote(ctx, postID, uid, vt)
	if err != nil {
		failService(c, err, ErrCodeVoteFailed, "vote not counted, try again")
		return
	}

	// Store path, best effort: a concurrent twin may have stored it first.
	if idemKey != "" && h.idem != nil {
		if err := h.idem.Save(ctx, uid, postID, idemKey, res.Tally, http.StatusOK); err != nil {
			middleware.LoggerFrom(c).Debug().Err(err).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusOK, VoteResponse{
		PostID:   res.PostID,
		Likes:    res.Tally.Likes,
		Dislikes: res.Tally.Dislikes,
		Outcome:  string(res.Outcome),
	})
}
