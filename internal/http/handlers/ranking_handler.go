// Ranking HTTP handlers.
//
//   - GET /discussions/{id}/top?n=                 (TopN, weak ETag)
//   - GET /discussions/{id}/posts/{postId}/rank    (RankOf)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-discussion-engine/internal/services"
	"github.com/tbourn/go-discussion-engine/internal/utils"
)

// TopResponse is a ranking snapshot.
type TopResponse struct {
	DiscussionID string                 `json:"discussion_id"`
	Posts        []services.PostSummary `json:"posts"`
}

// RankResponse is the position of one post. Rank is null when the post is
// outside the rewarded top list.
type RankResponse struct {
	DiscussionID string `json:"discussion_id"`
	PostID       string `json:"post_id"`
	Rank         *int   `json:"rank"`
}

// TopPosts godoc
// @ID          topPosts
// @Summary     Top posts of a discussion
// @Description Most-liked posts first; ties go to the older post. n defaults to the reward cutoff and is capped at 100.
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags        Ranking
// @Produce     json
// @Param       id             path    string  true   "Discussion ID (UUID)"  format(uuid)
// @Param       n              query   int     false  "Number of posts"       minimum(1) maximum(100)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Success     200  {object}  handlers.TopResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Discussion not found"
// @Router      /discussions/{id}/top [get]
func (h *Handlers) TopPosts(c *gin.Context) {
	ctx := c.Request.Context()
	discussionID, okID := validUUID(c, "id", "discussion")
	if !okID {
		return
	}
	n := utils.AtoiDefault(c.Query("n"), 0)

	// ETag pre-check (best effort). Every vote bumps the post's updated_at.
	if count, maxTS, err := h.ranking.Stats(ctx, discussionID); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"top:%s:%d:%d:%d"`, discussionID, n, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	posts, err := h.ranking.TopN(ctx, discussionID, n)
	if err != nil {
		failService(c, err, ErrCodeListFailed, "ranking unavailable")
		return
	}
	ok(c, http.StatusOK, TopResponse{DiscussionID: discussionID, Posts: posts})
}

// PostRank godoc
// @ID          postRank
// @Summary     Rank of a post
// @Tags        Ranking
// @Produce     json
// @Param       id      path  string  true  "Discussion ID (UUID)"  format(uuid)
// @Param       postId  path  string  true  "Post ID (UUID)"        format(uuid)
// @Success     200  {object}  handlers.RankResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Discussion not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /discussions/{id}/posts/{postId}/rank [get]
func (h *Handlers) PostRank(c *gin.Context) {
	discussionID, okID := validUUID(c, "id", "discussion")
	if !okID {
		return
	}
	postID, okID := validUUID(c, "postId", "post")
	if !okID {
		return
	}
	rank, err := h.ranking.RankOf(c.Request.Context(), discussionID, postID)
	if err != nil {
		failService(c, err, ErrCodeInternal, "ranking unavailable")
		return
	}
	ok(c, http.StatusOK, RankResponse{DiscussionID: discussionID, PostID: postID, Rank: rank})
}
