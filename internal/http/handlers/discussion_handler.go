// Discussion HTTP handlers.
//
//   - POST /discussions                 (open a discussion)
//   - GET  /discussions/{id}            (discussion metadata)
//   - POST /discussions/{id}/posts      (post or reply)
//   - GET  /discussions/{id}/thread     (post forest with rendered HTML)
//   - PUT  /posts/{id}/hidden           (moderation toggle)
package handlers

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-discussion-engine/internal/http/middleware"
)

// CreateDiscussionRequest is the JSON payload for opening a discussion.
type CreateDiscussionRequest struct {
	Title   string `json:"title" binding:"required,min=1,max=255" example:"Best Go testing tricks"`
	Premium bool   `json:"premium" example:"false"`
	// RoundEndsAt optionally closes voting rewards at the given instant.
	RoundEndsAt *time.Time `json:"round_ends_at,omitempty" example:"2026-12-31T23:59:59Z"`
}

// CreatePostRequest is the JSON payload for a post or reply.
type CreatePostRequest struct {
	Content string `json:"content" binding:"required,min=1" example:"Table-driven tests plus t.Run go a long way."`
	// ParentID makes the post a reply to another post of the discussion.
	ParentID *string `json:"parent_id,omitempty" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// SetHiddenRequest is the JSON payload of the moderation toggle.
type SetHiddenRequest struct {
	Hidden *bool `json:"hidden" binding:"required" example:"true"`
}

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes line endings, collapses blank-line runs and
// trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// validUUID aborts with 400 unless the path parameter is a UUID.
func validUUID(c *gin.Context, param, what string) (string, bool) {
	v := c.Param(param)
	if _, err := uuid.Parse(v); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" id must be a UUID")
		return "", false
	}
	return v, true
}

// CreateDiscussion godoc
// @ID          createDiscussion
// @Summary     Open a discussion
// @Tags        Discussions
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Caller ID"  example(user123)
// @Param       body       body    handlers.CreateDiscussionRequest  true  "Discussion payload"
// @Success     201  {object}  domain.Discussion
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /discussions [post]
func (h *Handlers) CreateDiscussion(c *gin.Context) {
	if _, okUser := requireUser(c); !okUser {
		return
	}
	var req CreateDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1-255 chars)")
		return
	}
	d, err := h.threads.CreateDiscussion(c.Request.Context(), req.Title, req.Premium, req.RoundEndsAt)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed, "discussion not created")
		return
	}
	ok(c, http.StatusCreated, d)
}

// GetDiscussion godoc
// @ID          getDiscussion
// @Summary     Get a discussion
// @Tags        Discussions
// @Produce     json
// @Param       id   path  string  true  "Discussion ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.Discussion
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Discussion not found"
// @Router      /discussions/{id} [get]
func (h *Handlers) GetDiscussion(c *gin.Context) {
	id, okID := validUUID(c, "id", "discussion")
	if !okID {
		return
	}
	d, err := h.threads.GetDiscussion(c.Request.Context(), id)
	if err != nil {
		failService(c, err, ErrCodeInternal, "discussion unavailable")
		return
	}
	ok(c, http.StatusOK, d)
}

// CreatePost godoc
// @ID          createPost
// @Summary     Post in a discussion
// @Description Adds a post, or a reply when parent_id is set. The parent's author is notified.
// @Tags        Discussions
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "Author ID"  example(user123)
// @Param       id         path    string  true  "Discussion ID (UUID)"  format(uuid)
// @Param       body       body    handlers.CreatePostRequest  true  "Post payload"
// @Success     201  {object}  domain.Post
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     404  {object}  handlers.ErrorResponse  "Discussion not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /discussions/{id}/posts [post]
func (h *Handlers) CreatePost(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	discussionID, okID := validUUID(c, "id", "discussion")
	if !okID {
		return
	}
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	content := sanitizeContent(req.Content)
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	p, err := h.threads.CreatePost(c.Request.Context(), discussionID, uid, req.ParentID, content)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed, "post not created, try again")
		return
	}
	ok(c, http.StatusCreated, p)
}

// GetThread godoc
// @ID          getThread
// @Summary     Read a discussion thread
// @Description Returns the post forest. Hidden posts stay as blank placeholders so replies keep their place.
// @Tags        Discussions
// @Produce     json
// @Param       X-User-ID  header  string  false "Viewer ID (needed for premium discussions)"  example(user123)
// @Param       id         path    string  true  "Discussion ID (UUID)"  format(uuid)
// @Success     200  {object}  services.Thread
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Premium required"
// @Failure     404  {object}  handlers.ErrorResponse  "Discussion not found"
// @Router      /discussions/{id}/thread [get]
func (h *Handlers) GetThread(c *gin.Context) {
	discussionID, okID := validUUID(c, "id", "discussion")
	if !okID {
		return
	}
	th, err := h.threads.Thread(c.Request.Context(), discussionID, middleware.UserID(c))
	if err != nil {
		failService(c, err, ErrCodeListFailed, "thread unavailable")
		return
	}
	ok(c, http.StatusOK, th)
}

// SetPostHidden godoc
// @ID          setPostHidden
// @Summary     Hide or unhide a post
// @Tags        Moderation
// @Accept      json
// @Param       X-User-ID  header  string  true  "Moderator ID"  example(mod1)
// @Param       id         path    string  true  "Post ID (UUID)"  format(uuid)
// @Param       body       body    handlers.SetHiddenRequest  true  "Hidden flag"
// @Success     204  {string} string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     404  {object}  handlers.ErrorResponse  "Post not found"
// @Router      /posts/{id}/hidden [put]
func (h *Handlers) SetPostHidden(c *gin.Context) {
	if _, okUser := requireUser(c); !okUser {
		return
	}
	postID, okID := validUUID(c, "id", "post")
	if !okID {
		return
	}
	var req SetHiddenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Hidden == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "hidden must be true or false")
		return
	}
	if err := h.threads.SetHidden(c.Request.Context(), postID, *req.Hidden); err != nil {
		failService(c, err, ErrCodeUpdateFailed, "post not updated")
		return
	}
	noContent(c)
}

// CloseDiscussion godoc
// @Summary     Close a discussion
// @Description Deactivates a discussion. Afterwards every read, post and vote on it returns 404.
// @Tags        Moderation
// @Param       X-User-ID  header  string  true  "Moderator ID"  example(mod1)
// @Param       id         path    string  true  "Discussion ID (UUID)"  format(uuid)
// @Success     204  {string} string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     404  {object}  handlers.ErrorResponse  "Discussion not found"
// @Router      /discussions/{id}/close [post]
func (h *Handlers) CloseDiscussion(c *gin.Context) {
	if _, okUser := requireUser(c); !okUser {
		return
	}
	id, okID := validUUID(c, "id", "discussion")
	if !okID {
		return
	}
	if err := h.threads.CloseDiscussion(c.Request.Context(), id); err != nil {
		failService(c, err, ErrCodeUpdateFailed, "discussion not closed")
		return
	}
	noContent(c)
}
