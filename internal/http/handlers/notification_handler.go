// Notification and profile HTTP handlers.
//
//   - GET  /notifications              (inbox, paginated)
//   - POST /notifications/{id}/read    (acknowledge)
//   - GET  /profiles/me                (reward state)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-discussion-engine/internal/domain"
	"github.com/tbourn/go-discussion-engine/internal/sysutil"
)

// ListNotificationsResponse is a page of the caller's inbox.
type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
	Pagination    Pagination            `json:"pagination"`
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List my notifications
// @Description Newest first. unread=true restricts the page to unread items.
// @Tags        Notifications
// @Produce     json
// @Param       X-User-ID  header  string  true   "Recipient ID"  example(user123)
// @Param       unread     query   bool    false  "Only unread"
// @Param       page       query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListNotificationsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	page, pageSize := clampPagination(c)
	unreadOnly := sysutil.IsTruthy(c.Query("unread"))

	items, total, err := h.notes.ListPage(ctx, uid, unreadOnly, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed, "notifications unavailable")
		return
	}
	unread, err := h.notes.UnreadCount(ctx, uid)
	if err != nil {
		failService(c, err, ErrCodeListFailed, "notifications unavailable")
		return
	}
	ok(c, http.StatusOK, ListNotificationsResponse{
		Notifications: items,
		Unread:        unread,
		Pagination:    newPagination(page, pageSize, total),
	})
}

// MarkNotificationRead godoc
// @ID          markNotificationRead
// @Summary     Mark a notification as read
// @Tags        Notifications
// @Param       X-User-ID  header  string  true  "Recipient ID"  example(user123)
// @Param       id         path    string  true  "Notification ID (UUID)"  format(uuid)
// @Success     204  {string}  string "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     404  {object}  handlers.ErrorResponse  "Notification not found"
// @Router      /notifications/{id}/read [post]
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	id, okID := validUUID(c, "id", "notification")
	if !okID {
		return
	}
	if err := h.notes.MarkRead(c.Request.Context(), uid, id); err != nil {
		failService(c, err, ErrCodeUpdateFailed, "notification not updated")
		return
	}
	noContent(c)
}

// GetMyProfile godoc
// @ID          getMyProfile
// @Summary     My reward state
// @Description Premium status, banked months, karma and the most recent rewards.
// @Tags        Profiles
// @Produce     json
// @Param       X-User-ID  header  string  true  "User ID"  example(user123)
// @Success     200  {object}  services.ProfileView
// @Failure     401  {object}  handlers.ErrorResponse  "Missing identity"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /profiles/me [get]
func (h *Handlers) GetMyProfile(c *gin.Context) {
	uid, okUser := requireUser(c)
	if !okUser {
		return
	}
	v, err := h.profiles.Get(c.Request.Context(), uid)
	if err != nil {
		failService(c, err, ErrCodeInternal, "profile unavailable")
		return
	}
	ok(c, http.StatusOK, v)
}
