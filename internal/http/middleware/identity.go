package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the caller's identity. Authentication happens in
// front of this service; the gateway forwards the verified user id here.
const HeaderUserID = "X-User-ID"

// userIDKey is the Gin context key holding the caller's user id.
const userIDKey = "userID"

// maxUserIDLen matches the width of profiles.user_id.
const maxUserIDLen = 64

// Identity copies the X-User-ID header into the Gin context. Requests
// without the header pass through anonymously; handlers that need a user
// reject them. Oversized ids are refused with 400.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if uid == "" {
			c.Next()
			return
		}
		if len(uid) > maxUserIDLen {
			abortWithError(c, http.StatusBadRequest, "bad_request", "invalid "+HeaderUserID)
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

// UserID returns the caller's id set by Identity, or "" when anonymous.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
