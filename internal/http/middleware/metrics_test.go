package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelsAndUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/discussions/:id/top", func(c *gin.Context) { c.String(http.StatusOK, `{"posts":[]}`) })
	r.PUT("/posts/:id/hidden", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	const route = "/discussions/:id/top"
	baseTop := testutil.ToFloat64(httpReqs.WithLabelValues("GET", route, "200"))
	baseHidden := testutil.ToFloat64(httpReqs.WithLabelValues("PUT", "/posts/:id/hidden", "204"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404"))

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/discussions/d1/top", nil),
		httptest.NewRequest(http.MethodGet, "/discussions/d2/top", nil),
		httptest.NewRequest(http.MethodPut, "/posts/p1/hidden", nil),
		httptest.NewRequest(http.MethodGet, "/wp-admin.php", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	// Two different discussions share one route label.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", route, "200")); got != baseTop+2 {
		t.Fatalf("route counter = %v; want %v", got, baseTop+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("PUT", "/posts/:id/hidden", "204")); got != baseHidden+1 {
		t.Fatalf("hidden counter = %v; want %v", got, baseHidden+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404")); got != base404+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, base404+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}

func TestMetrics_CountsReplays(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lookup := func(_ context.Context, _, _, key string, _ time.Time) (bool, error) { return key == "seen", nil }
	r := gin.New()
	r.Use(Metrics(), Identity(), IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/posts/:id/votes", func(c *gin.Context) { c.Status(http.StatusOK) })

	const route = "/posts/:id/votes"
	base := testutil.ToFloat64(httpReplays.WithLabelValues(route))

	for _, key := range []string{"seen", "fresh", "seen"} {
		req := httptest.NewRequest(http.MethodPost, "/posts/p1/votes", nil)
		req.Header.Set(HeaderUserID, "u1")
		req.Header.Set(HeaderIdempotencyKey, key)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	if got := testutil.ToFloat64(httpReplays.WithLabelValues(route)); got != base+2 {
		t.Fatalf("replays = %v; want %v", got, base+2)
	}
}
