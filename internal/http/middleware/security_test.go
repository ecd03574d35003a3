package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securedRouter(opt SecurityOptions, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(pre...)
	r.Use(SecurityHeaders(opt))
	r.GET("/discussions/:id/top", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSecurityHeaders_Options(t *testing.T) {
	cases := []struct {
		name   string
		opt    SecurityOptions
		tls    bool
		proto  string
		want   map[string]string
		absent []string
	}{
		{
			name:   "baseline only",
			want:   map[string]string{"X-Content-Type-Options": "nosniff", "X-Frame-Options": "DENY", "Referrer-Policy": "no-referrer"},
			absent: []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security", "Access-Control-Expose-Headers"},
		},
		{
			name: "policy and no-store",
			opt:  SecurityOptions{EnablePolicy: true, NoStore: true},
			want: map[string]string{
				"X-Permitted-Cross-Domain-Policies": "none",
				"Cache-Control":                     "no-store",
				"Pragma":                            "no-cache",
				"Expires":                           "0",
			},
		},
		{
			name:   "hsts skipped on plain http",
			opt:    SecurityOptions{EnableHSTS: true},
			absent: []string{"Strict-Transport-Security"},
		},
		{
			name: "hsts default max-age over tls",
			opt:  SecurityOptions{EnableHSTS: true},
			tls:  true,
			want: map[string]string{"Strict-Transport-Security": "max-age=15552000; includeSubDomains; preload"},
		},
		{
			name:  "hsts custom max-age behind proxy",
			opt:   SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour},
			proto: "HTTPS",
			want:  map[string]string{"Strict-Transport-Security": "max-age=3600; includeSubDomains; preload"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/discussions/d1/top", nil)
			if tc.tls {
				req.TLS = &tls.ConnectionState{}
			}
			if tc.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tc.proto)
			}
			w := httptest.NewRecorder()
			securedRouter(tc.opt).ServeHTTP(w, req)

			for k, v := range tc.want {
				if got := w.Header().Get(k); got != v {
					t.Errorf("%s = %q; want %q", k, got, v)
				}
			}
			for _, k := range tc.absent {
				if got := w.Header().Get(k); got != "" {
					t.Errorf("%s = %q; want unset", k, got)
				}
			}
			if !strings.Contains(w.Header().Get("Permissions-Policy"), "camera=()") && tc.opt.EnablePolicy {
				t.Errorf("Permissions-Policy = %q", w.Header().Get("Permissions-Policy"))
			}
		})
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	setHeaders := func(kv ...string) gin.HandlerFunc {
		return func(c *gin.Context) {
			for i := 0; i+1 < len(kv); i += 2 {
				c.Header(kv[i], kv[i+1])
			}
			c.Next()
		}
	}
	cases := []struct {
		name string
		pre  gin.HandlerFunc
		want string
	}{
		{"set when empty", setHeaders(requestIDHeader, "rid-1"), requestIDHeader},
		{"appended", setHeaders(requestIDHeader, "rid-2", "Access-Control-Expose-Headers", "ETag"), "ETag, " + requestIDHeader},
		{"not duplicated", setHeaders(requestIDHeader, "rid-3", "Access-Control-Expose-Headers", "ETag, X-Request-ID"), "ETag, X-Request-ID"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			securedRouter(SecurityOptions{}, tc.pre).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/discussions/d1/top", nil))
			if got := w.Header().Get("Access-Control-Expose-Headers"); got != tc.want {
				t.Fatalf("expose = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestNoStore_GroupOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/discussions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	private := r.Group("/", NoStore())
	private.GET("/notifications", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/notifications", nil))
	if w.Header().Get("Cache-Control") != "no-store" || w.Header().Get("Pragma") != "no-cache" {
		t.Fatalf("private headers = %#v", w.Header())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/discussions/d1", nil))
	if w.Header().Get("Cache-Control") != "" {
		t.Fatalf("public route cached as private: %#v", w.Header())
	}
}
