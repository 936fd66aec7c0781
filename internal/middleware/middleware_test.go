package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/response"
	"github.com/stemsi/examguard-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeCode(t *testing.T, body []byte) response.ErrCode {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode body %q: %v", body, err)
	}
	return resp.Code
}

func withClaims(claims *service.Claims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextKeyClaims, claims)
		}
		c.Next()
	}
}

func claimsFor(role model.Role, userID int) *service.Claims {
	c := &service.Claims{TokenType: role, UserID: userID}
	for _, p := range role.Permissions() {
		c.Permissions = append(c.Permissions, string(p))
	}
	return c
}

func TestRequirePermission(t *testing.T) {
	student := claimsFor(model.RoleStudent, 7)
	admin := claimsFor(model.RoleAdmin, 1)

	tests := []struct {
		name     string
		claims   *service.Claims
		perms    []model.Permission
		wantCode int
		wantErr  response.ErrCode
	}{
		{"no claims", nil, []model.Permission{model.PermissionExamsRead}, http.StatusUnauthorized, response.ErrTokenRequired},
		{"student on admin route", student, []model.Permission{model.PermissionExamsWrite}, http.StatusForbidden, response.ErrPermissionDenied},
		{"admin on admin route", admin, []model.Permission{model.PermissionExamsWrite}, http.StatusOK, ""},
		{"any of", student, []model.Permission{model.PermissionResultsReadAll, model.PermissionResultsReadOwn}, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", withClaims(tt.claims), RequireAnyPermission(tt.perms...), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantErr != "" {
				if got := decodeCode(t, w.Body.Bytes()); got != tt.wantErr {
					t.Errorf("code = %s, want %s", got, tt.wantErr)
				}
			}
		})
	}
}

type stubAuthenticator struct {
	claims *service.Claims
	err    error
	got    string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (*service.Claims, error) {
	s.got = token
	return s.claims, s.err
}

func TestRequireAuth(t *testing.T) {
	claims := claimsFor(model.RoleStudent, 3)

	tests := []struct {
		name      string
		setup     func(r *http.Request)
		auth      *stubAuthenticator
		wantCode  int
		wantToken string
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, &stubAuthenticator{claims: claims}, http.StatusOK, "abc"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "from-cookie"}) }, &stubAuthenticator{claims: claims}, http.StatusOK, "from-cookie"},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, &stubAuthenticator{claims: claims}, http.StatusUnauthorized, ""},
		{"missing", func(*http.Request) {}, &stubAuthenticator{claims: claims}, http.StatusUnauthorized, ""},
		{"revoked", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, &stubAuthenticator{err: service.ErrTokenRevoked}, http.StatusUnauthorized, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/me", RequireAuth(tt.auth), func(c *gin.Context) {
				p, ok := GetPrincipal(c)
				if !ok || p.UserID != 3 {
					t.Errorf("principal = %+v, %v", p, ok)
				}
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.auth.got != tt.wantToken {
				t.Errorf("authenticated token = %q, want %q", tt.auth.got, tt.wantToken)
			}
		})
	}
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Allow("1.2.3.4"); !ok {
			t.Fatalf("request %d rejected inside burst", i+1)
		}
	}
	ok, wait := rl.Allow("1.2.3.4")
	if ok {
		t.Fatal("third request allowed")
	}
	if wait <= 0 || wait > 30*time.Second {
		t.Errorf("wait = %v, want up to 30s", wait)
	}

	if ok, _ := rl.Allow("5.6.7.8"); !ok {
		t.Error("buckets are shared between clients")
	}

	now = now.Add(30 * time.Second)
	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Error("bucket did not refill")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter(1)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/x", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/x", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if got := decodeCode(t, second.Body.Bytes()); got != response.ErrRateLimitExceeded {
		t.Errorf("code = %s", got)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10)
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("idle")

	now = now.Add(visitorIdleTTL + time.Second)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Errorf("visitors = %d after cleanup, want 0", len(rl.visitors))
	}
}

func brotliRouter(body string) *gin.Engine {
	r := gin.New()
	r.Use(BrotliWithConfig(BrotliConfig{Quality: 4, MinLength: 64}))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, body) })
	return r
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	body := strings.Repeat("question paper ", 50)
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
	w := httptest.NewRecorder()
	brotliRouter(body).ServeHTTP(w, req)

	if got := w.Header().Get("Content-Encoding"); got != "br" {
		t.Fatalf("Content-Encoding = %q, want br", got)
	}
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(plain) != body {
		t.Error("decompressed body differs")
	}
}

func TestBrotliPassThrough(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header map[string]string
	}{
		{"short body", "ok", map[string]string{"Accept-Encoding": "br"}},
		{"not accepted", strings.Repeat("a", 500), map[string]string{"Accept-Encoding": "gzip"}},
		{"event stream", strings.Repeat("a", 500), map[string]string{"Accept-Encoding": "br", "Accept": "text/event-stream"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			brotliRouter(tt.body).ServeHTTP(w, req)

			if got := w.Header().Get("Content-Encoding"); got != "" {
				t.Errorf("Content-Encoding = %q, want none", got)
			}
			if w.Body.String() != tt.body {
				t.Errorf("body = %q", w.Body.String())
			}
		})
	}
}
