package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"phcportal/internal/model"
	"phcportal/internal/policy"
	"phcportal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testSecret = []byte("test-secret")

type stubPrincipals struct {
	actors map[uuid.UUID]policy.Actor
	calls  int
}

func (s *stubPrincipals) Principal(ctx context.Context, id uuid.UUID) (policy.Actor, error) {
	s.calls++
	a, ok := s.actors[id]
	if !ok {
		return policy.Actor{}, &service.Error{Kind: service.ErrUnauthorized, Message: "Account no longer exists"}
	}
	return a, nil
}

func signed(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  exp.Unix(),
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func newRouter(auth *Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		actor, _ := CurrentActor(c)
		c.String(http.StatusOK, actor.Role)
	})
	r.GET("/staff", auth.RequireView(policy.ResourceStaff), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func do(r http.Handler, path, bearer string) int {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAuth(t *testing.T) {
	id := uuid.New()
	src := &stubPrincipals{actors: map[uuid.UUID]policy.Actor{
		id: {ID: id, Role: model.RoleAdmin, Status: model.UserStatusApproved},
	}}
	r := newRouter(NewAuthenticator(testSecret, src, policy.Default(), false))
	valid := signed(t, id.String(), model.RoleAdmin, time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		bearer string
		want   int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"expired token", signed(t, id.String(), model.RoleAdmin, time.Now().Add(-time.Minute)), http.StatusUnauthorized},
		{"unknown account", signed(t, uuid.NewString(), model.RoleAdmin, time.Now().Add(time.Hour)), http.StatusUnauthorized},
		{"valid token", valid, http.StatusOK},
	}
	for _, tt := range tests {
		if got := do(r, "/me", tt.bearer); got != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.name, got, tt.want)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: valid})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != model.RoleAdmin {
		t.Fatalf("cookie auth = %d %q", w.Code, w.Body.String())
	}
}

func TestRequireViewUsesStoredRole(t *testing.T) {
	id := uuid.New()
	src := &stubPrincipals{actors: map[uuid.UUID]policy.Actor{
		id: {ID: id, Role: model.RoleBlogger, Status: model.UserStatusApproved},
	}}
	auth := NewAuthenticator(testSecret, src, policy.Default(), false)
	r := newRouter(auth)

	// The token still claims admin but the account was demoted.
	tok := signed(t, id.String(), model.RoleAdmin, time.Now().Add(time.Hour))
	if got := do(r, "/staff", tok); got != http.StatusForbidden {
		t.Fatalf("demoted account status = %d, want 403", got)
	}

	src.actors[id] = policy.Actor{ID: id, Role: model.RoleAdmin, Status: model.UserStatusPending}
	auth.Forget(id)
	if got := do(r, "/staff", tok); got != http.StatusForbidden {
		t.Fatalf("pending admin status = %d, want 403", got)
	}

	src.actors[id] = policy.Actor{ID: id, Role: model.RoleAdmin, Status: model.UserStatusApproved}
	auth.Forget(id)
	if got := do(r, "/staff", tok); got != http.StatusOK {
		t.Fatalf("approved admin status = %d, want 200", got)
	}
}

func TestPrincipalCache(t *testing.T) {
	id := uuid.New()
	src := &stubPrincipals{actors: map[uuid.UUID]policy.Actor{
		id: {ID: id, Role: model.RoleManager, Status: model.UserStatusApproved},
	}}
	auth := NewAuthenticator(testSecret, src, policy.Default(), false)
	now := time.Now()
	auth.now = func() time.Time { return now }
	r := newRouter(auth)
	tok := signed(t, id.String(), model.RoleManager, now.Add(time.Hour))

	do(r, "/me", tok)
	do(r, "/me", tok)
	if src.calls != 1 {
		t.Fatalf("principal loads = %d, want 1", src.calls)
	}

	now = now.Add(auth.cacheTTL + time.Second)
	do(r, "/me", tok)
	if src.calls != 2 {
		t.Fatalf("principal loads after expiry = %d, want 2", src.calls)
	}

	auth.Forget(id)
	do(r, "/me", tok)
	if src.calls != 3 {
		t.Fatalf("principal loads after Forget = %d, want 3", src.calls)
	}
}

func TestTokenCookies(t *testing.T) {
	auth := NewAuthenticator(testSecret, &stubPrincipals{}, policy.Default(), true)
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	auth.SetTokenCookies(c, "access", "refresh")
	cookies := w.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("cookies = %d, want 2", len(cookies))
	}
	for _, ck := range cookies {
		if !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteNoneMode {
			t.Fatalf("cookie %s = %+v", ck.Name, ck)
		}
	}
}
