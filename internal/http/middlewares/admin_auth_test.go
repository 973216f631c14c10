package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/whatsflow/internal/http/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type testClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

func signToken(t *testing.T, secret, scope string, expiry time.Time) string {
	t.Helper()
	claims := testClaims{
		Scope:            scope,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expiry)},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newAdminRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middlewares.RequireAdminToken(secret))
	r.GET("/admin/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRequireAdminToken_NoConfiguredSecretDisablesRoute(t *testing.T) {
	r := newAdminRouter("")

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusServiceUnavailable, w.Body.String())
	}
}

func TestRequireAdminToken_MissingHeaderUnauthorized(t *testing.T) {
	r := newAdminRouter("s3cr3t")

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusUnauthorized, w.Body.String())
	}
}

func TestRequireAdminToken_ValidTokenAllowsRequest(t *testing.T) {
	r := newAdminRouter("s3cr3t")
	tok := signToken(t, "s3cr3t", "admin", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestRequireAdminToken_WrongSigningSecretRejected(t *testing.T) {
	r := newAdminRouter("s3cr3t")
	tok := signToken(t, "other-secret", "admin", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusUnauthorized, w.Body.String())
	}
}

func TestRequireAdminToken_ExpiredTokenRejected(t *testing.T) {
	r := newAdminRouter("s3cr3t")
	tok := signToken(t, "s3cr3t", "admin", time.Now().Add(-time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusUnauthorized, w.Body.String())
	}
}

func TestRequireAdminToken_WrongScopeForbidden(t *testing.T) {
	r := newAdminRouter("s3cr3t")
	tok := signToken(t, "s3cr3t", "viewer", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusForbidden, w.Body.String())
	}
}
