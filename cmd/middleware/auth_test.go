package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubVerifier struct {
	claims Claims
	err    error
}

func (s stubVerifier) Verify(context.Context, string) (Claims, error) {
	return s.claims, s.err
}

func newRouter(v TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireAuth(v), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(UserIDKey), "email": c.GetString(UserEmailKey)})
	})
	return r
}

func TestRequireAuth(t *testing.T) {
	good := stubVerifier{claims: Claims{Subject: "u1", Email: "u1@example.com", Azp: FrontendClient}}

	tests := []struct {
		name     string
		header   string
		verifier TokenVerifier
		status   int
	}{
		{"missing header", "", good, http.StatusUnauthorized},
		{"not bearer", "Basic abc", good, http.StatusUnauthorized},
		{"verify error", "Bearer x", stubVerifier{err: errors.New("expired")}, http.StatusUnauthorized},
		{"wrong client", "Bearer x", stubVerifier{claims: Claims{Subject: "u1", Azp: "cli"}}, http.StatusUnauthorized},
		{"no subject", "Bearer x", stubVerifier{claims: Claims{Azp: FrontendClient}}, http.StatusUnauthorized},
		{"ok", "Bearer x", good, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			newRouter(tt.verifier).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"user":"u1","email":"u1@example.com"}`, w.Body.String())
			}
		})
	}
}
