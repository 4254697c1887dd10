// middleware/middleware_test.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/controlcoreio/control-core-012025-sub001/util"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims AdminClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/admin", func(c *gin.Context) {
		c.String(http.StatusOK, util.GetUserIDFromContext(c))
	})
	return r
}

func get(r *gin.Engine, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGroupAuthMiddleware(t *testing.T) {
	r := newEngine(GroupAuthMiddleware(testSecret, []string{"pip-admin"}))
	valid := AdminClaims{
		StandardClaims: jwt.StandardClaims{Subject: "alice", ExpiresAt: time.Now().Add(time.Hour).Unix()},
		Groups:         []string{"readers", "pip-admin"},
	}

	t.Run("ValidToken", func(t *testing.T) {
		w := get(r, "Bearer "+signToken(t, jwt.SigningMethodHS256, testSecret, valid))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice", w.Body.String())
	})

	t.Run("MissingToken", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodHS256, []byte("another-secret"), valid)
		assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+token).Code)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := valid
		expired.ExpiresAt = time.Now().Add(-time.Minute).Unix()
		token := signToken(t, jwt.SigningMethodHS256, testSecret, expired)
		assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+token).Code)
	})

	t.Run("NoneAlgorithm", func(t *testing.T) {
		token := signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)
		assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+token).Code)
	})

	t.Run("MissingGroup", func(t *testing.T) {
		reader := valid
		reader.Groups = []string{"readers"}
		token := signToken(t, jwt.SigningMethodHS256, testSecret, reader)
		assert.Equal(t, http.StatusForbidden, get(r, "Bearer "+token).Code)
	})

	t.Run("MissingSubject", func(t *testing.T) {
		anonymous := valid
		anonymous.Subject = ""
		token := signToken(t, jwt.SigningMethodHS256, testSecret, anonymous)
		assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+token).Code)
	})
}

func TestRateLimiterWith(t *testing.T) {
	t.Run("AllowsWithinLimit", func(t *testing.T) {
		r := newEngine(RateLimiterWith(func(context.Context, string, int, time.Duration) (bool, error) {
			return true, nil
		}, 10, time.Minute))

		w := get(r, "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	})

	t.Run("RejectsOverLimit", func(t *testing.T) {
		r := newEngine(RateLimiterWith(func(context.Context, string, int, time.Duration) (bool, error) {
			return false, nil
		}, 10, time.Minute))

		assert.Equal(t, http.StatusTooManyRequests, get(r, "").Code)
	})

	t.Run("FailsOpen", func(t *testing.T) {
		r := newEngine(RateLimiterWith(func(context.Context, string, int, time.Duration) (bool, error) {
			return false, errors.New("connection refused")
		}, 10, time.Minute))

		assert.Equal(t, http.StatusOK, get(r, "").Code)
	})
}

func TestLogger(t *testing.T) {
	r := newEngine(Logger())
	assert.Equal(t, http.StatusOK, get(r, "").Code)

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
