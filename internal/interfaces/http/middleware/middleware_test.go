package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nodeUsecases "github.com/worldvpn/broker/internal/application/node/usecases"
	"github.com/worldvpn/broker/internal/infrastructure/auth"
	"github.com/worldvpn/broker/internal/infrastructure/ratelimit"
	"github.com/worldvpn/broker/internal/shared/authorization"
	"github.com/worldvpn/broker/internal/shared/constants"
	"github.com/worldvpn/broker/internal/shared/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockValidateNodeTokenUC struct {
	result *nodeUsecases.ValidateNodeTokenResult
	err    error
}

func (m *mockValidateNodeTokenUC) Execute(ctx context.Context, cmd nodeUsecases.ValidateNodeTokenCommand) (*nodeUsecases.ValidateNodeTokenResult, error) {
	return m.result, m.err
}

func TestRequireAuth(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 15, 7)
	mw := NewAuthMiddleware(jwtService, logger.NewLogger())

	router := gin.New()
	router.GET("/protected", mw.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_sid": c.GetString(constants.ContextKeyUserSID),
			"role":     c.GetString(constants.ContextKeyUserRole),
		})
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Basic abc")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid access token", func(t *testing.T) {
		pair, err := jwtService.Generate("usr_123", authorization.RoleUser)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "usr_123")
		assert.Contains(t, w.Body.String(), string(authorization.RoleUser))
	})

	t.Run("refresh token rejected on protected route", func(t *testing.T) {
		pair, err := jwtService.Generate("usr_123", authorization.RoleUser)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other := auth.NewJWTService("other-secret", 15, 7)
		pair, err := other.Generate("usr_123", authorization.RoleUser)
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireNodeToken(t *testing.T) {
	t.Run("valid token sets node context", func(t *testing.T) {
		mw := NewNodeTokenMiddleware(&mockValidateNodeTokenUC{
			result: &nodeUsecases.ValidateNodeTokenResult{NodeID: 42, NodeSID: "nod_abc"},
		}, logger.NewLogger())

		router := gin.New()
		router.POST("/agent/heartbeat", mw.RequireNodeToken(), func(c *gin.Context) {
			nodeID, _ := c.Get(constants.ContextKeyNodeID)
			c.JSON(http.StatusOK, gin.H{
				"node_id":  nodeID,
				"node_sid": c.GetString(constants.ContextKeyNodeSID),
			})
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/agent/heartbeat", nil)
		req.Header.Set("Authorization", "Bearer node_sometoken")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "nod_abc")
	})

	t.Run("missing token", func(t *testing.T) {
		mw := NewNodeTokenMiddleware(&mockValidateNodeTokenUC{}, logger.NewLogger())

		router := gin.New()
		router.POST("/agent/heartbeat", mw.RequireNodeToken(), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/agent/heartbeat", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRateLimiterMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rl := NewRateLimiter(ratelimit.NewRedisLimiter(client), 2, time.Minute)

	router := gin.New()
	router.GET("/limited", rl.Limit(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "request %d within the limit", i+1)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"http://localhost:3000"}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("whitelisted origin echoed back", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		router.ServeHTTP(w, req)

		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Origin", "http://evil.example")
		router.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}
