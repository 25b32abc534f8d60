package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serveHealth(h *HealthHandler) (*httptest.ResponseRecorder, map[string]interface{}) {
	r := gin.New()
	r.GET("/health", h.Health)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func ok(context.Context) error { return nil }

func TestHealth(t *testing.T) {
	t.Run("All components healthy", func(t *testing.T) {
		w, body := serveHealth(NewHealthHandler(time.Second, map[string]Checker{"postgres": ok, "redis": ok}))

		require.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]interface{})
		assert.Equal(t, "ok", data["status"])
	})

	t.Run("Failing component degrades", func(t *testing.T) {
		w, body := serveHealth(NewHealthHandler(time.Second, map[string]Checker{
			"postgres": ok,
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		}))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		components := body["data"].(map[string]interface{})["components"].(map[string]interface{})
		assert.Equal(t, "ok", components["postgres"])
		assert.Equal(t, "connection refused", components["redis"])
	})

	t.Run("Checks share the timeout", func(t *testing.T) {
		slow := func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}
		w, _ := serveHealth(NewHealthHandler(20*time.Millisecond, map[string]Checker{"postgres": slow}))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
