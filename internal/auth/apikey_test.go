package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func apiKeyRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(key))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		serverKey  string
		requestKey string
		wantStatus int
	}{
		{"valid key", "top-secret", "top-secret", http.StatusOK},
		{"missing key", "top-secret", "", http.StatusUnauthorized},
		{"wrong key", "top-secret", "guess", http.StatusForbidden},
		{"auth disabled", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := apiKeyRouter(tt.serverKey)

			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.requestKey != "" {
				req.Header.Set("X-API-Key", tt.requestKey)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
