package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func timeoutEngine(limit time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Timeout(limit))

	engine.GET("/fast", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	engine.GET("/slow", func(c *gin.Context) {
		select {
		case <-time.After(time.Second):
			c.String(http.StatusOK, "late")
		case <-c.Request.Context().Done():
		}
	})

	return engine
}

func TestTimeoutPassesFastRequests(t *testing.T) {
	engine := timeoutEngine(200 * time.Millisecond)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fast", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestTimeoutAbortsSlowRequests(t *testing.T) {
	engine := timeoutEngine(20 * time.Millisecond)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

	if rec.Code != http.StatusRequestTimeout {
		t.Errorf("expected 408, got %d", rec.Code)
	}
}
