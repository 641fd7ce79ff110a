package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limitedRouter(burst, perMinute int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewWriteLimiter(burst, perMinute).GinMiddleware())
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/records", ok)
	r.POST("/records", ok)
	return r
}

func serve(r *gin.Engine, method string) int {
	req := httptest.NewRequest(method, "/records", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestWriteLimiterThrottlesWrites(t *testing.T) {
	r := limitedRouter(2, 2)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost))
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost))
}

func TestWriteLimiterIgnoresReads(t *testing.T) {
	r := limitedRouter(1, 1)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost))

	// Reads pass regardless of the bucket state.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodGet))
	}
}
