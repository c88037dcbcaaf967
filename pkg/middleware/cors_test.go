package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsEngine(cfg CORSConfig) *gin.Engine {
	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORS_AllowedOriginEchoed(t *testing.T) {
	r := corsEngine(CORSConfig{AllowedOrigins: []string{"http://localhost:5173"}, AllowCredentials: true})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "Origin", rr.Header().Get("Vary"))
}

func TestCORS_RejectedOriginGetsNoHeaders(t *testing.T) {
	r := corsEngine(CORSConfig{AllowedOrigins: []string{"https://example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.com")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	r := corsEngine(CORSConfig{AllowedOrigins: []string{"https://example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
}

func TestOriginMatcher(t *testing.T) {
	m := OriginMatcher([]string{" https://a.example/ ", "http://localhost:5173"})
	assert.True(t, m(""))
	assert.True(t, m("https://a.example"))
	assert.True(t, m("http://localhost:5173"))
	assert.False(t, m("http://localhost:3000"))

	assert.True(t, OriginMatcher([]string{"*"})("https://anything.example"))
}
