package openaihttp_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/yuvalraviv1/codex-proxy/openaihttp"
)

func TestRegisterGinRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	require.NoError(t, openaihttp.RegisterGinRoutes(r, openaihttp.Config{}))

	for _, path := range []string{"/v1/models", "/health", "/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "GET %s", path)
	}
}

func TestRegisterGinRoutes_NilRouter(t *testing.T) {
	require.Error(t, openaihttp.RegisterGinRoutes(nil, openaihttp.Config{}))
}

func TestRegisterGinRoutes_CustomBasePath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	require.NoError(t, openaihttp.RegisterGinRoutes(r, openaihttp.Config{BasePath: "api/v1"}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}
