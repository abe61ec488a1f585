package ginsrv

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/seb7887/uibus/httpx/httpxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorFormatterMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		handler        gin.HandlerFunc
		expectedBody   string
		expectedStatus int
	}{
		{
			name:           "No error, should pass through",
			handler:        func(c *gin.Context) { c.Status(http.StatusOK) },
			expectedBody:   ``,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Bad request error",
			handler:        func(c *gin.Context) { c.Status(http.StatusBadRequest) },
			expectedBody:   `{"message":"Bad Request"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Unauthorized error",
			handler:        func(c *gin.Context) { c.Status(http.StatusUnauthorized) },
			expectedBody:   `{"message":"Unauthorized"}`,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Error with its own body is left alone",
			handler:        func(c *gin.Context) { c.String(http.StatusConflict, "taken") },
			expectedBody:   `taken`,
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(ErrorFormatterMiddleware())
			router.GET("/test", tt.handler)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(RequestIDHeader, "given")
	router.ServeHTTP(w, req)
	assert.Equal(t, "given", w.Body.String())
	assert.Equal(t, "given", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)
	assert.NotEqual(t, "", w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
}

func TestBearerAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	verify := func(_ *gin.Context, token string) (any, bool) {
		if token == "good" {
			return "alice", true
		}
		return nil, false
	}

	router := gin.New()
	router.GET("/me", BearerAuth(verify), func(c *gin.Context) {
		p, _ := Principal(c)
		c.String(http.StatusOK, p.(string))
	})

	tests := []struct {
		name           string
		header         string
		expectedStatus int
		expectedBody   string
	}{
		{"valid token", "Bearer good", http.StatusOK, "alice"},
		{"scheme is case insensitive", "bearer good", http.StatusOK, "alice"},
		{"missing header", "", http.StatusUnauthorized, `{"message":"Unauthorized"}`},
		{"empty token", "Bearer ", http.StatusUnauthorized, `{"message":"Unauthorized"}`},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, `{"message":"Unauthorized"}`},
		{"unknown token", "Bearer bad", http.StatusUnauthorized, `{"message":"Unauthorized"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestRecoveryAndLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	router := gin.New()
	router.Use(LoggerMiddleware(logger), RecoveryMiddleware(logger))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/boom", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/ok", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 1, logs.FilterMessage("handler panicked").Len())
	requests := logs.FilterMessage("request").All()
	assert.Equal(t, 2, len(requests))
	assert.Equal(t, int64(500), requests[0].ContextMap()["status"])
	assert.Equal(t, int64(204), requests[1].ContextMap()["status"])
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	router := gin.New()
	router.Use(MetricsMiddleware(registry))
	router.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/items/1", "/items/2", "/nowhere"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
	}

	httpxtest.AssertMetricValueWithLabels(t, registry, "http_server_requests_total",
		map[string]string{"method": "GET", "route": "/items/:id", "status": "200"}, 2)
	httpxtest.AssertMetricValueWithLabels(t, registry, "http_server_requests_total",
		map[string]string{"method": "GET", "route": "unmatched", "status": "404"}, 1)
}
