package ginsrv

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/seb7887/uibus/idgen"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
	principalKey = "principal"
)

// ErrorFormatterMiddleware writes {"message": <status text>} for error
// statuses the handler left without a body.
func ErrorFormatterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest && !c.Writer.Written() {
			c.JSON(c.Writer.Status(), gin.H{
				"message": http.StatusText(c.Writer.Status()),
			})
		}
	}
}

// RequestIDMiddleware reuses the caller's X-Request-ID or assigns a new one,
// and echoes it in the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = idgen.NewUUID()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if id := RequestID(c); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// RecoveryMiddleware turns a handler panic into a 500 and logs it.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panicked",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
				)
				abortWithMessage(c, http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// MetricsMiddleware counts requests by method, matched route and status.
func MetricsMiddleware(registry prometheus.Registerer) gin.HandlerFunc {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	requests := promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "http_server_requests_total",
		Help: "HTTP requests served",
	}, []string{"method", "route", "status"})

	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// TokenVerifier resolves a bearer token to the principal it belongs to.
type TokenVerifier func(c *gin.Context, token string) (principal any, ok bool)

// BearerAuth rejects requests without a valid "Authorization: Bearer" token
// with 401. The principal is available through Principal.
func BearerAuth(verify TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortWithMessage(c, http.StatusUnauthorized)
			return
		}

		principal, ok := verify(c, strings.TrimSpace(token))
		if !ok {
			abortWithMessage(c, http.StatusUnauthorized)
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func Principal(c *gin.Context) (any, bool) {
	return c.Get(principalKey)
}

func abortWithMessage(c *gin.Context, status int) {
	c.AbortWithStatusJSON(status, gin.H{"message": http.StatusText(status)})
}
