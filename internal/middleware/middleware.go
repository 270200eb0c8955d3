package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID reuses the caller's request id or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// Logger logs one line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		format := "%s %s %d %s ip=%s request_id=%s"
		args := []interface{}{c.Request.Method, path, status, time.Since(start), c.ClientIP(), c.GetString("request_id")}
		switch {
		case status >= 500:
			logger.Errorf(format, args...)
		case status >= 400:
			logger.Warningf(format, args...)
		default:
			logger.Infof(format, args...)
		}
	}
}
