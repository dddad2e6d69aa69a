package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the canonical HTTP header used to propagate the request identifier.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key under which the request ID string is stored so
	// that handlers and other middleware can retrieve it without reading the response header.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware returns a Gin handler that tags every request with a unique
// identifier. An X-Request-ID supplied by an upstream proxy or the caller is reused
// unchanged; otherwise a fresh UUID v4 is generated.
//
// The identifier is stored in gin.Context under RequestIDKey, so request logs and
// verification audit entries for the same call share one ID:
//
//	id, _ := c.Get(middleware.RequestIDKey)
//
// It is also echoed back in the response X-Request-ID header, which lets an
// integration reporting a rejected key hand support something to search the logs by.
//
// Register this before the logging and metrics middleware so every downstream
// log line carries the ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		// Store in context for use by handlers and other middleware (e.g. logging).
		c.Set(RequestIDKey, id)

		// Echo back to caller so they can correlate their request with server-side logs.
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
