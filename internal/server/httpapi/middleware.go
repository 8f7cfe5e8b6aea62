package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/judoassistant/tournament-sync/internal/common"
)

const userIDKey = "user_id"

// tokenAuth resolves the caller from the email header and bearer token.
func (s *HTTPServer) tokenAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.GetHeader(common.EmailHeaderName)
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if email == "" || len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "missing credentials"})
			return
		}

		id, err := s.users.ValidateToken(c.Request.Context(), email, parts[1])
		if err != nil {
			s.fail(c, err)
			return
		}

		c.Set(userIDKey, id)
		c.Next()
	}
}

func currentUser(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}

// RequestIDHeader carries the id a request is logged under. A caller supplied
// UUID is kept; anything else is replaced with a fresh one.
const RequestIDHeader = "X-Request-ID"

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		c.Next()
		s.logger.Debug(c.Request.Context(), "request",
			"request_id", id,
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}
