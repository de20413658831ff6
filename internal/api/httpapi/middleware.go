package httpapi

import (
	"net"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/infra/metrics"
)

const (
	contextKeyEmail = "email"
	contextKeyToken = "token"
)

// RequireAuth ensures the request carries a valid token in the Authorization
// header or, for event streams, the "token" query parameter.
func (s *Server) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			s.abortWithError(c, errors.Wrap(ErrInvalidToken, "missing token"))
			return
		}

		email, err := s.tokens.Verify(tokenString)
		if err != nil {
			zlog.Debug().Msgf("api: rejected token: %v", err)
			s.abortWithError(c, err)
			return
		}

		c.Set(contextKeyEmail, email)
		c.Set(contextKeyToken, tokenString)
		c.Next()
	}
}

// RequestLogger logs requests and records their latency. Errors caused by
// clients hanging up are not logged.
func RequestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		latency := time.Since(start)
		status := c.Writer.Status()
		m.ObserveHTTP(c.Request.Method, route, status, latency)

		for _, e := range c.Errors {
			if isClientGone(e.Err) {
				return
			}
		}

		zlog.Info().Msgf("api: %s %s: status=%d latency=%v client=%s",
			c.Request.Method, c.Request.URL.Path, status, latency, c.ClientIP())
	}
}

func isClientGone(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if !errors.As(opErr.Err, &sysErr) {
		return false
	}
	msg := strings.ToLower(sysErr.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
