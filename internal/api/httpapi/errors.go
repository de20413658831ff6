package httpapi

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/auth"
	"github.com/osa030/tunebox/internal/app/playback"
	"github.com/osa030/tunebox/internal/app/session"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps an error to its HTTP status and user-facing code.
func classify(err error) (int, string) {
	if code := auth.Code(err); code != "" {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			return http.StatusConflict, code
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidPassword):
			return http.StatusUnauthorized, code
		default:
			return http.StatusBadRequest, code
		}
	}

	switch {
	case errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, playback.ErrInvalidIndex):
		return http.StatusBadRequest, "invalid_index"
	case errors.Is(err, session.ErrNoSession):
		return http.StatusConflict, "no_session"
	case errors.Is(err, session.ErrTrackNotFound):
		return http.StatusNotFound, "track_not_found"
	default:
		return http.StatusInternalServerError, "default_error"
	}
}

// abortWithError writes the error response and stops the handler chain.
func (s *Server) abortWithError(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		zlog.Error().Msgf("api: %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Error: s.cfg.GetMessage(code), Code: code})
}

// abortInvalidRequest rejects a request whose body or parameters do not bind.
func (s *Server) abortInvalidRequest(c *gin.Context, err error) {
	zlog.Debug().Msgf("api: invalid request: path=%s err=%v", c.FullPath(), err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Error: s.cfg.GetMessage("invalid_request"),
		Code:  "invalid_request",
	})
}
