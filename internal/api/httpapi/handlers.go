package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/osa030/tunebox/internal/app/session"
	"github.com/osa030/tunebox/internal/domain/track"
	"github.com/osa030/tunebox/internal/domain/user"
)

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      user.Public `json:"user"`
}

type indexRequest struct {
	Index *int `json:"index" binding:"required"`
}

type seekRequest struct {
	Seconds *float64 `json:"seconds" binding:"required"`
}

type playlistResponse struct {
	Name   string              `json:"name"`
	Tracks []session.TrackView `json:"tracks"`
}

type favoritesResponse struct {
	Tracks []track.Track `json:"tracks"`
	Count  int           `json:"count"`
}

func (s *Server) signup(c *gin.Context) {
	s.authenticate(c, s.manager.Signup, http.StatusCreated)
}

func (s *Server) login(c *gin.Context) {
	s.authenticate(c, s.manager.Login, http.StatusOK)
}

func (s *Server) authenticate(c *gin.Context, fn func(ctx context.Context, email, password string) (user.Public, error), status int) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortInvalidRequest(c, err)
		return
	}

	u, err := fn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	token, expires, err := s.tokens.Issue(u.Email)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(status, authResponse{Token: token, ExpiresAt: expires, User: u})
}

func (s *Server) logout(c *gin.Context) {
	u, err := s.manager.CurrentUser()
	if err == nil && u.Email == c.GetString(contextKeyEmail) {
		if err := s.manager.Logout(c.Request.Context()); err != nil {
			s.abortWithError(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) me(c *gin.Context) {
	email := c.GetString(contextKeyEmail)
	u, err := s.manager.CurrentUser()
	c.JSON(http.StatusOK, gin.H{
		"user":    user.Public{Email: email},
		"session": err == nil && u.Email == email,
	})
}

func (s *Server) status(c *gin.Context) {
	status, err := s.manager.Status()
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) toggle(c *gin.Context) {
	s.runCommand(c, s.manager.TogglePlayPause)
}

func (s *Server) next(c *gin.Context) {
	s.runCommand(c, s.manager.Next)
}

func (s *Server) previous(c *gin.Context) {
	s.runCommand(c, s.manager.Previous)
}

func (s *Server) selectTrack(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortInvalidRequest(c, err)
		return
	}
	s.runCommand(c, func() error { return s.manager.SelectTrack(*req.Index) })
}

func (s *Server) activate(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortInvalidRequest(c, err)
		return
	}
	s.runCommand(c, func() error { return s.manager.Activate(*req.Index) })
}

func (s *Server) seek(c *gin.Context) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.abortInvalidRequest(c, err)
		return
	}
	s.runCommand(c, func() error { return s.manager.Seek(*req.Seconds) })
}

// runCommand runs a player command and responds with the resulting status.
func (s *Server) runCommand(c *gin.Context, fn func() error) {
	if err := fn(); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.status(c)
}

func (s *Server) playlist(c *gin.Context) {
	status, err := s.manager.Status()
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, playlistResponse{Name: status.Playlist, Tracks: status.Tracks})
}

func (s *Server) favorites(c *gin.Context) {
	tracks, err := s.manager.Favorites()
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, favoritesResponse{Tracks: tracks, Count: len(tracks)})
}

func (s *Server) addFavorite(c *gin.Context) {
	if err := s.manager.AddFavorite(c.Request.Context(), c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.favorites(c)
}

func (s *Server) removeFavorite(c *gin.Context) {
	if err := s.manager.RemoveFavorite(c.Request.Context(), c.Param("id")); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.favorites(c)
}
