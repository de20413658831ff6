package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/app/notification"
	"github.com/osa030/tunebox/internal/app/session"
)

const keepAliveInterval = 15 * time.Second

// events streams player notifications as server-sent events. The event ID is
// the notification sequence number. A "status" event with the full session
// view is sent first. The stream ends when the session closes.
func (s *Server) events(c *gin.Context) {
	notifications := s.manager.Notifications()
	stream := notification.NewChannelStream(s.cfg.Playback.EventBuffer)
	id := notifications.Subscribe(stream)
	defer notifications.Unsubscribe(id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	if status, err := s.manager.Status(); err == nil {
		_ = notifications.Send(id, notifications.New("status", status))
	}

	zlog.Debug().Msgf("api: event stream opened: id=%s email=%s", id, c.GetString(contextKeyEmail))
	defer zlog.Debug().Msgf("api: event stream closed: id=%s", id)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-stream.C():
			c.Render(-1, sse.Event{
				Id:    strconv.FormatUint(n.SequenceNo, 10),
				Event: n.Type,
				Data:  n,
			})
			c.Writer.Flush()
			if n.Type == session.NotificationSessionClosed {
				return
			}
		case <-keepAlive.C:
			if _, err := io.WriteString(c.Writer, ": keepalive\n\n"); err != nil {
				_ = c.Error(err)
				return
			}
			c.Writer.Flush()
		}
	}
}
