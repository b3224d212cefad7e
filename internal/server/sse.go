package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/comanda-app/comanda/internal/apperr"
	"github.com/comanda-app/comanda/internal/fanout"
)

// sessionEvents streams a session's events to its members over SSE.
func (s *Server) sessionEvents(c *gin.Context) {
	sessionID := c.Param("sessionID")
	if _, err := s.sessionSvc.GetSession(c.Request.Context(), sessionID, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	s.streamGroup(c, fanout.SessionGroup(sessionID))
}

// staffEvents streams one of the staff groups (kitchen, waiters,
// dashboard) over SSE.
func (s *Server) staffEvents(c *gin.Context) {
	var group fanout.Group
	switch c.Query("group") {
	case "kitchen":
		group = fanout.GroupKitchen
	case "waiters":
		group = fanout.GroupWaiters
	case "dashboard":
		group = fanout.GroupDashboard
	default:
		respondError(c, apperr.New(apperr.CodeInvalidArgument,
			"group must be kitchen, waiters or dashboard"))
		return
	}
	s.streamGroup(c, group)
}

// streamGroup subscribes the connection to a fan-out group and writes each
// event as an SSE message. A subscriber that cannot keep up loses events
// and must re-fetch state on reconnect; the seq field makes the gap
// detectable.
func (s *Server) streamGroup(c *gin.Context, group fanout.Group) {
	events, cancel := s.broadcaster.Subscribe(group)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "id: %d\nevent: %s\ndata: %s\n\n", event.Seq, event.Type, payload)
			c.Writer.Flush()
		}
	}
}
