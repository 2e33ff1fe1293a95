package main

import (
	"net/http"

	"github.com/alwianggoro/excore/internal/apperrors"
	"github.com/alwianggoro/excore/internal/fanout"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handleSSE serves GET /sse/:channel. It never upgrades anything: it
// sets the text/event-stream headers itself and registers a connection
// whose sendRaw writes straight to the ResponseWriter and flushes.
func (s *server) handleSSE(c *gin.Context) {
	channel := c.Param("channel")
	userID := c.Query("userId")

	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		c.String(http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id := uuid.New().String()
	done := make(chan struct{})

	sendRaw := func(frame []byte) error {
		if _, err := w.Write(frame); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	closeRaw := func(code int, reason string) error {
		close(done)
		return nil
	}

	conn, err := s.registry.AddConnection(id, fanout.TransportSSE, sendRaw, closeRaw, userID, channel)
	if err != nil {
		writeAdmissionError(c, err)
		return
	}
	defer s.registry.RemoveConnection(conn.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s.log.Debug().Str("connection_id", id).Str("channel", channel).Msg("sse connection opened")

	select {
	case <-c.Request.Context().Done():
	case <-done:
	}
}

func writeAdmissionError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		c.JSON(appErr.StatusCode, appErr.ToResponse())
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
