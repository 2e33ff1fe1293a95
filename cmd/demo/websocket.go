package main

import (
	"net/http"
	"time"

	"github.com/alwianggoro/excore/internal/fanout"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsReadDeadline  = 60 * time.Second
	wsWriteDeadline = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS serves GET /ws/:channel. It upgrades via gorilla/websocket,
// registers a full-duplex connection, and pumps inbound frames into
// the registry's dispatcher until the client disconnects.
func (s *server) handleWS(c *gin.Context) {
	channel := c.Param("channel")
	userID := c.Query("userId")

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := uuid.New().String()

	sendRaw := func(frame []byte) error {
		wsConn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
		return wsConn.WriteMessage(websocket.TextMessage, frame)
	}
	closeRaw := func(code int, reason string) error {
		deadline := time.Now().Add(time.Second)
		_ = wsConn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason), deadline)
		return wsConn.Close()
	}

	conn, err := s.registry.AddConnection(id, fanout.TransportWS, sendRaw, closeRaw, userID, channel)
	if err != nil {
		s.log.Warn().Err(err).Str("connection_id", id).Msg("websocket admission rejected")
		_ = wsConn.WriteMessage(websocket.TextMessage, []byte(err.Error()))
		wsConn.Close()
		return
	}

	s.log.Debug().Str("connection_id", id).Str("channel", channel).Msg("websocket connection opened")

	wsConn.SetReadLimit(int64(s.opts.MaxMessageSize))
	wsConn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	for {
		_, payload, err := wsConn.ReadMessage()
		if err != nil {
			break
		}
		wsConn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		go s.registry.HandleMessage(conn.ID, payload)
	}

	s.registry.RemoveConnection(conn.ID)
}
