package server

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chathub/pkg/errors"
	"chathub/pkg/hub"
	"chathub/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // In production, implement proper origin checking
	},
}

// handleHub upgrades the request and runs the connection's read loop until
// the peer goes away or the session is rejected.
func (s *Server) handleHub(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.WarnWith("websocket upgrade failed", "error", err)
		return
	}

	conn := s.transport.Register(ws)
	sess := hub.NewSession(conn.ID(), c.Request)

	if err := s.hub.Connect(sess); err != nil {
		s.log.WarnWith("connection rejected", "connectionID", conn.ID(), "error", err)
		s.transport.Unregister(conn.ID())
		return
	}

	defer func() {
		if err := s.hub.Disconnect(sess); err != nil {
			s.log.WarnWith("disconnect cleanup failed", "connectionID", conn.ID(), "error", err)
		}
		s.transport.Unregister(conn.ID())
	}()

	s.readLoop(conn.ID(), ws, sess)
}

// readLoop consumes inbound action messages and dispatches them. The pong
// deadline bounds how long a silent peer is kept around.
func (s *Server) readLoop(connectionID string, ws *websocket.Conn, sess *hub.Session) {
	pongTimeout := time.Duration(s.cfg.Hub.PongTimeoutSec) * time.Second
	if pongTimeout > 0 {
		ws.SetReadDeadline(time.Now().Add(pongTimeout))
		ws.SetPongHandler(func(string) error {
			ws.SetReadDeadline(time.Now().Add(pongTimeout))
			return nil
		})
	}

	for {
		var msg protocol.Message
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.DebugWith("read failed", "connectionID", connectionID, "error", err)
			}
			return
		}
		if pongTimeout > 0 {
			ws.SetReadDeadline(time.Now().Add(pongTimeout))
		}

		result, err := s.dispatcher.Dispatch(sess, &msg)
		if err != nil {
			s.log.WarnWith("action failed", "connectionID", connectionID, "action", string(msg.Type), "error", err)
			s.reply(connectionID, &msg, "", err)
			if stderrors.Is(err, errors.ErrSessionInvalid) {
				return
			}
			continue
		}

		roster, _ := result.(string)
		s.reply(connectionID, &msg, roster, nil)
	}
}

// reply acknowledges an inbound message. Messages sent without an id want
// no acknowledgement.
func (s *Server) reply(connectionID string, msg *protocol.Message, roster string, actionErr error) {
	if msg.ID == "" {
		return
	}

	res := protocol.Result{ID: msg.ID, OK: actionErr == nil, Roster: roster}
	if actionErr != nil {
		res.Error = actionErr.Error()
	}

	if err := s.transport.SendRaw(connectionID, res); err != nil {
		s.log.DebugWith("reply dropped", "connectionID", connectionID, "error", err)
	}
}
