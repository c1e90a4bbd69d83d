package chat

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mchat/logger"
	"mchat/tools/ids"
	"mchat/tools/safe"
	"mchat/tools/security"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandleWS upgrades the connection and runs its read loop. Authentication
// happens at handshake, before the upgrade: a bad token never becomes a
// websocket, and no event is ever read from an unauthenticated connection.
func (s *Server) HandleWS(c *gin.Context) {
	userID, err := security.Verify(s.auth, bearerToken(c.Request))
	if err != nil {
		logger.Infof("[ws] handshake rejected remote=%s err=%v", c.Request.RemoteAddr, err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade failed remote=%s err=%v", c.Request.RemoteAddr, err)
		return
	}

	client := NewClient(ids.GenerateString(), userID, ws, s.cfg.SendQueueSize)

	// keepalive: pongs push the read deadline forward, the write pump pings
	_ = ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	safe.Go("write-pump", func() {
		client.WritePump(s.cfg.WriteWait, s.cfg.PingPeriod)
	})

	s.router.HandleConnect(client)
	defer s.router.HandleDisconnect(client)

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debugf("[ws] peer closed conn=%s err=%v", client.ConnID, rerr)
			} else if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				logger.Infof("[ws] read timeout conn=%s err=%v", client.ConnID, rerr)
			} else {
				logger.Debugf("[ws] read err conn=%s err=%v", client.ConnID, rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		if herr := s.router.HandleFrame(client, data); herr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] protocol violation, closing conn=%s user=%s err=%v sample=%q",
				client.ConnID, client.UserID, herr, sample)
			return
		}
	}
}

// bearerToken pulls the credential from the Authorization header, falling
// back to ?token= for browser clients that cannot set headers on a
// websocket handshake.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	return r.URL.Query().Get("token")
}
