package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/ui"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Sessions are authenticated by token, never by cookies.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSMessage is sent to websocket clients: every new screen, and the error of
// an action sent over the socket.
type WSMessage struct {
	Type   string        `json:"type"`
	Screen *ui.Screen    `json:"screen,omitempty"`
	Error  *errors.Error `json:"error,omitempty"`
}

// ServeWS pushes every screen of the session and runs the actions the client sends.
func (a *API) ServeWS(c *gin.Context) {
	s := session(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has replied to the client already.
		slog.InfoContext(c.Request.Context(), "ws: upgrade failed", "session", s.ID, "error", err)
		return
	}
	defer conn.Close()

	detach := s.attach(time.Now())
	defer detach()

	screens, unsubscribe := s.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan *errors.Error, 1)
	go func() {
		defer cancel()
		a.readActions(ctx, conn, s, errs)
	}()

	a.writeMessages(ctx, conn, screens, errs)
}

func (a *API) readActions(ctx context.Context, conn *websocket.Conn, s *Session, errs chan<- *errors.Error) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var act ui.Action
		if err := conn.ReadJSON(&act); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.InfoContext(ctx, "ws: read failed", "session", s.ID, "error", err)
			}
			return
		}

		if err := a.sessions.Dispatch(ctx, s, act); err != nil {
			select {
			case errs <- errors.Convert(err):
			default:
			}
		}
	}
}

func (a *API) writeMessages(ctx context.Context, conn *websocket.Conn, screens <-chan ui.Screen, errs <-chan *errors.Error) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(m WSMessage) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m) == nil
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case sc := <-screens:
			// A cleared screen is always followed by the next page.
			if sc.Root == nil {
				continue
			}
			if !write(WSMessage{Type: eventScreen, Screen: &sc}) {
				return
			}

		case e := <-errs:
			if !write(WSMessage{Type: "error", Error: e}) {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
