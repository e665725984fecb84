package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/app"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/core"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/domain"
	"github.com/DimonONE/telegram-mini-app-voice-chat-backend/internal/notify"
)

var ErrBackpressure = errors.New("backpressure")

// Controller runs one signaling session per WebSocket connection.
type Controller struct {
	Manager    *app.ConnManager
	Notifier   *notify.Bot
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(manager *app.ConnManager, bot *notify.Bot, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{
		Manager:    manager,
		Notifier:   bot,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
	}
}

// WsSignalConn is the channel handle stored in the registry. TrySend
// never blocks; a full send buffer is backpressure and the caller
// drops the recipient.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// session is one connection's lifecycle state. joined flips once the
// participant is registered; cleanup broadcasts a leave only then.
type session struct {
	room   domain.RoomID
	user   domain.UserID
	connID string
	conn   *WsSignalConn
	joined bool
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades /ws/:room_id/:user_id and runs the session.
// Both identifiers are caller-supplied opaque strings.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	room := domain.RoomID(c.Param("room_id"))
	user := domain.UserID(c.Param("user_id"))
	connID := uuid.NewString()
	log.Info().Str("module", "signal").Str("conn", connID).Str("room", string(room)).Str("user", string(user)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	s := &session{room: room, user: user, connID: connID, conn: conn}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, s)
	}()
}
