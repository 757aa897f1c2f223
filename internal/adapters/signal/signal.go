package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Stranger/internal/app/orch"
	"github.com/dkeye/Stranger/internal/config"
	"github.com/dkeye/Stranger/internal/core"
	"github.com/dkeye/Stranger/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Limiter *RateLimiter
	Cfg     *config.Config
}

func NewSignalWSController(o *orch.Orchestrator, limiter *RateLimiter, cfg *config.Config) *SignalWSController {
	return &SignalWSController{
		Orch:    o,
		Limiter: limiter,
		Cfg:     cfg,
	}
}

// WsSignalConn is one browser tab. It implements core.SignalConnection.
type WsSignalConn struct {
	id       domain.ConnID
	identity domain.Identity

	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and attaches the connection under the
// identity given in the query, or the cookie client token when absent.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	raw := c.Query("identity")
	if raw == "" {
		raw = c.GetString("client_token")
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	identity, err := domain.ParseIdentity(raw)
	if err != nil {
		ctl.abort(ws, handshakeCode(err), err)
		return
	}

	conn := &WsSignalConn{
		identity: identity,
		conn:     ws,
		send:     make(chan core.Frame, ctl.Cfg.SendBuffer),
	}
	cid, err := ctl.Orch.Attach(identity, conn)
	if err != nil {
		ctl.abort(ws, handshakeCode(err), err)
		return
	}
	conn.id = cid
	log.Info().Str("module", "signal").Str("identity", string(identity)).Str("conn", string(cid)).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, conn)
	}()
}

func handshakeCode(err error) string {
	if errors.Is(err, domain.ErrIdentityTooLong) {
		return core.CodeInvalidIdentity
	}
	return core.CodeMissingIdentity
}

// abort reports a handshake error and drops the socket.
func (ctl *SignalWSController) abort(ws *websocket.Conn, code string, err error) {
	log.Warn().Err(err).Str("module", "signal").Str("code", code).Msg("handshake rejected")
	_ = ws.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteWait))
	_ = ws.WriteJSON(core.NewError(code, err.Error()))
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code))
	_ = ws.Close()
}
