package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	gorillaWebsocket "github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/zeuslawyer/remix-simulator/internal/config"
	"github.com/zeuslawyer/remix-simulator/internal/jsonrpc"
	"github.com/zeuslawyer/remix-simulator/internal/metrics"
	"github.com/zeuslawyer/remix-simulator/internal/provider"
	"github.com/zeuslawyer/remix-simulator/internal/relay"
	"github.com/zeuslawyer/remix-simulator/internal/websocket"
	"golang.org/x/time/rate"
)

type connection struct {
	writer  websocket.Writer
	limiter *rate.Limiter
}

// RPCWebsocket relays JSON-RPC frames and keeps the registry of open
// connections used for broadcast.
type RPCWebsocket struct {
	websocket.Websocket
	relay            *relay.Relay
	metrics          *metrics.Metrics
	config           *config.Config
	connectedClients *xsync.Counter
	connections      *xsync.MapOf[string, *connection]
}

func CreateRPCWebsocket(config *config.Config, relay *relay.Relay, metrics *metrics.Metrics) *RPCWebsocket {
	return &RPCWebsocket{
		relay:            relay,
		metrics:          metrics,
		config:           config,
		connectedClients: xsync.NewCounter(),
		connections:      xsync.NewMapOf[string, *connection](),
	}
}

func (c *RPCWebsocket) OnMessage(ctx context.Context, _ *http.Request, w websocket.Writer, msg []byte, _ int) {
	conn, loaded := c.connections.Load(w.ID())
	if !loaded {
		return
	}
	if conn.limiter != nil && !conn.limiter.Allow() {
		if c.metrics != nil {
			c.metrics.IncrementRPCErrors("rate_limited")
		}
		reply, err := json.Marshal(jsonrpc.NewError(jsonrpc.PeekID(msg), jsonrpc.CodeLimitExceeded, "rate limit exceeded"))
		if err != nil {
			reply = []byte(jsonrpc.InternalErrorResponse)
		}
		w.WriteMessage(websocket.Message{Type: gorillaWebsocket.TextMessage, Data: reply})
		return
	}

	ctx = provider.WithChannel(ctx, w.ID())
	go func() {
		reply := c.relay.Handle(ctx, relay.TransportWebSocket, msg)
		if !w.WriteMessage(websocket.Message{Type: gorillaWebsocket.TextMessage, Data: reply}) {
			slog.Debug("Dropped response for closed websocket", "connection", w.ID())
		}
	}()
}

func (c *RPCWebsocket) OnConnect(_ context.Context, r *http.Request, w websocket.Writer) {
	conn := &connection{writer: w}
	if c.config.WebSocket.RateLimit > 0 {
		conn.limiter = rate.NewLimiter(rate.Limit(c.config.WebSocket.RateLimit), c.config.WebSocket.RateBurst)
	}
	c.connections.Store(w.ID(), conn)
	c.connectedClients.Inc()
	if c.metrics != nil {
		c.metrics.IncrementWebSocketConnections()
	}
	slog.Debug("RPC websocket connected", "connection", w.ID(), "remote", r.RemoteAddr)
}

func (c *RPCWebsocket) OnDisconnect(_ context.Context, _ *http.Request, w websocket.Writer) {
	if _, loaded := c.connections.LoadAndDelete(w.ID()); !loaded {
		return
	}
	if c.relay != nil {
		c.relay.ReleaseChannel(w.ID())
	}
	c.connectedClients.Dec()
	if c.metrics != nil {
		c.metrics.DecrementWebSocketConnections()
	}
	slog.Debug("RPC websocket disconnected", "connection", w.ID())
}

// Broadcast queues payload on every open connection without blocking and
// returns the number of connections that could not take it.
func (c *RPCWebsocket) Broadcast(payload []byte) int {
	dropped := 0
	c.connections.Range(func(id string, conn *connection) bool {
		if !conn.writer.TryWriteMessage(websocket.Message{Type: gorillaWebsocket.TextMessage, Data: payload}) {
			dropped++
			slog.Warn("Dropped broadcast for slow client", "connection", id)
		}
		return true
	})
	if dropped > 0 && c.metrics != nil {
		c.metrics.AddBroadcastDropped(dropped)
	}
	return dropped
}

func (c *RPCWebsocket) ConnectedClients() int64 {
	return c.connectedClients.Value()
}
