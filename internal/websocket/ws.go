package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/zeuslawyer/remix-simulator/internal/config"
)

const (
	bufferSize     = 1024
	maxMessageSize = 16 << 20
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
)

type Websocket interface {
	OnMessage(ctx context.Context, r *http.Request, w Writer, msg []byte, t int)
	OnConnect(ctx context.Context, r *http.Request, w Writer)
	OnDisconnect(ctx context.Context, r *http.Request, w Writer)
}

type WSHandler struct {
	wsUpgrader websocket.Upgrader
	handler    Websocket
	sendBuffer int
}

// IsUpgrade reports whether the request asks for a websocket upgrade.
func IsUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

func CreateHandler(ws Websocket, config *config.Config) func(*gin.Context) {
	sendBuffer := config.WebSocket.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = bufferSize
	}
	handler := &WSHandler{
		wsUpgrader: websocket.Upgrader{
			HandshakeTimeout: 0,
			ReadBufferSize:   bufferSize,
			WriteBufferSize:  bufferSize,
			WriteBufferPool:  nil,
			Subprotocols:     []string{},
			Error: func(w http.ResponseWriter, _ *http.Request, status int, reason error) {
				slog.Debug("Websocket handshake failed", "status", status, "error", reason)
				http.Error(w, http.StatusText(status), status)
			},
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(config.HTTP.CORSHosts) == 0 {
					return true
				}
				origin = strings.ToLower(origin)
				for _, host := range config.HTTP.CORSHosts {
					host = strings.ToLower(host)
					if strings.HasSuffix(host, ":443") && strings.HasPrefix(origin, "https://") {
						host = strings.TrimSuffix(host, ":443")
					}
					if strings.HasSuffix(host, ":80") && strings.HasPrefix(origin, "http://") {
						host = strings.TrimSuffix(host, ":80")
					}
					if strings.Contains(origin, host) {
						return true
					}
				}
				return false
			},
			EnableCompression: true,
		},
		handler:    ws,
		sendBuffer: sendBuffer,
	}

	return func(c *gin.Context) {
		conn, err := handler.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("Failed to set websocket upgrade", "error", err)
			return
		}
		conn.SetReadLimit(maxMessageSize)

		ctx := c.Request.Context()
		writer := newWriter(handler.sendBuffer)
		defer func() {
			writer.Close()
			_ = conn.Close()
			handler.handler.OnDisconnect(ctx, c.Request, writer)
		}()

		handler.handle(ctx, c.Request, conn, writer)
	}
}

func (h *WSHandler) handle(ctx context.Context, r *http.Request, conn *websocket.Conn, writer *wsWriter) {
	h.handler.OnConnect(ctx, r, writer)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer writer.Close()
		for {
			t, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					slog.Debug("Websocket read failed", "connection", writer.ID(), "error", err)
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			if strings.EqualFold(string(msg), "ping") {
				writer.WriteMessage(Message{
					Type: websocket.TextMessage,
					Data: []byte("PONG"),
				})
				continue
			}
			h.handler.OnMessage(ctx, r, writer, msg, t)
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-writer.done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg := <-writer.writer:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(msg.Type, msg.Data); err != nil {
				slog.Debug("Websocket write failed", "connection", writer.ID(), "error", err)
				return
			}
		}
	}
}
