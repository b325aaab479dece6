package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zeuslawyer/remix-simulator/internal/config"
	"github.com/zeuslawyer/remix-simulator/internal/server/controllers"
	websocketControllers "github.com/zeuslawyer/remix-simulator/internal/server/websocket"
	"github.com/zeuslawyer/remix-simulator/internal/websocket"
)

func applyRoutes(r *gin.Engine, cfg *config.Config, mode config.GatewayMode, rpcWebsocket *websocketControllers.RPCWebsocket) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	switch mode {
	case config.GatewayModeHTTP:
		r.GET("/", controllers.GETWelcome)
		r.POST("/", requireAuth(cfg), controllers.HandleRPC)
		// Any other route with a JSON-RPC body is relayed as well
		r.NoRoute(requireAuth(cfg), controllers.HandleRPC)
	default:
		upgrade := websocket.CreateHandler(rpcWebsocket, cfg)
		r.GET("/", requireUpgradeAuth(cfg), func(c *gin.Context) {
			if !websocket.IsUpgrade(c.Request) {
				controllers.GETWelcome(c)
				return
			}
			upgrade(c)
		})
		r.NoRoute(func(c *gin.Context) {
			slog.Warn("Not Found", "path", c.Request.URL.Path)
			c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
		})
	}
}

// requireUpgradeAuth only guards websocket handshakes so the welcome page
// stays public.
func requireUpgradeAuth(cfg *config.Config) gin.HandlerFunc {
	auth := requireAuth(cfg)
	return func(c *gin.Context) {
		if !websocket.IsUpgrade(c.Request) {
			c.Next()
			return
		}
		auth(c)
	}
}
