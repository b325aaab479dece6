package controllers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zeuslawyer/remix-simulator/internal/jsonrpc"
	"github.com/zeuslawyer/remix-simulator/internal/relay"
)

const Welcome = "Welcome to remix-simulator"

func GETWelcome(c *gin.Context) {
	c.String(http.StatusOK, Welcome)
}

// HandleRPC relays a JSON-RPC body and always answers 200; failures are
// carried in the JSON-RPC payload.
func HandleRPC(c *gin.Context) {
	rpcRelay, ok := c.MustGet("relay").(*relay.Relay)
	if !ok {
		slog.Error("Failed to get relay from context")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Try again later"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		slog.Warn("Failed to read RPC body", "error", err)
		c.Data(http.StatusOK, gin.MIMEJSON+"; charset=utf-8", []byte(jsonrpc.InternalErrorResponse))
		return
	}

	if c.ContentType() == gin.MIMEPOSTForm {
		body, err = formToJSON(body)
		if err != nil {
			slog.Warn("Failed to decode form RPC body", "error", err)
		}
	}

	reply := rpcRelay.Handle(c.Request.Context(), relay.TransportHTTP, body)
	c.Data(http.StatusOK, gin.MIMEJSON+"; charset=utf-8", reply)
}

// formToJSON turns a urlencoded body into a JSON object. Values holding a
// JSON array or object are decoded; everything else stays a string.
func formToJSON(body []byte) ([]byte, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return body, err
	}
	object := make(map[string]any, len(values))
	for key, vals := range values {
		decoded := make([]any, 0, len(vals))
		for _, v := range vals {
			var parsed any = v
			if trimmed := strings.TrimSpace(v); strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
				if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
					parsed = v
				}
			}
			decoded = append(decoded, parsed)
		}
		if len(decoded) == 1 {
			object[key] = decoded[0]
		} else {
			object[key] = decoded
		}
	}
	return json.Marshal(object)
}
