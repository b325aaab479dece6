package controllers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeuslawyer/remix-simulator/internal/jsonrpc"
	"github.com/zeuslawyer/remix-simulator/internal/provider"
	"github.com/zeuslawyer/remix-simulator/internal/relay"
	"github.com/zeuslawyer/remix-simulator/internal/server/controllers"
)

type echoProvider struct{}

func (echoProvider) Init(context.Context) error { return nil }

func (echoProvider) SendAsync(ctx context.Context, req *jsonrpc.Request) <-chan provider.Result {
	return provider.Async(ctx, func(context.Context) (*jsonrpc.Response, error) {
		return jsonrpc.NewResult(req.ID, map[string]any{
			"method": req.Method,
			"params": req.Params,
		})
	})
}

func (echoProvider) OnData(func(any)) func() { return func() {} }

func (echoProvider) Accounts() []string { return nil }

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rpcRelay := relay.New(echoProvider{}, nil, nil)
	r.Use(func(c *gin.Context) {
		c.Set("relay", rpcRelay)
		c.Next()
	})
	r.GET("/", controllers.GETWelcome)
	r.POST("/", controllers.HandleRPC)
	return r
}

func TestWelcome(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	newRouter().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, controllers.Welcome, w.Body.String())
}

func TestHandleRPCJSON(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"eth_chainId","params":[]}`))
	req.Header.Set("Content-Type", "application/json")
	newRouter().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":7,"result":{"method":"eth_chainId","params":[]}}`, w.Body.String())
}

func TestHandleRPCParseErrorIsStill200(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/", strings.NewReader(`{"jsonrpc":`))
	req.Header.Set("Content-Type", "application/json")
	newRouter().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`, string(body))
}

func TestHandleRPCForm(t *testing.T) {
	t.Parallel()
	form := url.Values{}
	form.Set("jsonrpc", "2.0")
	form.Set("id", "3")
	form.Set("method", "eth_getBalance")
	form.Set("params", `["0xabc","latest"]`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	newRouter().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"3","result":{"method":"eth_getBalance","params":["0xabc","latest"]}}`, w.Body.String())
}
