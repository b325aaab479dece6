package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/zeuslawyer/remix-simulator/internal/config"
	"github.com/zeuslawyer/remix-simulator/internal/metrics"
	"github.com/zeuslawyer/remix-simulator/internal/provider"
	"github.com/zeuslawyer/remix-simulator/internal/relay"
	websocketControllers "github.com/zeuslawyer/remix-simulator/internal/server/websocket"
	"github.com/zeuslawyer/remix-simulator/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInitialization = errors.New("failed to initialize provider")
	ErrNotInitialized = errors.New("provider is not initialized")
)

type State int32

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateInitialized:
		return "INITIALIZED"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// StartOptions picks the transport and bind address for one run. Port 0
// binds an ephemeral port.
type StartOptions struct {
	Mode config.GatewayMode
	Host string
	Port uint16
}

func StartOptionsFromConfig(config *config.Config) StartOptions {
	return StartOptions{
		Mode: config.HTTP.Mode,
		Host: config.HTTP.Host,
		Port: config.HTTP.Port,
	}
}

type Server struct {
	config       *config.Config
	provider     provider.Provider
	metrics      *metrics.Metrics
	recorder     telemetry.Recorder
	relay        *relay.Relay
	rpcWebsocket *websocketControllers.RPCWebsocket

	mu            sync.Mutex
	state         State
	mode          config.GatewayMode
	addr          string
	httpServer    *http.Server
	metricsServer *http.Server
	unsubscribe   func()
}

const defTimeout = 120 * time.Second

type Router struct {
	*gin.Engine
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if strings.HasSuffix(req.URL.Path, "/") {
		req.URL.Path = filepath.Clean(req.URL.Path)
	}
	r.Engine.ServeHTTP(w, req)
}

func NewServer(config *config.Config, provider provider.Provider, metricsCollector *metrics.Metrics, recorder telemetry.Recorder) *Server {
	gin.SetMode(gin.ReleaseMode)
	if config.HTTP.PProf.Enabled {
		gin.SetMode(gin.DebugMode)
	}

	if metricsCollector == nil {
		metricsCollector = metrics.NewMetrics()
	}
	if recorder == nil {
		recorder = telemetry.Nop()
	}

	rpcRelay := relay.New(provider, metricsCollector, recorder)
	return &Server{
		config:       config,
		provider:     provider,
		metrics:      metricsCollector,
		recorder:     recorder,
		relay:        rpcRelay,
		rpcWebsocket: websocketControllers.CreateRPCWebsocket(config, rpcRelay, metricsCollector),
	}
}

// Init prepares the provider. It is a no-op once the provider is ready.
func (s *Server) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninitialized {
		return nil
	}

	if err := s.provider.Init(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	s.state = StateInitialized

	slog.Info("Provider initiated")
	for i, account := range s.provider.Accounts() {
		slog.Info("Test account", "index", i, "address", account)
	}
	return nil
}

func (s *Server) newRouter(mode config.GatewayMode) http.Handler {
	r := gin.New()
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	if s.config.HTTP.PProf.Enabled {
		pprof.Register(r)
	}

	applyMiddleware(r, s.config, "api", s.relay)
	applyRoutes(r, s.config, mode, s.rpcWebsocket)

	var handler http.Handler = &Router{Engine: r}
	if mode == config.GatewayModeHTTP && s.config.HTTP.Compression {
		handler = gzhttp.GzipHandler(handler)
	}
	return handler
}

// Start binds the listener and begins serving in the requested mode. When
// the server is already running it returns the bound address unchanged.
func (s *Server) Start(opts StartOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUninitialized:
		return "", ErrNotInitialized
	case StateRunning:
		slog.Info("Server already running on port", "address", s.addr)
		return s.addr, nil
	case StateInitialized, StateStopped:
	}

	mode := opts.Mode
	if mode == "" {
		mode = config.DefaultHTTPMode
	}
	if mode != config.GatewayModeWebSocket && mode != config.GatewayModeHTTP {
		return "", config.ErrInvalidMode
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(opts.Host, strconv.Itoa(int(opts.Port))))
	if err != nil {
		return "", err
	}

	var metricsListener net.Listener
	var metricsServer *http.Server
	if s.config.HTTP.Metrics.Enabled {
		metricsListener, err = net.Listen("tcp", net.JoinHostPort(s.config.HTTP.Metrics.Host, strconv.Itoa(int(s.config.HTTP.Metrics.Port))))
		if err != nil {
			_ = listener.Close()
			return "", err
		}
		metricsRouter := gin.New()
		applyMiddleware(metricsRouter, s.config, "metrics", s.relay)
		metricsRouter.GET("/metrics", gin.WrapH(s.metrics.Handler()))
		metricsServer = &http.Server{
			ReadHeaderTimeout: defTimeout,
			WriteTimeout:      defTimeout,
			Handler:           metricsRouter,
		}
	}

	httpServer := &http.Server{
		ReadHeaderTimeout: defTimeout,
		Handler:           s.newRouter(mode),
	}

	go serve("HTTP", httpServer, listener)
	if metricsServer != nil {
		go serve("Metrics", metricsServer, metricsListener)
		slog.Info("Metrics server started", "address", metricsListener.Addr().String())
	}

	if mode == config.GatewayModeWebSocket {
		s.unsubscribe = s.provider.OnData(s.broadcast)
	}

	s.httpServer = httpServer
	s.metricsServer = metricsServer
	s.addr = listener.Addr().String()
	s.mode = mode
	s.state = StateRunning

	scheme := "http"
	if mode == config.GatewayModeWebSocket {
		scheme = "ws"
	}
	slog.Info(fmt.Sprintf("Remix Simulator listening on %s://%s", scheme, s.addr))
	if mode == config.GatewayModeWebSocket {
		slog.Info("HTTP JSON-RPC is disabled in websocket mode, start with --http.mode=http to enable it")
	}
	s.recorder.RecordEvent("server", "start", string(mode))
	return s.addr, nil
}

func serve(name string, server *http.Server, listener net.Listener) {
	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error(name+" server error", "error", err.Error())
	}
}

func (s *Server) broadcast(data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("Failed to encode provider data event", "error", err)
		return
	}
	s.rpcWebsocket.Broadcast(payload)
}

// Stop closes the listeners. Open websocket connections are not force-closed.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		slog.Info("No server to stop")
		return nil
	}

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 240*time.Second)
	defer cancel()

	errGrp := errgroup.Group{}
	if s.httpServer != nil {
		httpServer := s.httpServer
		errGrp.Go(func() error {
			return httpServer.Shutdown(ctx)
		})
	}
	if s.metricsServer != nil {
		metricsServer := s.metricsServer
		errGrp.Go(func() error {
			return metricsServer.Shutdown(ctx)
		})
	}
	err := errGrp.Wait()

	s.httpServer = nil
	s.metricsServer = nil
	s.addr = ""
	s.state = StateStopped
	slog.Info("Server stopped", "mode", s.mode)
	s.recorder.RecordEvent("server", "stop", string(s.mode))
	return err
}

func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) Accounts() []string {
	return s.provider.Accounts()
}

func (s *Server) ConnectedClients() int64 {
	return s.rpcWebsocket.ConnectedClients()
}
