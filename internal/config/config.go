package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    LogLevel    `json:"log_level" yaml:"log_level"`
	HTTP        HTTP        `json:"http"`
	WebSocket   WebSocket   `json:"websocket"`
	Simulator   Simulator   `json:"simulator"`
	Persistence Persistence `json:"persistence"`
	NATS        NATS        `json:"nats"`
}

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// GatewayMode selects the single transport a running server exposes.
type GatewayMode string

const (
	GatewayModeWebSocket GatewayMode = "websocket"
	GatewayModeHTTP      GatewayMode = "http"
)

type Tracing struct {
	Enabled      bool   `json:"enabled"`
	OTLPEndpoint string `json:"otlp_endpoint" yaml:"otlp_endpoint"`
}

type PProf struct {
	Enabled bool `json:"enabled"`
}

type Metrics struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    uint16 `json:"port"`
}

type Auth struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
}

type HTTP struct {
	Mode           GatewayMode `json:"mode"`
	Host           string      `json:"host"`
	Port           uint16      `json:"port"`
	Compression    bool        `json:"compression"`
	Tracing        Tracing     `json:"tracing"`
	PProf          PProf       `json:"pprof"`
	Metrics        Metrics     `json:"metrics"`
	Auth           Auth        `json:"auth"`
	TrustedProxies []string    `json:"trusted_proxies" yaml:"trusted_proxies"`
	CORSHosts      []string    `json:"cors_hosts" yaml:"cors_hosts"`
}

type WebSocket struct {
	// RateLimit is the number of requests per second allowed on a single
	// connection. Zero disables limiting.
	RateLimit  float64 `json:"rate_limit" yaml:"rate_limit"`
	RateBurst  int     `json:"rate_burst" yaml:"rate_burst"`
	SendBuffer int     `json:"send_buffer" yaml:"send_buffer"`
}

type Simulator struct {
	ChainID             uint64 `json:"chain_id" yaml:"chain_id"`
	Accounts            int    `json:"accounts"`
	InitialBalanceEther uint64 `json:"initial_balance_ether" yaml:"initial_balance_ether"`
	BlockGasLimit       uint64 `json:"block_gas_limit" yaml:"block_gas_limit"`
}

type DatabaseDriver string

const (
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
)

type Database struct {
	Driver          DatabaseDriver `json:"driver"`
	Database        string         `json:"database"`
	Username        string         `json:"username"`
	Password        string         `json:"password"`
	Host            string         `json:"host"`
	Port            uint16         `json:"port"`
	ExtraParameters string         `json:"extra_parameters" yaml:"extra_parameters"`
}

type Persistence struct {
	Database Database `json:"database"`
}

type NATS struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url"`
	SubjectPrefix string `json:"subject_prefix" yaml:"subject_prefix"`
}

//nolint:golint,gochecknoglobals
var (
	ConfigFileKey                         = "config"
	LogLevelKey                           = "log_level"
	HTTPModeKey                           = "http.mode"
	HTTPHostKey                           = "http.host"
	HTTPPortKey                           = "http.port"
	HTTPCompressionKey                    = "http.compression"
	HTTPTracingEnabledKey                 = "http.tracing.enabled"
	HTTPTracingOTLPEndKey                 = "http.tracing.otlp_endpoint"
	HTTPPProfEnabledKey                   = "http.pprof.enabled"
	HTTPTrustedProxiesKey                 = "http.trusted_proxies"
	HTTPMetricsEnabledKey                 = "http.metrics.enabled"
	HTTPMetricsHostKey                    = "http.metrics.host"
	HTTPMetricsPortKey                    = "http.metrics.port"
	HTTPCORSHostsKey                      = "http.cors_hosts"
	HTTPAuthJWTSecretKey                  = "http.auth.jwt_secret" //nolint:golint,gosec
	WebSocketRateLimitKey                 = "websocket.rate_limit"
	WebSocketRateBurstKey                 = "websocket.rate_burst"
	WebSocketSendBufferKey                = "websocket.send_buffer"
	SimulatorChainIDKey                   = "simulator.chain_id"
	SimulatorAccountsKey                  = "simulator.accounts"
	SimulatorInitialBalanceEtherKey       = "simulator.initial_balance_ether"
	SimulatorBlockGasLimitKey             = "simulator.block_gas_limit"
	PersistenceDatabaseDriverKey          = "persistence.database.driver"
	PersistenceDatabaseDatabaseKey        = "persistence.database.database"
	PersistenceDatabaseUsernameKey        = "persistence.database.username"
	PersistenceDatabasePasswordKey        = "persistence.database.password"
	PersistenceDatabaseHostKey            = "persistence.database.host"
	PersistenceDatabasePortKey            = "persistence.database.port"
	PersistenceDatabaseExtraParametersKey = "persistence.database.extra_parameters"
	NATSEnabledKey                        = "nats.enabled"
	NATSURLKey                            = "nats.url"
	NATSSubjectPrefixKey                  = "nats.subject_prefix"
)

const (
	DefaultConfigPath                  = "config.yaml"
	DefaultLogLevel                    = LogLevelInfo
	DefaultHTTPMode                    = GatewayModeWebSocket
	DefaultHTTPHost                    = "127.0.0.1"
	DefaultHTTPPort                    = 8545
	DefaultHTTPMetricsHost             = "127.0.0.1"
	DefaultHTTPMetricsPort             = 9545
	DefaultWebSocketRateBurst          = 50
	DefaultWebSocketSendBuffer         = 256
	DefaultSimulatorChainID            = 1337
	DefaultSimulatorAccounts           = 10
	DefaultSimulatorInitialBalance     = 100
	DefaultSimulatorBlockGasLimit      = 30_000_000
	DefaultPersistenceDatabaseDriver   = DatabaseDriverSQLite
	DefaultPersistenceDatabaseDatabase = ":memory:"
	DefaultNATSURL                     = "nats://127.0.0.1:4222"
	DefaultNATSSubjectPrefix           = "remix.simulator"
)

func RegisterFlags(cmd *cobra.Command) {
	cmd.Flags().StringP(ConfigFileKey, "c", DefaultConfigPath, "Config file path")
	cmd.Flags().String(LogLevelKey, string(DefaultLogLevel), "Log level (debug, info, warn, error)")
	cmd.Flags().String(HTTPModeKey, string(DefaultHTTPMode), "Gateway transport (websocket or http)")
	cmd.Flags().String(HTTPHostKey, DefaultHTTPHost, "Gateway bind address")
	cmd.Flags().Uint16(HTTPPortKey, DefaultHTTPPort, "Gateway bind port")
	cmd.Flags().Bool(HTTPCompressionKey, false, "Gzip HTTP JSON-RPC responses")
	cmd.Flags().Bool(HTTPTracingEnabledKey, false, "Enable Open Telemetry tracing")
	cmd.Flags().String(HTTPTracingOTLPEndKey, "", "Open Telemetry endpoint")
	cmd.Flags().Bool(HTTPPProfEnabledKey, false, "Enable pprof")
	cmd.Flags().StringSlice(HTTPTrustedProxiesKey, []string{}, "Comma-separated list of trusted proxies")
	cmd.Flags().Bool(HTTPMetricsEnabledKey, false, "Enable metrics server")
	cmd.Flags().String(HTTPMetricsHostKey, DefaultHTTPMetricsHost, "Metrics server host")
	cmd.Flags().Uint16(HTTPMetricsPortKey, DefaultHTTPMetricsPort, "Metrics server port")
	cmd.Flags().StringSlice(HTTPCORSHostsKey, []string{}, "Comma-separated list of CORS hosts")
	cmd.Flags().String(HTTPAuthJWTSecretKey, "", "Require HS256 bearer tokens signed with this secret")
	cmd.Flags().Float64(WebSocketRateLimitKey, 0, "Requests per second allowed per websocket connection (0 disables)")
	cmd.Flags().Int(WebSocketRateBurstKey, DefaultWebSocketRateBurst, "Burst size for the websocket rate limit")
	cmd.Flags().Int(WebSocketSendBufferKey, DefaultWebSocketSendBuffer, "Outbound frame buffer per websocket connection")
	cmd.Flags().Uint64(SimulatorChainIDKey, DefaultSimulatorChainID, "Simulated chain ID")
	cmd.Flags().Int(SimulatorAccountsKey, DefaultSimulatorAccounts, "Number of test accounts")
	cmd.Flags().Uint64(SimulatorInitialBalanceEtherKey, DefaultSimulatorInitialBalance, "Initial balance of each test account in ether")
	cmd.Flags().Uint64(SimulatorBlockGasLimitKey, DefaultSimulatorBlockGasLimit, "Block gas limit")
	cmd.Flags().String(PersistenceDatabaseDriverKey, string(DefaultPersistenceDatabaseDriver), "Database driver")
	cmd.Flags().String(PersistenceDatabaseDatabaseKey, DefaultPersistenceDatabaseDatabase, "Database name or path")
	cmd.Flags().String(PersistenceDatabaseUsernameKey, "", "Database username")
	cmd.Flags().String(PersistenceDatabasePasswordKey, "", "Database password")
	cmd.Flags().String(PersistenceDatabaseHostKey, "", "Database host")
	cmd.Flags().Uint16(PersistenceDatabasePortKey, 0, "Database port")
	cmd.Flags().String(PersistenceDatabaseExtraParametersKey, "", "Database extra parameters")
	cmd.Flags().Bool(NATSEnabledKey, false, "Publish telemetry and provider events to NATS")
	cmd.Flags().String(NATSURLKey, DefaultNATSURL, "NATS server URL")
	cmd.Flags().String(NATSSubjectPrefixKey, DefaultNATSSubjectPrefix, "NATS subject prefix")
}

var (
	ErrInvalidLogLevel        = errors.New("Invalid log level")
	ErrInvalidMode            = errors.New("HTTP mode must be websocket or http")
	ErrOTLPEndpointRequired   = errors.New("OTLP endpoint is required when tracing is enabled")
	ErrMetricsPortConflict    = errors.New("Metrics port must differ from the gateway port")
	ErrRateBurstRequired      = errors.New("Websocket rate burst must be positive when rate limiting is enabled")
	ErrSendBufferRequired     = errors.New("Websocket send buffer must be positive")
	ErrAccountsRequired       = errors.New("At least one simulator account is required")
	ErrChainIDRequired        = errors.New("Simulator chain ID is required")
	ErrDBHostRequired         = errors.New("Database host is required")
	ErrDBDatabaseRequired     = errors.New("Database name is required")
	ErrDatabaseDriverRequired = errors.New("Database driver is required")
	ErrDatabaseDriverInvalid  = errors.New("Database driver must be sqlite, mysql or postgres")
	ErrNATSURLRequired        = errors.New("NATS URL is required when NATS is enabled")
)

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return ErrInvalidLogLevel
	}
	if c.HTTP.Mode != GatewayModeWebSocket && c.HTTP.Mode != GatewayModeHTTP {
		return ErrInvalidMode
	}
	if c.HTTP.Tracing.Enabled && c.HTTP.Tracing.OTLPEndpoint == "" {
		return ErrOTLPEndpointRequired
	}
	if c.HTTP.Metrics.Enabled && c.HTTP.Metrics.Port == c.HTTP.Port {
		return ErrMetricsPortConflict
	}
	if c.WebSocket.RateLimit > 0 && c.WebSocket.RateBurst <= 0 {
		return ErrRateBurstRequired
	}
	if c.WebSocket.SendBuffer <= 0 {
		return ErrSendBufferRequired
	}
	if c.Simulator.Accounts <= 0 {
		return ErrAccountsRequired
	}
	if c.Simulator.ChainID == 0 {
		return ErrChainIDRequired
	}
	if c.Persistence.Database.Driver == "" {
		return ErrDatabaseDriverRequired
	}
	switch c.Persistence.Database.Driver {
	case DatabaseDriverSQLite, DatabaseDriverMySQL, DatabaseDriverPostgres:
	default:
		return ErrDatabaseDriverInvalid
	}
	if c.Persistence.Database.Driver != DatabaseDriverSQLite && c.Persistence.Database.Host == "" {
		return ErrDBHostRequired
	}
	if c.Persistence.Database.Database == "" {
		return ErrDBDatabaseRequired
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return ErrNATSURLRequired
	}

	return nil
}

// SlogLevel maps the configured level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func LoadConfig(cmd *cobra.Command) (*Config, error) {
	var config Config

	// Load flags from envs
	ctx, cancel := context.WithCancelCause(cmd.Context())
	defer cancel(nil)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if ctx.Err() != nil {
			return
		}
		optName := strings.ReplaceAll(strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_"), ".", "__")
		if val, ok := os.LookupEnv(optName); !f.Changed && ok {
			if err := f.Value.Set(val); err != nil {
				cancel(err)
			}
			f.Changed = true
		}
	})
	if ctx.Err() != nil {
		return &config, fmt.Errorf("failed to load env: %w", context.Cause(ctx))
	}

	configPath, err := cmd.Flags().GetString(ConfigFileKey)
	if err != nil {
		return &config, fmt.Errorf("failed to get config path: %w", err)
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return &config, fmt.Errorf("failed to read config: %w", err)
		} else if err == nil {
			if err := yaml.Unmarshal(data, &config); err != nil {
				return &config, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	err = overrideFlags(&config, cmd)
	if err != nil {
		return &config, fmt.Errorf("failed to override flags: %w", err)
	}

	// Defaults
	if config.LogLevel == "" {
		config.LogLevel = DefaultLogLevel
	}
	if config.HTTP.Mode == "" {
		config.HTTP.Mode = DefaultHTTPMode
	}
	if config.HTTP.Host == "" {
		config.HTTP.Host = DefaultHTTPHost
	}
	if config.HTTP.Port == 0 {
		config.HTTP.Port = DefaultHTTPPort
	}
	if config.HTTP.Metrics.Host == "" {
		config.HTTP.Metrics.Host = DefaultHTTPMetricsHost
	}
	if config.HTTP.Metrics.Port == 0 {
		config.HTTP.Metrics.Port = DefaultHTTPMetricsPort
	}
	if config.WebSocket.RateBurst == 0 {
		config.WebSocket.RateBurst = DefaultWebSocketRateBurst
	}
	if config.WebSocket.SendBuffer == 0 {
		config.WebSocket.SendBuffer = DefaultWebSocketSendBuffer
	}
	if config.Simulator.ChainID == 0 {
		config.Simulator.ChainID = DefaultSimulatorChainID
	}
	if config.Simulator.Accounts == 0 {
		config.Simulator.Accounts = DefaultSimulatorAccounts
	}
	if config.Simulator.InitialBalanceEther == 0 {
		config.Simulator.InitialBalanceEther = DefaultSimulatorInitialBalance
	}
	if config.Simulator.BlockGasLimit == 0 {
		config.Simulator.BlockGasLimit = DefaultSimulatorBlockGasLimit
	}
	if config.Persistence.Database.Driver == "" {
		config.Persistence.Database.Driver = DefaultPersistenceDatabaseDriver
	}
	if config.Persistence.Database.Database == "" {
		config.Persistence.Database.Database = DefaultPersistenceDatabaseDatabase
	}
	if config.NATS.URL == "" {
		config.NATS.URL = DefaultNATSURL
	}
	if config.NATS.SubjectPrefix == "" {
		config.NATS.SubjectPrefix = DefaultNATSSubjectPrefix
	}

	return &config, nil
}

//nolint:gocyclo
func overrideFlags(config *Config, cmd *cobra.Command) error {
	var err error
	if cmd.Flags().Changed(LogLevelKey) {
		lvl, err := cmd.Flags().GetString(LogLevelKey)
		if err != nil {
			return fmt.Errorf("failed to get log level: %w", err)
		}
		config.LogLevel = LogLevel(strings.ToLower(lvl))
	}

	if cmd.Flags().Changed(HTTPModeKey) {
		mode, err := cmd.Flags().GetString(HTTPModeKey)
		if err != nil {
			return fmt.Errorf("failed to get HTTP mode: %w", err)
		}
		config.HTTP.Mode = GatewayMode(strings.ToLower(mode))
	}

	if cmd.Flags().Changed(HTTPHostKey) {
		config.HTTP.Host, err = cmd.Flags().GetString(HTTPHostKey)
		if err != nil {
			return fmt.Errorf("failed to get HTTP host: %w", err)
		}
	}

	if cmd.Flags().Changed(HTTPPortKey) {
		config.HTTP.Port, err = cmd.Flags().GetUint16(HTTPPortKey)
		if err != nil {
			return fmt.Errorf("failed to get HTTP port: %w", err)
		}
	}

	if cmd.Flags().Changed(HTTPCompressionKey) {
		config.HTTP.Compression, err = cmd.Flags().GetBool(HTTPCompressionKey)
		if err != nil {
			return fmt.Errorf("failed to get HTTP compression: %w", err)
		}
	}

	if cmd.Flags().Changed(HTTPPProfEnabledKey) {
		config.HTTP.PProf.Enabled, err = cmd.Flags().GetBool(HTTPPProfEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get pprof enabled: %w", err)
		}
	}

	if cmd.Flags().Changed(HTTPTrustedProxiesKey) {
		config.HTTP.TrustedProxies, err = cmd.Flags().GetStringSlice(HTTPTrustedProxiesKey)
		if err != nil {
			return fmt.Errorf("failed to get trusted proxies: %w", err)
		}
	}

	if cmd.Flags().Changed(HTTPMetricsEnabledKey) {
		config.HTTP.Metrics.Enabled, err = cmd.Flags().GetBool(HTTPMetricsEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get metrics enabled: %w", err)
		}
	}

	if cmd.Flags().Changed(HTTPMetricsHostKey) {
		config.HTTP.Metrics.Host, err = cmd.Flags().GetString(HTTPMetricsHostKey)
		if err != nil {
			return fmt.Errorf("failed to get metrics host: %w", err)
		}
	}

	if cmd.Flags().Changed(HTTPMetricsPortKey) {
		config.HTTP.Metrics.Port, err = cmd.Flags().GetUint16(HTTPMetricsPortKey)
		if err != nil {
			return fmt.Errorf("failed to get metrics port: %w", err)
		}
	}

	if cmd.Flags().Changed(HTTPTracingEnabledKey) {
		config.HTTP.Tracing.Enabled, err = cmd.Flags().GetBool(HTTPTracingEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get tracing enabled: %w", err)
		}
	}

	if cmd.Flags().Changed(HTTPTracingOTLPEndKey) {
		config.HTTP.Tracing.OTLPEndpoint, err = cmd.Flags().GetString(HTTPTracingOTLPEndKey)
		if err != nil {
			return fmt.Errorf("failed to get tracing OTLP endpoint: %w", err)
		}
	}

	if cmd.Flags().Changed(HTTPCORSHostsKey) {
		config.HTTP.CORSHosts, err = cmd.Flags().GetStringSlice(HTTPCORSHostsKey)
		if err != nil {
			return fmt.Errorf("failed to get CORS hosts: %w", err)
		}
	}

	if cmd.Flags().Changed(HTTPAuthJWTSecretKey) {
		config.HTTP.Auth.JWTSecret, err = cmd.Flags().GetString(HTTPAuthJWTSecretKey)
		if err != nil {
			return fmt.Errorf("failed to get JWT secret: %w", err)
		}
	}

	if cmd.Flags().Changed(WebSocketRateLimitKey) {
		config.WebSocket.RateLimit, err = cmd.Flags().GetFloat64(WebSocketRateLimitKey)
		if err != nil {
			return fmt.Errorf("failed to get websocket rate limit: %w", err)
		}
	}

	if cmd.Flags().Changed(WebSocketRateBurstKey) {
		config.WebSocket.RateBurst, err = cmd.Flags().GetInt(WebSocketRateBurstKey)
		if err != nil {
			return fmt.Errorf("failed to get websocket rate burst: %w", err)
		}
	}

	if cmd.Flags().Changed(WebSocketSendBufferKey) {
		config.WebSocket.SendBuffer, err = cmd.Flags().GetInt(WebSocketSendBufferKey)
		if err != nil {
			return fmt.Errorf("failed to get websocket send buffer: %w", err)
		}
	}

	if cmd.Flags().Changed(SimulatorChainIDKey) {
		config.Simulator.ChainID, err = cmd.Flags().GetUint64(SimulatorChainIDKey)
		if err != nil {
			return fmt.Errorf("failed to get simulator chain ID: %w", err)
		}
	}

	if cmd.Flags().Changed(SimulatorAccountsKey) {
		config.Simulator.Accounts, err = cmd.Flags().GetInt(SimulatorAccountsKey)
		if err != nil {
			return fmt.Errorf("failed to get simulator accounts: %w", err)
		}
	}

	if cmd.Flags().Changed(SimulatorInitialBalanceEtherKey) {
		config.Simulator.InitialBalanceEther, err = cmd.Flags().GetUint64(SimulatorInitialBalanceEtherKey)
		if err != nil {
			return fmt.Errorf("failed to get simulator initial balance: %w", err)
		}
	}

	if cmd.Flags().Changed(SimulatorBlockGasLimitKey) {
		config.Simulator.BlockGasLimit, err = cmd.Flags().GetUint64(SimulatorBlockGasLimitKey)
		if err != nil {
			return fmt.Errorf("failed to get simulator block gas limit: %w", err)
		}
	}

	if cmd.Flags().Changed(PersistenceDatabaseDriverKey) {
		drvr, err := cmd.Flags().GetString(PersistenceDatabaseDriverKey)
		if err != nil {
			return fmt.Errorf("failed to get database driver: %w", err)
		}
		config.Persistence.Database.Driver = DatabaseDriver(strings.ToLower(drvr))
	}

	if cmd.Flags().Changed(PersistenceDatabaseDatabaseKey) {
		config.Persistence.Database.Database, err = cmd.Flags().GetString(PersistenceDatabaseDatabaseKey)
		if err != nil {
			return fmt.Errorf("failed to get database name: %w", err)
		}
	}

	if cmd.Flags().Changed(PersistenceDatabaseUsernameKey) {
		config.Persistence.Database.Username, err = cmd.Flags().GetString(PersistenceDatabaseUsernameKey)
		if err != nil {
			return fmt.Errorf("failed to get database username: %w", err)
		}
	}

	if cmd.Flags().Changed(PersistenceDatabasePasswordKey) {
		config.Persistence.Database.Password, err = cmd.Flags().GetString(PersistenceDatabasePasswordKey)
		if err != nil {
			return fmt.Errorf("failed to get database password: %w", err)
		}
	}

	if cmd.Flags().Changed(PersistenceDatabaseHostKey) {
		config.Persistence.Database.Host, err = cmd.Flags().GetString(PersistenceDatabaseHostKey)
		if err != nil {
			return fmt.Errorf("failed to get database host: %w", err)
		}
	}

	if cmd.Flags().Changed(PersistenceDatabasePortKey) {
		config.Persistence.Database.Port, err = cmd.Flags().GetUint16(PersistenceDatabasePortKey)
		if err != nil {
			return fmt.Errorf("failed to get database port: %w", err)
		}
	}

	if cmd.Flags().Changed(PersistenceDatabaseExtraParametersKey) {
		config.Persistence.Database.ExtraParameters, err = cmd.Flags().GetString(PersistenceDatabaseExtraParametersKey)
		if err != nil {
			return fmt.Errorf("failed to get database extra parameters: %w", err)
		}
	}

	if cmd.Flags().Changed(NATSEnabledKey) {
		config.NATS.Enabled, err = cmd.Flags().GetBool(NATSEnabledKey)
		if err != nil {
			return fmt.Errorf("failed to get NATS enabled: %w", err)
		}
	}

	if cmd.Flags().Changed(NATSURLKey) {
		config.NATS.URL, err = cmd.Flags().GetString(NATSURLKey)
		if err != nil {
			return fmt.Errorf("failed to get NATS URL: %w", err)
		}
	}

	if cmd.Flags().Changed(NATSSubjectPrefixKey) {
		config.NATS.SubjectPrefix, err = cmd.Flags().GetString(NATSSubjectPrefixKey)
		if err != nil {
			return fmt.Errorf("failed to get NATS subject prefix: %w", err)
		}
	}

	return nil
}
