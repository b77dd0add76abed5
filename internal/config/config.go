package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/finassist/finassist/internal/gateway"
)

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config stores environment-driven settings.
type Config struct {
	// LogLevel sets the logger level.
	LogLevel string `env:"FINASSIST_LOG_LEVEL" envDefault:"info"`
	// Lang selects the prompt language.
	Lang string `env:"FINASSIST_LANG" envDefault:"en"`
	// DataPath points to the YAML dataset; empty uses the embedded sample.
	DataPath string `env:"FINASSIST_DATA_PATH"`
	// FamilyID selects the family the assistant works for.
	FamilyID string `env:"FINASSIST_FAMILY_ID" envDefault:"demo"`

	// GatewayURL is the model backend root.
	GatewayURL string `env:"FINASSIST_GATEWAY_URL"`
	// GatewayAPIKey is sent with every backend call.
	GatewayAPIKey string `env:"FINASSIST_GATEWAY_API_KEY"`
	// GatewayStreaming enables the streaming endpoint.
	GatewayStreaming bool `env:"FINASSIST_GATEWAY_STREAMING" envDefault:"true"`
	// GatewayChatTimeout bounds follow-up and classification calls.
	GatewayChatTimeout time.Duration `env:"FINASSIST_GATEWAY_CHAT_TIMEOUT" envDefault:"30s"`
	// GatewayFirstCallTimeout bounds the first call of a turn.
	GatewayFirstCallTimeout time.Duration `env:"FINASSIST_GATEWAY_FIRST_CALL_TIMEOUT" envDefault:"90s"`

	// HistoryLimit caps the chat history sent per turn.
	HistoryLimit int `env:"FINASSIST_HISTORY_LIMIT" envDefault:"20"`
	// CategorizeBatchSize is the number of transactions per classification call.
	CategorizeBatchSize int `env:"FINASSIST_CATEGORIZE_BATCH_SIZE" envDefault:"25"`
	// CategorizeRatePerMinute limits classification calls; 0 disables the limit.
	CategorizeRatePerMinute int `env:"FINASSIST_CATEGORIZE_RATE_PER_MINUTE" envDefault:"0"`

	// MCPTransport is stdio or http.
	MCPTransport string `env:"FINASSIST_MCP_TRANSPORT" envDefault:"stdio"`
	// MCPListen is the HTTP listen address.
	MCPListen string `env:"FINASSIST_MCP_LISTEN" envDefault:":8080"`
	// MCPPath is the HTTP path of the MCP endpoint.
	MCPPath string `env:"FINASSIST_MCP_PATH" envDefault:"/mcp"`
	// MCPStateless disables HTTP session tracking.
	MCPStateless bool `env:"FINASSIST_MCP_STATELESS" envDefault:"false"`
	// MCPCacheTTL controls how long tool results are reused.
	MCPCacheTTL time.Duration `env:"FINASSIST_MCP_CACHE_TTL" envDefault:"30s"`
	// MCPCacheMaxEntries bounds the result cache; 0 disables caching.
	MCPCacheMaxEntries int `env:"FINASSIST_MCP_CACHE_MAX_ENTRIES" envDefault:"1000"`

	// ShutdownTimeout controls graceful shutdown duration.
	ShutdownTimeout time.Duration `env:"FINASSIST_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses environment variables into Config.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	switch c.MCPTransport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unsupported mcp transport %q", c.MCPTransport)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history limit must not be negative")
	}
	if c.CategorizeBatchSize < 0 || c.CategorizeRatePerMinute < 0 {
		return fmt.Errorf("categorize settings must not be negative")
	}
	if c.MCPTransport == TransportHTTP && !strings.HasPrefix(c.MCPPath, "/") {
		return fmt.Errorf("mcp path must start with /")
	}
	return nil
}

// Gateway projects the backend settings.
func (c Config) Gateway() gateway.Config {
	return gateway.Config{
		BaseURL:          strings.TrimRight(c.GatewayURL, "/"),
		APIKey:           c.GatewayAPIKey,
		Streaming:        c.GatewayStreaming,
		ChatTimeout:      c.GatewayChatTimeout,
		FirstCallTimeout: c.GatewayFirstCallTimeout,
	}
}
