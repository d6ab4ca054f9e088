package mcp

import (
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sonetyo/ledger/internal/domain/ledger"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Config contains server configuration.
type Config struct {
	Handler         *Handler
	Resolver        IdentityResolver
	AuthEnabled     bool
	DefaultIdentity ledger.Identity
	TransportMode   string // "stdio" or "http"
	Logger          *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "sonetyo-ledger",
		Version: Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio mode is local: every call acts as the default identity.
	if cfg.TransportMode == "stdio" || !cfg.AuthEnabled || cfg.Resolver == nil {
		server.AddReceivingMiddleware(noAuthMiddleware(cfg.DefaultIdentity))
	} else {
		server.AddReceivingMiddleware(authMiddleware(cfg.Resolver))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Handler)

	return server
}
