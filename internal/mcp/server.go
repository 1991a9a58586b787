// Package mcp provides an MCP (Model Context Protocol) server exposing
// derivation, matching and simulation as tools.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/rendezvous/internal/config"
	"github.com/nvandessel/rendezvous/internal/logging"
	"github.com/nvandessel/rendezvous/internal/ratelimit"
	"github.com/nvandessel/rendezvous/internal/store"
)

// Server wraps the MCP SDK server.
type Server struct {
	server       *sdk.Server
	store        store.RunStore
	settings     *config.RendezvousConfig
	toolLimiters ratelimit.ToolLimiters
	auditLogger  *AuditLogger
	decisions    *logging.DecisionLogger
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "rendezvous")
	Version string // Server version

	// Settings supplies defaults and the store directory. Nil uses
	// config.Default() with a temporary-free in-memory store.
	Settings *config.RendezvousConfig

	// Store overrides the run history. Nil opens the SQLite store in
	// Settings.Store.Dir, or an in-memory store when that is empty.
	Store store.RunStore

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger
}

// NewServer creates a new MCP server with rendezvous tools.
func NewServer(cfg *Config) (*Server, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	runStore := cfg.Store
	if runStore == nil {
		if settings.Store.Dir == "" {
			runStore = store.NewMemoryRunStore()
		} else {
			sqliteStore, err := store.NewSQLiteRunStore(settings.Store.Dir)
			if err != nil {
				return nil, fmt.Errorf("failed to open run store: %w", err)
			}
			runStore = sqliteStore
		}
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		store:        runStore,
		settings:     settings,
		toolLimiters: ratelimit.NewToolLimiters(),
		logger:       logger,
	}
	if settings.Store.Dir != "" {
		s.auditLogger = NewAuditLogger(settings.Store.Dir)
		s.decisions = logging.NewDecisionLogger(settings.Store.Dir, settings.Logging.Level, "mcp")
	}

	s.registerTools()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("mcp server listening on stdio")
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Close releases the store and log files.
func (s *Server) Close() error {
	s.decisions.Close()
	auditErr := s.auditLogger.Close()
	if err := s.store.Close(); err != nil {
		return err
	}
	return auditErr
}
