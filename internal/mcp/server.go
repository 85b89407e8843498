package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/overlayd/internal/config"
	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/ipc"
	"github.com/1broseidon/overlayd/internal/store"
)

const (
	ServerName    = "overlayd"
	ServerVersion = "0.1.0"
)

// StatusSource reports the running daemon's status. *ipc.Client implements it.
type StatusSource interface {
	Status() (*daemon.Status, error)
}

// Options configures a Server.
type Options struct {
	Config *config.Config
	Store  *store.Store
	// Daemon defaults to an IPC client on the standard socket.
	Daemon StatusSource
	Logger *slog.Logger
}

// Server is the MCP server exposing overlay profiles.
type Server struct {
	mcpServer *mcpsdk.Server
	config    *config.Config
	store     *store.Store
	daemon    StatusSource
	logger    *slog.Logger

	// mu serializes store mutations with catalog reads for resolve_placement.
	mu sync.Mutex
}

// NewServer creates a new MCP server over the profile store.
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("mcp server config is nil")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("mcp server store is nil")
	}

	s := &Server{
		config: opts.Config,
		store:  opts.Store,
		daemon: opts.Daemon,
		logger: opts.Logger,
	}
	if s.daemon == nil {
		s.daemon = ipc.NewClient()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_profiles",
		Description: "List stored overlay profiles. Set include_builtin to also list built-in and config-file profiles that have no stored record.",
	}, s.handleListProfiles)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_profile",
		Description: "Get one stored overlay profile by name.",
	}, s.handleGetProfile)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "save_profile",
		Description: "Create or update a stored overlay profile. Positions and size are in reference pixels (target_width x target_height, default 1920x1080). Omitted fields keep their current value.",
	}, s.handleSaveProfile)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "delete_profile",
		Description: "Delete a stored overlay profile. The Default profile cannot be deleted.",
	}, s.handleDeleteProfile)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "duplicate_profile",
		Description: "Copy a stored profile under a new name with fresh timestamps.",
	}, s.handleDuplicateProfile)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "export_profiles",
		Description: "Write every stored profile to a JSON file.",
	}, s.handleExportProfiles)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "import_profiles",
		Description: "Merge profiles from a file written by export_profiles. Existing names are skipped unless overwrite is true; malformed records are skipped and counted.",
	}, s.handleImportProfiles)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "profile_stats",
		Description: "Count stored profiles, elevated-mode profiles, and report the oldest and newest by creation time.",
	}, s.handleProfileStats)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "cleanup_profiles",
		Description: "Remove stored profiles not modified in older_than_days days. Default is never removed.",
	}, s.handleCleanupProfiles)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "resolve_placement",
		Description: "Compute where the overlay for a profile lands on a screen of the given size, density and orientation, and whether the screen is large enough to show it.",
	}, s.handleResolvePlacement)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "overlay_status",
		Description: "Report what the running overlayd daemon is showing. running is false when no daemon answers.",
	}, s.handleOverlayStatus)
}
