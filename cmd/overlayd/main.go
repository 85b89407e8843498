package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/1broseidon/overlayd/internal/config"
	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/hotkeys"
	"github.com/1broseidon/overlayd/internal/ipc"
	"github.com/1broseidon/overlayd/internal/monitor"
	"github.com/1broseidon/overlayd/internal/platform"
	"github.com/1broseidon/overlayd/internal/store"
	"github.com/1broseidon/overlayd/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "show":
		os.Exit(runShow(os.Args[2:]))
	case "hide":
		os.Exit(runHide(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "save-position":
		os.Exit(runSavePosition(os.Args[2:]))
	case "inspect":
		os.Exit(runInspect(os.Args[2:]))
	case "profile":
		os.Exit(runProfile(os.Args[2:]))
	case "resolve":
		os.Exit(runResolve(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: overlayd <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the overlay daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  show                Show the overlay")
	fmt.Fprintln(w, "  hide                Hide the overlay until shown again")
	fmt.Fprintln(w, "  reload              Reload config and stored profiles")
	fmt.Fprintln(w, "  save-position       Save the last dragged position as a profile")
	fmt.Fprintln(w, "  inspect             List interactive elements of the focused window")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  profile list        List stored profiles")
	fmt.Fprintln(w, "  profile get         Show one profile")
	fmt.Fprintln(w, "  profile save        Create or update a profile")
	fmt.Fprintln(w, "  profile delete      Delete a profile")
	fmt.Fprintln(w, "  profile duplicate   Copy a profile under a new name")
	fmt.Fprintln(w, "  profile export      Write all profiles to a JSON file")
	fmt.Fprintln(w, "  profile import      Read profiles from a JSON file")
	fmt.Fprintln(w, "  profile stats       Summarize stored profiles")
	fmt.Fprintln(w, "  profile cleanup     Remove profiles not modified recently")
	fmt.Fprintln(w, "  resolve             Compute where a profile lands on a screen")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config path         Print the config file path")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open interactive TUI")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'overlayd <command> --help' for command-specific options.")
}

// loadConfig reads path, or the default config path when empty.
func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return config.LoadFromPath(path)
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
}

// openStore opens the file-backed profile store configured by cfg.
func openStore(cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	dir, err := cfg.ResolvedStoreDir()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.NewFileKV(dir), store.Options{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store in %s: %w", dir, err)
	}
	if report := st.LoadReport(); report.Skipped > 0 {
		logger.Warn("skipped malformed profiles", "count", report.Skipped, "dir", dir)
	}
	return st, nil
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/overlayd/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: overlayd daemon [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the overlay daemon in the foreground. SIGHUP reloads config and profiles.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := res.Config
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "path", res.Path, "exists", res.Exists, "targets", len(cfg.Targets))

	st, err := openStore(cfg, logger.With("component", "store"))
	if err != nil {
		log.Fatalf("Failed to open profile store: %v", err)
	}

	backend, err := platform.NewLinuxBackendFromDisplay(cfg.Display, platform.LinuxOptions{
		DensityOverride: cfg.DensityOverride,
	})
	if err != nil {
		log.Fatalf("Failed to connect to display: %v", err)
	}
	defer backend.Disconnect()

	// Focus changes arrive as property events; polling still samples the
	// latest value.
	var foreground platform.ForegroundSource
	push := monitor.NewPushSource()
	if err := backend.WatchForeground(push.OnForegroundChanged); err != nil {
		logger.Warn("focus events unavailable, polling only", "error", err)
	} else {
		if id, ok := backend.CurrentForegroundID(); ok {
			push.OnForegroundChanged(id)
		}
		foreground = push
	}

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		Backend:    backend,
		Foreground: foreground,
		Store:      st,
		LoadConfig: func() (*config.Config, error) {
			res, err := loadConfig(*path)
			if err != nil {
				return nil, err
			}
			return res.Config, nil
		},
		Logger: logger.With("component", "daemon"),
	})
	if err != nil {
		log.Fatalf("Failed to create daemon: %v", err)
	}
	backend.SetPointerHandler(d.OnPointer)

	hotkeyHandler, err := hotkeys.NewHandler(backend, d, logger.With("component", "hotkeys"))
	if err != nil {
		logger.Warn("global hotkeys unavailable", "error", err)
	} else if err := hotkeyHandler.Register(cfg.ToggleHotkey, cfg.SaveHotkey); err != nil {
		logger.Warn("failed to register hotkeys", "error", err)
	} else {
		logger.Info("hotkeys registered", "toggle", cfg.ToggleHotkey, "save", cfg.SaveHotkey)
	}

	ipcServer, err := ipc.NewServer(d, ipc.ServerOptions{Logger: logger.With("component", "ipc")})
	if err != nil {
		log.Fatalf("Failed to create IPC server: %v", err)
	}
	if err := ipcServer.Start(); err != nil {
		log.Fatalf("Failed to start IPC server: %v", err)
	}
	defer ipcServer.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				if sig == syscall.SIGHUP {
					logger.Info("received SIGHUP, reloading")
					if res, err := d.Reload(); err != nil {
						logger.Warn("reload failed", "error", err)
					} else {
						logger.Info("reloaded", "profiles", res.Profiles, "skipped", res.Skipped)
					}
					continue
				}
				logger.Info("shutting down overlayd daemon", "signal", sig.String())
				cancel()
				return
			}
		}
	}()

	go backend.EventLoop()

	logger.Info("overlayd daemon started", "socket", ipcServer.SocketPath())
	if err := d.Run(ctx); err != nil {
		logger.Error("daemon stopped with error", "error", err)
		backend.Quit()
		return 1
	}
	backend.Quit()
	return 0
}

func runTUI(args []string) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("path", "", "Config file path (default: ~/.config/overlayd/config.yaml)")

	if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help") {
		fmt.Fprintln(os.Stderr, "Usage: overlayd tui [--path PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Interactive profile browser with placement preview.")
		fmt.Fprintln(os.Stderr, "Works offline when the daemon is not running.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings (Profiles tab):")
		fmt.Fprintln(os.Stderr, "  j/k, ↑/↓  Navigate profiles")
		fmt.Fprintln(os.Stderr, "  +/-       Grow or shrink the overlay")
		fmt.Fprintln(os.Stderr, "  [/]       Lower or raise opacity")
		fmt.Fprintln(os.Stderr, "  e, Enter  Edit all fields")
		fmt.Fprintln(os.Stderr, "  c         Duplicate under a new name")
		fmt.Fprintln(os.Stderr, "  x x       Delete")
		fmt.Fprintln(os.Stderr, "  E         Export all profiles")
		fmt.Fprintln(os.Stderr, "  s         Cycle preview screen")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings (Daemon tab):")
		fmt.Fprintln(os.Stderr, "  s/h       Show or hide the overlay")
		fmt.Fprintln(os.Stderr, "  r         Reload config and profiles")
		fmt.Fprintln(os.Stderr, "  p         Save the last dragged position")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "  q, Ctrl+C Quit")
		return 0
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := openStore(res.Config, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := tui.Run(tui.Options{Config: res.Config, Store: st, Client: ipc.NewClient()}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
