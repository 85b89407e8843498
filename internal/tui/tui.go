package tui

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/overlayd/internal/config"
	"github.com/1broseidon/overlayd/internal/store"
)

// Options configures the TUI.
type Options struct {
	Config *config.Config
	Store  *store.Store
	// Client talks to a running daemon. Nil disables the daemon tab commands.
	Client DaemonClient
}

// Run starts the TUI and blocks until the user quits.
func Run(opts Options) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	if opts.Store == nil {
		return errors.New("tui: store is required")
	}

	p := tea.NewProgram(newModel(opts.Config, opts.Store, opts.Client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
