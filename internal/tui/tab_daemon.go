package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/ipc"
	"github.com/1broseidon/overlayd/internal/overlay"
)

// DaemonClient is the subset of the IPC client the TUI drives.
type DaemonClient interface {
	Status() (*daemon.Status, error)
	Show() (*overlay.State, error)
	Hide() (*overlay.State, error)
	Reload() (*ipc.ReloadData, error)
	SavePosition(name string) (*ipc.SavePositionData, error)
}

// DaemonTab shows live daemon state and sends overlay commands.
type DaemonTab struct {
	client DaemonClient
	status *daemon.Status
	err    error

	naming bool
	input  textinput.Model

	statusText string
	width      int
	height     int
}

// NewDaemonTab creates the daemon tab. client may be nil.
func NewDaemonTab(client DaemonClient) DaemonTab {
	ti := textinput.New()
	ti.Placeholder = "profile name"
	ti.CharLimit = 128
	return DaemonTab{client: client, input: ti}
}

// Capturing reports whether the tab is consuming all key input.
func (dt DaemonTab) Capturing() bool {
	return dt.naming
}

// SetStatus records the latest status poll.
func (dt *DaemonTab) SetStatus(st *daemon.Status, err error) {
	dt.status = st
	dt.err = err
}

// Update implements tea.Model.
func (dt DaemonTab) Update(msg tea.Msg) (DaemonTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		dt.width = msg.Width
		dt.height = msg.Height
		return dt, nil

	case statusMsg:
		dt.statusText = msg.text
		return dt, clearStatusAfter()

	case clearStatusMsg:
		dt.statusText = ""
		return dt, nil

	case tea.KeyMsg:
		if dt.naming {
			return dt.updateNaming(msg)
		}
		if dt.client == nil {
			return dt, nil
		}
		switch msg.String() {
		case "s":
			st, err := dt.client.Show()
			return dt.afterOverlayCall("shown", st, err)
		case "h":
			st, err := dt.client.Hide()
			return dt.afterOverlayCall("hidden", st, err)
		case "r":
			res, err := dt.client.Reload()
			if err != nil {
				return dt, dt.flash(fmt.Sprintf("error: %v", err))
			}
			return dt, dt.flash(fmt.Sprintf("reloaded: %d profiles (%d skipped)", res.Profiles, res.Skipped))
		case "p":
			dt.naming = true
			dt.input.Reset()
			dt.input.Focus()
			return dt, textinput.Blink
		}
	}

	if dt.naming {
		var cmd tea.Cmd
		dt.input, cmd = dt.input.Update(msg)
		return dt, cmd
	}
	return dt, nil
}

func (dt DaemonTab) updateNaming(msg tea.KeyMsg) (DaemonTab, tea.Cmd) {
	switch msg.String() {
	case "enter":
		name := strings.TrimSpace(dt.input.Value())
		dt.naming = false
		dt.input.Blur()
		if name == "" || dt.client == nil {
			return dt, nil
		}
		data, err := dt.client.SavePosition(name)
		if err != nil {
			return dt, dt.flash(fmt.Sprintf("error: %v", err))
		}
		return dt, dt.flash(fmt.Sprintf("saved %s at (%d,%d) size %d", data.Name, data.X, data.Y, data.Size))
	case "esc":
		dt.naming = false
		dt.input.Blur()
		return dt, nil
	}
	var cmd tea.Cmd
	dt.input, cmd = dt.input.Update(msg)
	return dt, cmd
}

func (dt DaemonTab) afterOverlayCall(verb string, st *overlay.State, err error) (DaemonTab, tea.Cmd) {
	if err != nil {
		return dt, dt.flash(fmt.Sprintf("error: %v", err))
	}
	if dt.status != nil && st != nil {
		next := *dt.status
		next.Overlay = *st
		dt.status = &next
	}
	return dt, dt.flash("overlay " + verb)
}

func (dt *DaemonTab) flash(text string) tea.Cmd {
	dt.statusText = text
	return clearStatusAfter()
}

// View implements tea.Model.
func (dt DaemonTab) View() string {
	if dt.width == 0 || dt.height == 0 {
		return ""
	}

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		Width(14)
	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15"))
	header := lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true)

	var b strings.Builder
	if dt.status == nil {
		b.WriteString(header.Render("Daemon not running"))
		b.WriteString("\n\n")
		hint := "start it with: overlayd daemon"
		if dt.err != nil {
			hint = dt.err.Error()
		}
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(hint))
	} else {
		st := dt.status
		b.WriteString(header.Render("Detection"))
		b.WriteString("\n")
		for _, r := range detectionRows(st) {
			b.WriteString(labelStyle.Render(r[0]) + valueStyle.Render(r[1]) + "\n")
		}
		b.WriteString("\n")
		b.WriteString(header.Render("Overlay"))
		b.WriteString("\n")
		for _, r := range overlayRows(st) {
			b.WriteString(labelStyle.Render(r[0]) + valueStyle.Render(r[1]) + "\n")
		}
	}

	content := lipgloss.NewStyle().
		Width(dt.width).
		Height(dt.height - 1).
		Padding(0, 2).
		Render(b.String())

	return lipgloss.JoinVertical(lipgloss.Left, content, dt.renderTabStatus())
}

func detectionRows(st *daemon.Status) [][2]string {
	target := st.Target
	if target == "" {
		target = "(none)"
	}
	known := "no"
	if st.Known {
		known = "yes"
	}
	rows := [][2]string{
		{"Target", target},
		{"Profile", st.ProfileID},
		{"Known", known},
		{"Samples", fmt.Sprintf("%d", st.Detection.SampleCount)},
	}
	if !st.Detection.LastChangeAt.IsZero() {
		rows = append(rows, [2]string{"Changed", st.Detection.LastChangeAt.Format(time.TimeOnly)})
	}
	if st.Reason != "" {
		rows = append(rows, [2]string{"Reason", st.Reason})
	}
	rows = append(rows,
		[2]string{"Profiles", fmt.Sprintf("%d", st.Profiles)},
		[2]string{"Uptime", (time.Duration(st.UptimeSeconds) * time.Second).String()},
	)
	return rows
}

func overlayRows(st *daemon.Status) [][2]string {
	visible := "hidden"
	if st.Overlay.Visible {
		visible = "shown"
	}
	if st.Overlay.DragInProgress {
		visible += " (dragging)"
	}
	m := st.Metrics
	return [][2]string{
		{"State", visible},
		{"Position", fmt.Sprintf("(%d,%d)", st.Overlay.Position.X, st.Overlay.Position.Y)},
		{"Size", fmt.Sprintf("%d", st.Overlay.Size)},
		{"Opacity", fmt.Sprintf("%.2f", st.Overlay.Opacity)},
		{"Screen", fmt.Sprintf("%dx%d @%.2f %s", m.WidthPx, m.HeightPx, m.Density, m.Orientation)},
	}
}

func (dt DaemonTab) renderTabStatus() string {
	if dt.naming {
		return lipgloss.NewStyle().
			Width(dt.width).
			Padding(0, 1).
			Render("Save position as: " + dt.input.View())
	}

	left := ""
	if dt.statusText != "" {
		left = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Render(dt.statusText)
	}
	right := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("s:show  h:hide  r:reload  p:save position")

	gap := dt.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.NewStyle().
		Width(dt.width).
		Padding(0, 1).
		Render(left + strings.Repeat(" ", gap) + right)
}
