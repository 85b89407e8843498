package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/overlayd/internal/config"
	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/store"
)

// statusPollInterval is how often the daemon status is refreshed.
const statusPollInterval = 2 * time.Second

// pollStatusMsg triggers a daemon status refresh.
type pollStatusMsg struct{}

func pollStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return pollStatusMsg{}
	})
}

// model is the root bubbletea model for the TUI.
type model struct {
	client DaemonClient

	// Tab navigation
	activeTab Tab

	// Sub-models
	profilesTab ProfilesTab
	daemonTab   DaemonTab

	// Daemon state, nil when the daemon is unreachable.
	status *daemon.Status

	// Terminal dimensions
	width  int
	height int
}

func newModel(cfg *config.Config, st *store.Store, client DaemonClient) model {
	m := model{
		client:      client,
		activeTab:   TabProfiles,
		profilesTab: NewProfilesTab(st, cfg),
		daemonTab:   NewDaemonTab(client),
	}
	m.refreshDaemonStatus()
	return m
}

func (m *model) refreshDaemonStatus() {
	if m.client == nil {
		return
	}
	st, err := m.client.Status()
	if err != nil {
		st = nil
	}
	m.status = st
	m.daemonTab.SetStatus(st, err)
	if st != nil {
		metrics := st.Metrics
		m.profilesTab.SetLiveMetrics(&metrics)
	} else {
		m.profilesTab.SetLiveMetrics(nil)
	}
}

// contentHeight returns the height available for tab content.
func (m model) contentHeight() int {
	// Approximate: status bar (1) + tab bar (2 with margin) + help bar (1) = 4 lines
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

func (m model) capturing() bool {
	switch m.activeTab {
	case TabProfiles:
		return m.profilesTab.Capturing()
	case TabDaemon:
		return m.daemonTab.Capturing()
	}
	return false
}

func (m *model) resize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	subMsg := tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()}
	m.profilesTab, _ = m.profilesTab.Update(subMsg)
	m.daemonTab, _ = m.daemonTab.Update(subMsg)
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	if m.client == nil {
		return nil
	}
	return pollStatusAfter(statusPollInterval)
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pollStatusMsg:
		m.refreshDaemonStatus()
		return m, pollStatusAfter(statusPollInterval)
	case tea.WindowSizeMsg:
		m.resize(msg)
		return m, nil
	}

	// When a sub-model captures input, delegate all messages to it
	// (the form/input consumes keys; only ctrl+c escapes to quit)
	if m.capturing() {
		if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.delegate(msg)
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1":
			m.activeTab = TabProfiles
			return m, nil
		case "2":
			m.activeTab = TabDaemon
			return m, nil
		}
	}

	return m.delegate(msg)
}

// delegate forwards msg to the active tab's sub-model.
func (m model) delegate(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.activeTab {
	case TabProfiles:
		m.profilesTab, cmd = m.profilesTab.Update(msg)
	case TabDaemon:
		m.daemonTab, cmd = m.daemonTab.Update(msg)
		// Commands change overlay state; pick it up before the next poll.
		if _, ok := msg.(tea.KeyMsg); ok && !m.daemonTab.Capturing() {
			m.refreshDaemonStatus()
		}
	}
	return m, cmd
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.status, m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.width)

	var content string
	switch m.activeTab {
	case TabProfiles:
		content = m.profilesTab.View()
	case TabDaemon:
		content = m.daemonTab.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}
