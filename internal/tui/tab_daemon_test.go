package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/ipc"
	"github.com/1broseidon/overlayd/internal/overlay"
	"github.com/1broseidon/overlayd/internal/store"
)

type fakeClient struct {
	status  daemon.Status
	down    bool
	calls   []string
	saveErr error
}

func (c *fakeClient) Status() (*daemon.Status, error) {
	if c.down {
		return nil, errors.New("connect: no such file or directory")
	}
	st := c.status
	return &st, nil
}

func (c *fakeClient) Show() (*overlay.State, error) {
	c.calls = append(c.calls, "show")
	c.status.Overlay.Visible = true
	st := c.status.Overlay
	return &st, nil
}

func (c *fakeClient) Hide() (*overlay.State, error) {
	c.calls = append(c.calls, "hide")
	c.status.Overlay.Visible = false
	st := c.status.Overlay
	return &st, nil
}

func (c *fakeClient) Reload() (*ipc.ReloadData, error) {
	c.calls = append(c.calls, "reload")
	return &ipc.ReloadData{Profiles: 4, Skipped: 1}, nil
}

func (c *fakeClient) SavePosition(name string) (*ipc.SavePositionData, error) {
	c.calls = append(c.calls, "save:"+name)
	if c.saveErr != nil {
		return nil, c.saveErr
	}
	return &ipc.SavePositionData{Name: name, X: 300, Y: 400, Size: 70}, nil
}

func newFakeClient() *fakeClient {
	return &fakeClient{status: daemon.Status{
		Target:    "com.example.game",
		ProfileID: "com.example.game",
		Known:     true,
		Overlay:   overlay.State{Position: geometry.Point{X: 300, Y: 400}, Size: 70, Opacity: 0.6},
		Metrics:   geometry.ScreenMetrics{WidthPx: 1920, HeightPx: 1080, Density: 1, Orientation: geometry.OrientationLandscape},
		Profiles:  3,
	}}
}

func TestDaemonTab_Commands(t *testing.T) {
	client := newFakeClient()
	dt := NewDaemonTab(client)
	dt, _ = dt.Update(tea.WindowSizeMsg{Width: 100, Height: 20})
	st, _ := client.Status()
	dt.SetStatus(st, nil)

	dt, _ = dt.Update(keyRunes("s"))
	if !dt.status.Overlay.Visible || dt.statusText != "overlay shown" {
		t.Fatalf("after show: visible=%v status=%q", dt.status.Overlay.Visible, dt.statusText)
	}
	dt, _ = dt.Update(keyRunes("h"))
	if dt.status.Overlay.Visible || dt.statusText != "overlay hidden" {
		t.Fatalf("after hide: visible=%v status=%q", dt.status.Overlay.Visible, dt.statusText)
	}
	dt, _ = dt.Update(keyRunes("r"))
	if dt.statusText != "reloaded: 4 profiles (1 skipped)" {
		t.Fatalf("after reload: %q", dt.statusText)
	}

	want := []string{"show", "hide", "reload"}
	if strings.Join(client.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", client.calls, want)
	}
}

func TestDaemonTab_SavePosition(t *testing.T) {
	client := newFakeClient()
	dt := NewDaemonTab(client)

	dt, _ = dt.Update(keyRunes("p"))
	if !dt.Capturing() {
		t.Fatalf("expected name prompt")
	}
	// Keys bound to commands are typed into the prompt.
	dt, _ = dt.Update(keyRunes("shot"))
	dt, _ = dt.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if len(client.calls) != 1 || client.calls[0] != "save:shot" {
		t.Fatalf("calls = %v", client.calls)
	}
	if dt.statusText != "saved shot at (300,400) size 70" {
		t.Fatalf("status = %q", dt.statusText)
	}

	client.saveErr = daemon.ErrNoCandidate
	dt, _ = dt.Update(keyRunes("p"))
	dt, _ = dt.Update(keyRunes("x"))
	dt, _ = dt.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.HasPrefix(dt.statusText, "error:") {
		t.Fatalf("expected error status, got %q", dt.statusText)
	}
}

func TestDaemonTab_NoClient(t *testing.T) {
	dt := NewDaemonTab(nil)
	dt, _ = dt.Update(tea.WindowSizeMsg{Width: 80, Height: 10})
	dt, _ = dt.Update(keyRunes("s"))
	if dt.statusText != "" {
		t.Fatalf("unexpected status %q", dt.statusText)
	}
	if !strings.Contains(dt.View(), "Daemon not running") {
		t.Fatalf("expected not-running view")
	}
}

func TestModel_TabSwitchAndPoll(t *testing.T) {
	st, err := store.Open(store.NewMemoryKV(), store.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	client := newFakeClient()
	var m tea.Model = newModel(nil, st, client)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})

	if !strings.Contains(m.View(), "target:com.example.game") {
		t.Fatalf("status bar missing target")
	}

	m, _ = m.Update(keyRunes("2"))
	if got := m.(model).activeTab; got != TabDaemon {
		t.Fatalf("active tab = %v, want Daemon", got)
	}
	if !strings.Contains(m.View(), "com.example.game") {
		t.Fatalf("daemon tab missing target")
	}

	client.down = true
	m, cmd := m.Update(pollStatusMsg{})
	if cmd == nil {
		t.Fatalf("expected next poll to be scheduled")
	}
	if !strings.Contains(m.View(), "daemon not running") {
		t.Fatalf("status bar did not pick up daemon loss")
	}

	m, cmd = m.Update(keyRunes("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}
