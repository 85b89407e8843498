package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/geometry"
	"github.com/1broseidon/overlayd/internal/overlay"
	"github.com/1broseidon/overlayd/internal/platform"
	"github.com/1broseidon/overlayd/internal/store"
)

type fakeDaemon struct {
	mu       sync.Mutex
	visible  bool
	reloads  int
	saved    []string
	saveErr  error
	elements []platform.Element
}

func (f *fakeDaemon) Status() daemon.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return daemon.Status{
		Target:    "com.example.game",
		ProfileID: "Default",
		Overlay:   overlay.State{Visible: f.visible, Size: 70},
		Placement: geometry.Placement{X: 200, Y: 300, Size: 70},
	}
}

func (f *fakeDaemon) Show() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = true
	return nil
}

func (f *fakeDaemon) Hide() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = false
	return nil
}

func (f *fakeDaemon) Reload() (daemon.ReloadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return daemon.ReloadResult{Profiles: 3, Skipped: 1}, nil
}

func (f *fakeDaemon) SaveCandidate(name string) (store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return store.Record{}, f.saveErr
	}
	if name == "" {
		name = "com.example.game"
	}
	f.saved = append(f.saved, name)
	return store.Record{Name: name, X: 300, Y: 400, Size: 70}, nil
}

func (f *fakeDaemon) Inspect() ([]platform.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elements, nil
}

func startServer(t *testing.T, d Daemon) (*Server, *Client) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "overlayd.sock")
	srv, err := NewServer(d, ServerOptions{
		SocketPath: sock,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv, NewClientAt(sock)
}

func TestServer_SocketIsPrivate(t *testing.T) {
	srv, _ := startServer(t, &fakeDaemon{})
	info, err := os.Stat(srv.SocketPath())
	if err != nil {
		t.Fatalf("stat socket: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Fatalf("socket mode = %o, want 600", perm)
	}
}

func TestClient_StatusShowHide(t *testing.T) {
	d := &fakeDaemon{}
	_, client := startServer(t, d)

	st, err := client.Status()
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if st.Target != "com.example.game" || st.Placement.X != 200 || st.Overlay.Visible {
		t.Fatalf("Status() = %+v", st)
	}

	shown, err := client.Show()
	if err != nil {
		t.Fatalf("Show() error: %v", err)
	}
	if !shown.Visible {
		t.Fatalf("Show() state = %+v", shown)
	}

	hidden, err := client.Hide()
	if err != nil {
		t.Fatalf("Hide() error: %v", err)
	}
	if hidden.Visible {
		t.Fatalf("Hide() state = %+v", hidden)
	}
}

func TestClient_ReloadAndSave(t *testing.T) {
	d := &fakeDaemon{}
	_, client := startServer(t, d)

	res, err := client.Reload()
	if err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	if res.Profiles != 3 || res.Skipped != 1 {
		t.Fatalf("Reload() = %+v", res)
	}

	saved, err := client.SavePosition("custom")
	if err != nil {
		t.Fatalf("SavePosition() error: %v", err)
	}
	if saved.Name != "custom" || saved.X != 300 || saved.Y != 400 {
		t.Fatalf("SavePosition() = %+v", saved)
	}

	d.mu.Lock()
	d.saveErr = daemon.ErrNoCandidate
	d.mu.Unlock()
	_, err = client.SavePosition("")
	if err == nil || !strings.Contains(err.Error(), daemon.ErrNoCandidate.Error()) {
		t.Fatalf("expected no-candidate error, got %v", err)
	}
}

func TestClient_Inspect(t *testing.T) {
	d := &fakeDaemon{elements: []platform.Element{
		{Bounds: geometry.Rect{X: 1, Y: 2, Width: 3, Height: 4}, Interactive: true},
	}}
	_, client := startServer(t, d)

	got, err := client.Inspect()
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if len(got) != 1 || got[0].Bounds.Width != 3 || !got[0].Interactive {
		t.Fatalf("Inspect() = %+v", got)
	}

	d.mu.Lock()
	d.elements = nil
	d.mu.Unlock()
	got, err = client.Inspect()
	if err != nil {
		t.Fatalf("Inspect() error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no elements, got %+v", got)
	}
}

func TestServer_RejectsUnknownAndMalformed(t *testing.T) {
	srv, _ := startServer(t, &fakeDaemon{})

	cases := []struct {
		name string
		line string
		want string
	}{
		{"unknown command", `{"id":"abc","command":"TILE"}`, "Unknown command"},
		{"not json", `hello`, "Invalid request"},
		{"missing command", `{"id":"abc"}`, "Invalid request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := rawRoundTrip(t, srv.SocketPath(), tc.line)
			if resp.Status != StatusError || !strings.Contains(resp.Error, tc.want) {
				t.Fatalf("response = %+v, want error containing %q", resp, tc.want)
			}
		})
	}
}

func TestServer_EchoesRequestID(t *testing.T) {
	srv, _ := startServer(t, &fakeDaemon{})
	resp := rawRoundTrip(t, srv.SocketPath(), `{"id":"req-1","command":"STATUS"}`)
	if resp.Status != StatusOK || resp.ID != "req-1" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestClient_NoDaemon(t *testing.T) {
	client := NewClientAt(filepath.Join(t.TempDir(), "missing.sock"))
	if err := client.Ping(); err == nil {
		t.Fatalf("expected connection error")
	}
}

func rawRoundTrip(t *testing.T, sock, line string) Response {
	t.Helper()
	conn, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("read: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return resp
}
