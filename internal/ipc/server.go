package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/platform"
	"github.com/1broseidon/overlayd/internal/runtimepath"
	"github.com/1broseidon/overlayd/internal/store"
)

// Daemon is the part of the running daemon the socket exposes.
type Daemon interface {
	Status() daemon.Status
	Show() error
	Hide() error
	Reload() (daemon.ReloadResult, error)
	SaveCandidate(name string) (store.Record, error)
	Inspect() ([]platform.Element, error)
}

// ServerOptions configures a Server.
type ServerOptions struct {
	// SocketPath defaults to runtimepath.SocketPath().
	SocketPath string
	Logger     *slog.Logger
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	daemon       Daemon
	logger       *slog.Logger
	shuttingDown bool
	shutdownMu   sync.Mutex
	wg           sync.WaitGroup
}

// NewServer creates a new IPC server
func NewServer(d Daemon, opts ServerOptions) (*Server, error) {
	socketPath := opts.SocketPath
	if socketPath == "" {
		var err error
		socketPath, err = runtimepath.SocketPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Remove existing socket if present
	os.Remove(socketPath)

	return &Server{
		socketPath: socketPath,
		daemon:     d,
		logger:     logger,
	}, nil
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.send(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	resp := s.handleCommand(req)
	resp.ID = req.ID
	s.send(conn, resp)
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	s.logger.Debug("IPC request", "command", req.Command, "id", req.ID)

	switch req.Command {
	case CommandStatus:
		return okResponse(s.daemon.Status())
	case CommandShow:
		return s.handleVisibility(s.daemon.Show)
	case CommandHide:
		return s.handleVisibility(s.daemon.Hide)
	case CommandReload:
		return s.handleReload()
	case CommandSavePosition:
		return s.handleSavePosition(req.Payload)
	case CommandInspect:
		return s.handleInspect()
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleVisibility(fn func() error) *Response {
	if err := fn(); err != nil {
		return NewErrorResponse(err.Error())
	}
	return okResponse(s.daemon.Status().Overlay)
}

func (s *Server) handleReload() *Response {
	s.logger.Info("IPC: received RELOAD")
	res, err := s.daemon.Reload()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to reload: %v", err))
	}
	return okResponse(ReloadData{Profiles: res.Profiles, Skipped: res.Skipped})
}

func (s *Server) handleSavePosition(payload json.RawMessage) *Response {
	var req SavePositionPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid save payload: %v", err))
		}
	}
	rec, err := s.daemon.SaveCandidate(req.Name)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to save position: %v", err))
	}
	s.logger.Info("IPC: saved position", "profile", rec.Name, "x", rec.X, "y", rec.Y)
	return okResponse(SavePositionData{Name: rec.Name, X: rec.X, Y: rec.Y, Size: rec.Size})
}

func (s *Server) handleInspect() *Response {
	elements, err := s.daemon.Inspect()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to inspect foreground: %v", err))
	}
	if elements == nil {
		elements = []platform.Element{}
	}
	return okResponse(elements)
}

func okResponse(data interface{}) *Response {
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) send(conn net.Conn, resp *Response) {
	data, err := resp.Marshal()
	if err != nil {
		s.logger.Warn("failed to marshal response", "error", err)
		return
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		s.logger.Warn("failed to send response", "error", err)
	}
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
		s.wg.Wait()
	}
	os.Remove(s.socketPath)
}
