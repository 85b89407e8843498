package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/1broseidon/overlayd/internal/daemon"
	"github.com/1broseidon/overlayd/internal/overlay"
	"github.com/1broseidon/overlayd/internal/platform"
	"github.com/1broseidon/overlayd/internal/runtimepath"
)

// Client handles IPC communication with the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for the socket at path.
func NewClientAt(path string) *Client {
	return &Client{
		socketPath: path,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(command CommandType, payload interface{}) (*Response, error) {
	req := &Request{ID: uuid.NewString(), Command: command}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", command, err)
		}
		req.Payload = raw
	}

	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reader := bufio.NewReader(conn)
	respData, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.ID != "" && resp.ID != req.ID {
		return nil, fmt.Errorf("response id %s does not match request %s", resp.ID, req.ID)
	}

	if resp.Status == StatusError {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}

	return &resp, nil
}

func (c *Client) call(command CommandType, payload, out interface{}) error {
	resp, err := c.sendRequest(command, payload)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse %s data: %w", command, err)
	}
	return nil
}

// Status retrieves daemon status
func (c *Client) Status() (*daemon.Status, error) {
	var st daemon.Status
	if err := c.call(CommandStatus, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Show asks the daemon to show the overlay.
func (c *Client) Show() (*overlay.State, error) {
	var st overlay.State
	if err := c.call(CommandShow, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Hide asks the daemon to hide the overlay until the next Show.
func (c *Client) Hide() (*overlay.State, error) {
	var st overlay.State
	if err := c.call(CommandHide, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Reload sends a RELOAD command to the daemon
func (c *Client) Reload() (*ReloadData, error) {
	var data ReloadData
	if err := c.call(CommandReload, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// SavePosition saves the last dragged position under name.
func (c *Client) SavePosition(name string) (*SavePositionData, error) {
	var data SavePositionData
	if err := c.call(CommandSavePosition, SavePositionPayload{Name: name}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Inspect lists the interactive elements of the focused window.
func (c *Client) Inspect() ([]platform.Element, error) {
	var elements []platform.Element
	if err := c.call(CommandInspect, nil, &elements); err != nil {
		return nil, err
	}
	return elements, nil
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.Status()
	return err
}
