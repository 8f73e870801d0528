package uiautomator2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/logger"
)

// DefaultTimeout bounds a single request to the server.
const DefaultTimeout = 30 * time.Second

// Client communicates with UIAutomator2 server.
type Client struct {
	http       *http.Client
	baseURL    string
	sessionID  string
	socketPath string
	log        *logrus.Entry
}

// NewClient creates a client using Unix socket (Linux/Mac).
func NewClient(socketPath string) *Client {
	var dialer net.Dialer
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socketPath)
		},
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   DefaultTimeout,
		},
		baseURL:    "http://localhost",
		socketPath: socketPath,
		log:        newRequestLogger(),
	}
}

// NewClientTCP creates a client using TCP port (Windows, or a forwarded port).
func NewClientTCP(port int) *Client {
	return &Client{
		http: &http.Client{
			Timeout: DefaultTimeout,
		},
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		log:     newRequestLogger(),
	}
}

func newRequestLogger() *logrus.Entry {
	return logger.WithFields(logrus.Fields{"component": "uiautomator2"})
}

// SetTimeout changes the per-request timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.http.Timeout = d
	}
}

// SessionID returns the current session ID.
func (c *Client) SessionID() string {
	return c.sessionID
}

// HasSession returns true if a session is active.
func (c *Client) HasSession() bool {
	return c.sessionID != ""
}

// ServerError is an error response from the server.
type ServerError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *ServerError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// request makes an HTTP request to UIAutomator2.
func (c *Client) request(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	start := time.Now()

	var reqBody io.Reader
	var bodyStr string
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
		bodyStr = string(data)
		if len(bodyStr) > 100 {
			bodyStr = bodyStr[:100] + "..."
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log := c.logger().WithFields(logrus.Fields{"method": method, "path": path})
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.WithField("elapsed", elapsed).Debugf("request failed: %v", err)
		return nil, core.ErrServerUnreachable.WithCause(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	log.WithFields(logrus.Fields{"elapsed": elapsed, "status": resp.StatusCode}).Debugf("body=%s", bodyStr)

	if resp.StatusCode >= 400 {
		serr := &ServerError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var errResp Response
		if json.Unmarshal(respBody, &errResp) == nil {
			if errVal, ok := errResp.Value.(map[string]interface{}); ok {
				serr.Message, _ = errVal["message"].(string)
				serr.Type, _ = errVal["error"].(string)
			}
		}
		return nil, serr
	}

	return respBody, nil
}

// logger never writes c.log, so concurrent requests only read it.
func (c *Client) logger() *logrus.Entry {
	if c.log == nil {
		return newRequestLogger()
	}
	return c.log
}

// sessionPath returns path with session ID prefix.
func (c *Client) sessionPath(path string) string {
	return fmt.Sprintf("/session/%s%s", c.sessionID, path)
}

// getValue issues a GET and decodes the "value" field of the response.
func (c *Client) getValue(ctx context.Context, path string, out interface{}) error {
	data, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	var resp struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	if len(resp.Value) == 0 {
		return fmt.Errorf("parse %s response: missing value", path)
	}
	if err := json.Unmarshal(resp.Value, out); err != nil {
		return fmt.Errorf("parse %s response: %w", path, err)
	}
	return nil
}

// Status checks if the server is ready.
func (c *Client) Status(ctx context.Context) (bool, error) {
	var value struct {
		Ready   bool   `json:"ready"`
		Message string `json:"message"`
	}
	if err := c.getValue(ctx, "/status", &value); err != nil {
		return false, err
	}
	return value.Ready, nil
}

// CreateSession starts a new automation session.
func (c *Client) CreateSession(ctx context.Context, caps Capabilities) error {
	req := SessionRequest{Capabilities: caps}
	data, err := c.request(ctx, http.MethodPost, "/session", req)
	if err != nil {
		return err
	}

	var resp struct {
		SessionID string `json:"sessionId"`
		Value     struct {
			SessionID string `json:"sessionId"`
		} `json:"value"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parse session response: %w", err)
	}

	id := resp.SessionID
	if id == "" {
		// W3C servers nest the id under value
		id = resp.Value.SessionID
	}
	if id == "" {
		return fmt.Errorf("no session ID in response")
	}

	c.sessionID = id
	c.log = c.logger().WithField("session", id)
	return nil
}

// AttachSession adopts a session created earlier, e.g. by another process.
func (c *Client) AttachSession(id string) {
	c.sessionID = id
	c.log = c.logger().WithField("session", id)
}

// GetSession returns the current session info.
func (c *Client) GetSession(ctx context.Context) (map[string]interface{}, error) {
	if c.sessionID == "" {
		return nil, fmt.Errorf("no active session")
	}

	var value map[string]interface{}
	if err := c.getValue(ctx, c.sessionPath(""), &value); err != nil {
		return nil, err
	}
	return value, nil
}

// DeleteSession ends the current session.
func (c *Client) DeleteSession(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}

	_, err := c.request(ctx, http.MethodDelete, c.sessionPath(""), nil)
	c.sessionID = ""
	return err
}

// Close ends the session and cleans up.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.DeleteSession(ctx)
}
