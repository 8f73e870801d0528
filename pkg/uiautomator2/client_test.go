package uiautomator2

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/devicelab-dev/uiselector/pkg/core"
)

// writeJSON encodes data as JSON to the response writer.
func writeJSON(w http.ResponseWriter, data interface{}) {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := &Client{
		http:    server.Client(),
		baseURL: server.URL,
	}
	return client, server
}

func newTestClientWithSession(handler http.HandlerFunc) (*Client, *httptest.Server) {
	client, server := newTestClient(handler)
	client.sessionID = "test-session"
	return client, server
}

// newErrorTestClient creates a client that will fail on any request.
// Used for testing error handling paths.
func newErrorTestClient() *Client {
	return &Client{
		http:      &http.Client{},
		baseURL:   "http://localhost:99999", // Invalid port
		sessionID: "test",
	}
}

var ctx = context.Background()

func TestStatus(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("expected /status, got %s", r.URL.Path)
		}
		if r.Method != "GET" {
			t.Errorf("expected GET, got %s", r.Method)
		}
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{
				"ready":   true,
				"message": "ready",
			},
		})
	})
	defer server.Close()

	ready, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ready {
		t.Error("expected ready to be true")
	}
}

func TestConcurrentRequestsWithoutLogger(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{"ready": true},
		})
	})
	defer server.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Status(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	if client.log != nil {
		t.Error("expected requests not to assign the client logger")
	}
}

func TestStatusNotReady(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{
				"ready":   false,
				"message": "not ready",
			},
		})
	})
	defer server.Close()

	ready, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ready {
		t.Error("expected ready to be false")
	}
}

func TestCreateSession(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session" {
			t.Errorf("expected /session, got %s", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}

		var req SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Capabilities.PlatformName != "Android" {
			t.Errorf("expected Android, got %s", req.Capabilities.PlatformName)
		}
		writeJSON(w, map[string]interface{}{"sessionId": "test-session-123"})
	})
	defer server.Close()

	err := client.CreateSession(ctx, Capabilities{PlatformName: "Android"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.SessionID() != "test-session-123" {
		t.Errorf("expected test-session-123, got %s", client.SessionID())
	}
}

func TestCreateSessionAlternateFormat(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{"sessionId": "alt-session-456"},
		})
	})
	defer server.Close()

	if err := client.CreateSession(ctx, Capabilities{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.SessionID() != "alt-session-456" {
		t.Errorf("expected alt-session-456, got %s", client.SessionID())
	}
}

func TestCreateSessionNoSessionID(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{"sessionId": ""},
		})
	})
	defer server.Close()

	if err := client.CreateSession(ctx, Capabilities{}); err == nil {
		t.Error("expected error for missing session ID")
	}
}

func TestAttachAndGetSession(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/existing" {
			t.Errorf("expected /session/existing, got %s", r.URL.Path)
		}
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{"platformName": "Android"},
		})
	})
	defer server.Close()

	if _, err := client.GetSession(ctx); err == nil {
		t.Error("expected error for no active session")
	}

	client.AttachSession("existing")
	if !client.HasSession() {
		t.Fatal("expected session")
	}
	info, err := client.GetSession(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info["platformName"] != "Android" {
		t.Errorf("expected Android, got %v", info["platformName"])
	}
}

func TestDeleteSession(t *testing.T) {
	called := false
	client, server := newTestClientWithSession(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.URL.Path != "/session/test-session" {
			t.Errorf("expected /session/test-session, got %s", r.URL.Path)
		}
		if r.Method != "DELETE" {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		writeJSON(w, map[string]interface{}{})
	})
	defer server.Close()

	if err := client.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected DELETE to be called")
	}
	if client.HasSession() {
		t.Error("expected session ID to be cleared")
	}
}

func TestDeleteSessionNoSession(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		t.Error("should not be called when no session")
	})
	defer server.Close()

	if err := client.DeleteSession(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRequestError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]interface{}{
			"value": map[string]interface{}{
				"error":   "invalid session id",
				"message": "session is gone",
			},
		})
	})
	defer server.Close()

	_, err := client.Status(ctx)
	var serr *ServerError
	if !errors.As(err, &serr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if serr.StatusCode != http.StatusNotFound || serr.Type != "invalid session id" {
		t.Errorf("unexpected server error: %+v", serr)
	}
}

func TestRequestErrorNonJSON(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
	})
	defer server.Close()

	_, err := client.Status(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "server error 500: Internal Server Error" {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("/tmp/test.sock")
	if client.baseURL != "http://localhost" {
		t.Errorf("expected http://localhost, got %s", client.baseURL)
	}
	if client.socketPath != "/tmp/test.sock" {
		t.Errorf("expected /tmp/test.sock, got %s", client.socketPath)
	}
	if client.http == nil {
		t.Error("expected http client to be set")
	}
}

func TestNewClientTCP(t *testing.T) {
	client := NewClientTCP(6790)
	if client.baseURL != "http://127.0.0.1:6790" {
		t.Errorf("expected http://127.0.0.1:6790, got %s", client.baseURL)
	}
	client.SetTimeout(0)
	if client.http.Timeout != DefaultTimeout {
		t.Errorf("zero timeout should be ignored, got %v", client.http.Timeout)
	}
}

func TestStatusUnmarshalError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("invalid json"))
	})
	defer server.Close()

	if _, err := client.Status(ctx); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestStatusMissingValue(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{})
	})
	defer server.Close()

	if _, err := client.Status(ctx); err == nil {
		t.Error("expected error for missing value")
	}
}

func TestRequestConnectionError(t *testing.T) {
	client := newErrorTestClient()

	_, err := client.Status(ctx)
	if err == nil {
		t.Fatal("expected connection error")
	}
	if core.ToExecutionError(err).Code != "server_unreachable" {
		t.Errorf("expected server_unreachable, got %v", err)
	}
}

// unmarshalableType cannot be marshaled to JSON
type unmarshalableType struct {
	Ch chan int
}

func TestRequestMarshalError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{})
	})
	defer server.Close()

	_, err := client.request(ctx, "POST", "/test", unmarshalableType{Ch: make(chan int)})
	if err == nil {
		t.Error("expected marshal error")
	}
}

func TestDialContextInNewClient(t *testing.T) {
	client := NewClient("/tmp/nonexistent-test.sock")

	if _, err := client.Status(ctx); err == nil {
		t.Error("expected dial error for nonexistent socket")
	}
}

func TestRequestCanceledContext(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"value": map[string]interface{}{"ready": true}})
	})
	defer server.Close()

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := client.Status(canceled); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRequestInvalidURL(t *testing.T) {
	client := newErrorTestClient()
	client.baseURL = "://invalid-url" // Invalid URL scheme
	if _, err := client.request(ctx, "GET", "/test", nil); err == nil {
		t.Error("expected error for invalid URL")
	}
}
