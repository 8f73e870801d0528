// Package session wires one device connection to a selector executor and a
// watcher engine, and owns their lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/uiselector/pkg/config"
	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/device"
	uia2driver "github.com/devicelab-dev/uiselector/pkg/driver/uiautomator2"
	"github.com/devicelab-dev/uiselector/pkg/executor"
	"github.com/devicelab-dev/uiselector/pkg/logger"
	"github.com/devicelab-dev/uiselector/pkg/uiautomator2"
	"github.com/devicelab-dev/uiselector/pkg/uitree"
	"github.com/devicelab-dev/uiselector/pkg/watcher"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Backend is the device side of a session: the hierarchy source, the
// gesture performer and the device-info provider.
type Backend interface {
	watcher.Actuator
	Fetch(ctx context.Context) (*uitree.Snapshot, error)
	DeviceInfo(ctx context.Context) (*core.DeviceInfo, error)
}

// Session is one controller session against a device.
type Session struct {
	id       string
	backend  Backend
	tree     *uitree.SourceTree
	exec     *executor.Executor
	watchers *watcher.Engine
	log      *logrus.Entry

	mu      sync.Mutex
	closed  bool
	cleanup []func() error
}

// New creates a session over backend using the selector and watcher
// settings of cfg. A nil cfg uses config.Default().
func New(backend Backend, cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.Default()
	}

	id := uuid.NewString()
	tree := uitree.NewSourceTree(backend.Fetch, uitree.WithMaxAge(cfg.Selector.CacheMaxAge))
	exec := executor.New(tree, executor.Options{
		WaitTimeout:        cfg.Selector.WaitTimeout,
		PollInterval:       cfg.Selector.PollInterval,
		StaleTimeout:       cfg.Selector.StaleTimeout,
		StaleRetryInterval: cfg.Selector.StaleRetryInterval,
		RaiseOnNotFound:    cfg.Selector.RaiseOnNotFound,
	})

	s := &Session{
		id:       id,
		backend:  backend,
		tree:     tree,
		exec:     exec,
		watchers: watcher.New(exec, backend, watcher.Options{Interval: cfg.Watcher.PollInterval}),
		log:      logger.WithFields(logrus.Fields{"session": id}),
	}
	s.log.Debugf("session created (wait %s, stale %s)", cfg.Selector.WaitTimeout, cfg.Selector.StaleTimeout)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Executor returns the selector executor.
func (s *Session) Executor() *executor.Executor { return s.exec }

// Watchers returns the watcher engine.
func (s *Session) Watchers() *watcher.Engine { return s.watchers }

// Tree returns the live tree.
func (s *Session) Tree() *uitree.SourceTree { return s.tree }

// OnClose registers fn to run when the session closes, in reverse order of
// registration.
func (s *Session) OnClose(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanup = append(s.cleanup, fn)
}

// StartWatchers starts the watcher poll loop. It stops when ctx is done or
// the session closes.
func (s *Session) StartWatchers(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return s.watchers.Start(ctx)
}

// StopWatchers stops the watcher poll loop.
func (s *Session) StopWatchers() {
	s.watchers.Stop()
}

// Click resolves req and clicks the center of its visible bounds. It
// reports whether an element was clicked.
func (s *Session) Click(ctx context.Context, req map[string]interface{}, opts ...executor.CallOption) (bool, error) {
	clicked := false
	err := s.exec.WithElement(ctx, req, func(h *uitree.Handle) error {
		bounds, err := h.Bounds()
		if err != nil {
			return err
		}
		if err := s.backend.Click(ctx, bounds); err != nil {
			return fmt.Errorf("click %v: %w", bounds, err)
		}
		clicked = true
		return nil
	}, opts...)
	return clicked, err
}

// PressKeyCode presses an Android key code.
func (s *Session) PressKeyCode(ctx context.Context, code int) error {
	return s.backend.PressKeyCode(ctx, code)
}

// DeviceInfo returns the device record.
func (s *Session) DeviceInfo(ctx context.Context) (*core.DeviceInfo, error) {
	return s.backend.DeviceInfo(ctx)
}

// Hierarchy returns the raw hierarchy dump when the backend can provide one.
func (s *Session) Hierarchy(ctx context.Context) ([]byte, error) {
	h, ok := s.backend.(interface {
		Hierarchy(ctx context.Context) ([]byte, error)
	})
	if !ok {
		return nil, fmt.Errorf("backend %T cannot dump its hierarchy", s.backend)
	}
	return h.Hierarchy(ctx)
}

// Close stops the watchers, drops the tree cache and runs the cleanup
// functions. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cleanup := s.cleanup
	s.cleanup = nil
	s.mu.Unlock()

	s.watchers.Stop()
	if n := s.tree.Outstanding(); n > 0 {
		s.log.Warnf("closing with %d unreleased element handles", n)
	}
	s.tree.ClearCache()

	var errs []error
	for i := len(cleanup) - 1; i >= 0; i-- {
		if err := cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.log.Debug("session closed")
	return errors.Join(errs...)
}

// Connect opens a UIAutomator2 session as configured by cfg.Server and
// wraps it. An existing server session is attached when cfg.Server.SessionID
// is set and left open on Close; otherwise a new one is created and deleted
// on Close. With cfg.Server.Serial set, the server is reached through an adb
// forward that is removed on Close.
func Connect(ctx context.Context, cfg *config.Config) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	socket, port := cfg.Server.Socket, cfg.Server.Port

	var cleanup []func() error
	if cfg.Server.Serial != "" {
		dev, err := device.New(ctx, cfg.Server.Serial)
		if err != nil {
			return nil, core.ErrServerUnreachable.WithCause(err)
		}
		fwd, release, err := dev.ForwardServer(ctx, cfg.Server.DevicePort)
		if err != nil {
			return nil, core.ErrServerUnreachable.WithCause(err)
		}
		socket, port = fwd.Socket, fwd.Port
		cleanup = append(cleanup, release)
	}

	var client *uiautomator2.Client
	if socket != "" {
		client = uiautomator2.NewClient(socket)
	} else {
		client = uiautomator2.NewClientTCP(port)
	}
	client.SetTimeout(cfg.Server.RequestTimeout)

	s, err := connect(ctx, client, cfg, cleanup...)
	if err != nil {
		for _, fn := range cleanup {
			_ = fn()
		}
		return nil, err
	}
	return s, nil
}

// connect opens or attaches the server session. cleanup runs on Close after
// the server session is deleted.
func connect(ctx context.Context, client *uiautomator2.Client, cfg *config.Config, cleanup ...func() error) (*Session, error) {
	ready, err := client.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("server status: %w", err)
	}
	if !ready {
		return nil, core.ErrServerUnreachable.WithMessage("UIAutomator2 server is not ready")
	}

	owned := false
	if cfg.Server.SessionID != "" {
		client.AttachSession(cfg.Server.SessionID)
		if _, err := client.GetSession(ctx); err != nil {
			return nil, fmt.Errorf("attach session %s: %w", cfg.Server.SessionID, err)
		}
		logger.Info("Attached to session %s", cfg.Server.SessionID)
	} else {
		if err := client.CreateSession(ctx, uiautomator2.Capabilities{PlatformName: "Android"}); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		owned = true
		logger.Info("Session created successfully: %s", client.SessionID())
	}

	s := New(uia2driver.New(client), cfg)
	for _, fn := range cleanup {
		s.OnClose(fn)
	}
	if owned {
		s.OnClose(client.Close)
	}
	return s, nil
}
