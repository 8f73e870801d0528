package watcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/devicelab-dev/uiselector/pkg/core"
	"github.com/devicelab-dev/uiselector/pkg/executor"
	"github.com/devicelab-dev/uiselector/pkg/logger"
	"github.com/devicelab-dev/uiselector/pkg/selector"
	"github.com/devicelab-dev/uiselector/pkg/uitree"
)

// Actuator performs the gestures a watcher action needs.
type Actuator interface {
	Click(ctx context.Context, bounds core.Rect) error
	Swipe(ctx context.Context, bounds core.Rect, dir SwipeDirection, percent float64, speed int) error
	PressKeyCode(ctx context.Context, code int) error
}

// Resolver finds elements for watcher conditions and actions.
// *executor.Executor satisfies it.
type Resolver interface {
	FindNode(ctx context.Context, node *selector.Node, opts ...executor.CallOption) (*uitree.Handle, error)
}

// Options configures the poll loop.
type Options struct {
	Interval time.Duration // Time between passes. Default: 1s
}

// Stats are point-in-time counters.
type Stats struct {
	Passes   int64 `json:"passes"`
	Triggers int64 `json:"triggers"`
	Errors   int64 `json:"errors"`
}

type entry struct {
	*compiled
	triggered atomic.Bool
}

// Engine owns the watcher registry and the loop that polls it. It is safe
// for concurrent use.
type Engine struct {
	resolver Resolver
	actuator Actuator
	opts     Options

	mu       sync.Mutex
	watchers map[string]*entry
	order    []string

	// passMu serializes passes from the loop and RunAll.
	passMu sync.Mutex

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	passes   atomic.Int64
	triggers atomic.Int64
	errors   atomic.Int64
}

// New creates an engine. Call Start to begin polling.
func New(resolver Resolver, actuator Actuator, opts Options) *Engine {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	return &Engine{
		resolver: resolver,
		actuator: actuator,
		opts:     opts,
		watchers: make(map[string]*entry),
	}
}

// Register validates and adds a watcher. A watcher with the same name is
// replaced, and its triggered flag is dropped with it.
func (e *Engine) Register(w Watcher) error {
	c, err := compile(w)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.watchers[w.Name]; exists {
		logger.Warn("watcher %s already registered, replacing it", w.Name)
	} else {
		e.order = append(e.order, w.Name)
	}
	e.watchers[w.Name] = &entry{compiled: c}
	logger.WithFields(logrus.Fields{"watcher": w.Name, "action": c.Kind}).Debugf("registered, condition %s", c.condition)
	return nil
}

// Remove deregisters a watcher. It reports whether the name was known.
func (e *Engine) Remove(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.watchers[name]; !ok {
		return false
	}
	delete(e.watchers, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

// RemoveAll deregisters every watcher.
func (e *Engine) RemoveAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.watchers = make(map[string]*entry)
	e.order = nil
}

// Names returns the registered watcher names in registration order.
func (e *Engine) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]string(nil), e.order...)
}

// Triggered reports whether the named watcher has run its action since the
// last reset. Unknown names report false.
func (e *Engine) Triggered(name string) bool {
	e.mu.Lock()
	ent, ok := e.watchers[name]
	e.mu.Unlock()

	return ok && ent.triggered.Load()
}

// HasAnyTriggered reports whether any registered watcher has triggered.
func (e *Engine) HasAnyTriggered() bool {
	for _, ent := range e.snapshot() {
		if ent.triggered.Load() {
			return true
		}
	}
	return false
}

// ResetTriggers clears the triggered flag of every watcher.
func (e *Engine) ResetTriggers() {
	for _, ent := range e.snapshot() {
		ent.triggered.Store(false)
	}
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Passes:   e.passes.Load(),
		Triggers: e.triggers.Load(),
		Errors:   e.errors.Load(),
	}
}

func (e *Engine) snapshot() []*entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*entry, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.watchers[name])
	}
	return out
}

// RunAll runs one pass over every watcher now and returns how many
// triggered in it.
func (e *Engine) RunAll(ctx context.Context) int {
	e.passMu.Lock()
	defer e.passMu.Unlock()

	e.passes.Add(1)
	n := 0
	for _, ent := range e.snapshot() {
		if ctx.Err() != nil {
			break
		}
		ok, err := e.run(ctx, ent)
		log := logger.WithFields(logrus.Fields{"watcher": ent.Name})
		if err != nil {
			e.errors.Add(1)
			log.Debugf("check failed: %v", err)
			continue
		}
		if ok {
			n++
			e.triggers.Add(1)
			ent.triggered.Store(true)
			log.Info("triggered")
		}
	}
	return n
}

// run checks one watcher and performs its action. It reports whether the
// action ran.
func (e *Engine) run(ctx context.Context, ent *entry) (bool, error) {
	cond, err := e.find(ctx, ent.condition)
	if err != nil || cond == nil {
		return false, err
	}
	defer cond.Release()

	if ent.Kind == ActionPressKeys {
		for _, code := range ent.KeyCodes {
			if err := e.actuator.PressKeyCode(ctx, code); err != nil {
				return false, fmt.Errorf("press key %d: %w", code, err)
			}
		}
		return true, nil
	}

	target := cond
	if ent.action != nil {
		target, err = e.find(ctx, ent.action)
		if err != nil || target == nil {
			return false, err
		}
		defer target.Release()
	}

	bounds, err := target.Bounds()
	if err != nil {
		return false, err
	}

	switch ent.Kind {
	case ActionSwipe:
		err = e.actuator.Swipe(ctx, bounds, ent.Swipe.Direction, float64(ent.Swipe.Percent)/100, ent.Swipe.Speed)
	default:
		err = e.actuator.Click(ctx, bounds)
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", ent.Kind, err)
	}
	return true, nil
}

func (e *Engine) find(ctx context.Context, node *selector.Node) (*uitree.Handle, error) {
	return e.resolver.FindNode(ctx, node, executor.NoWait(), executor.WithRaise(false))
}

// Start launches the poll loop. It is an error to start a running engine.
func (e *Engine) Start(ctx context.Context) error {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()

	if e.cancel != nil {
		return fmt.Errorf("watcher engine already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.loop(ctx, e.done)
	return nil
}

// Stop ends the poll loop and waits for the current pass to finish. It is
// safe to call on a stopped engine.
func (e *Engine) Stop() {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()

	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil
}

// Running reports whether the poll loop is active.
func (e *Engine) Running() bool {
	e.loopMu.Lock()
	defer e.loopMu.Unlock()

	return e.cancel != nil
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	limiter := rate.NewLimiter(rate.Every(e.opts.Interval), 1)
	logger.Info("watcher loop started, interval %s", e.opts.Interval)
	for {
		if err := limiter.Wait(ctx); err != nil {
			logger.Info("watcher loop stopped")
			return
		}
		e.RunAll(ctx)
	}
}
