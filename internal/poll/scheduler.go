// Package poll runs periodic refreshes tied to view focus.
package poll

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Default refresh intervals.
const (
	DefaultListInterval   = 30 * time.Second
	DefaultThreadInterval = 10 * time.Second
)

// Scope identifies a polled view: the conversation list or one thread.
type Scope string

// ListScope is the scope of the conversation list.
const ListScope Scope = "list"

// ThreadScope returns the scope of a conversation thread.
func ThreadScope(conversationID string) Scope {
	return Scope("thread:" + conversationID)
}

// Scheduler keeps at most one timer per scope. A scope is active between Focus and
// Blur; after Blur no callback of that timer runs and a running one sees its context
// canceled.
type Scheduler struct {
	clock  clockwork.Clock
	logger *zap.Logger

	mu     sync.Mutex
	gen    map[Scope]uint64
	active map[Scope]*handle
}

type handle struct {
	gen      uint64
	interval time.Duration
	fn       func(context.Context)
	ctx      context.Context
	cancel   context.CancelFunc
	timer    clockwork.Timer
}

// NewScheduler creates an idle scheduler. A nil clock uses the wall clock.
func NewScheduler(clock clockwork.Clock, logger *zap.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		clock:  clock,
		logger: logger,
		gen:    make(map[Scope]uint64),
		active: make(map[Scope]*handle),
	}
}

// Focus starts calling fn every interval for scope. It is a no-op returning false
// while the scope already has a live timer. fn receives a context derived from
// parent that is canceled on Blur.
func (s *Scheduler) Focus(parent context.Context, scope Scope, interval time.Duration, fn func(context.Context)) bool {
	if interval <= 0 {
		s.logger.Warn("ignoring non-positive poll interval", zap.String("scope", string(scope)), zap.Duration("interval", interval))
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[scope]; ok {
		return false
	}
	s.gen[scope]++
	ctx, cancel := context.WithCancel(parent)
	h := &handle{
		gen:      s.gen[scope],
		interval: interval,
		fn:       fn,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.active[scope] = h
	h.timer = s.clock.AfterFunc(interval, func() { s.fire(scope, h) })

	s.logger.Debug("polling started", zap.String("scope", string(scope)), zap.Duration("interval", interval))
	return true
}

// Blur stops the timer of scope and cancels its context.
func (s *Scheduler) Blur(scope Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blurLocked(scope)
}

// StopAll blurs every active scope.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for scope := range s.active {
		s.blurLocked(scope)
	}
}

func (s *Scheduler) blurLocked(scope Scope) {
	h, ok := s.active[scope]
	if !ok {
		return
	}
	s.gen[scope]++
	delete(s.active, scope)
	h.timer.Stop()
	h.cancel()
	s.logger.Debug("polling stopped", zap.String("scope", string(scope)))
}

// Active reports whether scope has a live timer.
func (s *Scheduler) Active(scope Scope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[scope]
	return ok
}

func (s *Scheduler) current(scope Scope, h *handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[scope] == h && s.gen[scope] == h.gen
}

// fire runs one tick and re-arms the timer if the scope is still focused.
func (s *Scheduler) fire(scope Scope, h *handle) {
	if !s.current(scope, h) || h.ctx.Err() != nil {
		return
	}
	h.fn(h.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[scope] != h || s.gen[scope] != h.gen {
		return
	}
	h.timer = s.clock.AfterFunc(h.interval, func() { s.fire(scope, h) })
}
