package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/victornm/quizdesk/internal/app"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/store"
	"github.com/victornm/quizdesk/internal/telemetry"
	"github.com/victornm/quizdesk/internal/ui"
)

const (
	defaultIdleTimeout = 30 * time.Minute
	sweepInterval      = time.Minute
)

// Session is one client of the app: a router rendering into its own output.
type Session struct {
	ID string

	router *ui.Router
	output *ui.Output

	mu       sync.Mutex
	lastSeen time.Time
	conns    int
}

func (s *Session) Screen() ui.Screen { return s.output.Snapshot() }

func (s *Session) Subscribe() (<-chan ui.Screen, func()) { return s.output.Subscribe() }

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

// attach marks a live connection. A session with live connections is never idle.
func (s *Session) attach(now time.Time) (detach func()) {
	s.mu.Lock()
	s.conns++
	s.lastSeen = now
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.conns--
		s.lastSeen = time.Now()
		s.mu.Unlock()
	}
}

func (s *Session) idleSince(deadline time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns == 0 && s.lastSeen.Before(deadline)
}

type SessionsConfig struct {
	App *app.App
	// Redis and Prefix are optional. When set, every screen is also published
	// to the channel <prefix>:session:<id>.
	Redis       Redis
	Prefix      string
	Metrics     *telemetry.Metrics
	IdleTimeout time.Duration
	Now         func() time.Time
}

// Sessions keeps the open sessions in memory and closes the idle ones.
type Sessions struct {
	app     *app.App
	redis   Redis
	prefix  string
	metrics *telemetry.Metrics
	idle    time.Duration
	now     func() time.Time

	mu   sync.Mutex
	byID map[string]*Session
}

func NewSessions(c SessionsConfig) *Sessions {
	m := &Sessions{
		app:     c.App,
		redis:   c.Redis,
		prefix:  c.Prefix,
		metrics: c.Metrics,
		idle:    c.IdleTimeout,
		now:     c.Now,
		byID:    make(map[string]*Session),
	}
	if m.idle <= 0 {
		m.idle = defaultIdleTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}

	return m
}

func (m *Sessions) Create(ctx context.Context) (*Session, error) {
	id, err := store.NewID()
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:       id,
		output:   ui.NewOutput(),
		lastSeen: m.now(),
	}

	var surface ui.Surface = s.output
	if m.redis != nil {
		surface = NewPublisher(s.output, m.redis, fmt.Sprintf("%s:session:%s", m.prefix, s.ID))
	}

	r, err := m.app.NewSession(ctx, surface)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	s.router = r

	m.mu.Lock()
	m.byID[s.ID] = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionOpened()
	}
	slog.InfoContext(ctx, "sessions: opened", "session", s.ID)

	return s, nil
}

func (m *Sessions) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.byID[id]
	m.mu.Unlock()

	if !ok {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("session %s not found", id))
	}

	s.touch(m.now())
	return s, nil
}

// Dispatch runs a on the session and records it.
func (m *Sessions) Dispatch(ctx context.Context, s *Session, a ui.Action) error {
	start := time.Now()
	err := s.router.Dispatch(ctx, a)
	if m.metrics != nil {
		m.metrics.ObserveAction(string(a.Type), time.Since(start), err)
	}
	s.touch(m.now())

	return err
}

func (m *Sessions) Remove(ctx context.Context, id string) {
	m.mu.Lock()
	s, ok := m.byID[id]
	delete(m.byID, id)
	m.mu.Unlock()

	if ok {
		m.close(ctx, s)
	}
}

// Sweep closes the sessions idle for longer than the idle timeout and returns their number.
func (m *Sessions) Sweep(ctx context.Context) int {
	deadline := m.now().Add(-m.idle)

	var idle []*Session
	m.mu.Lock()
	for id, s := range m.byID {
		if s.idleSince(deadline) {
			idle = append(idle, s)
			delete(m.byID, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.close(ctx, s)
	}

	return len(idle)
}

// Run sweeps idle sessions until ctx is done.
func (m *Sessions) Run(ctx context.Context) {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(ctx); n > 0 {
				slog.InfoContext(ctx, "sessions: closed idle sessions", "count", n)
			}
		}
	}
}

// Close closes every session.
func (m *Sessions) Close(ctx context.Context) {
	m.mu.Lock()
	all := m.byID
	m.byID = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		m.close(ctx, s)
	}
}

func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *Sessions) close(ctx context.Context, s *Session) {
	s.router.Close()
	if m.metrics != nil {
		m.metrics.SessionClosed()
	}
	slog.InfoContext(ctx, "sessions: closed", "session", s.ID)
}
