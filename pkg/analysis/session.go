package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/3faceees/discogs-backend/pkg/aggregate"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Session tracks one asynchronous run.
type Session struct {
	ID      string
	Request Request

	mu         sync.RWMutex
	state      State
	report     *aggregate.Report
	err        error
	startedAt  time.Time
	finishedAt time.Time
	done       chan struct{}
}

// SessionView is a point-in-time copy of a session, safe to serialize.
type SessionView struct {
	ID         string            `json:"id"`
	Username   string            `json:"username"`
	State      State             `json:"state"`
	Reason     Reason            `json:"reason,omitempty"`
	Error      string            `json:"error,omitempty"`
	Report     *aggregate.Report `json:"report,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Start validates req and runs it in the background. The run is bound to
// ctx; cancel it to stop the run early with a partial report.
func (e *Engine) Start(ctx context.Context, req Request) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.NewString(),
		Request:   req,
		state:     StateIdle,
		startedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}

	go func() {
		report, err := e.run(ctx, s.ID, req, s.setState)
		s.finish(report, err)
	}()

	return s, nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// finish records the result and the terminal state in one step, so a
// terminal View always carries a report or an error.
func (s *Session) finish(report *aggregate.Report, err error) {
	s.mu.Lock()
	s.state = StateReported
	if err != nil {
		s.state = StateFailed
	}
	s.report = report
	s.err = err
	s.finishedAt = time.Now().UTC()
	s.mu.Unlock()
	close(s.done)
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Done is closed when the run ended.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the run ends or ctx is done.
func (s *Session) Wait(ctx context.Context) (*aggregate.Report, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report, s.err
}

// View returns a snapshot of the session.
func (s *Session) View() SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := SessionView{
		ID:        s.ID,
		Username:  s.Request.Username,
		State:     s.state,
		Report:    s.report,
		StartedAt: s.startedAt,
	}
	if !s.finishedAt.IsZero() {
		finished := s.finishedAt
		v.FinishedAt = &finished
	}
	if s.err != nil {
		v.Error = s.err.Error()
		var runErr *Error
		if errors.As(s.err, &runErr) {
			v.Reason = runErr.Reason
		}
	}
	return v
}

// Sessions is a bounded store of recent sessions; the least recently used
// session is dropped when full. It is owned by the surrounding service.
type Sessions struct {
	cache *lru.Cache[string, *Session]
}

// NewSessions creates a store holding at most capacity sessions.
func NewSessions(capacity int) (*Sessions, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("session capacity must be > 0 (got %d)", capacity)
	}
	cache, err := lru.New[string, *Session](capacity)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &Sessions{cache: cache}, nil
}

// Add stores s.
func (s *Sessions) Add(session *Session) {
	s.cache.Add(session.ID, session)
}

// Get returns the session with id.
func (s *Sessions) Get(id string) (*Session, bool) {
	return s.cache.Get(id)
}

// Len returns the number of stored sessions.
func (s *Sessions) Len() int {
	return s.cache.Len()
}
