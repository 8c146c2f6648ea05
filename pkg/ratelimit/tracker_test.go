package ratelimit

import (
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingReconciler struct {
	calls []int
}

func (r *recordingReconciler) Reconcile(used int) {
	r.calls = append(r.calls, used)
}

func newHeaders(limit, used, remaining string) http.Header {
	h := http.Header{}
	if limit != "" {
		h.Set(HeaderLimit, limit)
	}
	if used != "" {
		h.Set(HeaderUsed, used)
	}
	if remaining != "" {
		h.Set(HeaderRemaining, remaining)
	}
	return h
}

func TestTracker_UpdateFromHeaders(t *testing.T) {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)

	tests := []struct {
		name          string
		headers       http.Header
		shouldError   bool
		wantState     RateLimitState
		wantReconcile []int
	}{
		{
			name:          "healthy",
			headers:       newHeaders("60", "12", "48"),
			wantState:     RateLimitState{Limit: 60, Used: 12, Remaining: 48},
			wantReconcile: []int{12},
		},
		{
			name:          "exhausted",
			headers:       newHeaders("60", "60", "0"),
			wantState:     RateLimitState{Limit: 60, Used: 60, Remaining: 0},
			wantReconcile: []int{60},
		},
		{
			name:    "headers absent",
			headers: http.Header{},
		},
		{
			name:        "invalid limit",
			headers:     newHeaders("lots", "1", "1"),
			shouldError: true,
		},
		{
			name:        "missing used",
			headers:     newHeaders("60", "", "10"),
			shouldError: true,
		},
		{
			name:        "invalid remaining",
			headers:     newHeaders("60", "10", "x"),
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingReconciler{}
			tracker := NewTracker(rec, logger)

			err := tracker.UpdateFromHeaders(tt.headers)
			if (err != nil) != tt.shouldError {
				t.Fatalf("UpdateFromHeaders() error = %v, shouldError %v", err, tt.shouldError)
			}

			state := tracker.GetState()
			if state.Limit != tt.wantState.Limit || state.Used != tt.wantState.Used || state.Remaining != tt.wantState.Remaining {
				t.Errorf("state = %+v, want %+v", state, tt.wantState)
			}

			if len(rec.calls) != len(tt.wantReconcile) {
				t.Fatalf("Reconcile calls = %v, want %v", rec.calls, tt.wantReconcile)
			}
			for i := range rec.calls {
				if rec.calls[i] != tt.wantReconcile[i] {
					t.Errorf("Reconcile call %d = %d, want %d", i, rec.calls[i], tt.wantReconcile[i])
				}
			}
		})
	}
}

func TestTracker_NilWindow(t *testing.T) {
	tracker := NewTracker(nil, zerolog.Nop())
	if err := tracker.UpdateFromHeaders(newHeaders("25", "3", "22")); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}
	if got := tracker.GetState().Remaining; got != 22 {
		t.Errorf("Remaining = %d, want 22", got)
	}
}

func TestRateLimitState(t *testing.T) {
	tests := []struct {
		name           string
		state          RateLimitState
		wantExhausted  bool
		wantThrottling bool
	}{
		{"unknown", RateLimitState{}, false, false},
		{"healthy", RateLimitState{Limit: 60, Remaining: 40}, false, false},
		{"at throttle threshold", RateLimitState{Limit: 60, Remaining: 6}, false, false},
		{"low", RateLimitState{Limit: 60, Remaining: 5}, false, true},
		{"exhausted", RateLimitState{Limit: 60, Remaining: 0}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Exhausted(); got != tt.wantExhausted {
				t.Errorf("Exhausted() = %v, want %v", got, tt.wantExhausted)
			}
			if got := tt.state.NeedsThrottling(); got != tt.wantThrottling {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.wantThrottling)
			}
		})
	}
}

func TestRateLimitState_IsStale(t *testing.T) {
	fresh := RateLimitState{LastUpdate: time.Now()}
	if fresh.IsStale(time.Minute) {
		t.Error("fresh state reported stale")
	}
	old := RateLimitState{LastUpdate: time.Now().Add(-10 * time.Minute)}
	if !old.IsStale(time.Minute) {
		t.Error("old state reported fresh")
	}
}
