package discogs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/3faceees/discogs-backend/pkg/market"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{"client error should not retry", ErrorClassClient, false},
		{"server error should retry", ErrorClassServer, true},
		{"rate limit should retry", ErrorClassRateLimit, true},
		{"network error should retry", ErrorClassNetwork, true},
		{"empty error class should not retry", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.errorClass); got != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, got, tt.expected)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status     int
		wantClass  ErrorClass
		wantSignal error
	}{
		{http.StatusTooManyRequests, ErrorClassRateLimit, market.ErrThrottled},
		{http.StatusNotFound, ErrorClassClient, market.ErrNotFound},
		{http.StatusUnauthorized, ErrorClassClient, market.ErrForbidden},
		{http.StatusForbidden, ErrorClassClient, market.ErrForbidden},
		{http.StatusBadRequest, ErrorClassClient, nil},
		{http.StatusInternalServerError, ErrorClassServer, market.ErrUnavailable},
		{http.StatusBadGateway, ErrorClassServer, market.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.wantClass {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.wantClass)
			}
			if got := signalFor(tt.status); got != tt.wantSignal {
				t.Errorf("signalFor(%d) = %v, want %v", tt.status, got, tt.wantSignal)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		apiError *APIError
		expected string
	}{
		{
			name: "error with wrapped error",
			apiError: &APIError{
				StatusCode: 500,
				ErrorClass: ErrorClassServer,
				Message:    "500 Internal Server Error",
				Err:        market.ErrUnavailable,
			},
			expected: "discogs server error (status 500): 500 Internal Server Error: market: upstream unavailable",
		},
		{
			name: "error without wrapped error",
			apiError: &APIError{
				StatusCode: 400,
				ErrorClass: ErrorClassClient,
				Message:    "400 Bad Request",
			},
			expected: "discogs client error (status 400): 400 Bad Request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.apiError.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	err := fmt.Errorf("listings: %w", &APIError{
		StatusCode: 429,
		ErrorClass: ErrorClassRateLimit,
		Err:        market.ErrThrottled,
	})

	if !errors.Is(err, market.ErrThrottled) {
		t.Error("errors.Is should find market.ErrThrottled through APIError")
	}
	if got := classOf(err); got != ErrorClassRateLimit {
		t.Errorf("classOf() = %q, want %q", got, ErrorClassRateLimit)
	}
	if got := classOf(errors.New("plain")); got != "" {
		t.Errorf("classOf(plain) = %q, want empty", got)
	}
}
