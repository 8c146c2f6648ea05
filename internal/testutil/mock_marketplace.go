// Package testutil provides test doubles for the marketplace API and a
// simulated clock.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MockWant is one want-list entry served by MockMarketplace.
type MockWant struct {
	ID      int64
	Title   string
	Artist  string
	Year    int
	Formats []string
}

// MockListing is one marketplace listing served by MockMarketplace.
type MockListing struct {
	ID              int64
	Seller          string
	Price           string
	Currency        string
	Condition       string
	SleeveCondition string
	Location        string
	Rating          string
	RatingCount     int
}

// MockResponse overrides the response of one path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockMarketplace is an httptest server speaking the marketplace wire format:
// paginated want lists under /users/{name}/wants and listings under
// /marketplace/releases/{id}/listings. Every response carries upstream rate
// limit headers.
type MockMarketplace struct {
	server *httptest.Server

	mu        sync.RWMutex
	wants     map[string][]MockWant
	private   map[string]bool
	listings  map[int64][]MockListing
	overrides map[string]MockResponse
	throttle  map[int64]int
	limit     int
	used      int

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	paths             []string
}

// NewMockMarketplace starts a mock server reporting an upstream limit of 60.
func NewMockMarketplace() *MockMarketplace {
	m := &MockMarketplace{
		wants:     make(map[string][]MockWant),
		private:   make(map[string]bool),
		listings:  make(map[int64][]MockListing),
		overrides: make(map[string]MockResponse),
		throttle:  make(map[int64]int),
		limit:     60,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the mock server URL.
func (m *MockMarketplace) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockMarketplace) Close() {
	m.server.Close()
}

// SetWants sets username's want list.
func (m *MockMarketplace) SetWants(username string, wants ...MockWant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wants[username] = wants
}

// SetPrivate makes username's want list answer 403.
func (m *MockMarketplace) SetPrivate(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.private[username] = true
}

// SetListings sets the listings of a catalog item. They are served in the
// given order; callers list them lowest price first.
func (m *MockMarketplace) SetListings(catalogID int64, listings ...MockListing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[catalogID] = listings
}

// ThrottleListings makes the next n listing requests for catalogID answer 429.
func (m *MockMarketplace) ThrottleListings(catalogID int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.throttle[catalogID] = n
}

// SetResponse overrides the response for an exact path.
func (m *MockMarketplace) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[path] = resp
}

// SetUpstreamLimit sets the limit reported in the rate limit headers.
func (m *MockMarketplace) SetUpstreamLimit(limit int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = limit
}

// GetRequestCount returns the number of requests served.
func (m *MockMarketplace) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// Paths returns the request paths in arrival order.
func (m *MockMarketplace) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.paths))
	copy(out, m.paths)
	return out
}

func (m *MockMarketplace) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	m.used++
	m.LastRequestHeader = r.Header.Clone()
	m.paths = append(m.paths, r.URL.Path)
	limit, used := m.limit, m.used
	override, hasOverride := m.overrides[r.URL.Path]
	m.mu.Unlock()

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-Discogs-Ratelimit", strconv.Itoa(limit))
	w.Header().Set("X-Discogs-Ratelimit-Used", strconv.Itoa(used))
	w.Header().Set("X-Discogs-Ratelimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("Content-Type", "application/json")

	if hasOverride {
		if override.Delay > 0 {
			select {
			case <-time.After(override.Delay):
			case <-r.Context().Done():
				return
			}
		}
		for key, value := range override.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(override.StatusCode)
		if override.Body != "" {
			w.Write([]byte(override.Body))
		}
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 3 && parts[0] == "users" && parts[2] == "wants":
		m.serveWants(w, r, parts[1])
	case len(parts) == 4 && parts[0] == "marketplace" && parts[1] == "releases" && parts[3] == "listings":
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeMessage(w, http.StatusNotFound, "Release not found.")
			return
		}
		m.serveListings(w, id)
	default:
		writeMessage(w, http.StatusNotFound, "The requested resource was not found.")
	}
}

func (m *MockMarketplace) serveWants(w http.ResponseWriter, r *http.Request, username string) {
	m.mu.RLock()
	wants, ok := m.wants[username]
	private := m.private[username]
	m.mu.RUnlock()

	if private {
		writeMessage(w, http.StatusForbidden, "You are not allowed to view this resource.")
		return
	}
	if !ok {
		writeMessage(w, http.StatusNotFound, "User does not exist or may have been deleted.")
		return
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 50)
	pages := (len(wants) + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > len(wants) {
		start = len(wants)
	}
	if end > len(wants) {
		end = len(wants)
	}

	entries := make([]map[string]any, 0, end-start)
	for _, want := range wants[start:end] {
		formats := make([]map[string]string, 0, len(want.Formats))
		for _, f := range want.Formats {
			formats = append(formats, map[string]string{"name": f})
		}
		entries = append(entries, map[string]any{
			"id": want.ID,
			"basic_information": map[string]any{
				"id":      want.ID,
				"title":   want.Title,
				"year":    want.Year,
				"artists": []map[string]string{{"name": want.Artist}},
				"formats": formats,
			},
		})
	}

	writeJSON(w, map[string]any{
		"pagination": map[string]int{"page": page, "pages": pages, "per_page": perPage, "items": len(wants)},
		"wants":      entries,
	})
}

func (m *MockMarketplace) serveListings(w http.ResponseWriter, catalogID int64) {
	m.mu.Lock()
	if m.throttle[catalogID] > 0 {
		m.throttle[catalogID]--
		m.mu.Unlock()
		writeMessage(w, http.StatusTooManyRequests, "You are making requests too quickly.")
		return
	}
	listings := m.listings[catalogID]
	m.mu.Unlock()

	entries := make([]map[string]any, 0, len(listings))
	for _, l := range listings {
		currency := l.Currency
		if currency == "" {
			currency = "USD"
		}
		entries = append(entries, map[string]any{
			"id":               l.ID,
			"condition":        l.Condition,
			"sleeve_condition": l.SleeveCondition,
			"price":            map[string]any{"value": json.Number(l.Price), "currency": currency},
			"seller": map[string]any{
				"username": l.Seller,
				"location": l.Location,
				"stats":    map[string]any{"rating": l.Rating, "total": l.RatingCount},
			},
			"ships_from": l.Location,
			"uri":        fmt.Sprintf("https://www.discogs.com/sell/item/%d", l.ID),
		})
	}

	writeJSON(w, map[string]any{
		"pagination": map[string]int{"page": 1, "pages": 1, "per_page": len(entries), "items": len(entries)},
		"listings":   entries,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
