package discogs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/3faceees/discogs-backend/pkg/market"
)

type pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

type wantsPage struct {
	Pagination pagination  `json:"pagination"`
	Wants      []wantEntry `json:"wants"`
}

type wantEntry struct {
	ID               int64     `json:"id"`
	BasicInformation basicInfo `json:"basic_information"`
}

type basicInfo struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Year    int    `json:"year"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Genres  []string `json:"genres"`
	Formats []struct {
		Name string `json:"name"`
	} `json:"formats"`
}

// GetWantList returns every item of username's want list, in list order.
// Every page request is gated through the configured limiter.
//
// Errors wrap market.ErrNotFound (no such user), market.ErrForbidden (private
// list) or market.ErrUnavailable (upstream down, throttled past the retry
// budget, or malformed response).
func (c *Client) GetWantList(ctx context.Context, username string) ([]market.WantItem, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required: %w", market.ErrNotFound)
	}

	var items []market.WantItem
	for page := 1; ; page++ {
		wp, err := c.fetchWantsPage(ctx, username, page)
		if err != nil {
			return nil, err
		}

		for _, w := range wp.Wants {
			items = append(items, toWantItem(w, len(items)))
		}

		if len(wp.Wants) == 0 || page >= wp.Pagination.Pages {
			break
		}
	}

	c.logger.Info().
		Str("username", username).
		Int("items", len(items)).
		Msg("Want list fetched")

	return items, nil
}

func (c *Client) fetchWantsPage(ctx context.Context, username string, page int) (*wantsPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(c.config.PerPage))
	rawURL := fmt.Sprintf("%s/users/%s/wants?%s", c.config.BaseURL, url.PathEscape(username), q.Encode())

	var body []byte
	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func(attempt int) error {
		if c.config.Limiter != nil {
			if err := c.config.Limiter.Acquire(ctx); err != nil {
				return err
			}
		}
		var reqErr error
		body, reqErr = c.get(ctx, endpointWants, rawURL)
		return reqErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("want list page %d: %w", page, ctx.Err())
		}
		if errors.Is(err, market.ErrNotFound) || errors.Is(err, market.ErrForbidden) || errors.Is(err, market.ErrUnavailable) {
			return nil, fmt.Errorf("want list page %d: %w", page, err)
		}
		return nil, fmt.Errorf("want list page %d: %w: %w", page, market.ErrUnavailable, err)
	}

	var wp wantsPage
	if err := json.Unmarshal(body, &wp); err != nil {
		return nil, fmt.Errorf("decode want list page %d: %w: %w", page, market.ErrUnavailable, err)
	}
	return &wp, nil
}

func toWantItem(w wantEntry, position int) market.WantItem {
	info := w.BasicInformation

	id := info.ID
	if id == 0 {
		id = w.ID
	}

	artists := make([]string, 0, len(info.Artists))
	for _, a := range info.Artists {
		if name := strings.TrimSpace(a.Name); name != "" {
			artists = append(artists, name)
		}
	}

	var formats []string
	for _, f := range info.Formats {
		if f.Name != "" {
			formats = append(formats, f.Name)
		}
	}

	return market.WantItem{
		CatalogID: id,
		Title:     strings.TrimSpace(info.Title),
		Artist:    strings.Join(artists, ", "),
		Year:      info.Year,
		Genres:    info.Genres,
		Formats:   formats,
		Position:  position,
	}
}
