// Package feed reads the portal's all-regions JSON readings feed, which is
// used when the region pages cannot be scraped.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/flood-data-etl/internal/domain"
)

// DefaultURL is the production feed location.
const DefaultURL = "https://publicinfobanjir.water.gov.my/wp-content/themes/enlighten/data/latestreadingstrendabc.json"

// Client fetches and decodes the feed.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a feed client. An empty url uses DefaultURL.
func NewClient(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch returns every record in the feed. Any transport, status or decode
// failure is an error.
func (c *Client) Fetch(ctx context.Context) ([]domain.FeedRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed error: status %d: %s", resp.StatusCode, body)
	}

	var records []record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	rows := make([]domain.FeedRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.row())
	}
	return rows, nil
}

// Feed wire types. Field names are the feed's short codes.

type record struct {
	StationID loose `json:"a"`
	Name      loose `json:"b"`
	Latitude  loose `json:"c"`
	Longitude loose `json:"d"`
	District  loose `json:"e"`
	State     loose `json:"f"`
	Rain      loose `json:"g"`
	RainAt    loose `json:"h"`
	Level     loose `json:"i"`
	LevelAt   loose `json:"j"`
	TypeFlags loose `json:"k"`
}

func (r record) row() domain.FeedRow {
	return domain.FeedRow{
		StationID: string(r.StationID),
		Name:      string(r.Name),
		District:  string(r.District),
		State:     string(r.State),
		Latitude:  string(r.Latitude),
		Longitude: string(r.Longitude),
		Rain:      string(r.Rain),
		RainAt:    string(r.RainAt),
		Level:     string(r.Level),
		LevelAt:   string(r.LevelAt),
		TypeFlags: string(r.TypeFlags),
	}
}

// loose decodes a JSON string, number, bool or null into text.
type loose string

func (l *loose) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*l = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = loose(s)
	case bytes.Equal(b, []byte("true")), bytes.Equal(b, []byte("false")):
		*l = loose(b)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("feed field: %w", err)
		}
		if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
			return fmt.Errorf("feed field: %w", err)
		}
		*l = loose(n.String())
	}
	return nil
}
