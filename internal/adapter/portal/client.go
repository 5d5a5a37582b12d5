// Package portal loads the PublicInfoBanjir rainfall and water-level pages
// and extracts their data tables.
package portal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/flood-data-etl/internal/domain"
)

// TableID is the id of the data table on both region pages.
const TableID = "normaltable1"

// Default page templates; {region} is replaced with the region code.
const (
	DefaultRainURL  = "https://publicinfobanjir.water.gov.my/hujan/data-hujan/?state={region}&lang=en"
	DefaultWaterURL = "https://publicinfobanjir.water.gov.my/aras-air/data-paras-air/?state={region}&lang=en"
)

// Client fetches region pages over HTTP.
type Client struct {
	rainURL    string
	waterURL   string
	httpClient *http.Client
}

// NewClient creates a portal client. Empty templates use the defaults.
func NewClient(rainURL, waterURL string, timeout time.Duration) *Client {
	if rainURL == "" {
		rainURL = DefaultRainURL
	}
	if waterURL == "" {
		waterURL = DefaultWaterURL
	}
	return &Client{
		rainURL:  rainURL,
		waterURL: waterURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Rain loads the region's rainfall page and returns its header date labels
// and body rows.
func (c *Client) Rain(ctx context.Context, region string) (domain.RainTable, error) {
	t, err := c.ReadTable(ctx, pageURL(c.rainURL, region), TableID)
	if err != nil {
		return domain.RainTable{}, fmt.Errorf("rainfall page %s: %w", region, err)
	}
	return domain.RainTable{DailyDates: domain.DailyDates(t.Head), Rows: t.Body}, nil
}

// Water loads the region's water-level page and returns its body rows.
func (c *Client) Water(ctx context.Context, region string) ([][]string, error) {
	t, err := c.ReadTable(ctx, pageURL(c.waterURL, region), TableID)
	if err != nil {
		return nil, fmt.Errorf("water level page %s: %w", region, err)
	}
	return t.Body, nil
}

// ReadTable GETs pageURL and extracts the table with the given id.
func (c *Client) ReadTable(ctx context.Context, pageURL, tableID string) (Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Table{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Table{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Table{}, fmt.Errorf("portal error: status %d: %s", resp.StatusCode, body)
	}

	t, err := ParseTable(resp.Body, tableID)
	if err != nil {
		return Table{}, fmt.Errorf("parse page: %w", err)
	}
	return t, nil
}

func pageURL(template, region string) string {
	return strings.ReplaceAll(template, "{region}", url.QueryEscape(region))
}
