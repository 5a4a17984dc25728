package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "https://gamma-api.polymarket.com"
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// ListSports returns the sport catalog; each entry maps a sport code to the
// series grouping its events.
func (c *Client) ListSports(ctx context.Context) ([]Sport, error) {
	body, err := c.doRequest(ctx, "/sports", nil)
	if err != nil {
		return nil, err
	}
	var sports []Sport
	if err := json.Unmarshal(body, &sports); err != nil {
		return nil, fmt.Errorf("failed to decode sports: %w", err)
	}
	return sports, nil
}

type ListEventsParams struct {
	SeriesID  int64
	Active    *bool
	Closed    *bool
	TagID     *int64
	Limit     int
	Offset    int
	Order     string
	Ascending bool
}

// ListEvents fetches one page of events. Individually malformed entries are
// skipped; a malformed page body is an error.
func (c *Client) ListEvents(ctx context.Context, params ListEventsParams) ([]Event, error) {
	query := url.Values{}
	if params.SeriesID > 0 {
		query.Set("series_id", strconv.FormatInt(params.SeriesID, 10))
	}
	if params.Active != nil {
		query.Set("active", strconv.FormatBool(*params.Active))
	}
	if params.Closed != nil {
		query.Set("closed", strconv.FormatBool(*params.Closed))
	}
	if params.TagID != nil {
		query.Set("tag_id", strconv.FormatInt(*params.TagID, 10))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	query.Set("offset", strconv.Itoa(params.Offset))
	if params.Order != "" {
		query.Set("order", params.Order)
		query.Set("ascending", strconv.FormatBool(params.Ascending))
	}
	body, err := c.doRequest(ctx, "/events", query)
	if err != nil {
		return nil, err
	}
	return decodeEventList(body)
}

func decodeEventList(body []byte) ([]Event, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		var wrapped struct {
			Events []json.RawMessage `json:"events"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode events page: %w", err)
		}
		items = wrapped.Events
	}
	events := make([]Event, 0, len(items))
	for _, item := range items {
		var ev Event
		if err := json.Unmarshal(item, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
