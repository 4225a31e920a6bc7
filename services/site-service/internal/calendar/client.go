package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ateliernova/site-backend/services/site-service/internal/availability"
)

// ErrNotConfigured is returned by NewClient when the calendar credentials are
// absent. Callers decide whether to fail startup or run without the remote
// calendar (local dev).
var ErrNotConfigured = errors.New("calendar: base url, calendar id and token are required")

// Client is a REST client for the calendar provider. It implements
// availability.BusySource.
type Client struct {
	baseURL    string
	calendarID string
	token      string
	loc        *time.Location
	http       *http.Client
}

func NewClient(baseURL, calendarID, token string, loc *time.Location) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	calendarID = strings.TrimSpace(calendarID)
	token = strings.TrimSpace(token)
	if baseURL == "" || calendarID == "" || token == "" {
		return nil, ErrNotConfigured
	}
	return &Client{
		baseURL:    baseURL,
		calendarID: calendarID,
		token:      token,
		loc:        loc,
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}, nil
}

type listEventsResponse struct {
	Items []Event `json:"items"`
}

// ListEvents returns the provider's events overlapping [from, to).
func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	q := url.Values{}
	q.Set("timeMin", from.UTC().Format(time.RFC3339))
	q.Set("timeMax", to.UTC().Format(time.RFC3339))
	q.Set("singleEvents", "true")
	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", c.baseURL, url.PathEscape(c.calendarID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar list events: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar list events: status %d", resp.StatusCode)
	}

	var payload listEventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("calendar list events: decode: %w", err)
	}
	return payload.Items, nil
}

// CreateEvent books ev on the remote calendar and returns the stored event.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (Event, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return Event{}, err
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Event{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Event{}, fmt.Errorf("calendar create event: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Event{}, fmt.Errorf("calendar create event: status %d", resp.StatusCode)
	}

	var created Event
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return Event{}, fmt.Errorf("calendar create event: decode: %w", err)
	}
	return created, nil
}

// DeleteEvent removes a previously created event. A 404 is not an error:
// the event is gone either way.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, url.PathEscape(c.calendarID), url.PathEscape(eventID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calendar delete event: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("calendar delete event: status %d", resp.StatusCode)
	}
	return nil
}

// BusyIntervals lists and normalizes the provider's events for the window.
func (c *Client) BusyIntervals(ctx context.Context, from, to time.Time) ([]availability.Interval, error) {
	events, err := c.ListEvents(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return Normalize(events, c.loc)
}

var _ availability.BusySource = (*Client)(nil)
