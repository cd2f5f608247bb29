package client

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cyp0633/recurcal/event"
	"github.com/cyp0633/recurcal/recurrence"
	"github.com/cyp0633/recurcal/storage"
)

// Session is the result of signing up or logging in
type Session struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Profile   *storage.Profile `json:"profile"`
}

// Occurrences is an expansion as returned by the API
type Occurrences struct {
	Dates     []time.Time `json:"dates"`
	Truncated bool        `json:"truncated"`
}

// ProfileUpdate changes the non-nil profile fields
type ProfileUpdate struct {
	DisplayName *string        `json:"displayName,omitempty"`
	Theme       *storage.Theme `json:"theme,omitempty"`
}

// SignUp creates an account and returns its first session
func (c *Client) SignUp(ctx context.Context, email, password, confirm string) (*Session, error) {
	in := map[string]string{"email": email, "password": password, "confirmPassword": confirm}
	var s Session
	if err := c.doJSON(ctx, http.MethodPost, "signup", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Login exchanges credentials for a session
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	in := map[string]string{"email": email, "password": password}
	var s Session
	if err := c.doJSON(ctx, http.MethodPost, "login", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Preview expands a pattern without saving anything; max 0 uses the server cap
func (c *Client) Preview(ctx context.Context, p recurrence.Pattern, rng recurrence.DateRange, max int) (*Occurrences, error) {
	in := struct {
		Recurrence     recurrence.Pattern   `json:"recurrence"`
		DateRange      recurrence.DateRange `json:"dateRange"`
		MaxOccurrences int                  `json:"maxOccurrences,omitempty"`
	}{p, rng, max}

	var out Occurrences
	if err := c.doJSON(ctx, http.MethodPost, "preview", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns the current user's profile
func (c *Client) Profile(ctx context.Context) (*storage.Profile, error) {
	var p storage.Profile
	if err := c.doJSON(ctx, http.MethodGet, "profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile applies update and returns the saved profile
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*storage.Profile, error) {
	var p storage.Profile
	if err := c.doJSON(ctx, http.MethodPatch, "profile", update, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UploadAvatar stores an image as the current user's avatar
func (c *Client) UploadAvatar(ctx context.Context, contentType string, data []byte) (*storage.Profile, error) {
	body, _, err := c.do(ctx, http.MethodPut, "profile/avatar", contentType, data)
	if err != nil {
		return nil, err
	}
	var p storage.Profile
	if err := unmarshal(body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateEvent saves doc for the current user
func (c *Client) CreateEvent(ctx context.Context, doc event.Document) (*event.Event, error) {
	var ev event.Event
	if err := c.doJSON(ctx, http.MethodPost, "events", doc, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListEvents returns the current user's events, oldest first
func (c *Client) ListEvents(ctx context.Context) ([]*event.Event, error) {
	var events []*event.Event
	if err := c.doJSON(ctx, http.MethodGet, "events", nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetEvent returns one of the current user's events
func (c *Client) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	var ev event.Event
	if err := c.doJSON(ctx, http.MethodGet, eventPath(id, ""), nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// DeleteEvent removes one of the current user's events
func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, eventPath(id, ""), nil, nil)
}

// Occurrences expands a saved event; max 0 uses the server cap
func (c *Client) Occurrences(ctx context.Context, id string, max int) (*Occurrences, error) {
	path := eventPath(id, "occurrences")
	if max > 0 {
		path += "?max=" + strconv.Itoa(max)
	}
	var out Occurrences
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Export downloads an event document and the file name the server suggests
func (c *Client) Export(ctx context.Context, id string) (event.Document, string, error) {
	body, header, err := c.do(ctx, http.MethodGet, eventPath(id, "export"), "", nil)
	if err != nil {
		return event.Document{}, "", err
	}
	doc, err := event.Decode(body)
	if err != nil {
		return event.Document{}, "", err
	}

	filename := event.ExportFileName(doc.Name)
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return doc, filename, nil
}

// ICS downloads an event as an iCalendar file
func (c *Client) ICS(ctx context.Context, id string) ([]byte, error) {
	body, _, err := c.do(ctx, http.MethodGet, eventPath(id, "ics"), "", nil)
	return body, err
}

// ShareURL returns the share link of an event
func (c *Client) ShareURL(ctx context.Context, id string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, http.MethodGet, eventPath(id, "share"), nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// Import sends raw JSON document bytes, as read from an exported file
func (c *Client) Import(ctx context.Context, data []byte) (*event.Event, error) {
	body, _, err := c.do(ctx, http.MethodPost, "import", "application/json", data)
	if err != nil {
		return nil, err
	}
	var ev event.Event
	if err := unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ImportShareLink saves the document carried by a share link
func (c *Client) ImportShareLink(ctx context.Context, link string) (*event.Event, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("invalid share link: %w", err)
	}
	data := u.Query().Get("data")
	if data == "" {
		return nil, fmt.Errorf("share link has no data")
	}

	var ev event.Event
	if err := c.doJSON(ctx, http.MethodPost, "import?data="+url.QueryEscape(data), nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ImportICS saves the single event of an iCalendar file
func (c *Client) ImportICS(ctx context.Context, data []byte) (*event.Event, error) {
	body, _, err := c.do(ctx, http.MethodPost, "import/ics", "text/calendar", data)
	if err != nil {
		return nil, err
	}
	var ev event.Event
	if err := unmarshal(body, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func eventPath(id, sub string) string {
	p := "events/" + url.PathEscape(id)
	if sub != "" {
		p += "/" + sub
	}
	return p
}
