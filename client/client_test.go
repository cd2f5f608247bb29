package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cyp0633/recurcal/auth"
	"github.com/cyp0633/recurcal/client"
	"github.com/cyp0633/recurcal/event"
	"github.com/cyp0633/recurcal/recurrence"
	"github.com/cyp0633/recurcal/server"
	"github.com/cyp0633/recurcal/storage"
	"github.com/cyp0633/recurcal/storage/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memory.New()
	users := auth.NewPasswordAuthenticator(store, auth.WithBcryptCost(bcrypt.MinCost))
	sessions, err := auth.NewSessionIssuer([]byte("test-secret"))
	require.NoError(t, err)

	engine := recurrence.NewEngineWithConfig(recurrence.DisabledCacheConfig)
	handler, err := server.New(store, users, sessions, server.WithEngine(engine), server.WithPublicURL("https://cal.example.com"))
	require.NoError(t, err)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNew(t *testing.T) {
	for _, raw := range []string{"", "not a url", "ftp://example.com", "/relative"} {
		_, err := client.New(raw)
		assert.Error(t, err, raw)
	}

	_, err := client.New("https://example.com/api")
	assert.NoError(t, err)
}

func TestClientRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	anon, err := client.New(ts.URL)
	require.NoError(t, err)

	session, err := anon.SignUp(ctx, "alice@example.com", "secret1", "secret1")
	require.NoError(t, err)
	require.NotNil(t, session.Profile)
	assert.Equal(t, "alice", session.Profile.DisplayName)

	_, err = anon.SignUp(ctx, "alice@example.com", "secret1", "secret1")
	assert.True(t, client.IsStatus(err, http.StatusConflict), "got %v", err)

	c := anon.WithToken(session.Token)

	t.Run("preview", func(t *testing.T) {
		end := date(2025, time.January, 20)
		out, err := anon.Preview(ctx,
			recurrence.Pattern{Type: recurrence.Weekly, Interval: 1, DaysOfWeek: []int{1, 3}},
			recurrence.DateRange{StartDate: date(2025, time.January, 6), EndDate: &end}, 0)
		require.NoError(t, err)
		assert.Len(t, out.Dates, 5)
		assert.False(t, out.Truncated)
	})

	t.Run("profile", func(t *testing.T) {
		theme := storage.ThemeBlue
		p, err := c.UpdateProfile(ctx, client.ProfileUpdate{Theme: &theme})
		require.NoError(t, err)
		assert.Equal(t, storage.ThemeBlue, p.Theme)

		p, err = c.UploadAvatar(ctx, "image/png", []byte("png-bytes"))
		require.NoError(t, err)
		assert.Equal(t, storage.AvatarPath(session.Profile.UserID), p.AvatarURL)

		p, err = c.Profile(ctx)
		require.NoError(t, err)
		assert.Equal(t, storage.ThemeBlue, p.Theme)
	})

	var saved *event.Event
	t.Run("create and read", func(t *testing.T) {
		doc := event.Document{
			Name:        "Birthday",
			Description: "Cake",
			Recurrence:  &recurrence.Pattern{Type: recurrence.Yearly, Interval: 1, MonthOfYear: mo.Some(0), DayOfMonth: mo.Some(15)},
			DateRange:   &recurrence.DateRange{StartDate: date(2025, time.January, 15)},
		}
		saved, err = c.CreateEvent(ctx, doc)
		require.NoError(t, err)

		events, err := c.ListEvents(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, saved.ID, events[0].ID)

		got, err := c.GetEvent(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, mo.Some(0), got.Recurrence.MonthOfYear)

		out, err := c.Occurrences(ctx, saved.ID, 3)
		require.NoError(t, err)
		require.Len(t, out.Dates, 3)
		assert.Equal(t, date(2027, time.January, 15), out.Dates[2].UTC())
		assert.True(t, out.Truncated)
	})

	t.Run("export and import", func(t *testing.T) {
		doc, filename, err := c.Export(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, "Birthday.json", filename)

		data, err := event.EncodeIndent(doc)
		require.NoError(t, err)
		imported, err := c.Import(ctx, data)
		require.NoError(t, err)
		assert.NotEqual(t, saved.ID, imported.ID)

		link, err := c.ShareURL(ctx, saved.ID)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(link, "https://cal.example.com/import?data="))
		shared, err := c.ImportShareLink(ctx, link)
		require.NoError(t, err)
		assert.Equal(t, "Birthday", shared.Name)

		ics, err := c.ICS(ctx, saved.ID)
		require.NoError(t, err)
		fromICS, err := c.ImportICS(ctx, ics)
		require.NoError(t, err)
		assert.Equal(t, saved.Recurrence.Type, fromICS.Recurrence.Type)

		_, err = c.Import(ctx, []byte(`{"name":`))
		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "Invalid JSON format", apiErr.Message)

		_, err = c.ImportShareLink(ctx, "https://cal.example.com/import")
		assert.Error(t, err)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.DeleteEvent(ctx, saved.ID))
		_, err := c.GetEvent(ctx, saved.ID)
		assert.True(t, client.IsStatus(err, http.StatusNotFound))
	})

	t.Run("basic auth", func(t *testing.T) {
		basic, err := client.New(ts.URL, client.WithHTTPClient(&http.Client{
			Transport: client.NewBasicAuthTransport("alice@example.com", "secret1", nil, nil),
		}))
		require.NoError(t, err)

		events, err := basic.ListEvents(ctx)
		require.NoError(t, err)
		assert.Len(t, events, 3)

		wrong, err := client.New(ts.URL, client.WithHTTPClient(&http.Client{
			Transport: client.NewBasicAuthTransport("alice@example.com", "nope!!", nil, nil),
		}))
		require.NoError(t, err)
		_, err = wrong.ListEvents(ctx)
		assert.True(t, client.IsStatus(err, http.StatusUnauthorized))
	})

	t.Run("login", func(t *testing.T) {
		s, err := anon.Login(ctx, "alice@example.com", "secret1")
		require.NoError(t, err)
		assert.Equal(t, storage.ThemeBlue, s.Profile.Theme)

		_, err = anon.Login(ctx, "alice@example.com", "wrong!")
		assert.True(t, client.IsStatus(err, http.StatusUnauthorized))
	})
}

func TestAuthTransport(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	tests := []struct {
		name      string
		transport *client.AuthTransport
		want      string
		wantErr   bool
	}{
		{"token", client.NewTokenTransport("abc", nil, nil), "Bearer abc", false},
		{"basic", client.NewBasicAuthTransport("a@example.com", "pw", nil, nil), "Basic YUBleGFtcGxlLmNvbTpwdw==", false},
		{"nothing configured", client.NewTokenTransport("", nil, nil), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = ""
			req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
			require.NoError(t, err)

			resp, err := tt.transport.RoundTrip(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, got)
			assert.Empty(t, req.Header.Get("Authorization"), "caller's request must not be modified")
		})
	}
}
