package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
	"github.com/otherjamesbrown/skyfeed/pkg/richtext"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, &Options{UserAgent: "skyfeed-test"})
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, DefaultTimeout, opts.Timeout)
	assert.Equal(t, DefaultRateLimit, opts.RateLimit)
	assert.Equal(t, DefaultBurst, opts.Burst)
	assert.Contains(t, opts.UserAgent, "skyfeed/")
}

func TestNew(t *testing.T) {
	c := New("", nil)
	assert.Equal(t, DefaultService, c.Service())
	assert.NotNil(t, c.limiter)

	c = New("https://pds.example/", &Options{})
	assert.Equal(t, "https://pds.example", c.Service())
	assert.Nil(t, c.limiter)
	assert.Nil(t, c.Session())
}

func TestCreateSession(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/xrpc/"+MethodCreateSession, r.URL.Path)
		assert.Equal(t, "skyfeed-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bot.test", body["identifier"])
		assert.Equal(t, "app-pass", body["password"])

		_, _ = io.WriteString(w, `{"did":"did:plc:bot","handle":"bot.test","accessJwt":"acc","refreshJwt":"ref"}`)
	}))

	s, err := c.CreateSession(context.Background(), "bot.test", "app-pass")
	require.NoError(t, err)
	assert.Equal(t, &Session{DID: "did:plc:bot", Handle: "bot.test", AccessJwt: "acc", RefreshJwt: "ref"}, s)
	assert.Equal(t, s, c.Session())
}

func TestCreateSession_Unauthorized(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`)
	}))

	_, err := c.CreateSession(context.Background(), "bot.test", "wrong")
	require.Error(t, err)
	assert.True(t, sferrors.IsUnauthorized(err))

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "AuthenticationRequired", apiErr.Code)
	assert.Equal(t, "Invalid identifier or password", apiErr.Message)
	assert.Nil(t, c.Session())
}

func TestResolveHandle(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/xrpc/"+MethodResolveHandle, r.URL.Path)
		assert.Equal(t, "alice.test", r.URL.Query().Get("handle"))
		_, _ = io.WriteString(w, `{"did":"did:plc:alice"}`)
	}))

	did, err := c.ResolveHandle(context.Background(), "@alice.test")
	require.NoError(t, err)
	assert.Equal(t, "did:plc:alice", did)
}

func TestPost(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xrpc/"+MethodCreateRecord, r.URL.Path)
		assert.Equal(t, "Bearer acc", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"uri":"at://did:plc:bot/app.bsky.feed.post/1","cid":"bafy"}`)
	}))
	c.SetSession(&Session{DID: "did:plc:bot", AccessJwt: "acc"})

	post, err := richtext.NewBuilder().Text("see ").Link("this", "https://example.com").Build()
	require.NoError(t, err)
	rec := NewPostRecord(post, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	ref, err := c.Post(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, &RecordRef{URI: "at://did:plc:bot/app.bsky.feed.post/1", CID: "bafy"}, ref)

	assert.Equal(t, "did:plc:bot", got["repo"])
	assert.Equal(t, CollectionPost, got["collection"])
	record := got["record"].(map[string]any)
	assert.Equal(t, "see this", record["text"])
	assert.Equal(t, "2024-01-02T03:04:05Z", record["createdAt"])
	assert.Len(t, record["facets"], 1)
}

func TestPost_NoSession(t *testing.T) {
	c := New("http://127.0.0.1:1", &Options{})
	_, err := c.Post(context.Background(), &PostRecord{})
	assert.ErrorIs(t, err, ErrNoSession)
	assert.True(t, sferrors.IsUnauthorized(err))
}

func TestAPIError_Mapping(t *testing.T) {
	tests := []struct {
		status  int
		body    string
		check   func(error) bool
		message string
	}{
		{http.StatusTooManyRequests, `{"error":"RateLimitExceeded"}`, sferrors.IsRateLimited, "xrpc 429 RateLimitExceeded"},
		{http.StatusNotFound, ``, sferrors.IsNotFound, "xrpc 404 Not Found"},
		{http.StatusBadGateway, `<html>oops</html>`, func(err error) bool { return !sferrors.IsUnauthorized(err) }, "xrpc 502 Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			_, err := c.ResolveHandle(context.Background(), "x.test")
			require.Error(t, err)
			assert.True(t, tt.check(err))
			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.message, apiErr.Error())
		})
	}
}

func TestRateLimitHonoursContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"did":"did:plc:x"}`)
	}))
	c.limiter = newSlowLimiter()

	_, err := c.ResolveHandle(context.Background(), "x.test")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.ResolveHandle(ctx, "x.test")
	require.Error(t, err)
}
