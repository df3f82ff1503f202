// Package client is a small XRPC client for the Bluesky PDS endpoints the bot
// needs: session creation, handle resolution and record creation.
// It handles rate limiting, session state, and error decoding.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/otherjamesbrown/skyfeed/pkg/buildinfo"
	"github.com/otherjamesbrown/skyfeed/pkg/logging"
)

// Default connection settings.
const (
	DefaultService   = "https://bsky.social"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = rate.Limit(5)
	DefaultBurst     = 1

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 << 10
)

// XRPC method names.
const (
	MethodCreateSession = "com.atproto.server.createSession"
	MethodCreateRecord  = "com.atproto.repo.createRecord"
	MethodResolveHandle = "com.atproto.identity.resolveHandle"
)

// Options configures the Client.
type Options struct {
	// HTTPClient performs requests. A client with Timeout is created when nil.
	HTTPClient *http.Client

	// Timeout applies when HTTPClient is nil.
	Timeout time.Duration

	// RateLimit caps outbound requests per second. Zero disables limiting.
	RateLimit rate.Limit

	// Burst is the limiter burst size.
	Burst int

	// UserAgent is sent on every request.
	UserAgent string

	// Logger receives debug output for each call.
	Logger logging.Logger
}

// DefaultOptions returns Options with default values.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		RateLimit: DefaultRateLimit,
		Burst:     DefaultBurst,
		UserAgent: buildinfo.UserAgent(),
	}
}

// Session is an authenticated PDS session.
type Session struct {
	DID        string `json:"did"`
	Handle     string `json:"handle"`
	AccessJwt  string `json:"accessJwt"`
	RefreshJwt string `json:"refreshJwt"`
}

// RecordRef identifies a created record.
type RecordRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// Client talks XRPC to one PDS.
type Client struct {
	service   string
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    logging.Logger

	mu      sync.RWMutex
	session *Session
}

// New creates a Client for service, e.g. "https://bsky.social".
func New(service string, opts *Options) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	if service == "" {
		service = DefaultService
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.RateLimit, burst)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = buildinfo.UserAgent()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Client{
		service:   strings.TrimRight(service, "/"),
		http:      httpClient,
		limiter:   limiter,
		userAgent: userAgent,
		logger:    logger,
	}
}

// Service returns the PDS base URL.
func (c *Client) Service() string {
	return c.service
}

// Session returns the current session, or nil before CreateSession.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// SetSession installs an existing session.
func (c *Client) SetSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// CreateSession logs in with an identifier (handle or DID) and app password.
func (c *Client) CreateSession(ctx context.Context, identifier, password string) (*Session, error) {
	req := map[string]string{"identifier": identifier, "password": password}

	var s Session
	if err := c.do(ctx, http.MethodPost, MethodCreateSession, nil, req, &s, false); err != nil {
		return nil, fmt.Errorf("creating session for %s: %w", identifier, err)
	}

	c.SetSession(&s)
	c.logger.Debug("Session created", logging.F("did", s.DID), logging.F("handle", s.Handle))
	return &s, nil
}

// ResolveHandle returns the DID for handle.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	q := url.Values{"handle": {strings.TrimPrefix(handle, "@")}}

	var out struct {
		DID string `json:"did"`
	}
	if err := c.do(ctx, http.MethodGet, MethodResolveHandle, q, nil, &out, false); err != nil {
		return "", fmt.Errorf("resolving %s: %w", handle, err)
	}
	return out.DID, nil
}

// CreateRecord writes record into collection of the session's repo.
func (c *Client) CreateRecord(ctx context.Context, collection string, record any) (*RecordRef, error) {
	s := c.Session()
	if s == nil {
		return nil, ErrNoSession
	}

	req := struct {
		Repo       string `json:"repo"`
		Collection string `json:"collection"`
		Record     any    `json:"record"`
	}{s.DID, collection, record}

	var ref RecordRef
	if err := c.do(ctx, http.MethodPost, MethodCreateRecord, nil, req, &ref, true); err != nil {
		return nil, fmt.Errorf("creating %s record: %w", collection, err)
	}
	return &ref, nil
}

// Post creates an app.bsky.feed.post record.
func (c *Client) Post(ctx context.Context, rec *PostRecord) (*RecordRef, error) {
	return c.CreateRecord(ctx, CollectionPost, rec)
}

// do performs one XRPC call. body is JSON-encoded when non-nil; out is
// decoded from a 2xx response when non-nil.
func (c *Client) do(ctx context.Context, method, nsid string, query url.Values, body, out any, auth bool) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	u := c.service + "/xrpc/" + nsid
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		s := c.Session()
		if s == nil {
			return ErrNoSession
		}
		req.Header.Set("Authorization", "Bearer "+s.AccessJwt)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, nsid, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("XRPC call",
		logging.F("method", nsid),
		logging.F("status", resp.StatusCode),
		logging.F("duration_ms", time.Since(start).Milliseconds()),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", nsid, err)
	}
	return nil
}
