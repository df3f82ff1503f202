package feedgen

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/otherjamesbrown/skyfeed/pkg/blend"
	"github.com/otherjamesbrown/skyfeed/pkg/logging"
	"github.com/otherjamesbrown/skyfeed/pkg/observability"
	"github.com/otherjamesbrown/skyfeed/pkg/rankstore"
)

// SkeletonItem is one entry of a feed skeleton.
type SkeletonItem struct {
	Post string `json:"post"`
}

// Skeleton is the getFeedSkeleton response body.
type Skeleton struct {
	Feed []SkeletonItem `json:"feed"`
}

// NewSkeleton wraps blended post identifiers.
func NewSkeleton(posts []string) Skeleton {
	items := make([]SkeletonItem, len(posts))
	for i, p := range posts {
		items[i] = SkeletonItem{Post: p}
	}
	return Skeleton{Feed: items}
}

// ErrorBody is the XRPC error response body.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ParseLimit reads the limit query parameter. Anything that is not a
// positive integer means no limit.
func ParseLimit(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func (s *Server) handleFeedSkeleton(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reg := s.registry.Load()
	log := s.logger.WithContext(r.Context())

	name, blender, ok := reg.Lookup(r.URL.Query().Get("feed"))
	if !ok {
		s.metrics.RecordFeedRequest("unknown", "400")
		writeJSON(w, http.StatusBadRequest, ErrorBody{
			Error:   "UnknownFeed",
			Message: fmt.Sprintf("unknown feed %q", name),
		})
		return
	}
	limit := ParseLimit(r.URL.Query().Get("limit"))

	ctx, span := s.tracer.StartFeedSpan(r.Context(), name, limit)
	lists, err := rankstore.FetchAll(ctx, s.store, blender.Lists())
	if err != nil {
		observability.EndSpan(span, err)
		log.Error("Fetching ranked lists", logging.F("feed", name), logging.Err(err))
		s.metrics.RecordFeedRequest(name, "500")
		writeJSON(w, http.StatusInternalServerError, ErrorBody{Error: "InternalServerError"})
		return
	}

	posts := blender.Apply(lists, limit)
	span.SetAttributes(attribute.Int(observability.AttrItems, len(posts)))
	observability.EndSpan(span, nil)

	body, err := json.Marshal(NewSkeleton(posts))
	if err != nil {
		s.metrics.RecordFeedRequest(name, "500")
		writeJSON(w, http.StatusInternalServerError, ErrorBody{Error: "InternalServerError"})
		return
	}

	etag := ETag(body)
	h := w.Header()
	h.Set("Cache-Control", CacheControl(reg.MaxAge()))
	h.Set("ETag", etag)

	if MatchesETag(r.Header.Get("If-None-Match"), etag) {
		s.metrics.RecordFeedRequest(name, "304")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	s.metrics.RecordFeedRequest(name, "200")
	s.metrics.RecordFeedServed(name, len(posts), time.Since(start))
	writeBody(w, http.StatusOK, body)
}

// ETag returns a strong entity tag for body.
func ETag(body []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
}

// MatchesETag reports whether an If-None-Match header value matches etag.
// Weak validators compare equal to their strong form.
func MatchesETag(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// CacheControl formats the skeleton Cache-Control header.
func CacheControl(maxAge time.Duration) string {
	if maxAge <= 0 {
		return "no-cache"
	}
	return fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))
}

// DIDDocument is the did:web document served at /.well-known/did.json.
type DIDDocument struct {
	Context []string     `json:"@context"`
	ID      string       `json:"id"`
	Service []DIDService `json:"service"`
}

// DIDService is a service entry of a DID document.
type DIDService struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// NewDIDDocument returns the document advertising the feed generator at
// https://<hostname>.
func NewDIDDocument(did, hostname string) DIDDocument {
	return DIDDocument{
		Context: []string{"https://www.w3.org/ns/did/v1"},
		ID:      did,
		Service: []DIDService{{
			ID:              "#bsky_fg",
			Type:            "BskyFeedGenerator",
			ServiceEndpoint: "https://" + hostname,
		}},
	}
}

func (s *Server) handleDIDDocument(w http.ResponseWriter, r *http.Request) {
	reg := s.registry.Load()
	if reg.hostname == "" {
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: "NotFound", Message: "no hostname configured"})
		return
	}
	writeJSON(w, http.StatusOK, NewDIDDocument(reg.DID(), reg.hostname))
}

// Description is the describeFeedGenerator response body.
type Description struct {
	DID   string            `json:"did"`
	Feeds []DescribedFeed   `json:"feeds"`
	Links map[string]string `json:"links,omitempty"`
}

// DescribedFeed names one served feed.
type DescribedFeed struct {
	URI string `json:"uri"`
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	reg := s.registry.Load()
	desc := Description{DID: reg.DID(), Feeds: make([]DescribedFeed, 0, len(reg.Names()))}
	for _, name := range reg.Names() {
		desc.Feeds = append(desc.Feeds, DescribedFeed{URI: reg.FeedURI(name)})
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.WithContext(r.Context()).Warn("Health check failed", logging.Err(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"InternalServerError"}`, http.StatusInternalServerError)
		return
	}
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Blend is the offline equivalent of a skeleton request: it resolves the
// lists the blender needs from lists and returns the skeleton.
func Blend(lists blend.Lists, b blend.Blender, limit int) Skeleton {
	return NewSkeleton(b.Apply(lists, limit))
}
