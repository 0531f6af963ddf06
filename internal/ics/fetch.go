package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "datecell/internal/log"
)

// ErrEmptyFeed is returned for a feed without a location.
var ErrEmptyFeed = errors.New("ics: feed location is empty")

// Feed is a calendar to import. Location is an http(s) URL or a file path.
type Feed struct {
	ID       string
	Location string
}

// FeedBody is the payload of one feed.
type FeedBody struct {
	Feed Feed
	Body []byte
	// FromCache is true when the cached body was reused after a 304 or a
	// failed request.
	FromCache bool
}

// cacheMeta holds the HTTP validators of one cached URL.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Loader reads feeds from disk or over HTTP. Remote feeds are revalidated
// with ETag / Last-Modified against a disk cache when a cache directory is
// set.
type Loader struct {
	client   *http.Client
	cacheDir string
}

// NewLoader returns a Loader caching under cacheDir. An empty cacheDir
// disables the cache; a nil client uses a client with a 15s timeout.
func NewLoader(cacheDir string, client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Loader{client: client, cacheDir: cacheDir}
}

// Load returns the body of feed.
func (l *Loader) Load(ctx context.Context, feed Feed) (FeedBody, error) {
	if feed.Location == "" {
		return FeedBody{}, ErrEmptyFeed
	}
	u, err := url.Parse(feed.Location)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		body, err := os.ReadFile(feed.Location)
		if err != nil {
			return FeedBody{}, fmt.Errorf("ics: read feed %q: %w", feed.ID, err)
		}
		return FeedBody{Feed: feed, Body: body}, nil
	}
	return l.fetch(ctx, feed)
}

func (l *Loader) fetch(ctx context.Context, feed Feed) (FeedBody, error) {
	var (
		cachePath  string
		meta       cacheMeta
		cachedBody []byte
	)
	if l.cacheDir != "" {
		cachePath = l.cachePathForURL(feed.Location)
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			return FeedBody{}, err
		}
		meta, _ = loadCacheMeta(cachePath)
		cachedBody, _ = os.ReadFile(filepath.Join(cachePath, "body.ics"))
	}
	cached := func(reason string, err error) (FeedBody, error) {
		if len(cachedBody) == 0 {
			return FeedBody{}, err
		}
		appLog.Error("ics fetch: "+reason+", using cached body", err, "id", feed.ID, "url", redactURL(feed.Location))
		return FeedBody{Feed: feed, Body: cachedBody, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.Location, nil)
	if err != nil {
		return FeedBody{}, err
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("ics fetch start", "id", feed.ID, "url", redactURL(feed.Location))

	resp, err := l.client.Do(req)
	if err != nil {
		return cached("network error", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FeedBody{}, err
		}
		if cachePath != "" {
			fresh := cacheMeta{
				URL:          feed.Location,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				UpdatedAt:    time.Now().UTC(),
			}
			if err := saveCache(cachePath, fresh, body); err != nil {
				appLog.Error("ics cache save failed", err, "id", feed.ID, "url", redactURL(feed.Location))
			}
		}
		return FeedBody{Feed: feed, Body: body}, nil

	case http.StatusNotModified:
		return cached("not modified", errors.New("ics: 304 Not Modified without a cached body"))

	default:
		return cached("non-OK status", fmt.Errorf("ics: fetch %q: %s", feed.ID, resp.Status))
	}
}

func (l *Loader) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(l.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func saveCache(cachePath string, meta cacheMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only the scheme and host of u; feed URLs often carry
// secret tokens.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "ics://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
