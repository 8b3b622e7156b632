package xtream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iptvdeck/iptvdeck/internal/httpclient"
)

// FailKind classifies a fetch failure so callers can tell "provider is
// down" from "provider sent garbage".
type FailKind int

const (
	FailNetwork FailKind = iota // dial/timeout/transport error
	FailStatus                  // non-200 response
	FailParse                   // body is not the expected JSON shape
)

func (f FailKind) String() string {
	switch f {
	case FailNetwork:
		return "network"
	case FailStatus:
		return "status"
	case FailParse:
		return "parse"
	}
	return "unknown"
}

// FetchError is returned by all provider calls.
type FetchError struct {
	Fail     FailKind
	Resource Kind
	Status   int // set for FailStatus
	Err      error
}

func (e *FetchError) Error() string {
	if e.Fail == FailStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Resource, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.Resource, e.Fail, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client talks to one Xtream-Codes provider and persists raw responses as
// per-kind snapshot files. All calls are sequential; the limiter spaces
// them out so big refreshes do not trip provider rate limits.
type Client struct {
	BaseURL     string
	Username    string
	Password    string
	UserAgent   string
	SnapshotDir string

	HTTP        *http.Client // small resources
	StreamsHTTP *http.Client // live/VOD stream lists
	Limiter     *rate.Limiter
}

// New returns a Client with the standard timeouts and a 2 req/s pacing
// limiter. Pass zero durations to keep the defaults.
func New(baseURL, username, password, snapshotDir string, fetchTimeout, streamsTimeout time.Duration) *Client {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	if streamsTimeout <= 0 {
		streamsTimeout = 120 * time.Second
	}
	return &Client{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		Username:    username,
		Password:    password,
		UserAgent:   "iptvdeck/1.0",
		SnapshotDir: snapshotDir,
		HTTP:        httpclient.WithTimeout(fetchTimeout),
		StreamsHTTP: httpclient.WithTimeout(streamsTimeout),
		Limiter:     rate.NewLimiter(rate.Limit(2), 1),
	}
}

// apiURL builds the player_api.php URL for an action ("" for account info).
// User and pass are query-escaped to prevent query injection.
func (c *Client) apiURL(action string) string {
	u := c.BaseURL + "/player_api.php?username=" + url.QueryEscape(c.Username) +
		"&password=" + url.QueryEscape(c.Password)
	if action != "" {
		u += "&action=" + action
	}
	return u
}

// Fetch downloads one resource kind and writes its snapshot file. The
// snapshot is written with temp+rename so a concurrent reader never sees a
// partial file. No retries: a failed fetch fails the whole refresh pass.
func (c *Client) Fetch(ctx context.Context, kind Kind) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return &FetchError{Fail: FailNetwork, Resource: kind, Err: err}
		}
	}
	client := c.HTTP
	if kind.large() && c.StreamsHTTP != nil {
		client = c.StreamsHTTP
	}
	body, ferr := c.get(ctx, client, kind, c.apiURL(kind.action()))
	if ferr != nil {
		return ferr
	}
	if err := validateShape(kind, body); err != nil {
		return &FetchError{Fail: FailParse, Resource: kind, Err: err}
	}
	return writeFileAtomic(filepath.Join(c.SnapshotDir, kind.SnapshotFile()), body)
}

// FetchAll runs the given kinds strictly in order, stopping at the first
// failure. progress (optional) is called after each successful fetch.
func (c *Client) FetchAll(ctx context.Context, kinds []Kind, progress func(Kind)) error {
	for _, kind := range kinds {
		if err := c.Fetch(ctx, kind); err != nil {
			return err
		}
		if progress != nil {
			progress(kind)
		}
	}
	return nil
}

// Listing is one short-EPG programme entry as the provider sends it.
// Title and Description may be base64-encoded; the EPG resolver deals
// with that.
type Listing struct {
	Title       string `json:"title"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description"`
}

// ShortEPG queries get_short_epg. The query is normally a stream id but
// some providers accept a channel name in its place, which the resolver's
// fallback chain exploits.
func (c *Client) ShortEPG(ctx context.Context, query string, limit int) ([]Listing, error) {
	if limit <= 0 {
		limit = 3
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Fail: FailNetwork, Resource: "short_epg", Err: err}
		}
	}
	u := c.apiURL("get_short_epg") +
		"&stream_id=" + url.QueryEscape(query) +
		"&limit=" + fmt.Sprint(limit)
	body, ferr := c.get(ctx, c.HTTP, "short_epg", u)
	if ferr != nil {
		return nil, ferr
	}
	var out struct {
		Listings []Listing `json:"epg_listings"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &FetchError{Fail: FailParse, Resource: "short_epg", Err: err}
	}
	return out.Listings, nil
}

func (c *Client) get(ctx context.Context, client *http.Client, kind Kind, u string) ([]byte, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Fail: FailNetwork, Resource: kind, Err: err}
	}
	req.Header.Set("User-Agent", c.UserAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{Fail: FailNetwork, Resource: kind, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Fail: FailStatus, Resource: kind, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Fail: FailNetwork, Resource: kind, Err: err}
	}
	return body, nil
}

// validateShape rejects bodies that are not the coarse JSON shape the
// catalog builder needs, so a provider error page never becomes a
// "successful" snapshot.
func validateShape(kind Kind, body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return fmt.Errorf("invalid JSON")
	}
	if len(trimmed) == 0 {
		return fmt.Errorf("empty body")
	}
	if kind.wantArray() {
		if trimmed[0] != '[' {
			return fmt.Errorf("expected JSON array, got %q", trimmed[0])
		}
		return nil
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("expected JSON object, got %q", trimmed[0])
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(filepath.Clean(path))
	tmp, err := os.CreateTemp(dir, ".snapshot-*.json.tmp")
	if err != nil {
		return fmt.Errorf("snapshot %s: create temp: %w", path, err)
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("snapshot %s: write: %w", path, writeErr)
		}
		return fmt.Errorf("snapshot %s: close: %w", path, closeErr)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot %s: chmod: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot %s: rename: %w", path, err)
	}
	return nil
}
