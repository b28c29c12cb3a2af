// Package media fetches asset payloads and extracts technical metadata and
// color palettes from media files.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// PlaceholderPayload stands in for sources that cannot be fetched
// (browser blob URLs, opaque ids). Providers receive it verbatim.
const PlaceholderPayload = "mock_base64"

// DefaultMaxBytes caps a fetched payload.
const DefaultMaxBytes = 64 << 20

// ErrTooLarge is returned when a payload exceeds the fetcher's byte limit.
var ErrTooLarge = errors.New("payload exceeds size limit")

// Fetcher resolves an asset URL to a base64 payload.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the client used for remote URLs.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = c }
}

// WithMaxBytes sets the payload size limit.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) { f.maxBytes = n }
}

// NewFetcher creates a fetcher with a 60s HTTP timeout.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 60 * time.Second},
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the base64 payload for rawURL: http(s) URLs are downloaded,
// file:// URLs and existing local paths are read, anything else yields
// PlaceholderPayload.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	switch {
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		return f.fetchHTTP(ctx, rawURL)
	case strings.HasPrefix(rawURL, "file://"):
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("invalid file URL %q: %w", rawURL, err)
		}
		return f.readFile(u.Path)
	default:
		if rawURL != "" {
			if info, err := os.Stat(rawURL); err == nil && info.Mode().IsRegular() {
				return f.readFile(rawURL)
			}
		}
		return PlaceholderPayload, nil
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s returned status %d", rawURL, resp.StatusCode)
	}
	data, err := f.readLimited(resp.Body)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (f *Fetcher) readFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	data, err := f.readLimited(file)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, f.maxBytes)
	}
	return data, nil
}
