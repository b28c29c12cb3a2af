// Package eagle pushes curated assets into a running Eagle library through
// its local HTTP API.
package eagle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cosmicdatasets/curator/pkg/types"
)

// DefaultURL is where the Eagle desktop app serves its API.
const DefaultURL = "http://localhost:41595"

// IDPrefix marks assets that were imported from an Eagle library.
const IDPrefix = "eagle-"

const statusTimeout = time.Second

// Config holds Eagle client configuration.
type Config struct {
	// BaseURL is the Eagle API root (default: http://localhost:41595)
	BaseURL string

	// Timeout bounds item update and import requests (default: 30s)
	Timeout time.Duration
}

// Client talks to the Eagle API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an Eagle client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http:    &http.Client{Timeout: config.Timeout},
	}
}

// updateRequest is the body of /api/item/update.
type updateRequest struct {
	ID         string   `json:"id"`
	Tags       []string `json:"tags"`
	Annotation string   `json:"annotation"`
	Star       int      `json:"star"`
}

type importItem struct {
	Name       string   `json:"name"`
	Annotation string   `json:"annotation"`
	Tags       []string `json:"tags"`
	Ext        string   `json:"ext"`
	Base64     string   `json:"base64"`
	Star       int      `json:"star"`
}

// importRequest is the body of /api/item/addFromPaths. An empty folder id
// lands the items in the library root.
type importRequest struct {
	Items    []importItem `json:"items"`
	FolderID string       `json:"folderId"`
}

// apiResponse is the envelope every Eagle endpoint answers with.
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Status reports whether Eagle is running. It never waits more than a second.
func (c *Client) Status(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/application/info", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Debug().Str("component", "eagle").Err(err).Msg("eagle not reachable")
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// ItemID returns the Eagle item id of an asset imported from Eagle.
func ItemID(asset *types.Asset) (string, bool) {
	if !strings.HasPrefix(asset.ID, IDPrefix) {
		return "", false
	}
	return strings.TrimPrefix(asset.ID, IDPrefix), true
}

// UpdateItem overwrites the tags, annotation and star rating of an existing
// Eagle item with the asset's curated values.
func (c *Client) UpdateItem(ctx context.Context, eagleID string, asset *types.Asset) error {
	body := updateRequest{
		ID:         eagleID,
		Tags:       tagNames(asset.Tags),
		Annotation: asset.Caption,
		Star:       star(asset.Rating),
	}
	if err := c.post(ctx, "/api/item/update", body); err != nil {
		return fmt.Errorf("update eagle item %s: %w", eagleID, err)
	}
	return nil
}

// ImportAsset adds the asset to the Eagle library as a new item carrying the
// given base64 payload.
func (c *Client) ImportAsset(ctx context.Context, asset *types.Asset, payload string) error {
	body := importRequest{
		Items: []importItem{{
			Name:       asset.Name,
			Annotation: asset.Caption,
			Tags:       tagNames(asset.Tags),
			Ext:        extension(asset),
			Base64:     payload,
			Star:       star(asset.Rating),
		}},
	}
	if err := c.post(ctx, "/api/item/addFromPaths", body); err != nil {
		return fmt.Errorf("import %s into eagle: %w", asset.Name, err)
	}
	return nil
}

// Export syncs an Eagle-origin asset in place, or imports any other asset.
// payload is only called for imports.
func (c *Client) Export(ctx context.Context, asset *types.Asset, payload func() (string, error)) error {
	if id, ok := ItemID(asset); ok {
		return c.UpdateItem(ctx, id, asset)
	}
	data, err := payload()
	if err != nil {
		return fmt.Errorf("load payload for %s: %w", asset.ID, err)
	}
	return c.ImportAsset(ctx, asset, data)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("eagle returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope apiResponse
	if json.Unmarshal(respBody, &envelope) == nil && envelope.Status == "error" {
		return fmt.Errorf("eagle rejected request: %s", envelope.Message)
	}
	return nil
}

func tagNames(tags []types.Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}

// star clamps a rating to Eagle's whole 0-5 stars.
func star(rating int) int {
	return int(math.Max(0, math.Min(5, float64(rating))))
}

// extension picks the file extension from the asset name, falling back to a
// per-kind default.
func extension(asset *types.Asset) string {
	if ext := strings.TrimPrefix(filepath.Ext(asset.Name), "."); ext != "" {
		return ext
	}
	switch asset.Kind {
	case types.KindAudio:
		return "mp3"
	case types.KindVideo:
		return "mp4"
	default:
		return "png"
	}
}
