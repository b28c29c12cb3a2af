// Package types defines the core data structures for the curator dataset tool.
// These types represent media assets, their tags and aesthetic assessments, and
// the canonical analysis result every provider path converges to.
package types

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetKind is the media kind of an asset.
type AssetKind string

// Asset kind constants
const (
	KindImage AssetKind = "image"
	KindAudio AssetKind = "audio"
	KindVideo AssetKind = "video"
)

// ValidAssetKinds is a slice of all valid asset kinds for validation
var ValidAssetKinds = []AssetKind{KindImage, KindAudio, KindVideo}

// IsValidAssetKind checks if the given kind is one of the supported media kinds.
func IsValidAssetKind(kind AssetKind) bool {
	for _, k := range ValidAssetKinds {
		if kind == k {
			return true
		}
	}
	return false
}

// TagSource records the provenance of a tag. It is used for analytics only and
// never drives behavior inside the analysis pipeline.
type TagSource string

// Tag source constants
const (
	TagSourceManual     TagSource = "manual"
	TagSourceLocal      TagSource = "ai_local"
	TagSourceGemini     TagSource = "ai_gemini"
	TagSourceOpenAI     TagSource = "ai_openai"
	TagSourceAnthropic  TagSource = "ai_anthropic"
	TagSourceOpenRouter TagSource = "ai_openrouter"
	TagSourceOllama     TagSource = "ai_ollama"
)

// ValidTagSources is a slice of all valid tag sources for validation
var ValidTagSources = []TagSource{
	TagSourceManual,
	TagSourceLocal,
	TagSourceGemini,
	TagSourceOpenAI,
	TagSourceAnthropic,
	TagSourceOpenRouter,
	TagSourceOllama,
}

// IsValidTagSource checks if the given source is a known provenance value.
func IsValidTagSource(source TagSource) bool {
	for _, s := range ValidTagSources {
		if source == s {
			return true
		}
	}
	return false
}

// Tag is a labeled attribute attached to an asset. Tags are immutable once
// created; removing a tag deletes it from the asset's list.
type Tag struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Source     TagSource `json:"source"`
	Confidence float64   `json:"confidence,omitempty"` // 0.0 to 1.0
}

// AestheticData is a structured quality assessment. Only images carry one.
type AestheticData struct {
	Score             float64  `json:"score"`         // 1.0 to 10.0
	ColorPalette      []string `json:"color_palette"` // hex codes, dominant first
	IsGalleryStandard bool     `json:"is_gallery_standard"`
	Critique          string   `json:"critique"`
}

// Asset is one media item under curation.
type Asset struct {
	ID           string         `json:"id"`
	Kind         AssetKind      `json:"type"`
	Name         string         `json:"name"`
	URL          string         `json:"url"`                     // remote URL or local path
	ThumbnailURL string         `json:"thumbnail_url,omitempty"` // cover art or placeholder for audio/video
	Metadata     map[string]any `json:"metadata,omitempty"`      // kind-specific technical metadata
	Tags         []Tag          `json:"tags"`
	Rating       int            `json:"rating"` // 0 (unrated) to 5
	Flagged      bool           `json:"flagged"`
	Processed    bool           `json:"processed"`
	Caption      string         `json:"caption,omitempty"`
	Aesthetic    *AestheticData `json:"aesthetic,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewAsset creates an unprocessed, unrated asset with a fresh ID.
func NewAsset(kind AssetKind, name, url string) *Asset {
	now := time.Now().UTC()
	return &Asset{
		ID:        uuid.NewString(),
		Kind:      kind,
		Name:      name,
		URL:       url,
		Metadata:  map[string]any{},
		Tags:      []Tag{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the fields a stored asset must always carry.
func (a *Asset) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("asset id is required")
	}
	if !IsValidAssetKind(a.Kind) {
		return fmt.Errorf("invalid asset kind: %q (must be one of: image, audio, video)", a.Kind)
	}
	if a.Rating < 0 || a.Rating > 5 {
		return fmt.Errorf("invalid rating %d (must be 0-5)", a.Rating)
	}
	if a.Aesthetic != nil && a.Kind != KindImage {
		return fmt.Errorf("aesthetic data is only valid for images, asset %s is %s", a.ID, a.Kind)
	}
	return nil
}

// Clone returns a deep copy so callers can build a merged version of an asset
// without mutating the stored record until the update succeeds.
func (a *Asset) Clone() *Asset {
	c := *a
	c.Tags = append([]Tag(nil), a.Tags...)
	c.Metadata = make(map[string]any, len(a.Metadata))
	for k, v := range a.Metadata {
		c.Metadata[k] = v
	}
	if a.Aesthetic != nil {
		ae := *a.Aesthetic
		ae.ColorPalette = append([]string(nil), a.Aesthetic.ColorPalette...)
		c.Aesthetic = &ae
	}
	return &c
}

// KindFromExtension guesses the asset kind from a file name. Anything that is
// not recognisably audio or video is treated as an image.
func KindFromExtension(name string) AssetKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3", ".wav", ".flac", ".ogg", ".m4a", ".aac":
		return KindAudio
	case ".mp4", ".mov", ".webm", ".mkv", ".avi":
		return KindVideo
	default:
		return KindImage
	}
}

// AnalysisResult is the canonical, normalized output of one analysis call.
// Every provider path converges to this shape before returning to a caller.
type AnalysisResult struct {
	Tags          []Tag          `json:"tags"`
	Caption       string         `json:"caption"`
	MetadataGuess map[string]any `json:"metadata_guess"`
	Aesthetic     *AestheticData `json:"aesthetic,omitempty"`
}

// DatasetStats summarizes the asset collection.
type DatasetStats struct {
	TotalAssets     int     `json:"total_assets"`
	ProcessedAssets int     `json:"processed_assets"`
	FlaggedAssets   int     `json:"flagged_assets"`
	ImageCount      int     `json:"image_count"`
	AudioCount      int     `json:"audio_count"`
	VideoCount      int     `json:"video_count"`
	AverageRating   float64 `json:"average_rating"` // over rated assets only
}
