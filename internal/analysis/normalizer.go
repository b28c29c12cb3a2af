// Package analysis turns a raw asset into a canonical AnalysisResult by routing
// it through the configured AI provider, optionally as a two-stage
// vision-then-reasoning workflow, and normalizing whatever comes back.
package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cosmicdatasets/curator/internal/llm"
	"github.com/cosmicdatasets/curator/pkg/types"
)

// Default confidences by path.
const (
	ConfidenceGeneric = 0.9
	ConfidenceGemini  = 0.95
	ConfidenceLocal   = 1.0
)

// DefaultCritique is used when a provider returns no critique.
const DefaultCritique = "No critique available."

// GalleryThreshold is the score above which an image is gallery standard
// unless the provider says otherwise.
const GalleryThreshold = 7.5

// TagList decodes a tags array leniently. Small models sometimes emit
// objects ({"name": ...}) or numbers instead of plain strings.
type TagList []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *TagList) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = nil
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		// a bare comma-separated string
		var s string
		if err2 := json.Unmarshal(data, &s); err2 == nil {
			*t = splitTags(s)
			return nil
		}
		return fmt.Errorf("tags must be an array: %w", err)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && strings.TrimSpace(obj.Name) != "" {
			out = append(out, strings.TrimSpace(obj.Name))
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err == nil {
			out = append(out, n.String())
		}
	}
	*t = out
	return nil
}

func splitTags(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RawAnalysis is the provider-shaped JSON every path decodes into before
// normalization. Pointer fields distinguish "absent" from zero.
type RawAnalysis struct {
	Tags              TagList        `json:"tags"`
	Caption           string         `json:"caption"`
	AestheticScore    *float64       `json:"aesthetic_score,omitempty"`
	IsGalleryStandard *bool          `json:"is_gallery_standard,omitempty"`
	Critique          *string        `json:"critique,omitempty"`
	ColorPalette      []string       `json:"color_palette,omitempty"`
	CameraGuess       *string        `json:"camera_guess,omitempty"`
	BPM               *float64       `json:"bpm,omitempty"`
	MusicalKey        *string        `json:"musical_key,omitempty"`
	Confidence        *float64       `json:"confidence,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// ParseRawAnalysis decodes model output into a RawAnalysis. Code fences and
// surrounding prose are stripped first. This is the only failing step of
// normalization.
func ParseRawAnalysis(text string) (RawAnalysis, error) {
	var raw RawAnalysis
	if err := llm.DecodeJSON(text, &raw); err != nil {
		return RawAnalysis{}, err
	}
	return raw, nil
}

// NormalizeOptions controls the per-path defaults of Normalize.
type NormalizeOptions struct {
	Kind            types.AssetKind
	Confidence      float64
	DefaultCritique string
	Now             func() time.Time
}

// Normalize maps a RawAnalysis onto the canonical result. It never fails and
// never leaves a required field nil.
func Normalize(raw RawAnalysis, source types.TagSource, opts NormalizeOptions) types.AnalysisResult {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Confidence == 0 {
		opts.Confidence = ConfidenceGeneric
	}
	if opts.DefaultCritique == "" {
		opts.DefaultCritique = DefaultCritique
	}

	confidence := opts.Confidence
	if raw.Confidence != nil && *raw.Confidence >= 0 && *raw.Confidence <= 1 {
		confidence = *raw.Confidence
	}

	result := types.AnalysisResult{
		Tags:          buildTags(raw.Tags, source, confidence, opts.Now()),
		Caption:       raw.Caption,
		MetadataGuess: map[string]any{},
	}

	for k, v := range raw.Metadata {
		result.MetadataGuess[k] = v
	}

	if opts.Kind == types.KindImage {
		if raw.CameraGuess != nil && *raw.CameraGuess != "" {
			result.MetadataGuess["cameraModel"] = *raw.CameraGuess
		}
		result.Aesthetic = buildAesthetic(raw, opts.DefaultCritique)
	} else {
		if raw.BPM != nil && *raw.BPM > 0 {
			result.MetadataGuess["bpm"] = *raw.BPM
		}
		if raw.MusicalKey != nil && *raw.MusicalKey != "" {
			result.MetadataGuess["key"] = *raw.MusicalKey
		}
	}

	return result
}

func buildAesthetic(raw RawAnalysis, defaultCritique string) *types.AestheticData {
	score := 5.0
	if raw.AestheticScore != nil && *raw.AestheticScore != 0 {
		score = clampScore(*raw.AestheticScore)
	}

	gallery := score > GalleryThreshold
	if raw.IsGalleryStandard != nil {
		gallery = *raw.IsGalleryStandard
	}

	critique := defaultCritique
	if raw.Critique != nil && strings.TrimSpace(*raw.Critique) != "" {
		critique = *raw.Critique
	}

	palette := make([]string, 0, len(raw.ColorPalette))
	for _, c := range raw.ColorPalette {
		if c = strings.TrimSpace(c); c != "" {
			palette = append(palette, c)
		}
	}

	return &types.AestheticData{
		Score:             score,
		ColorPalette:      palette,
		IsGalleryStandard: gallery,
		Critique:          critique,
	}
}

func clampScore(s float64) float64 {
	switch {
	case s < 1:
		return 1
	case s > 10:
		return 10
	default:
		return s
	}
}

// buildTags assigns every tag the same source and a fresh id:
// <source>-<unixmillis>-<index>-<random>.
func buildTags(names []string, source types.TagSource, confidence float64, now time.Time) []types.Tag {
	tags := make([]types.Tag, 0, len(names))
	millis := now.UnixMilli()
	for i, name := range names {
		tags = append(tags, types.Tag{
			ID:         fmt.Sprintf("%s-%d-%d-%s", source, millis, i, uuid.NewString()[:8]),
			Name:       name,
			Source:     source,
			Confidence: confidence,
		})
	}
	return tags
}

// singleTagResult builds a labelled degraded result: one tag, a caption and
// no aesthetic.
func singleTagResult(tag, caption string, source types.TagSource, confidence float64, now time.Time) types.AnalysisResult {
	return types.AnalysisResult{
		Tags:          buildTags([]string{tag}, source, confidence, now),
		Caption:       caption,
		MetadataGuess: map[string]any{},
	}
}
