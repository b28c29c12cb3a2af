package analysis

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmicdatasets/curator/pkg/types"
)

func fixedNow() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

func ptr[T any](v T) *T { return &v }

func TestTagList_Lenient(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"strings", `["a", " b ", ""]`, []string{"a", "b"}},
		{"objects", `[{"name":"sunset"}, {"name":""}, "sea"]`, []string{"sunset", "sea"}},
		{"numbers", `[35, "mm"]`, []string{"35", "mm"}},
		{"comma string", `"neon, city ,, night"`, []string{"neon", "city", "night"}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tags TagList
			require.NoError(t, json.Unmarshal([]byte(tt.in), &tags))
			assert.Equal(t, tt.want, []string(tags))
		})
	}

	var tags TagList
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &tags))
}

func TestParseRawAnalysis(t *testing.T) {
	raw, err := ParseRawAnalysis("Sure!\n```json\n{\"tags\":[\"x\"],\"caption\":\"c\",\"aesthetic_score\":8}\n```")
	require.NoError(t, err)
	assert.Equal(t, TagList{"x"}, raw.Tags)
	assert.Equal(t, "c", raw.Caption)
	require.NotNil(t, raw.AestheticScore)
	assert.Equal(t, 8.0, *raw.AestheticScore)

	_, err = ParseRawAnalysis("no json here")
	assert.Error(t, err)
}

func TestNormalize_ImageDefaults(t *testing.T) {
	result := Normalize(RawAnalysis{Tags: TagList{"a", "b"}, Caption: "cap"}, types.TagSourceOpenAI, NormalizeOptions{
		Kind: types.KindImage,
		Now:  fixedNow,
	})

	require.Len(t, result.Tags, 2)
	assert.Equal(t, "cap", result.Caption)
	require.NotNil(t, result.MetadataGuess)
	require.NotNil(t, result.Aesthetic)
	assert.Equal(t, 5.0, result.Aesthetic.Score)
	assert.False(t, result.Aesthetic.IsGalleryStandard)
	assert.Equal(t, DefaultCritique, result.Aesthetic.Critique)
	assert.NotNil(t, result.Aesthetic.ColorPalette)
	assert.Empty(t, result.Aesthetic.ColorPalette)

	for _, tag := range result.Tags {
		assert.Equal(t, types.TagSourceOpenAI, tag.Source)
		assert.Equal(t, ConfidenceGeneric, tag.Confidence)
		assert.True(t, strings.HasPrefix(tag.ID, "ai_openai-1740830400000-"), tag.ID)
	}
	assert.NotEqual(t, result.Tags[0].ID, result.Tags[1].ID)
}

func TestNormalize_FreshIDsPerCall(t *testing.T) {
	raw, err := ParseRawAnalysis(`{"tags":["dusk","harbor","boats"],"caption":"Quiet port.","aesthetic_score":6.4,"color_palette":["#223344"],"metadata":{"mood":"calm"}}`)
	require.NoError(t, err)
	opts := NormalizeOptions{Kind: types.KindImage, Now: fixedNow}

	first := Normalize(raw, types.TagSourceOpenAI, opts)
	second := Normalize(raw, types.TagSourceOpenAI, opts)

	require.Len(t, first.Tags, 3)
	require.Len(t, second.Tags, 3)
	for i := range first.Tags {
		assert.NotEqual(t, first.Tags[i].ID, second.Tags[i].ID)
		first.Tags[i].ID = ""
		second.Tags[i].ID = ""
	}
	assert.True(t, reflect.DeepEqual(first, second))
}

func TestNormalize_GalleryRule(t *testing.T) {
	tests := []struct {
		name    string
		score   *float64
		gallery *bool
		want    bool
		score2  float64
	}{
		{"above threshold", ptr(8.0), nil, true, 8},
		{"at threshold", ptr(7.5), nil, false, 7.5},
		{"explicit false wins", ptr(9.0), ptr(false), false, 9},
		{"explicit true wins", ptr(3.0), ptr(true), true, 3},
		{"zero score defaults", ptr(0.0), nil, false, 5},
		{"clamped high", ptr(42.0), nil, true, 10},
		{"clamped low", ptr(-3.0), nil, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Normalize(RawAnalysis{AestheticScore: tt.score, IsGalleryStandard: tt.gallery}, types.TagSourceGemini, NormalizeOptions{Kind: types.KindImage})
			require.NotNil(t, result.Aesthetic)
			assert.Equal(t, tt.want, result.Aesthetic.IsGalleryStandard)
			assert.Equal(t, tt.score2, result.Aesthetic.Score)
		})
	}
}

func TestNormalize_KindGating(t *testing.T) {
	raw := RawAnalysis{
		Tags:           TagList{"beat"},
		AestheticScore: ptr(9.0),
		CameraGuess:    ptr("Leica M6"),
		BPM:            ptr(128.0),
		MusicalKey:     ptr("A minor"),
		Metadata:       map[string]any{"mood": "dark"},
	}

	audio := Normalize(raw, types.TagSourceLocal, NormalizeOptions{Kind: types.KindAudio})
	assert.Nil(t, audio.Aesthetic)
	assert.Equal(t, 128.0, audio.MetadataGuess["bpm"])
	assert.Equal(t, "A minor", audio.MetadataGuess["key"])
	assert.Equal(t, "dark", audio.MetadataGuess["mood"])
	assert.NotContains(t, audio.MetadataGuess, "cameraModel")

	image := Normalize(raw, types.TagSourceLocal, NormalizeOptions{Kind: types.KindImage})
	require.NotNil(t, image.Aesthetic)
	assert.Equal(t, "Leica M6", image.MetadataGuess["cameraModel"])
	assert.NotContains(t, image.MetadataGuess, "bpm")
}

func TestNormalize_ProviderConfidence(t *testing.T) {
	result := Normalize(RawAnalysis{Tags: TagList{"a"}, Confidence: ptr(0.42)}, types.TagSourceOllama, NormalizeOptions{Kind: types.KindVideo})
	assert.Equal(t, 0.42, result.Tags[0].Confidence)

	result = Normalize(RawAnalysis{Tags: TagList{"a"}, Confidence: ptr(4.2)}, types.TagSourceOllama, NormalizeOptions{Kind: types.KindVideo, Confidence: ConfidenceLocal})
	assert.Equal(t, ConfidenceLocal, result.Tags[0].Confidence)
}

func TestNormalize_EmptyTags(t *testing.T) {
	result := Normalize(RawAnalysis{}, types.TagSourceOpenRouter, NormalizeOptions{Kind: types.KindVideo})
	assert.NotNil(t, result.Tags)
	assert.Empty(t, result.Tags)
	assert.NotNil(t, result.MetadataGuess)
}

func TestResult(t *testing.T) {
	ok := Ok("desc")
	assert.True(t, ok.IsOk())
	assert.Equal(t, "desc", ok.OrElse("fallback"))

	failed := Fail[string](StageVision, KindShortOutput, assert.AnError)
	assert.False(t, failed.IsOk())
	assert.Equal(t, "fallback", failed.OrElse("fallback"))
	assert.ErrorIs(t, failed.Err, assert.AnError)
	assert.Contains(t, failed.Err.Error(), "vision stage failed (short_output)")
}
