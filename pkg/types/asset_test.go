package types_test

import (
	"strings"
	"testing"

	"github.com/cosmicdatasets/curator/pkg/types"
)

func TestIsValidAssetKind(t *testing.T) {
	for _, kind := range types.ValidAssetKinds {
		if !types.IsValidAssetKind(kind) {
			t.Errorf("IsValidAssetKind(%q) = false, want true", kind)
		}
	}
	for _, kind := range []types.AssetKind{"", "IMAGE", "document", " image"} {
		if types.IsValidAssetKind(kind) {
			t.Errorf("IsValidAssetKind(%q) = true, want false", kind)
		}
	}
}

func TestIsValidTagSource(t *testing.T) {
	for _, src := range types.ValidTagSources {
		if !types.IsValidTagSource(src) {
			t.Errorf("IsValidTagSource(%q) = false, want true", src)
		}
	}
	if types.IsValidTagSource("ai_mystery") {
		t.Error("IsValidTagSource(ai_mystery) = true, want false")
	}
}

func TestNewAsset(t *testing.T) {
	a := types.NewAsset(types.KindAudio, "track.mp3", "/music/track.mp3")

	if a.ID == "" {
		t.Fatal("expected generated ID")
	}
	if a.Processed || a.Rating != 0 {
		t.Errorf("new asset should be unprocessed and unrated, got processed=%t rating=%d", a.Processed, a.Rating)
	}
	if a.Tags == nil || a.Metadata == nil {
		t.Error("new asset should have non-nil tags and metadata")
	}
	if !a.CreatedAt.Equal(a.UpdatedAt) {
		t.Error("CreatedAt and UpdatedAt should match on creation")
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestAssetValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *types.Asset)
		wantErr string
	}{
		{"missing id", func(a *types.Asset) { a.ID = "" }, "id is required"},
		{"bad kind", func(a *types.Asset) { a.Kind = "doc" }, "invalid asset kind"},
		{"rating too high", func(a *types.Asset) { a.Rating = 6 }, "invalid rating"},
		{"negative rating", func(a *types.Asset) { a.Rating = -1 }, "invalid rating"},
		{"aesthetic on audio", func(a *types.Asset) {
			a.Kind = types.KindAudio
			a.Aesthetic = &types.AestheticData{Score: 5}
		}, "only valid for images"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := types.NewAsset(types.KindImage, "x.png", "/x.png")
			tt.mutate(a)
			err := a.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAssetClone_IsDeep(t *testing.T) {
	a := types.NewAsset(types.KindImage, "x.png", "/x.png")
	a.Tags = append(a.Tags, types.Tag{ID: "1", Name: "sky"})
	a.Metadata["iso"] = "100"
	a.Aesthetic = &types.AestheticData{Score: 7, ColorPalette: []string{"#000000"}}

	c := a.Clone()
	c.Tags[0].Name = "sea"
	c.Metadata["iso"] = "200"
	c.Aesthetic.Score = 2
	c.Aesthetic.ColorPalette[0] = "#ffffff"

	if a.Tags[0].Name != "sky" {
		t.Error("clone shares tag slice")
	}
	if a.Metadata["iso"] != "100" {
		t.Error("clone shares metadata map")
	}
	if a.Aesthetic.Score != 7 || a.Aesthetic.ColorPalette[0] != "#000000" {
		t.Error("clone shares aesthetic data")
	}
}

func TestKindFromExtension(t *testing.T) {
	cases := map[string]types.AssetKind{
		"a.MP3":     types.KindAudio,
		"b.flac":    types.KindAudio,
		"c.mov":     types.KindVideo,
		"d.webm":    types.KindVideo,
		"e.jpg":     types.KindImage,
		"no-ext":    types.KindImage,
		"weird.xyz": types.KindImage,
	}
	for name, want := range cases {
		if got := types.KindFromExtension(name); got != want {
			t.Errorf("KindFromExtension(%q) = %q, want %q", name, got, want)
		}
	}
}
