package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmicdatasets/curator/internal/storage"
	"github.com/cosmicdatasets/curator/pkg/types"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv("CURATOR_CONFIG", "")
	t.Setenv("CURATOR_DSN", "")
	t.Setenv("CURATOR_DATA_PATH", dataDir)
	t.Setenv("CURATOR_SIMULATION_DELAY", "-1ms")
	t.Setenv("CURATOR_LOG_LEVEL", "error")
	t.Setenv("CURATOR_LOG_PRETTY", "false")
	return dataDir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: 40, B: uint8(y * 16), A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

type listPage struct {
	Items []types.Asset
	Total int
}

func TestCLI_EndToEnd(t *testing.T) {
	setupEnv(t)

	offline := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer offline.Close()

	mediaDir := t.TempDir()
	writePNG(t, filepath.Join(mediaDir, "swatch.png"))

	out, err := run(t, "import", mediaDir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 imported, 0 skipped")

	out, err = run(t, "list", "--json")
	require.NoError(t, err)
	var page listPage
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Items, 1)
	id := page.Items[0].ID
	assert.False(t, page.Items[0].Processed)

	out, err = run(t, "settings", "set", "enableAgenticWorkflow=false", "localUrl="+offline.URL)
	require.NoError(t, err)
	assert.Contains(t, out, `"enableAgenticWorkflow": false`)
	assert.Contains(t, out, offline.URL)

	out, err = run(t, "analyze", id)
	require.NoError(t, err)
	var analyzed types.Asset
	require.NoError(t, json.Unmarshal([]byte(out), &analyzed))
	assert.True(t, analyzed.Processed)
	assert.NotEmpty(t, analyzed.Tags)
	assert.GreaterOrEqual(t, analyzed.Rating, 1)
	require.NotNil(t, analyzed.Aesthetic)

	out, err = run(t, "stats")
	require.NoError(t, err)
	var stats types.DatasetStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.TotalAssets)
	assert.Equal(t, 1, stats.ProcessedAssets)

	out, err = run(t, "batch", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "[1/1] "+id+" ok")
	assert.Contains(t, out, "1 succeeded, 0 failed")

	out, err = run(t, "list", "--unprocessed")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 0 assets")

	out, err = run(t, "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted "+id)

	_, err = run(t, "delete", id)
	assert.Error(t, err)
}

func TestCLI_BatchRequiresSelection(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "batch")
	assert.ErrorContains(t, err, "no assets selected")
}

func TestCLI_SettingsSetRejectsBadInput(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "settings", "set", "activeProvider")
	assert.ErrorContains(t, err, "expected key=value")

	_, err = run(t, "settings", "set", "noSuchField=1")
	assert.Error(t, err)
}

func TestCLI_InvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("CURATOR_LOG_LEVEL", "chatty")
	_, err := run(t, "stats")
	assert.ErrorContains(t, err, "invalid level")
}

func TestCLI_EagleExportNeedsEagle(t *testing.T) {
	setupEnv(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	t.Setenv("CURATOR_EAGLE_URL", down.URL)

	_, err := run(t, "eagle", "export", "abc")
	assert.ErrorContains(t, err, "not running")

	out, err := run(t, "eagle", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "online=false")
}

type idLister struct {
	storage.AssetStore
	got storage.ListOptions
}

func (l *idLister) IDs(_ context.Context, opts storage.ListOptions) ([]string, error) {
	l.got = opts
	return []string{"a", "b"}, nil
}

func TestSelectIDs(t *testing.T) {
	ctx := context.Background()
	l := &idLister{}

	ids, err := selectIDs(ctx, l, []string{"x"}, false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ids)

	_, err = selectIDs(ctx, l, []string{"x"}, true, false)
	assert.Error(t, err)

	ids, err = selectIDs(ctx, l, nil, true, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Nil(t, l.got.Processed)

	_, err = selectIDs(ctx, l, nil, false, true)
	require.NoError(t, err)
	require.NotNil(t, l.got.Processed)
	assert.False(t, *l.got.Processed)

	_, err = selectIDs(ctx, l, nil, false, false)
	assert.True(t, strings.Contains(err.Error(), "--all"))
}
