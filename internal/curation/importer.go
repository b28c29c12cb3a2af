package curation

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cosmicdatasets/curator/internal/media"
	"github.com/cosmicdatasets/curator/internal/storage"
	"github.com/cosmicdatasets/curator/pkg/types"
)

// supportedExtensions are the file types the importer picks up when walking
// a directory. Explicitly named files are always imported.
var supportedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".mp3": true, ".wav": true, ".flac": true, ".ogg": true, ".m4a": true, ".aac": true,
	".mp4": true, ".mov": true, ".webm": true, ".mkv": true, ".avi": true,
}

// ImportResult lists what an import created and what it skipped.
type ImportResult struct {
	Imported []*types.Asset
	Skipped  map[string]error
}

// Importer creates assets from files on disk.
type Importer struct {
	store storage.AssetStore
}

// NewImporter creates an importer writing to store.
func NewImporter(store storage.AssetStore) *Importer {
	return &Importer{store: store}
}

// Import probes every path (directories are walked recursively) and stores
// one unprocessed, unrated asset per media file. A failing file is recorded
// in Skipped and does not stop the import.
func (im *Importer) Import(ctx context.Context, paths []string) (*ImportResult, error) {
	res := &ImportResult{Skipped: map[string]error{}}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			res.Skipped[p] = err
			continue
		}
		if !info.IsDir() {
			im.importFile(ctx, p, res)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				res.Skipped[path] = err
				return nil
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if supportedExtensions[strings.ToLower(filepath.Ext(path))] {
				im.importFile(ctx, path, res)
			}
			return ctx.Err()
		})
		if err != nil {
			return res, fmt.Errorf("walk %s: %w", p, err)
		}
	}

	log.Info().
		Str("component", "importer").
		Int("imported", len(res.Imported)).
		Int("skipped", len(res.Skipped)).
		Msg("import finished")
	return res, nil
}

func (im *Importer) importFile(ctx context.Context, path string, res *ImportResult) {
	asset, err := media.Probe(path)
	if err != nil {
		res.Skipped[path] = err
		return
	}
	if err := im.store.Create(ctx, asset); err != nil {
		res.Skipped[path] = err
		return
	}
	res.Imported = append(res.Imported, asset)
}
