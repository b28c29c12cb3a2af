package media

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"
	exif "github.com/dsoprea/go-exif/v3"
	"github.com/rs/zerolog/log"

	"github.com/cosmicdatasets/curator/pkg/types"
)

// Metadata keys written by Probe.
const (
	MetaFileSize     = "fileSize"
	MetaFormat       = "format"
	MetaWidth        = "width"
	MetaHeight       = "height"
	MetaResolution   = "resolution"
	MetaCameraMake   = "cameraMake"
	MetaCameraModel  = "cameraModel"
	MetaExposureTime = "exposureTime"
	MetaISO          = "iso"
	MetaFNumber      = "fNumber"
	MetaFocalLength  = "focalLength"
	MetaDateTaken    = "dateTaken"
	MetaTitle        = "title"
	MetaArtist       = "artist"
	MetaAlbum        = "album"
	MetaGenre        = "genre"
	MetaYear         = "year"
)

// Probe builds an unprocessed Asset from a local media file, filling in the
// technical metadata that can be read without inference.
func Probe(path string) (*types.Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	kind := types.KindFromExtension(path)
	asset := types.NewAsset(kind, filepath.Base(path), abs)
	asset.Metadata[MetaFileSize] = info.Size()
	asset.Metadata[MetaFormat] = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	switch kind {
	case types.KindImage:
		probeImage(f, asset.Metadata)
	case types.KindAudio:
		probeAudio(f, asset.Metadata)
	}

	return asset, nil
}

func probeImage(rs io.ReadSeeker, meta map[string]any) {
	cfg, format, err := image.DecodeConfig(rs)
	if err == nil {
		meta[MetaWidth] = cfg.Width
		meta[MetaHeight] = cfg.Height
		meta[MetaResolution] = fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
		meta[MetaFormat] = format
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return
	}
	for k, v := range ReadExif(rs) {
		meta[k] = v
	}
}

// ReadExif returns the camera fields of the EXIF block in r, if any.
func ReadExif(r io.Reader) map[string]string {
	out := map[string]string{}

	exifData, err := exif.SearchAndExtractExifWithReader(r)
	if err != nil {
		if !errors.Is(err, exif.ErrNoExif) {
			log.Debug().Err(err).Str("component", "media").Msg("exif search failed")
		}
		return out
	}

	entries, _, err := exif.GetFlatExifData(exifData, nil)
	if err != nil {
		log.Debug().Err(err).Str("component", "media").Msg("exif parse failed")
		return out
	}

	raw := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.TagName == "" {
			continue
		}
		if v := strings.TrimSpace(strings.ReplaceAll(e.FormattedFirst, "\x00", "")); v != "" {
			raw[e.TagName] = v
		}
	}
	return mapExif(raw)
}

func mapExif(raw map[string]string) map[string]string {
	out := map[string]string{}
	if v, ok := raw["Make"]; ok {
		out[MetaCameraMake] = v
	}
	if v, ok := raw["Model"]; ok {
		out[MetaCameraModel] = v
	}
	if v, ok := raw["ExposureTime"]; ok {
		out[MetaExposureTime] = v
	}
	if v, ok := raw["ISOSpeedRatings"]; ok {
		out[MetaISO] = v
	}
	for _, name := range []string{"DateTimeOriginal", "CreateDate", "DateTime"} {
		if v, ok := raw[name]; ok {
			if t, err := time.Parse("2006:01:02 15:04:05", v); err == nil {
				out[MetaDateTaken] = t.Format(time.RFC3339)
				break
			}
		}
	}
	if v, ok := raw["FNumber"]; ok {
		if f, err := parseRational(v); err == nil {
			out[MetaFNumber] = fmt.Sprintf("%.1f", f)
		}
	}
	if v, ok := raw["FocalLength"]; ok {
		if f, err := parseRational(v); err == nil {
			out[MetaFocalLength] = fmt.Sprintf("%d", int(f))
		}
	}
	return out
}

func parseRational(s string) (float64, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0, errors.New("invalid rational format")
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0, errors.New("invalid rational components")
	}
	return num / den, nil
}

func probeAudio(rs io.ReadSeeker, meta map[string]any) {
	m, err := tag.ReadFrom(rs)
	if err != nil {
		log.Debug().Err(err).Str("component", "media").Msg("no audio tags")
		return
	}
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			meta[k] = v
		}
	}
	set(MetaFormat, string(m.FileType()))
	set(MetaTitle, m.Title())
	set(MetaArtist, m.Artist())
	set(MetaAlbum, m.Album())
	set(MetaGenre, m.Genre())
	if m.Year() > 0 {
		meta[MetaYear] = m.Year()
	}
}
