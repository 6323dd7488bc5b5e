package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

var ErrInvalidImage = errors.New("invalid image")

// Preset is one thumbnail rendition: target width and JPEG re-encode quality.
type Preset struct {
	Name    string
	Width   int
	Quality int
}

// Presets is the fixed rendition table. Stored thumbnail path maps key off
// these names, so the table must stay stable.
var Presets = []Preset{
	{Name: "small", Width: 400, Quality: 70},
	{Name: "medium", Width: 800, Quality: 75},
	{Name: "large", Width: 1200, Quality: 80},
}

// Dimensions decodes just the image header and returns pixel width and height.
func Dimensions(r io.Reader) (int, int, error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, ErrInvalidImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, ErrInvalidImage
	}
	return cfg.Width, cfg.Height, nil
}

// UniqueFileName builds a collision-free storage name keeping the original
// extension: "{unix-millis}-{token}{ext}".
func UniqueFileName(originalName string) string {
	ext := strings.ToLower(path.Ext(originalName))
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString(), ext)
}

// Putter is the slice of the object store the pipeline needs.
type Putter interface {
	Put(ctx context.Context, path string, data []byte, contentType, cacheControl string) error
}

const thumbCacheControl = "public, max-age=31536000, immutable"

// Pipeline derives the fixed thumbnail renditions of an original image.
type Pipeline struct {
	store  Putter
	logger *slog.Logger
}

func NewPipeline(store Putter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: store, logger: logger}
}

// Generate resizes the original into every preset and stores each rendition
// under {ownerID}/thumbnails/{preset}_{base}.jpg. A preset that fails to
// encode or store is logged and omitted; the remaining presets still run.
// Returns the preset-to-path map of the renditions that were stored.
func (p *Pipeline) Generate(ctx context.Context, data []byte, ownerID, storedName string) (map[string]string, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode original: %w", err)
	}
	origWidth := src.Bounds().Dx()

	base := strings.TrimSuffix(storedName, path.Ext(storedName))
	thumbnails := make(map[string]string, len(Presets))
	for _, preset := range Presets {
		thumb := src
		// Never upscale past the original width.
		if origWidth > preset.Width {
			thumb = imaging.Resize(src, preset.Width, 0, imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(preset.Quality)); err != nil {
			p.logger.Warn("thumbnail encode failed", "preset", preset.Name, "error", err)
			continue
		}

		thumbPath := fmt.Sprintf("%s/thumbnails/%s_%s.jpg", ownerID, preset.Name, base)
		if err := p.store.Put(ctx, thumbPath, buf.Bytes(), "image/jpeg", thumbCacheControl); err != nil {
			p.logger.Warn("thumbnail upload failed", "preset", preset.Name, "path", thumbPath, "error", err)
			continue
		}
		thumbnails[preset.Name] = thumbPath
	}
	return thumbnails, nil
}
