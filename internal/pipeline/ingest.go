package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"sprout/internal/geometry"
	"sprout/internal/media"
	"sprout/internal/transform"
	"sprout/internal/variant"
	"sprout/pkg/logger"
)

var ErrNotImage = errors.New("pipeline: file is not a decodable image")

// GenerateReport counts the sizes produced for one asset.
type GenerateReport struct {
	Generated []string
	Skipped   []string
	Failed    []string
}

// Ingest registers a file already stored under the media root as a new
// asset attached to parentType, downscales it when it exceeds the big
// image threshold, generates its sizes and runs the post-metadata hooks.
func (s *Service) Ingest(ctx context.Context, parentType, relPath, mimeType string) (*media.Asset, GenerateReport, error) {
	abs := media.Abs(s.opts.MediaRoot, relPath)
	w, h, _, err := transform.Probe(abs)
	if err != nil {
		return nil, GenerateReport{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	meta := media.Metadata{
		File:     relPath,
		Width:    w,
		Height:   h,
		MimeType: mimeType,
		FileSize: sizeOf(abs),
	}
	if t := s.opts.BigImageThreshold; t > 0 && (w > t || h > t) {
		scaled, err := s.downscale(abs, meta, t)
		if err != nil {
			logger.LogWarn("Could not downscale %s: %v", relPath, err)
		} else {
			meta = scaled
		}
	}

	asset, err := s.store.Create(ctx, parentType, meta)
	if err != nil {
		return nil, GenerateReport{}, fmt.Errorf("create asset: %w", err)
	}

	rep := s.GenerateSizes(ctx, asset.ID, parentType)
	s.OnMetadataGenerated(ctx, asset.ID)

	asset, err = s.store.Get(ctx, asset.ID)
	if err != nil {
		return nil, rep, err
	}
	return asset, rep, nil
}

// downscale writes "{stem}-scaled{ext}" fitting inside threshold and keeps
// the upload as the original image.
func (s *Service) downscale(abs string, meta media.Metadata, threshold int) (media.Metadata, error) {
	img, err := s.engine.Load(abs)
	if err != nil {
		return meta, err
	}
	srcW, srcH := s.engine.Dimensions(img)
	w, h := geometry.ComputeDimensions(srcW, srcH, threshold, threshold, false)
	if w <= 0 || h <= 0 {
		return meta, fmt.Errorf("no fitting dimensions for %dx%d", srcW, srcH)
	}
	resized, err := s.engine.Resize(img, w, h)
	if err != nil {
		return meta, err
	}

	base := filepath.Base(abs)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	name := stem + "-scaled" + transform.OutputExt(abs)
	dst := filepath.Join(filepath.Dir(abs), name)
	if err := s.engine.Save(resized, dst); err != nil {
		return meta, err
	}

	out := meta
	out.OriginalImage = base
	out.File = path.Join(meta.Dir(), name)
	out.Width, out.Height = w, h
	out.FileSize = sizeOf(dst)
	if ext := filepath.Ext(name); ext != filepath.Ext(base) {
		out.MimeType = mimeByExt[strings.ToLower(ext)]
	}
	logger.LogDebug("Downscaled %s from %dx%d to %dx%d", base, srcW, srcH, w, h)
	return out, nil
}

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// GenerateSizes produces every registered size allowed for parentType.
// Sizes the source is too small for are skipped.
func (s *Service) GenerateSizes(ctx context.Context, id uint, parentType string) GenerateReport {
	table := s.sizes.All()
	var names []string
	for _, r := range table.Registered() {
		names = append(names, r.Name)
	}

	var rep GenerateReport
	for _, name := range table.FilterForPostType(names, parentType) {
		if ctx.Err() != nil {
			break
		}
		_, err := s.variants.Ensure(ctx, id, name)
		switch {
		case err == nil:
			rep.Generated = append(rep.Generated, name)
		case errors.Is(err, variant.ErrNotNeeded):
			rep.Skipped = append(rep.Skipped, name)
		default:
			rep.Failed = append(rep.Failed, name)
		}
	}
	return rep
}

func sizeOf(p string) int64 {
	info, err := os.Stat(p)
	if err != nil {
		return 0
	}
	return info.Size()
}
