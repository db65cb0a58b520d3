// Package variant generates missing size files on demand. A size that has
// been recorded for an asset is never generated again.
package variant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"sprout/internal/appinfo"
	"sprout/internal/focal"
	"sprout/internal/geometry"
	"sprout/internal/media"
	"sprout/internal/sizes"
	"sprout/internal/transform"
	"sprout/pkg/logger"
)

var (
	ErrUnknownSize       = errors.New("variant: size is not configured")
	ErrSourceUnavailable = errors.New("variant: source file unavailable")
	ErrNotNeeded         = errors.New("variant: source already fits the size")
	ErrGenerationFailed  = errors.New("variant: generation failed")
)

// GeneratedFunc is told about every newly written size file.
type GeneratedFunc func(ctx context.Context, id uint, absPath string)

// Materializer ensures size files exist for assets.
type Materializer struct {
	store   media.Store
	sizes   *sizes.Normalizer
	engine  transform.Engine
	cropper *focal.Cropper
	root    string

	onGenerated GeneratedFunc

	flight singleflight.Group
}

func New(store media.Store, sz *sizes.Normalizer, engine transform.Engine, cropper *focal.Cropper, mediaRoot string) *Materializer {
	return &Materializer{
		store:   store,
		sizes:   sz,
		engine:  engine,
		cropper: cropper,
		root:    mediaRoot,
	}
}

// OnGenerated registers fn to run after a size file is recorded. Used to
// queue optimization when auto-optimize is on.
func (m *Materializer) OnGenerated(fn GeneratedFunc) {
	m.onGenerated = fn
}

// Ensure returns the recorded entry for sizeName, generating it first when
// missing. Every error is recoverable: callers fall back to the next best
// file (usually the full image).
func (m *Materializer) Ensure(ctx context.Context, id uint, sizeName string) (media.SizeEntry, error) {
	meta, err := m.store.ReadMetadata(ctx, id)
	if err != nil {
		return media.SizeEntry{}, err
	}
	if e, ok := meta.Sizes[sizeName]; ok {
		appinfo.VariantsReused.Add(1)
		return e, nil
	}

	key := fmt.Sprintf("%d:%s", id, sizeName)
	v, err, _ := m.flight.Do(key, func() (interface{}, error) {
		return m.generate(ctx, id, sizeName)
	})
	if err != nil {
		if !errors.Is(err, ErrNotNeeded) && !errors.Is(err, ErrUnknownSize) {
			appinfo.VariantsFailed.Add(1)
		}
		return media.SizeEntry{}, err
	}
	return v.(media.SizeEntry), nil
}

func (m *Materializer) generate(ctx context.Context, id uint, sizeName string) (media.SizeEntry, error) {
	// Re-read inside the flight: a previous flight may have just finished.
	meta, err := m.store.ReadMetadata(ctx, id)
	if err != nil {
		return media.SizeEntry{}, err
	}
	if e, ok := meta.Sizes[sizeName]; ok {
		appinfo.VariantsReused.Add(1)
		return e, nil
	}

	spec, ok := m.sizes.Effective(sizeName)
	if !ok {
		return media.SizeEntry{}, ErrUnknownSize
	}
	src, ok := media.SourcePath(m.root, meta)
	if !ok {
		return media.SizeEntry{}, ErrSourceUnavailable
	}

	entry, absPath, err := m.render(src, meta, spec)
	if err != nil {
		if !errors.Is(err, ErrNotNeeded) {
			logger.LogWarn("Could not generate '%s' for asset %d: %v", sizeName, id, err)
		}
		return media.SizeEntry{}, err
	}

	var recorded media.SizeEntry
	_, err = m.store.Update(ctx, id, func(md *media.Metadata) error {
		if existing, ok := md.Sizes[sizeName]; ok {
			recorded = existing
			return nil
		}
		md.SetSize(sizeName, entry)
		recorded = entry
		return nil
	})
	if err != nil {
		return media.SizeEntry{}, fmt.Errorf("record %s: %w", sizeName, err)
	}

	appinfo.VariantsGenerated.Add(1)
	logger.LogDebug("Generated '%s' for asset %d (%dx%d)", sizeName, id, entry.Width, entry.Height)

	if m.onGenerated != nil {
		m.onGenerated(ctx, id, absPath)
	}
	return recorded, nil
}

// render writes the file for spec next to the main file and returns its
// entry and absolute path.
func (m *Materializer) render(src string, meta media.Metadata, spec sizes.Spec) (media.SizeEntry, string, error) {
	ext := transform.OutputExt(src)
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))

	if focal.Applies(spec) {
		// Hard crops go through the focal cutter; with focal cropping off
		// the cut is centered.
		point := focal.Default
		if m.cropper.Enabled() {
			point = focal.FromMetadata(meta)
		}
		name := fileName(stem, spec.Width, spec.Height, ext)
		abs := media.Abs(m.root, meta.RelPath(name))
		res, err := m.cropper.Render(src, abs, spec.Width, spec.Height, point)
		if err != nil {
			if errors.Is(err, focal.ErrNotApplicable) {
				return media.SizeEntry{}, "", ErrNotNeeded
			}
			return media.SizeEntry{}, "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		// The written size can differ from the requested one when the source is
		// smaller on one axis.
		if res.Width != spec.Width || res.Height != spec.Height {
			renamed := fileName(stem, res.Width, res.Height, ext)
			if err := os.Rename(abs, media.Abs(m.root, meta.RelPath(renamed))); err == nil {
				name, abs = renamed, media.Abs(m.root, meta.RelPath(renamed))
			}
		}
		return media.SizeEntry{
			File:     name,
			Width:    res.Width,
			Height:   res.Height,
			MimeType: mimeFor(ext),
			FileSize: res.FileSize,
		}, abs, nil
	}

	img, err := m.engine.Load(src)
	if err != nil {
		return media.SizeEntry{}, "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	srcW, srcH := m.engine.Dimensions(img)
	w, h := geometry.ComputeDimensions(srcW, srcH, spec.Width, spec.Height, false)
	if w <= 0 || h <= 0 || (w >= srcW && h >= srcH) {
		return media.SizeEntry{}, "", ErrNotNeeded
	}

	resized, err := m.engine.Resize(img, w, h)
	if err != nil {
		return media.SizeEntry{}, "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	name := fileName(stem, w, h, ext)
	abs := media.Abs(m.root, meta.RelPath(name))
	if err := m.engine.Save(resized, abs); err != nil {
		return media.SizeEntry{}, "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	entry := media.SizeEntry{File: name, Width: w, Height: h, MimeType: mimeFor(ext)}
	if info, err := os.Stat(abs); err == nil {
		entry.FileSize = info.Size()
	}
	return entry, abs, nil
}

func fileName(stem string, w, h int, ext string) string {
	return fmt.Sprintf("%s-%dx%d%s", stem, w, h, ext)
}

func mimeFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".avif":
		return "image/avif"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	}
	return "application/octet-stream"
}
