package focal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"sprout/internal/geometry"
	"sprout/internal/media"
	"sprout/internal/sizes"
	"sprout/internal/transform"
	"sprout/pkg/logger"
)

// ErrNotApplicable is returned when a size cannot be focal-cropped: it is
// not a hard crop, has a zero dimension, or is larger than the source.
var ErrNotApplicable = errors.New("focal: size not applicable")

// Rendered is the result of one focal crop.
type Rendered struct {
	Width    int
	Height   int
	FileSize int64
}

// Cropper re-cuts hard-cropped sizes around an asset's focal point.
type Cropper struct {
	engine transform.Engine
	sizes  *sizes.Normalizer
	root   string
	mode   Mode
}

func NewCropper(engine transform.Engine, sz *sizes.Normalizer, mediaRoot string, mode Mode) *Cropper {
	if mode == nil {
		mode = Disabled{}
	}
	return &Cropper{engine: engine, sizes: sz, root: mediaRoot, mode: mode}
}

func (c *Cropper) Mode() Mode { return c.mode }

// Enabled reports whether focal cropping is switched on.
func (c *Cropper) Enabled() bool {
	_, ok := IsEnabled(c.mode)
	return ok
}

// Applies reports whether spec is eligible for a focal crop.
func Applies(spec sizes.Spec) bool {
	return spec.Crop && spec.Width > 0 && spec.Height > 0
}

// Render cuts src around p so that it matches w x h and writes the result
// to dst.
func (c *Cropper) Render(src, dst string, w, h int, p Point) (Rendered, error) {
	if w <= 0 || h <= 0 {
		return Rendered{}, ErrNotApplicable
	}

	img, err := c.engine.Load(src)
	if err != nil {
		return Rendered{}, err
	}
	srcW, srcH := c.engine.Dimensions(img)

	box, ok := geometry.CropBox(srcW, srcH, w, h)
	if !ok {
		return Rendered{}, ErrNotApplicable
	}
	x, y := geometry.FocalOrigin(srcW, srcH, box.CropW, box.CropH, p.X, p.Y)

	cropped, err := c.engine.Crop(img, x, y, box.CropW, box.CropH)
	if err != nil {
		return Rendered{}, fmt.Errorf("crop: %w", err)
	}
	resized, err := c.engine.Resize(cropped, box.OutW, box.OutH)
	if err != nil {
		return Rendered{}, fmt.Errorf("resize: %w", err)
	}
	if err := c.engine.Save(resized, dst); err != nil {
		return Rendered{}, fmt.Errorf("save: %w", err)
	}

	out := Rendered{Width: box.OutW, Height: box.OutH}
	if info, err := os.Stat(dst); err == nil {
		out.FileSize = info.Size()
	}
	return out, nil
}

// ApplyToSize re-crops one already generated size in place and updates its
// entry in meta. It reports whether a new file was written. Failures are
// logged and reported as false.
func (c *Cropper) ApplyToSize(meta *media.Metadata, sizeName string) bool {
	if !c.Enabled() {
		return false
	}
	entry, ok := meta.Sizes[sizeName]
	if !ok || entry.File == "" {
		return false
	}
	spec, ok := c.sizes.Effective(sizeName)
	if !ok || !Applies(spec) {
		return false
	}
	src, ok := media.SourcePath(c.root, *meta)
	if !ok {
		return false
	}

	dst := media.Abs(c.root, meta.RelPath(entry.File))
	res, err := c.Render(src, dst, spec.Width, spec.Height, FromMetadata(*meta))
	if err != nil {
		if !errors.Is(err, ErrNotApplicable) {
			logger.LogWarn("Focal crop failed for size '%s' of %s: %v", sizeName, meta.File, err)
		}
		return false
	}

	entry.Width = res.Width
	entry.Height = res.Height
	entry.FileSize = res.FileSize
	// The bytes changed, so any earlier optimization no longer applies.
	entry.Optimized = nil
	meta.SetSize(sizeName, entry)
	return true
}

// Report counts the outcome of a batch re-crop. Sizes names the entries
// that were re-cut, in order.
type Report struct {
	Applied int
	Skipped int
	Sizes   []string
}

// ApplyToAllSizes re-crops every generated size of meta with the current
// focal point. One failing size never stops the others.
func (c *Cropper) ApplyToAllSizes(ctx context.Context, meta media.Metadata) (media.Metadata, Report) {
	var rep Report
	if !c.Enabled() || len(meta.Sizes) == 0 {
		return meta, rep
	}
	if _, ok := media.SourcePath(c.root, meta); !ok {
		rep.Skipped = len(meta.Sizes)
		return meta, rep
	}

	out := meta.Clone()
	for _, name := range sortedSizeNames(out.Sizes) {
		if ctx.Err() != nil {
			break
		}
		if c.ApplyToSize(&out, name) {
			rep.Applied++
			rep.Sizes = append(rep.Sizes, name)
		} else {
			rep.Skipped++
		}
	}
	return out, rep
}

func sortedSizeNames(m map[string]media.SizeEntry) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
