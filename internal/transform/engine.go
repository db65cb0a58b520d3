// Package transform is the image manipulation boundary: load, crop,
// resize, save. The default engine is backed by disintegration/imaging.
package transform

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedFormat = errors.New("transform: unsupported output format")
	ErrEmptyRegion       = errors.New("transform: empty crop region")
)

// Image is a decoded image held by an Engine.
type Image struct {
	img image.Image
}

// Wrap adopts an already decoded image.
func Wrap(img image.Image) *Image {
	return &Image{img: img}
}

func (i *Image) Raw() image.Image { return i.img }

// Engine performs the primitive image operations the pipeline needs.
// Implementations must make Save atomic: a reader never sees a partially
// written file at path.
type Engine interface {
	Load(path string) (*Image, error)
	Crop(img *Image, x, y, w, h int) (*Image, error)
	Resize(img *Image, w, h int) (*Image, error)
	Save(img *Image, path string) error
	Dimensions(img *Image) (int, int)
}

// Options tune the imaging engine.
type Options struct {
	JPEGQuality int
	Filter      imaging.ResampleFilter
}

// ImagingEngine is the production Engine.
type ImagingEngine struct {
	opts Options
}

func NewImagingEngine(opts Options) *ImagingEngine {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 82
	}
	if opts.Filter.Support == 0 && opts.Filter.Kernel == nil {
		opts.Filter = imaging.Lanczos
	}
	return &ImagingEngine{opts: opts}
}

func (e *ImagingEngine) Load(path string) (*Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return &Image{img: img}, nil
}

func (e *ImagingEngine) Crop(img *Image, x, y, w, h int) (*Image, error) {
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyRegion
	}
	b := img.img.Bounds()
	rect := image.Rect(b.Min.X+x, b.Min.Y+y, b.Min.X+x+w, b.Min.Y+y+h).Intersect(b)
	if rect.Empty() {
		return nil, ErrEmptyRegion
	}
	return &Image{img: imaging.Crop(img.img, rect)}, nil
}

func (e *ImagingEngine) Resize(img *Image, w, h int) (*Image, error) {
	if w <= 0 && h <= 0 {
		return nil, ErrEmptyRegion
	}
	cw, ch := e.Dimensions(img)
	if w == cw && h == ch {
		return img, nil
	}
	return &Image{img: imaging.Resize(img.img, w, h, e.opts.Filter)}, nil
}

// Save encodes by the destination extension into a temp file beside path
// and renames it into place.
func (e *ImagingEngine) Save(img *Image, path string) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sprout-*"+filepath.Ext(path))
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := imaging.Encode(tmp, img.img, format, imaging.JPEGQuality(e.opts.JPEGQuality)); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (e *ImagingEngine) Dimensions(img *Image) (int, int) {
	b := img.img.Bounds()
	return b.Dx(), b.Dy()
}

// Probe reads only the header of path and returns its pixel size and
// format name.
func Probe(path string) (int, int, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", err
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, "", err
	}
	return cfg.Width, cfg.Height, format, nil
}

// encodable lists extensions the engine can write.
var encodable = map[string]string{
	".jpg":  ".jpg",
	".jpeg": ".jpeg",
	".png":  ".png",
	".gif":  ".gif",
	".tif":  ".tif",
	".tiff": ".tiff",
	".bmp":  ".bmp",
	".webp": ".png",
}

// OutputExt picks the extension for a derived file of src. Sources the
// engine can decode but not encode (WebP) are written as PNG.
func OutputExt(src string) string {
	ext := strings.ToLower(filepath.Ext(src))
	if out, ok := encodable[ext]; ok {
		return out
	}
	return ".png"
}
