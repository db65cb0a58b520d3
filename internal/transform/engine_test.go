package transform

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	p := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, p))
	return p
}

func TestLoadCropResizeSave(t *testing.T) {
	dir := t.TempDir()
	src := writeFixture(t, dir, "src.png", 200, 100)
	e := NewImagingEngine(Options{})

	img, err := e.Load(src)
	require.NoError(t, err)
	w, h := e.Dimensions(img)
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)

	cropped, err := e.Crop(img, 50, 0, 100, 100)
	require.NoError(t, err)
	w, h = e.Dimensions(cropped)
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)

	resized, err := e.Resize(cropped, 40, 40)
	require.NoError(t, err)

	dst := filepath.Join(dir, "nested", "out-40x40.jpg")
	require.NoError(t, e.Save(resized, dst))

	gotW, gotH, format, err := Probe(dst)
	require.NoError(t, err)
	assert.Equal(t, 40, gotW)
	assert.Equal(t, 40, gotH)
	assert.Equal(t, "jpeg", format)

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestCropRejectsEmptyRegion(t *testing.T) {
	e := NewImagingEngine(Options{})
	img := Wrap(image.NewNRGBA(image.Rect(0, 0, 10, 10)))

	_, err := e.Crop(img, 20, 20, 5, 5)
	assert.ErrorIs(t, err, ErrEmptyRegion)

	_, err = e.Crop(img, 0, 0, 0, 5)
	assert.ErrorIs(t, err, ErrEmptyRegion)
}

func TestSaveUnknownExtension(t *testing.T) {
	e := NewImagingEngine(Options{})
	img := Wrap(image.NewNRGBA(image.Rect(0, 0, 4, 4)))

	err := e.Save(img, filepath.Join(t.TempDir(), "x.avif"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewImagingEngine(Options{}).Load(filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}

func TestOutputExt(t *testing.T) {
	assert.Equal(t, ".jpg", OutputExt("a/b/cat.JPG"))
	assert.Equal(t, ".png", OutputExt("cat.webp"))
	assert.Equal(t, ".png", OutputExt("cat.avif"))
	assert.Equal(t, ".gif", OutputExt("cat.gif"))
}

func TestOutputFormatFor(t *testing.T) {
	mime, ok := OutputFormatFor("image/jpeg", false)
	assert.Equal(t, "image/jpeg", mime)
	assert.True(t, ok)

	mime, ok = OutputFormatFor("image/png", true)
	assert.Equal(t, "image/avif", mime)
	assert.False(t, ok, "no avif encoder linked")

	mime, ok = OutputFormatFor("image/gif", true)
	assert.Equal(t, "image/gif", mime)
	assert.True(t, ok)

	mime, _ = OutputFormatFor("image/webp", false)
	assert.Equal(t, "image/png", mime)
}
