package optimizer

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprout/internal/media"
)

// fakeRunner shrinks the target file instead of running a real binary.
type fakeRunner struct {
	installed map[string]bool
	failing   map[string]bool

	mu    sync.Mutex
	calls []string
}

func newRunner(bins ...string) *fakeRunner {
	r := &fakeRunner{installed: map[string]bool{}, failing: map[string]bool{}}
	for _, b := range bins {
		r.installed[b] = true
	}
	return r
}

func (r *fakeRunner) LookPath(binary string) (string, error) {
	if r.installed[binary] {
		return "/usr/bin/" + binary, nil
	}
	return "", exec.ErrNotFound
}

func (r *fakeRunner) Run(_ context.Context, bin string, args ...string) error {
	name := filepath.Base(bin)
	target := args[len(args)-1]

	r.mu.Lock()
	r.calls = append(r.calls, name+" "+filepath.Base(target))
	r.mu.Unlock()

	if r.failing[name] {
		return errors.New("exit status 1")
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return err
	}
	return os.WriteFile(target, append(data[:len(data)/2], '~'), 0o644)
}

func (r *fakeRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newAsset(t *testing.T, store *media.MemoryStore, meta media.Metadata) uint {
	t.Helper()
	meta.MimeType = "image/png"
	a, err := store.Create(context.Background(), "", meta)
	require.NoError(t, err)
	return a.ID
}

func TestAvailability(t *testing.T) {
	o := New(newRunner("jpegoptim", "optipng"), media.NewMemoryStore(), t.TempDir(), Options{})
	a := o.Availability()
	assert.Equal(t, 2, a.Available)
	assert.Equal(t, 5, a.Missing)
	require.Len(t, a.Tools, 7)
	assert.True(t, a.Tools[0].Available)
	assert.Equal(t, "/usr/bin/jpegoptim", a.Tools[0].Path)
	assert.NoError(t, o.Ready())

	none := New(newRunner(), media.NewMemoryStore(), t.TempDir(), Options{})
	assert.ErrorIs(t, none.Ready(), ErrNoOptimizers)
}

func TestMatchRole(t *testing.T) {
	meta := media.Metadata{
		File:          "2024/photo-scaled.jpg",
		OriginalImage: "photo.jpg",
		Sizes: map[string]media.SizeEntry{
			"thumbnail": {File: "photo-150x150.jpg"},
		},
	}
	assert.Equal(t, Match{Role: RoleOriginal}, MatchRole(meta, "/srv/2024/photo.jpg"))
	assert.Equal(t, Match{Role: RoleMain}, MatchRole(meta, "/srv/2024/photo-scaled.jpg"))
	assert.Equal(t, Match{Role: RoleSize, Size: "thumbnail"}, MatchRole(meta, "/srv/2024/photo-150x150.jpg"))
	assert.Equal(t, Match{}, MatchRole(meta, "/srv/2024/other.jpg"))
	assert.Equal(t, "size", RoleSize.String())
}

func TestOptimizeIfNeededIsIdempotent(t *testing.T) {
	root := t.TempDir()
	store := media.NewMemoryStore()
	p := writeFile(t, root, "2024/a.png", "0123456789abcdef")
	id := newAsset(t, store, media.Metadata{File: "2024/a.png"})

	r := newRunner("optipng")
	o := New(r, store, root, Options{})
	ctx := context.Background()

	res, err := o.OptimizeIfNeeded(ctx, id, p, false)
	require.NoError(t, err)
	assert.Equal(t, Optimized, res)
	assert.Equal(t, 1, r.count())

	meta, _ := store.ReadMetadata(ctx, id)
	require.NotNil(t, meta.Optimized)
	hash, _ := HashFile(p)
	assert.Equal(t, hash, meta.Optimized.Hash)
	assert.EqualValues(t, 9, meta.FileSize)

	res, err = o.OptimizeIfNeeded(ctx, id, p, false)
	require.NoError(t, err)
	assert.Equal(t, AlreadyOptimized, res)
	assert.Equal(t, 1, r.count(), "no compressor runs for unchanged bytes")

	require.NoError(t, os.WriteFile(p, []byte("replaced content"), 0o644))
	res, err = o.OptimizeIfNeeded(ctx, id, p, false)
	require.NoError(t, err)
	assert.Equal(t, Optimized, res)
	assert.Equal(t, 2, r.count())

	res, _ = o.OptimizeIfNeeded(ctx, id, p, true)
	assert.Equal(t, Optimized, res, "force skips the ledger")
}

func TestOptimizeFileToolFailures(t *testing.T) {
	root := t.TempDir()
	p := writeFile(t, root, "a.png", "pixels")

	r := newRunner("pngquant", "optipng")
	r.failing["pngquant"] = true
	o := New(r, media.NewMemoryStore(), root, Options{})
	assert.NoError(t, o.OptimizeFile(context.Background(), p), "one tool still succeeded")
	assert.Equal(t, []string{"pngquant a.png", "optipng a.png"}, r.calls)

	r.failing["optipng"] = true
	assert.Error(t, o.OptimizeFile(context.Background(), p))

	svg := writeFile(t, root, "logo.svg", "<svg/>")
	assert.ErrorIs(t, o.OptimizeFile(context.Background(), svg), ErrNoTool)
}

func TestOptimizeAsset(t *testing.T) {
	root := t.TempDir()
	store := media.NewMemoryStore()
	writeFile(t, root, "2024/photo.png", "original bytes here")
	writeFile(t, root, "2024/photo-scaled.png", "scaled bytes")
	writeFile(t, root, "2024/photo-150x150.png", "thumb bytes")
	id := newAsset(t, store, media.Metadata{
		File:          "2024/photo-scaled.png",
		OriginalImage: "photo.png",
		Sizes: map[string]media.SizeEntry{
			"thumbnail": {File: "photo-150x150.png", Width: 150, Height: 150},
			"medium":    {File: "photo-400x300.png", Width: 400, Height: 300},
		},
	})

	r := newRunner("optipng")
	o := New(r, store, root, Options{Workers: 3})
	ctx := context.Background()

	meta, rep, err := o.OptimizeAsset(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, Report{Optimized: 3, Skipped: 1}, rep)
	assert.NotNil(t, meta.OriginalOptimized)
	assert.NotNil(t, meta.Optimized)
	assert.NotNil(t, meta.Sizes["thumbnail"].Optimized)
	assert.Nil(t, meta.Sizes["medium"].Optimized)
	assert.EqualValues(t, 6, meta.Sizes["thumbnail"].FileSize)

	stored, _ := store.ReadMetadata(ctx, id)
	assert.Equal(t, meta, stored)

	_, rep, err = o.OptimizeAsset(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, Report{AlreadyOptimized: 3, Skipped: 1}, rep)
	assert.Equal(t, 3, r.count())
}

func TestOptimizeAssetSharedSizeFileOnce(t *testing.T) {
	root := t.TempDir()
	store := media.NewMemoryStore()
	writeFile(t, root, "a.png", "main file bytes")
	writeFile(t, root, "a-768x432.png", "shared size bytes")
	id := newAsset(t, store, media.Metadata{
		File: "a.png",
		Sizes: map[string]media.SizeEntry{
			"medium_large": {File: "a-768x432.png", Width: 768, Height: 432},
			"hero@0.5x":    {File: "a-768x432.png", Width: 768, Height: 432},
		},
	})

	r := newRunner("optipng")
	o := New(r, store, root, Options{Workers: 2})

	meta, _ := store.ReadMetadata(context.Background(), id)
	assert.Equal(t, []string{
		filepath.Join(root, "a.png"),
		filepath.Join(root, "a-768x432.png"),
	}, o.Files(meta))

	_, rep, err := o.OptimizeAsset(context.Background(), id, false)
	require.NoError(t, err)
	assert.Equal(t, Report{Optimized: 2}, rep)
	assert.ElementsMatch(t, []string{"optipng a.png", "optipng a-768x432.png"}, r.calls)
}

func TestOptimizeMetadataDoesNotPersist(t *testing.T) {
	root := t.TempDir()
	store := media.NewMemoryStore()
	writeFile(t, root, "b.png", "some bytes")
	id := newAsset(t, store, media.Metadata{File: "b.png"})

	o := New(newRunner("optipng"), store, root, Options{})
	meta, _ := store.ReadMetadata(context.Background(), id)
	out, rep := o.OptimizeMetadata(context.Background(), meta, false)
	assert.Equal(t, 1, rep.Optimized)
	assert.NotNil(t, out.Optimized)

	stored, _ := store.ReadMetadata(context.Background(), id)
	assert.Nil(t, stored.Optimized)
}

func TestOptimizeAndRecordMissingFile(t *testing.T) {
	store := media.NewMemoryStore()
	id := newAsset(t, store, media.Metadata{File: "gone.png"})
	o := New(newRunner("optipng"), store, t.TempDir(), Options{})

	res, err := o.OptimizeAndRecord(context.Background(), id, "/nowhere/gone.png")
	assert.NoError(t, err)
	assert.Equal(t, Skipped, res)
}

func TestScanAndOptimizePaths(t *testing.T) {
	root := t.TempDir()
	store := media.NewMemoryStore()
	known := writeFile(t, root, "2024/known.png", "known file bytes")
	loose := writeFile(t, root, "2024/nested/LOOSE.PNG", "loose file bytes")
	writeFile(t, root, "2024/notes.txt", "text")
	writeFile(t, root, "vector.svg", "<svg/>")
	id := newAsset(t, store, media.Metadata{File: "2024/known.png"})

	o := New(newRunner("optipng"), store, root, Options{Workers: 2})
	ctx := context.Background()

	paths, err := o.ScanMediaRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{known, loose, filepath.Join(root, "vector.svg")}, paths)

	seen := map[string]Result{}
	rep := o.OptimizePaths(ctx, paths, false, func(p string, res Result, _ error) {
		seen[filepath.Base(p)] = res
	})
	assert.Equal(t, Report{Optimized: 2, Skipped: 1}, rep)
	assert.Equal(t, Optimized, seen["LOOSE.PNG"])
	assert.Equal(t, Skipped, seen["vector.svg"])

	meta, _ := store.ReadMetadata(ctx, id)
	assert.NotNil(t, meta.Optimized)

	assert.Equal(t, []string{loose, filepath.Join(root, "vector.svg")}, o.Pending(ctx, paths))
}
