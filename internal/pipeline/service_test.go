package pipeline

import (
	"context"
	"image"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprout/internal/appinfo"
	"sprout/internal/focal"
	"sprout/internal/media"
	"sprout/internal/optimizer"
	"sprout/internal/schedule"
	"sprout/internal/sizes"
	"sprout/internal/sizesync"
	"sprout/internal/transform"
)

type shrinkRunner struct {
	mu    sync.Mutex
	calls int
}

func (r *shrinkRunner) LookPath(binary string) (string, error) {
	if binary == "optipng" {
		return "/usr/bin/optipng", nil
	}
	return "", exec.ErrNotFound
}

func (r *shrinkRunner) Run(_ context.Context, _ string, args ...string) error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	target := args[len(args)-1]
	data, err := os.ReadFile(target)
	if err != nil {
		return err
	}
	return os.WriteFile(target, data[:len(data)-1], 0o644)
}

type memOptions struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memOptions) GetOption(_ context.Context, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	return v, ok, nil
}

func (m *memOptions) SetOption(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] = value
	return nil
}

type env struct {
	root     string
	store    *media.MemoryStore
	queue    *schedule.MemoryQueue
	periodic *schedule.Periodic
	options  *memOptions
	runner   *shrinkRunner
	svc      *Service
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	e := &env{
		root:     t.TempDir(),
		store:    media.NewMemoryStore(),
		queue:    schedule.NewMemoryQueue(),
		periodic: schedule.NewPeriodic(),
		options:  &memOptions{values: map[string]string{}},
		runner:   &shrinkRunner{},
	}
	opts.MediaRoot = e.root
	dispatcher := schedule.NewDispatcher(e.queue, 0)
	e.svc = New(Deps{
		Store:      e.store,
		Sizes:      sizes.Static(sizes.Defaults()),
		Engine:     transform.NewImagingEngine(transform.Options{}),
		Optimizer:  optimizer.New(e.runner, e.store, e.root, optimizer.Options{}),
		Dispatcher: dispatcher,
		Periodic:   e.periodic,
		Options:    e.options,
	}, opts)
	e.svc.RegisterJobs()
	return e
}

func (e *env) upload(t *testing.T, rel string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 8 {
		for y := 0; y < h; y += 8 {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 90, A: 255})
		}
	}
	p := filepath.Join(e.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, imaging.Save(img, p))
	return rel
}

func TestIngestGeneratesAllowedSizes(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()

	asset, rep, err := e.svc.Ingest(ctx, "", e.upload(t, "2024/photo.png", 1600, 900), "image/png")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"thumbnail", "medium", "medium_large", "medium_large@0.5x",
		"medium_large@2x", "large", "large@0.5x",
	}, rep.Generated)
	assert.Equal(t, []string{"large@2x"}, rep.Skipped)
	assert.Empty(t, rep.Failed)

	thumb := asset.Metadata.Sizes["thumbnail"]
	assert.Equal(t, 150, thumb.Width)
	assert.Equal(t, 150, thumb.Height)
	assert.FileExists(t, filepath.Join(e.root, "2024", thumb.File))
	assert.Zero(t, e.queue.Len(), "nothing deferred without auto-optimize or focal cropping")
}

func TestIngestRejectsNonImages(t *testing.T) {
	e := newEnv(t, Options{})
	p := filepath.Join(e.root, "notes.png")
	require.NoError(t, os.WriteFile(p, []byte("plain text"), 0o644))

	_, _, err := e.svc.Ingest(context.Background(), "", "notes.png", "image/png")
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestIngestDownscalesBigImages(t *testing.T) {
	e := newEnv(t, Options{BigImageThreshold: 1000})

	asset, _, err := e.svc.Ingest(context.Background(), "", e.upload(t, "2024/big.png", 1600, 900), "image/png")
	require.NoError(t, err)

	meta := asset.Metadata
	assert.Equal(t, "2024/big-scaled.png", meta.File)
	assert.Equal(t, "big.png", meta.OriginalImage)
	assert.Equal(t, 1000, meta.Width)
	assert.FileExists(t, filepath.Join(e.root, "2024", "big-scaled.png"))

	// Sizes come from the original, so the 2x variant still fits.
	ml2, ok := meta.Sizes["medium_large@2x"]
	require.True(t, ok)
	assert.Equal(t, "big-1536x864.png", ml2.File)
}

func TestSetFocalPointRecropsImmediately(t *testing.T) {
	e := newEnv(t, Options{FocalMode: focal.Enabled{Strategy: focal.Immediate}})
	ctx := context.Background()

	asset, _, err := e.svc.Ingest(ctx, "", e.upload(t, "a.png", 1600, 900), "image/png")
	require.NoError(t, err)
	before := appinfo.FocalRecrops.Load()

	meta, err := e.svc.SetFocalPoint(ctx, asset.ID, map[string]any{"x": 0, "y": "0.5"})
	require.NoError(t, err)
	require.NotNil(t, meta.FocalX)
	assert.Equal(t, 0.0, *meta.FocalX)
	assert.Equal(t, 0.5, *meta.FocalY)
	assert.Equal(t, before+1, appinfo.FocalRecrops.Load(), "only the thumbnail is a hard crop")

	same, err := e.svc.SetFocalPoint(ctx, asset.ID, map[string]any{"x": "left"})
	require.NoError(t, err)
	assert.Equal(t, meta.FocalX, same.FocalX)
	assert.Equal(t, before+1, appinfo.FocalRecrops.Load())
}

// racingStore records an optimization for the medium size just before
// each update, as a concurrent optimize job would.
type racingStore struct {
	*media.MemoryStore
	rec *media.OptimizationRecord
}

func (s *racingStore) Update(ctx context.Context, id uint, fn func(*media.Metadata) error) (media.Metadata, error) {
	if _, err := s.MemoryStore.Update(ctx, id, func(m *media.Metadata) error {
		e := m.Sizes["medium"]
		e.Optimized = s.rec
		m.SetSize("medium", e)
		return nil
	}); err != nil {
		return media.Metadata{}, err
	}
	return s.MemoryStore.Update(ctx, id, fn)
}

func TestApplyFocalCropStoresOnlyRecroppedSizes(t *testing.T) {
	e := newEnv(t, Options{FocalMode: focal.Enabled{Strategy: focal.Immediate}})
	ctx := context.Background()

	asset, _, err := e.svc.Ingest(ctx, "", e.upload(t, "a.png", 1600, 900), "image/png")
	require.NoError(t, err)
	_, err = e.store.Update(ctx, asset.ID, func(m *media.Metadata) error {
		for name, entry := range m.Sizes {
			entry.Optimized = media.NewRecord("stale")
			m.SetSize(name, entry)
		}
		return nil
	})
	require.NoError(t, err)

	racing := &racingStore{MemoryStore: e.store, rec: media.NewRecord("fresh")}
	e.svc.store = racing

	meta, rep, err := e.svc.ApplyFocalCropToAllSizes(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"thumbnail"}, rep.Sizes)
	assert.Nil(t, meta.Sizes["thumbnail"].Optimized, "re-cut file needs optimizing again")
	require.NotNil(t, meta.Sizes["medium"].Optimized)
	assert.Equal(t, "fresh", meta.Sizes["medium"].Optimized.Hash)
	assert.Equal(t, "stale", meta.Sizes["large"].Optimized.Hash)
}

func TestSetFocalPointDeferredRunsAsJob(t *testing.T) {
	e := newEnv(t, Options{FocalMode: focal.Enabled{Strategy: focal.Deferred}})
	ctx := context.Background()

	asset, _, err := e.svc.Ingest(ctx, "", e.upload(t, "a.png", 1600, 900), "image/png")
	require.NoError(t, err)
	assert.Equal(t, 1, e.svc.Dispatcher().RunDue(ctx), "upload queues one re-crop")

	_, err = e.svc.SetFocalPoint(ctx, asset.ID, map[string]any{"x": 1, "y": 1})
	require.NoError(t, err)
	ok, err := e.queue.IsScheduled(ctx, schedule.JobFocalRecrop, []string{idArg(asset.ID)})
	require.NoError(t, err)
	assert.True(t, ok)

	before := appinfo.FocalRecrops.Load()
	assert.Equal(t, 1, e.svc.Dispatcher().RunDue(ctx))
	assert.Equal(t, before+1, appinfo.FocalRecrops.Load())
}

func TestAutoOptimizeRunsDeferredJobs(t *testing.T) {
	e := newEnv(t, Options{AutoOptimize: true})
	ctx := context.Background()

	asset, rep, err := e.svc.Ingest(ctx, "", e.upload(t, "a.png", 1600, 900), "image/png")
	require.NoError(t, err)

	// One job per generated file plus the whole-asset job.
	assert.Equal(t, len(rep.Generated)+1, e.queue.Len())
	ok, err := e.queue.IsScheduled(ctx, schedule.JobOptimizeAttachment, []string{idArg(asset.ID)})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, len(rep.Generated)+1, e.svc.Dispatcher().RunDue(ctx))

	meta, err := e.store.ReadMetadata(ctx, asset.ID)
	require.NoError(t, err)
	assert.NotNil(t, meta.Optimized)
	for _, name := range rep.Generated {
		assert.NotNil(t, meta.Sizes[name].Optimized, name)
	}
	// Every file went through the tool exactly once.
	assert.Equal(t, len(rep.Generated)+1, e.runner.calls)
}

func TestEnsureVariantSchedulesOptimization(t *testing.T) {
	e := newEnv(t, Options{AutoOptimize: true})
	ctx := context.Background()
	e.upload(t, "b.png", 800, 600)
	a, err := e.store.Create(ctx, "", media.Metadata{File: "b.png", Width: 800, Height: 600, MimeType: "image/png"})
	require.NoError(t, err)

	entry, err := e.svc.EnsureVariant(ctx, a.ID, "medium")
	require.NoError(t, err)
	ok, err := e.queue.IsScheduled(ctx, schedule.JobOptimizeImage,
		[]string{filepath.Join(e.root, entry.File), idArg(a.ID)})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOptimizeFileOutsideAnyAsset(t *testing.T) {
	e := newEnv(t, Options{})
	rel := e.upload(t, "loose/x.png", 40, 40)

	done, err := e.svc.OptimizeFile(context.Background(), filepath.Join(e.root, rel))
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, 1, e.runner.calls)
}

func TestBootstrapFollowsStrategy(t *testing.T) {
	ctx := context.Background()

	e := newEnv(t, Options{SyncStrategy: schedule.Cron, SyncInterval: "hourly"})
	require.NoError(t, e.svc.Bootstrap(ctx, true))
	assert.True(t, e.periodic.Installed(schedule.JobSyncImageSizes))
	_, synced := e.options.values[sizesync.HashOption]
	assert.False(t, synced)

	e = newEnv(t, Options{SyncStrategy: schedule.AdminRequest})
	require.NoError(t, e.svc.Bootstrap(ctx, false))
	_, synced = e.options.values[sizesync.HashOption]
	assert.False(t, synced)
	require.NoError(t, e.svc.Bootstrap(ctx, true))
	_, synced = e.options.values[sizesync.HashOption]
	assert.True(t, synced)
	assert.Equal(t, "1024", e.options.values["large_size_w"])

	e = newEnv(t, Options{SyncStrategy: schedule.Manual})
	_, err := e.periodic.Install(schedule.JobSyncImageSizes, "@daily", func() {})
	require.NoError(t, err)
	require.NoError(t, e.svc.Bootstrap(ctx, true))
	assert.False(t, e.periodic.Installed(schedule.JobSyncImageSizes))

	e = newEnv(t, Options{SyncStrategy: schedule.Cron, SyncInterval: "every blue moon"})
	assert.Error(t, e.svc.Bootstrap(ctx, true))
}

func TestJobHandlersRejectBadArgs(t *testing.T) {
	_, err := parseID(nil, 0)
	assert.Error(t, err)
	_, err = parseID([]string{"x"}, 0)
	assert.Error(t, err)
	id, err := parseID([]string{"/p.png", "42"}, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

func TestOnFileChangedQueuesKnownFiles(t *testing.T) {
	e := newEnv(t, Options{})
	ctx := context.Background()
	e.upload(t, "c.png", 300, 300)
	a, err := e.store.Create(ctx, "", media.Metadata{File: "c.png", Width: 300, Height: 300, MimeType: "image/png"})
	require.NoError(t, err)

	known := filepath.Join(e.root, "c-150x150.png")
	e.svc.OnFileChanged(ctx, known)
	e.svc.OnFileChanged(ctx, filepath.Join(e.root, "elsewhere", "z.png"))

	assert.Equal(t, 1, e.queue.Len())
	ok, err := e.queue.IsScheduled(ctx, schedule.JobOptimizeImage, []string{known, idArg(a.ID)})
	require.NoError(t, err)
	assert.True(t, ok)
}
