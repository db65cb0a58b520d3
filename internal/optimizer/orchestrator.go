package optimizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"sprout/internal/appinfo"
	"sprout/internal/media"
	"sprout/pkg/logger"
)

var (
	// ErrNoOptimizers means not a single compressor binary is installed.
	ErrNoOptimizers = errors.New("optimizer: no optimizer binaries available")
	ErrNoTool       = errors.New("optimizer: no available tool for this format")
)

// Result is the per-file outcome of an optimize call.
type Result int

const (
	Optimized Result = iota
	AlreadyOptimized
	Skipped
	Failed
)

func (r Result) String() string {
	switch r {
	case Optimized:
		return "optimized"
	case AlreadyOptimized:
		return "already optimized"
	case Skipped:
		return "skipped"
	}
	return "failed"
}

// Options tune the orchestrator.
type Options struct {
	Workers int
	Timeout time.Duration
}

// ToolStatus pairs a tool with its presence on this host.
type ToolStatus struct {
	Tool      Tool
	Path      string
	Available bool
}

// Availability is the binary checklist.
type Availability struct {
	Tools     []ToolStatus
	Available int
	Missing   int
}

// Orchestrator runs the compressor chain and maintains the ledger in
// asset metadata.
type Orchestrator struct {
	runner Runner
	store  media.Store
	root   string
	tools  []Tool
	opts   Options

	probeOnce sync.Once
	avail     Availability
}

func New(runner Runner, store media.Store, mediaRoot string, opts Options) *Orchestrator {
	if runner == nil {
		runner = ExecRunner{}
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Orchestrator{
		runner: runner,
		store:  store,
		root:   mediaRoot,
		tools:  DefaultTools(),
		opts:   opts,
	}
}

// Root is the media root the orchestrator scans.
func (o *Orchestrator) Root() string { return o.root }

// Availability probes every tool once per orchestrator.
func (o *Orchestrator) Availability() Availability {
	o.probeOnce.Do(func() {
		for _, t := range o.tools {
			st := ToolStatus{Tool: t}
			if p, err := o.runner.LookPath(t.Binary); err == nil {
				st.Path = p
				st.Available = true
				o.avail.Available++
			} else {
				o.avail.Missing++
			}
			o.avail.Tools = append(o.avail.Tools, st)
		}
	})
	return o.avail
}

// Ready fails with ErrNoOptimizers when nothing can run.
func (o *Orchestrator) Ready() error {
	if o.Availability().Available == 0 {
		return ErrNoOptimizers
	}
	return nil
}

// OptimizeFile passes path through every available tool for its format.
// A failing tool is logged and the next one still runs; the call fails
// only when every applicable tool failed.
func (o *Orchestrator) OptimizeFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	ran, failed := 0, 0
	var lastErr error
	for _, st := range o.Availability().Tools {
		if !st.Available || !st.Tool.Handles(path) {
			continue
		}
		ran++
		tctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
		err := o.runner.Run(tctx, st.Path, st.Tool.Args(path)...)
		cancel()
		if err != nil {
			failed++
			lastErr = err
			logger.LogWarn("%s failed on %s: %v", st.Tool.Binary, path, err)
		}
	}
	if ran == 0 {
		return ErrNoTool
	}
	if failed == ran {
		return fmt.Errorf("optimize %s: %w", path, lastErr)
	}
	return nil
}

// OptimizeIfNeeded optimizes path for asset id unless the ledger shows the
// same bytes were already optimized. force skips the ledger check.
func (o *Orchestrator) OptimizeIfNeeded(ctx context.Context, id uint, path string, force bool) (Result, error) {
	meta, err := o.store.ReadMetadata(ctx, id)
	if err != nil {
		return Failed, err
	}
	if !force && IsOptimized(meta, path) {
		appinfo.FilesAlreadyOptimized.Add(1)
		return AlreadyOptimized, nil
	}
	return o.optimizeAndRecord(ctx, id, path)
}

// OptimizeAndRecord optimizes path and stores the new hash on asset id. A
// missing file is skipped.
func (o *Orchestrator) OptimizeAndRecord(ctx context.Context, id uint, path string) (Result, error) {
	if _, err := os.Stat(path); err != nil {
		return Skipped, nil
	}
	return o.optimizeAndRecord(ctx, id, path)
}

func (o *Orchestrator) optimizeAndRecord(ctx context.Context, id uint, path string) (Result, error) {
	rec, size, res, err := o.optimizeOne(ctx, path)
	if res != Optimized {
		return res, err
	}
	_, err = o.store.Update(ctx, id, func(m *media.Metadata) error {
		Record(m, path, rec, size)
		return nil
	})
	if err != nil {
		return Failed, fmt.Errorf("record %s: %w", path, err)
	}
	return Optimized, nil
}

// optimizeOne compresses path and hashes the result.
func (o *Orchestrator) optimizeOne(ctx context.Context, path string) (*media.OptimizationRecord, int64, Result, error) {
	before := fileSize(path)
	if err := o.OptimizeFile(ctx, path); err != nil {
		if errors.Is(err, ErrNoTool) || errors.Is(err, os.ErrNotExist) {
			return nil, 0, Skipped, nil
		}
		appinfo.FilesOptimizeFailed.Add(1)
		return nil, 0, Failed, err
	}
	hash, err := HashFile(path)
	if err != nil {
		appinfo.FilesOptimizeFailed.Add(1)
		return nil, 0, Failed, err
	}
	after := fileSize(path)
	if before > after {
		appinfo.BytesSaved.Add(before - after)
	}
	appinfo.FilesOptimized.Add(1)
	return media.NewRecord(hash), after, Optimized, nil
}

// Report counts the outcome of a batch.
type Report struct {
	Optimized        int `json:"optimized"`
	AlreadyOptimized int `json:"already_optimized"`
	Skipped          int `json:"skipped"`
	Failed           int `json:"failed"`
}

func (r *Report) add(res Result) {
	switch res {
	case Optimized:
		r.Optimized++
	case AlreadyOptimized:
		r.AlreadyOptimized++
	case Skipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// Files lists the absolute paths of every file belonging to meta: the
// pre-downscale original, the main file and each generated size. A file
// shared by several sizes is listed once, at its first position, so no two
// compressors ever rewrite it at the same time.
func (o *Orchestrator) Files(meta media.Metadata) []string {
	var out []string
	if meta.File == "" {
		return out
	}
	seen := make(map[string]struct{}, len(meta.Sizes)+2)
	add := func(p string) {
		if _, dup := seen[p]; dup {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if meta.OriginalImage != "" {
		add(media.Abs(o.root, meta.RelPath(meta.OriginalImage)))
	}
	add(media.Abs(o.root, meta.File))
	for _, name := range sortedSizes(meta) {
		if f := meta.Sizes[name].File; f != "" {
			add(media.Abs(o.root, meta.RelPath(f)))
		}
	}
	return out
}

type outcome struct {
	path string
	rec  *media.OptimizationRecord
	size int64
}

// OptimizeMetadata optimizes every file of meta and returns a copy carrying
// the new records. Nothing is persisted. Files whose bytes match their
// record are skipped unless force is set.
func (o *Orchestrator) OptimizeMetadata(ctx context.Context, meta media.Metadata, force bool) (media.Metadata, Report) {
	outcomes, rep := o.run(ctx, meta, force)
	out := meta.Clone()
	for _, oc := range outcomes {
		Record(&out, oc.path, oc.rec, oc.size)
	}
	return out, rep
}

// OptimizeAsset optimizes every file of asset id and persists the records
// in a single update.
func (o *Orchestrator) OptimizeAsset(ctx context.Context, id uint, force bool) (media.Metadata, Report, error) {
	meta, err := o.store.ReadMetadata(ctx, id)
	if err != nil {
		return media.Metadata{}, Report{}, err
	}
	outcomes, rep := o.run(ctx, meta, force)
	if len(outcomes) == 0 {
		return meta, rep, nil
	}
	updated, err := o.store.Update(ctx, id, func(m *media.Metadata) error {
		for _, oc := range outcomes {
			Record(m, oc.path, oc.rec, oc.size)
		}
		return nil
	})
	if err != nil {
		return meta, rep, fmt.Errorf("record optimization for %d: %w", id, err)
	}
	return updated, rep, nil
}

func (o *Orchestrator) run(ctx context.Context, meta media.Metadata, force bool) ([]outcome, Report) {
	var (
		mu       sync.Mutex
		rep      Report
		outcomes []outcome
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for _, p := range o.Files(meta) {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := Skipped
			var oc outcome
			if _, err := os.Stat(p); err == nil {
				if !force && IsOptimized(meta, p) {
					appinfo.FilesAlreadyOptimized.Add(1)
					res = AlreadyOptimized
				} else {
					var err error
					oc.path = p
					oc.rec, oc.size, res, err = o.optimizeOne(gctx, p)
					if err != nil {
						logger.LogWarn("Optimization failed for %s: %v", p, err)
					}
				}
			}
			mu.Lock()
			rep.add(res)
			if res == Optimized {
				outcomes = append(outcomes, oc)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, rep
}

func sortedSizes(meta media.Metadata) []string {
	names := make([]string, 0, len(meta.Sizes))
	for k := range meta.Sizes {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func fileSize(p string) int64 {
	info, err := os.Stat(p)
	if err != nil {
		return 0
	}
	return info.Size()
}
