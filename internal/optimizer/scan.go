package optimizer

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"sprout/internal/media"
	"sprout/pkg/logger"
)

// ScanMediaRoot walks the media root and returns every file with one of
// ScanExtensions, sorted.
func (o *Orchestrator) ScanMediaRoot(ctx context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(o.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(p)), ".")
		if slices.Contains(ScanExtensions, ext) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}

// AssetFor maps an absolute path under the media root to its asset.
func (o *Orchestrator) AssetFor(ctx context.Context, path string) (uint, bool) {
	rel, err := filepath.Rel(o.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return 0, false
	}
	id, err := o.store.FindByFile(ctx, filepath.ToSlash(rel))
	if err != nil {
		if !errors.Is(err, media.ErrNotFound) {
			logger.LogDebug("Lookup for %s failed: %v", rel, err)
		}
		return 0, false
	}
	return id, true
}

// Pending drops the paths the ledger marks as already optimized.
func (o *Orchestrator) Pending(ctx context.Context, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if id, ok := o.AssetFor(ctx, p); ok {
			if meta, err := o.store.ReadMetadata(ctx, id); err == nil && IsOptimized(meta, p) {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// ProgressFunc is told about every finished path.
type ProgressFunc func(path string, res Result, err error)

// OptimizePaths optimizes loose files from a scan. Files that belong to an
// asset go through the ledger; unknown files are compressed without a
// record. One failing file never stops the rest.
func (o *Orchestrator) OptimizePaths(ctx context.Context, paths []string, force bool, progress ProgressFunc) Report {
	var (
		mu  sync.Mutex
		rep Report
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for _, p := range paths {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			var (
				res Result
				err error
			)
			if id, ok := o.AssetFor(gctx, p); ok {
				res, err = o.OptimizeIfNeeded(gctx, id, p, force)
			} else {
				_, _, res, err = o.optimizeOne(gctx, p)
			}
			if err != nil {
				logger.LogWarn("Failed to optimize %s: %v", filepath.Base(p), err)
			}
			mu.Lock()
			rep.add(res)
			if progress != nil {
				progress(p, res, err)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return rep
}
