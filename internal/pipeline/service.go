// Package pipeline wires the size table, the materializer, focal cropping,
// the optimizer and the scheduler into the operations the host calls.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"sprout/internal/appinfo"
	"sprout/internal/focal"
	"sprout/internal/media"
	"sprout/internal/optimizer"
	"sprout/internal/schedule"
	"sprout/internal/sizes"
	"sprout/internal/sizesync"
	"sprout/internal/transform"
	"sprout/internal/variant"
	"sprout/pkg/logger"
)

// Deps are the collaborators a Service is built from. Dispatcher and
// Periodic may be nil; work that would be deferred is then skipped.
type Deps struct {
	Store      media.Store
	Sizes      *sizes.Normalizer
	Engine     transform.Engine
	Optimizer  *optimizer.Orchestrator
	Dispatcher *schedule.Dispatcher
	Periodic   *schedule.Periodic
	Options    sizesync.OptionStore
}

// Options are the pipeline settings.
type Options struct {
	MediaRoot         string
	FocalMode         focal.Mode
	AutoOptimize      bool
	ConvertToAVIF     bool
	SyncStrategy      schedule.Strategy
	SyncInterval      string
	BigImageThreshold int
}

type Service struct {
	store      media.Store
	sizes      *sizes.Normalizer
	engine     transform.Engine
	cropper    *focal.Cropper
	variants   *variant.Materializer
	optimizer  *optimizer.Orchestrator
	dispatcher *schedule.Dispatcher
	periodic   *schedule.Periodic
	sync       *sizesync.Synchronizer
	opts       Options
}

func New(d Deps, opts Options) *Service {
	if opts.FocalMode == nil {
		opts.FocalMode = focal.Disabled{}
	}
	if opts.SyncStrategy == "" {
		opts.SyncStrategy = schedule.DefaultStrategy
	}

	cropper := focal.NewCropper(d.Engine, d.Sizes, opts.MediaRoot, opts.FocalMode)
	s := &Service{
		store:      d.Store,
		sizes:      d.Sizes,
		engine:     d.Engine,
		cropper:    cropper,
		variants:   variant.New(d.Store, d.Sizes, d.Engine, cropper, opts.MediaRoot),
		optimizer:  d.Optimizer,
		dispatcher: d.Dispatcher,
		periodic:   d.Periodic,
		opts:       opts,
	}
	if d.Options != nil {
		s.sync = sizesync.New(d.Sizes.Source(), d.Options)
	}
	s.variants.OnGenerated(s.onVariantGenerated)

	if opts.ConvertToAVIF {
		if _, ok := transform.OutputFormatFor("image/jpeg", true); !ok {
			logger.LogWarn("convert_to_avif is set but no AVIF encoder is linked; derived files keep their source format")
		}
	}
	return s
}

func (s *Service) Store() media.Store { return s.store }

func (s *Service) Sizes() *sizes.Normalizer { return s.sizes }

func (s *Service) Variants() *variant.Materializer { return s.variants }

func (s *Service) Optimizer() *optimizer.Orchestrator { return s.optimizer }

func (s *Service) Dispatcher() *schedule.Dispatcher { return s.dispatcher }

func (s *Service) FocalMode() focal.Mode { return s.opts.FocalMode }

func (s *Service) SyncStrategy() schedule.Strategy { return s.opts.SyncStrategy }

// EnsureVariant returns the size entry, generating it when missing.
func (s *Service) EnsureVariant(ctx context.Context, id uint, sizeName string) (media.SizeEntry, error) {
	return s.variants.Ensure(ctx, id, sizeName)
}

// ApplyFocalCropToAllSizes re-cuts every generated hard-cropped size of
// asset id around its current focal point and stores the changed entries.
func (s *Service) ApplyFocalCropToAllSizes(ctx context.Context, id uint) (media.Metadata, focal.Report, error) {
	meta, err := s.store.ReadMetadata(ctx, id)
	if err != nil {
		return media.Metadata{}, focal.Report{}, err
	}
	out, rep := s.cropper.ApplyToAllSizes(ctx, meta)
	if rep.Applied == 0 {
		return meta, rep, nil
	}
	appinfo.FocalRecrops.Add(int64(rep.Applied))

	updated, err := s.store.Update(ctx, id, func(m *media.Metadata) error {
		for _, name := range rep.Sizes {
			m.SetSize(name, out.Sizes[name])
		}
		return nil
	})
	if err != nil {
		return meta, rep, fmt.Errorf("store recropped sizes: %w", err)
	}
	return updated, rep, nil
}

// SetFocalPoint stores an editor change and re-crops according to the
// focal strategy. Input that changes nothing is ignored.
func (s *Service) SetFocalPoint(ctx context.Context, id uint, raw map[string]any) (media.Metadata, error) {
	u := focal.Sanitize(raw)
	if u.Empty() {
		return s.store.ReadMetadata(ctx, id)
	}
	meta, err := s.store.Update(ctx, id, func(m *media.Metadata) error {
		u.ApplyTo(m)
		return nil
	})
	if err != nil {
		return media.Metadata{}, err
	}
	if out, handled := s.recrop(ctx, id); handled {
		return out, nil
	}
	return meta, nil
}

// recrop runs or defers a focal re-crop for id. It reports whether the
// returned metadata is newer than what the caller holds.
func (s *Service) recrop(ctx context.Context, id uint) (media.Metadata, bool) {
	mode, ok := focal.IsEnabled(s.opts.FocalMode)
	if !ok {
		return media.Metadata{}, false
	}
	if mode.Strategy == focal.Deferred {
		// Until the job runs, existing size files still show the old cut.
		s.schedule(ctx, schedule.JobFocalRecrop, []string{idArg(id)}, mode.Delay)
		return media.Metadata{}, false
	}
	out, _, err := s.ApplyFocalCropToAllSizes(ctx, id)
	if err != nil {
		logger.LogWarn("Focal re-crop of asset %d failed: %v", id, err)
		return media.Metadata{}, false
	}
	return out, true
}

// SynchronizeOptions mirrors the size table into stored options.
func (s *Service) SynchronizeOptions(ctx context.Context, force bool) (bool, error) {
	if s.sync == nil {
		return false, nil
	}
	return s.sync.Synchronize(ctx, force)
}

// Bootstrap applies the sync strategy for this process. privileged marks
// admin, worker and CLI processes.
func (s *Service) Bootstrap(ctx context.Context, privileged bool) error {
	plan := schedule.Decide(s.opts.SyncStrategy, privileged)
	logger.LogDebug("Sync strategy %s (run now: %t, periodic: %t)", s.opts.SyncStrategy, plan.RunNow, plan.Periodic)

	if s.periodic != nil {
		if plan.Periodic {
			spec, err := schedule.IntervalSpec(s.opts.SyncInterval)
			if err != nil {
				return err
			}
			if _, err := s.periodic.Install(schedule.JobSyncImageSizes, spec, func() {
				if _, err := s.SynchronizeOptions(ctx, false); err != nil {
					logger.LogWarn("Periodic image size sync failed: %v", err)
				}
			}); err != nil {
				return err
			}
		} else {
			s.periodic.Remove(schedule.JobSyncImageSizes)
		}
	}

	if plan.RunNow {
		if _, err := s.SynchronizeOptions(ctx, false); err != nil {
			return fmt.Errorf("sync image sizes: %w", err)
		}
	}
	return nil
}

// OptimizeAsset optimizes every file of asset id and stores the records.
func (s *Service) OptimizeAsset(ctx context.Context, id uint, force bool) (media.Metadata, optimizer.Report, error) {
	if err := s.optimizer.Ready(); err != nil {
		return media.Metadata{}, optimizer.Report{}, err
	}
	return s.optimizer.OptimizeAsset(ctx, id, force)
}

// OptimizeFile optimizes one file under the media root. Files that belong
// to an asset go through the ledger. It reports whether the file was
// compressed by this call.
func (s *Service) OptimizeFile(ctx context.Context, path string) (bool, error) {
	if err := s.optimizer.Ready(); err != nil {
		return false, err
	}
	if id, ok := s.optimizer.AssetFor(ctx, path); ok {
		res, err := s.optimizer.OptimizeIfNeeded(ctx, id, path, false)
		return res == optimizer.Optimized, err
	}
	if err := s.optimizer.OptimizeFile(ctx, path); err != nil {
		return false, err
	}
	return true, nil
}

// ScheduleAssetOptimization defers a whole-asset optimization. It reports
// whether a job was queued.
func (s *Service) ScheduleAssetOptimization(ctx context.Context, id uint) bool {
	return s.schedule(ctx, schedule.JobOptimizeAttachment, []string{idArg(id)}, -1)
}

// OnMetadataGenerated runs after a new asset has its sizes: focal
// cropping per strategy, then deferred optimization when enabled.
func (s *Service) OnMetadataGenerated(ctx context.Context, id uint) {
	s.recrop(ctx, id)
	if s.opts.AutoOptimize {
		s.ScheduleAssetOptimization(ctx, id)
	}
}

// OnFileChanged defers optimization of a file written under the media root
// by something other than this process. Files that belong to no asset are
// ignored.
func (s *Service) OnFileChanged(ctx context.Context, path string) {
	id, ok := s.optimizer.AssetFor(ctx, path)
	if !ok {
		return
	}
	s.schedule(ctx, schedule.JobOptimizeImage, []string{path, idArg(id)}, -1)
}

func (s *Service) onVariantGenerated(ctx context.Context, id uint, path string) {
	if !s.opts.AutoOptimize {
		return
	}
	s.schedule(ctx, schedule.JobOptimizeImage, []string{path, idArg(id)}, -1)
}

func (s *Service) schedule(ctx context.Context, name string, args []string, delay time.Duration) bool {
	ok, err := s.dispatcher.ScheduleIfNotScheduled(ctx, name, args, delay)
	if err != nil {
		logger.LogWarn("Could not schedule %s: %v", name, err)
		return false
	}
	return ok
}

// RegisterJobs binds the deferred job names to their handlers.
func (s *Service) RegisterJobs() {
	if !s.dispatcher.CanSchedule() {
		return
	}
	s.dispatcher.Handle(schedule.JobOptimizeAttachment, func(ctx context.Context, args []string) error {
		id, err := parseID(args, 0)
		if err != nil {
			return err
		}
		_, rep, err := s.OptimizeAsset(ctx, id, false)
		if err == nil {
			logger.LogDebug("Asset %d optimized: %d files, %d unchanged", id, rep.Optimized, rep.AlreadyOptimized)
		}
		return err
	})
	s.dispatcher.Handle(schedule.JobOptimizeImage, func(ctx context.Context, args []string) error {
		if len(args) < 2 {
			return fmt.Errorf("optimize_image: want [path, id], got %v", args)
		}
		id, err := parseID(args, 1)
		if err != nil {
			return err
		}
		if err := s.optimizer.Ready(); err != nil {
			return err
		}
		_, err = s.optimizer.OptimizeIfNeeded(ctx, id, args[0], false)
		return err
	})
	s.dispatcher.Handle(schedule.JobFocalRecrop, func(ctx context.Context, args []string) error {
		id, err := parseID(args, 0)
		if err != nil {
			return err
		}
		_, _, err = s.ApplyFocalCropToAllSizes(ctx, id)
		return err
	})
}

func idArg(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseID(args []string, i int) (uint, error) {
	if len(args) <= i {
		return 0, fmt.Errorf("missing asset id in %v", args)
	}
	n, err := strconv.ParseUint(args[i], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid asset id %q: %w", args[i], err)
	}
	return uint(n), nil
}
