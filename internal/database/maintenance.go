package database

import (
	"context"
	"os"
	"time"

	"gorm.io/gorm"

	"sprout/pkg/logger"
	"sprout/pkg/utils"
)

/*
Storage maintenance
===================

Attachment rows are small and rewritten often (every generated size and every
optimization record touches the JSON document), so the WAL grows and pages
are freed steadily. The worker runs two steps on each tick:

 1. Checkpoint: PRAGMA wal_checkpoint(TRUNCATE) folds the WAL back into the
    main file so it does not grow without bound.

 2. Vacuum: only when the file is above the configured limit AND more than
    half of its pages are on the freelist. Freed pages are otherwise kept so
    SQLite can reuse them without growing the file again.

A file above the limit that is not bloated is reported and left alone; rows
are metadata for files on disk and are never pruned.
*/

// Maintainer keeps the SQLite file compact.
type Maintainer struct {
	db    *gorm.DB
	path  string
	limit int64
}

func NewMaintainer(db *gorm.DB, path, maxSize string) *Maintainer {
	return &Maintainer{
		db:    db,
		path:  path,
		limit: utils.SizeToBytes(maxSize, 2*1024*1024*1024),
	}
}

// Run checks the database every interval until ctx is done.
func (m *Maintainer) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	logger.LogInfo("Storage maintenance started. Limit: %s, Interval: %s", utils.FormatBytes(m.limit), interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Report describes one maintenance pass.
type Report struct {
	PhysicalSize int64
	FreeRatio    float64
	Vacuumed     bool
}

// Check runs one maintenance pass.
func (m *Maintainer) Check(ctx context.Context) Report {
	var rep Report
	db := m.db.WithContext(ctx)

	if err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE);").Error; err != nil {
		logger.LogWarn("WAL checkpoint failed: %v", err)
	}

	fileInfo, err := os.Stat(m.path)
	if err != nil {
		logger.LogError("Maintenance failed to stat DB file: %v", err)
		return rep
	}
	rep.PhysicalSize = fileInfo.Size()
	if walInfo, err := os.Stat(m.path + "-wal"); err == nil {
		rep.PhysicalSize += walInfo.Size()
	}

	var pageCount, freePages int64
	if err := db.Raw("PRAGMA page_count;").Scan(&pageCount).Error; err != nil {
		logger.LogError("Failed to read page_count: %v", err)
		return rep
	}
	if err := db.Raw("PRAGMA freelist_count;").Scan(&freePages).Error; err != nil {
		logger.LogError("Failed to read freelist_count: %v", err)
		return rep
	}
	if pageCount > 0 {
		rep.FreeRatio = float64(freePages) / float64(pageCount)
	}

	if rep.PhysicalSize < m.limit {
		return rep
	}

	logger.LogInfo("Storage Analysis - Phys: %s | Free pages: %.0f%%",
		utils.FormatBytes(rep.PhysicalSize), rep.FreeRatio*100)

	if rep.FreeRatio <= 0.5 {
		logger.LogWarn("Database is above %s and not reclaimable; raise database.max_size", utils.FormatBytes(m.limit))
		return rep
	}

	logger.LogWarn("DB is bloated (>50%% empty). Starting VACUUM to reclaim space...")
	startTime := time.Now()
	if err := db.Exec("VACUUM;").Error; err != nil {
		logger.LogError("VACUUM failed: %v", err)
		return rep
	}
	rep.Vacuumed = true
	logger.LogInfo("VACUUM completed in %v. Disk space reclaimed.", time.Since(startTime))
	return rep
}
