package appinfo

import (
	"sync/atomic"
	"time"
)

var StartTime time.Time

var (
	VariantsGenerated atomic.Int64
	VariantsReused    atomic.Int64
	VariantsFailed    atomic.Int64

	FocalRecrops atomic.Int64

	FilesOptimized        atomic.Int64
	FilesAlreadyOptimized atomic.Int64
	FilesOptimizeFailed   atomic.Int64
	BytesSaved            atomic.Int64

	JobsScheduled atomic.Int64
	JobsExecuted  atomic.Int64

	Uploads atomic.Int64
)

// Snapshot is a point-in-time copy of the counters for reporting.
type Snapshot struct {
	Uptime                string `json:"uptime"`
	VariantsGenerated     int64  `json:"variants_generated"`
	VariantsReused        int64  `json:"variants_reused"`
	VariantsFailed        int64  `json:"variants_failed"`
	FocalRecrops          int64  `json:"focal_recrops"`
	FilesOptimized        int64  `json:"files_optimized"`
	FilesAlreadyOptimized int64  `json:"files_already_optimized"`
	FilesOptimizeFailed   int64  `json:"files_optimize_failed"`
	BytesSaved            int64  `json:"bytes_saved"`
	JobsScheduled         int64  `json:"jobs_scheduled"`
	JobsExecuted          int64  `json:"jobs_executed"`
	Uploads               int64  `json:"uploads"`
}

func Collect() Snapshot {
	s := Snapshot{
		VariantsGenerated:     VariantsGenerated.Load(),
		VariantsReused:        VariantsReused.Load(),
		VariantsFailed:        VariantsFailed.Load(),
		FocalRecrops:          FocalRecrops.Load(),
		FilesOptimized:        FilesOptimized.Load(),
		FilesAlreadyOptimized: FilesAlreadyOptimized.Load(),
		FilesOptimizeFailed:   FilesOptimizeFailed.Load(),
		BytesSaved:            BytesSaved.Load(),
		JobsScheduled:         JobsScheduled.Load(),
		JobsExecuted:          JobsExecuted.Load(),
		Uploads:               Uploads.Load(),
	}
	if !StartTime.IsZero() {
		s.Uptime = time.Since(StartTime).Round(time.Second).String()
	}
	return s
}
