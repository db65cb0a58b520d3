package handlers

import (
	"fmt"
	"net/http"
	"runtime"

	"sprout/internal/appinfo"
	"sprout/internal/focal"
	"sprout/internal/sizes"
	"sprout/pkg/utils"
)

type toolDTO struct {
	Name      string `json:"name"`
	Binary    string `json:"binary"`
	Format    string `json:"format"`
	Available bool   `json:"available"`
}

type StatsDTO struct {
	appinfo.Snapshot
	RamUsage      uint64    `json:"ram_usage"`
	NumGoroutines int       `json:"num_goroutines"`
	CacheItems    int       `json:"cache_items"`
	CacheBytes    int64     `json:"cache_bytes"`
	SyncStrategy  string    `json:"sync_strategy"`
	FocalCropping string    `json:"focal_cropping"`
	AutoOptimize  bool      `json:"auto_optimize"`
	Optimizers    []toolDTO `json:"optimizers"`
	MaxUploadSize string    `json:"max_upload_size"`
}

// GetStats returns pipeline counters and runtime metrics.
// GET /api/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := StatsDTO{
		Snapshot:      appinfo.Collect(),
		RamUsage:      m.Alloc,
		NumGoroutines: runtime.NumGoroutine(),
		SyncStrategy:  string(h.svc.SyncStrategy()),
		FocalCropping: describeFocal(h.svc.FocalMode()),
		AutoOptimize:  h.cfg.AutoOptimizeImages,
		MaxUploadSize: h.cfg.Media.MaxUploadSize,
	}
	if h.cache != nil {
		stats.CacheItems, stats.CacheBytes = h.cache.Stats()
	}
	for _, t := range h.svc.Optimizer().Availability().Tools {
		stats.Optimizers = append(stats.Optimizers, toolDTO{
			Name:      t.Tool.Name,
			Binary:    t.Tool.Binary,
			Format:    t.Tool.Format,
			Available: t.Available,
		})
	}

	utils.WriteJSON(w, http.StatusOK, stats)
}

func describeFocal(m focal.Mode) string {
	e, ok := focal.IsEnabled(m)
	if !ok {
		return "disabled"
	}
	if e.Strategy == focal.Deferred {
		return fmt.Sprintf("%s (%s delay)", e.Strategy, e.Delay)
	}
	return string(e.Strategy)
}

type sizeDTO struct {
	sizes.Registration
	Label string `json:"label,omitempty"`
}

// ListSizes returns every generated size and the picker labels.
// GET /api/sizes
func (h *Handler) ListSizes(w http.ResponseWriter, r *http.Request) {
	table := h.svc.Sizes().All()

	labels := make(map[string]string)
	ui := table.UILabels(nil)
	for _, l := range ui {
		labels[l.Name] = l.Label
	}

	regs := table.Registered()
	out := make([]sizeDTO, 0, len(regs))
	for _, reg := range regs {
		out = append(out, sizeDTO{Registration: reg, Label: labels[reg.Name]})
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sizes":     out,
		"ui_labels": ui,
	})
}
