package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"

	"sprout/internal/media"
	"sprout/internal/optimizer"
	"sprout/internal/variant"
	"sprout/pkg/logger"
	"sprout/pkg/utils"
)

// FallbackHeader is set when the requested size could not be produced and
// the full image was served instead.
const FallbackHeader = "X-Sprout-Fallback"

// ServeVariant streams one size of an asset, generating it on first use.
// GET /media/{id}/{size}
func (h *Handler) ServeVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	cand, fellBack, err := h.svc.Variants().Resolve(r.Context(), id, r.PathValue("size"))
	if err != nil {
		writeLookupError(w, err)
		return
	}

	data, err := h.readFile(id, cand.Path)
	if err != nil {
		logger.LogWarn("Media %d: %s unreadable: %v", id, cand.Path, err)
		utils.WriteError(w, http.StatusNotFound, utils.ErrVariantUnavailable, "Image file is missing.")
		return
	}

	if fellBack {
		w.Header().Set(FallbackHeader, variant.FullSize)
	}
	serveWithETag(w, r, data, mimetype.Detect(data).String())
}

type srcsetCandidate struct {
	variant.Candidate
	URL string `json:"url"`
}

type srcsetResponse struct {
	Candidates []srcsetCandidate `json:"candidates"`
	Srcset     string            `json:"srcset"`
	Sizes      string            `json:"sizes"`
}

// ServeSrcset returns the responsive candidates for a size.
// GET /media/{id}/srcset/{size}?sizes=...
func (h *Handler) ServeSrcset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	cands, err := h.svc.Variants().Srcset(r.Context(), id, r.PathValue("size"))
	if err != nil {
		writeLookupError(w, err)
		return
	}

	resp := srcsetResponse{
		Candidates: make([]srcsetCandidate, 0, len(cands)),
		Srcset:     variant.SrcsetAttr(cands, h.urlFor),
		Sizes:      variant.SizesAttr(cands[0].Width, r.URL.Query().Get("sizes")),
	}
	for _, c := range cands {
		resp.Candidates = append(resp.Candidates, srcsetCandidate{Candidate: c, URL: h.urlFor(c.Path)})
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

type focalResponse struct {
	ID     uint                       `json:"id"`
	FocalX *float64                   `json:"focal_point_x"`
	FocalY *float64                   `json:"focal_point_y"`
	Sizes  map[string]media.SizeEntry `json:"sizes"`
}

// SetFocalPoint stores an editor focal point and re-crops per strategy.
// PUT /media/{id}/focal  {"x": 0-100, "y": 0-100}
func (h *Handler) SetFocalPoint(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var body map[string]any
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "Body must be a JSON object.")
		return
	}

	release := h.acquire()
	meta, err := h.svc.SetFocalPoint(r.Context(), id, body)
	release()
	if err != nil {
		writeLookupError(w, err)
		return
	}
	h.invalidateAsset(id)

	utils.WriteJSON(w, http.StatusOK, focalResponse{
		ID:     id,
		FocalX: meta.FocalX,
		FocalY: meta.FocalY,
		Sizes:  meta.Sizes,
	})
}

type optimizeResponse struct {
	ID     uint             `json:"id"`
	Queued bool             `json:"queued"`
	Report optimizer.Report `json:"report"`
}

// OptimizeMedia compresses every file of an asset. With ?defer=true the
// work is queued instead.
// POST /media/{id}/optimize?force=true
func (h *Handler) OptimizeMedia(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	force, _ := strconv.ParseBool(q.Get("force"))
	deferred, _ := strconv.ParseBool(q.Get("defer"))

	if deferred {
		if _, err := h.svc.Store().Get(r.Context(), id); err != nil {
			writeLookupError(w, err)
			return
		}
		if !h.svc.Dispatcher().CanSchedule() {
			utils.WriteError(w, http.StatusServiceUnavailable, utils.ErrSchedulingFailed, "Deferred jobs are not available.")
			return
		}
		queued := h.svc.ScheduleAssetOptimization(r.Context(), id)
		utils.WriteJSON(w, http.StatusAccepted, optimizeResponse{ID: id, Queued: queued})
		return
	}

	release := h.acquire()
	_, rep, err := h.svc.OptimizeAsset(r.Context(), id, force)
	release()
	if err != nil {
		if errors.Is(err, optimizer.ErrNoOptimizers) {
			utils.WriteError(w, http.StatusServiceUnavailable, utils.ErrOptimizerUnavailable, "No image optimizers are installed.")
			return
		}
		writeLookupError(w, err)
		return
	}
	h.invalidateAsset(id)

	utils.WriteJSON(w, http.StatusOK, optimizeResponse{ID: id, Report: rep})
}
