// Package handlers exposes the media pipeline over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"sprout/internal/config"
	"sprout/internal/media"
	"sprout/internal/pipeline"
	"sprout/internal/variant"
	"sprout/pkg/cache"
	"sprout/pkg/utils"
)

// MaxConcurrentWrites bounds handlers that write metadata at once. SQLite
// takes one writer at a time even in WAL mode, so the rest wait here.
const MaxConcurrentWrites = 10

// SecretHeader carries the write secret.
const SecretHeader = "X-Secret-Key"

type Handler struct {
	svc   *pipeline.Service
	cache *cache.MemoryCache
	cfg   *config.Config

	// requestGroup collapses concurrent reads of the same file.
	requestGroup singleflight.Group
	dbGuard      chan struct{}
}

func New(svc *pipeline.Service, c *cache.MemoryCache, cfg *config.Config) *Handler {
	return &Handler{
		svc:     svc,
		cache:   c,
		cfg:     cfg,
		dbGuard: make(chan struct{}, MaxConcurrentWrites),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /media/{id}/{size}", h.ServeVariant)
	mux.HandleFunc("GET /media/{id}/srcset/{size}", h.ServeSrcset)
	mux.HandleFunc("PUT /media/{id}/focal", h.SetFocalPoint)
	mux.HandleFunc("POST /media/{id}/optimize", h.OptimizeMedia)

	mux.HandleFunc("POST /upload", h.UploadHandler)

	mux.HandleFunc("GET /api/stats", h.GetStats)
	mux.HandleFunc("GET /api/sizes", h.ListSizes)

	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(h.cfg.Media.Root))))
}

func (h *Handler) authorized(w http.ResponseWriter, r *http.Request) bool {
	if !utils.SecretMatches(r.Header.Get(SecretHeader), h.cfg.Security.UploadSecret) {
		utils.WriteError(w, http.StatusForbidden, utils.ErrAuthInvalid, "Invalid secret key.")
		return false
	}
	return true
}

func (h *Handler) acquire() func() {
	h.dbGuard <- struct{}{}
	return func() { <-h.dbGuard }
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || n == 0 {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "Media id must be a positive integer.")
		return 0, false
	}
	return uint(n), true
}

func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, media.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, utils.ErrMediaNotFound, "Media not found.")
	case errors.Is(err, variant.ErrUnknownSize):
		utils.WriteError(w, http.StatusNotFound, utils.ErrMediaUnknownSize, "Image size is not configured.")
	default:
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrServerInternal, "Media lookup failed.")
	}
}

// urlFor maps a media-root relative path to its public URL.
func (h *Handler) urlFor(rel string) string {
	return strings.TrimRight(h.cfg.Media.BaseURL, "/") + "/" + strings.TrimLeft(rel, "/")
}
