package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"

	"sprout/internal/media"
)

func cacheKey(id uint, rel string, info os.FileInfo) string {
	return fmt.Sprintf("media:%d:%s:%d:%d", id, rel, info.ModTime().UnixNano(), info.Size())
}

// readFile returns the bytes of a media-root relative path, through the
// cache. The key includes mtime and size, so a rewritten file is never
// served stale.
func (h *Handler) readFile(id uint, rel string) ([]byte, error) {
	abs := media.Abs(h.cfg.Media.Root, rel)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	key := cacheKey(id, rel, info)

	data, err, _ := h.requestGroup.Do(key, func() (interface{}, error) {
		if h.cache != nil {
			if cached, ok := h.cache.Get(key); ok {
				return cached, nil
			}
		}
		b, err := os.ReadFile(abs)
		if err != nil {
			return nil, err
		}
		if h.cache != nil {
			h.cache.Set(key, b)
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return data.([]byte), nil
}

// invalidateAsset drops every cached file of asset id after its files
// were rewritten.
func (h *Handler) invalidateAsset(id uint) {
	if h.cache != nil {
		h.cache.DeletePrefix(fmt.Sprintf("media:%d:", id))
	}
}

// serveWithETag writes data with caching headers, or 304 when the
// client's copy is current.
func serveWithETag(w http.ResponseWriter, r *http.Request, data []byte, mimeType string) {
	hash := sha256.Sum256(data)
	etag := hex.EncodeToString(hash[:])

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("ETag", `"`+etag+`"`)

	if match := r.Header.Get("If-None-Match"); match != "" {
		if strings.Contains(match, etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
