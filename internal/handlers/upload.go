package handlers

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"sprout/internal/appinfo"
	"sprout/internal/media"
	"sprout/internal/pipeline"
	"sprout/pkg/logger"
	"sprout/pkg/utils"
)

const DefaultMaxUploadSize = 20 << 20 // 20 MB

// allowedUploads maps accepted detected types to the stored extension.
var allowedUploads = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"image/tiff": ".tif",
}

type uploadResponse struct {
	Status    string   `json:"status"`
	ID        uint     `json:"id"`
	File      string   `json:"file"`
	URL       string   `json:"url"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Scaled    bool     `json:"scaled"`
	Generated []string `json:"generated"`
	Skipped   []string `json:"skipped,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// UploadHandler stores a multipart image under the media root, registers
// it as an asset and generates its sizes.
// POST /upload  file=<image>, parent_type=<optional>
//
// Security: Protected by 'X-Secret-Key'.
func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(w, r) {
		return
	}

	maxUploadSize := utils.SizeToBytes(h.cfg.Media.MaxUploadSize, DefaultMaxUploadSize)
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestBodyTooLarge, "File exceeds size limit.")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "Missing 'file' field.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, utils.ErrRequestInvalid, "Failed to read file.")
		return
	}

	mtype := mimetype.Detect(data)
	ext, ok := allowedUploads[mtype.String()]
	if !ok {
		utils.WriteError(w, http.StatusUnsupportedMediaType, utils.ErrRequestUnSupportedMedia, "Unsupported file type.")
		return
	}

	rel := storedName(time.Now(), header.Filename, ext)
	abs := media.Abs(h.cfg.Media.Root, rel)
	if err := writeNew(abs, data); err != nil {
		logger.LogError("Upload write failed: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrServerInternal, "Failed to store file.")
		return
	}

	release := h.acquire()
	asset, rep, err := h.svc.Ingest(r.Context(), strings.TrimSpace(r.FormValue("parent_type")), rel, mtype.String())
	release()
	if err != nil {
		os.Remove(abs)
		if errors.Is(err, pipeline.ErrNotImage) {
			utils.WriteError(w, http.StatusUnsupportedMediaType, utils.ErrImageProcessing, "File could not be decoded.")
			return
		}
		logger.LogError("Upload ingest failed: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, utils.ErrServerInternal, "Failed to register upload.")
		return
	}
	appinfo.Uploads.Add(1)

	meta := asset.Metadata
	utils.WriteJSON(w, http.StatusCreated, uploadResponse{
		Status:    "success",
		ID:        asset.ID,
		File:      meta.File,
		URL:       h.urlFor(meta.File),
		Width:     meta.Width,
		Height:    meta.Height,
		Scaled:    meta.OriginalImage != "",
		Generated: rep.Generated,
		Skipped:   rep.Skipped,
		Failed:    rep.Failed,
	})
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// storedName builds "YYYY/MM/{slug}-{id}{ext}". The random suffix keeps
// names unique without a directory listing.
func storedName(now time.Time, original, ext string) string {
	stem := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	stem = strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(stem), "-"), "-")
	if stem == "" {
		stem = "image"
	}
	if len(stem) > 64 {
		stem = stem[:64]
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return path.Join(now.Format("2006/01"), stem+"-"+id+ext)
}

func writeNew(abs string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(abs)
		return err
	}
	return f.Close()
}
