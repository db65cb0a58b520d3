// Package media models image assets and their per-size metadata, and
// defines the persistence contract the pipeline talks to.
package media

import (
	"path"
	"strings"
	"time"
)

// OptimizationRecord marks that the bytes hashing to Hash were passed
// through the compressors at Timestamp (unix seconds).
type OptimizationRecord struct {
	Hash      string `json:"hash"`
	Timestamp int64  `json:"timestamp"`
}

// NewRecord stamps hash with the current time.
func NewRecord(hash string) *OptimizationRecord {
	return &OptimizationRecord{Hash: hash, Timestamp: time.Now().Unix()}
}

// SizeEntry describes one generated size file. File is a bare filename in
// the directory of the main file.
type SizeEntry struct {
	File      string              `json:"file"`
	Width     int                 `json:"width"`
	Height    int                 `json:"height"`
	MimeType  string              `json:"mime_type,omitempty"`
	FileSize  int64               `json:"filesize,omitempty"`
	Optimized *OptimizationRecord `json:"optimized,omitempty"`
}

// Metadata is the mutable per-asset document. File is relative to the
// media root; OriginalImage is a bare filename next to it, present when
// the upload was downscaled.
type Metadata struct {
	File          string               `json:"file"`
	Width         int                  `json:"width"`
	Height        int                  `json:"height"`
	MimeType      string               `json:"mime_type,omitempty"`
	FileSize      int64                `json:"filesize,omitempty"`
	OriginalImage string               `json:"original_image,omitempty"`
	Sizes         map[string]SizeEntry `json:"sizes,omitempty"`

	FocalX *float64 `json:"focal_point_x,omitempty"`
	FocalY *float64 `json:"focal_point_y,omitempty"`

	Optimized         *OptimizationRecord `json:"optimized,omitempty"`
	OriginalOptimized *OptimizationRecord `json:"original_optimized,omitempty"`
}

// Asset is a stored media item.
type Asset struct {
	ID         uint
	ParentType string
	Metadata   Metadata
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone returns a deep copy safe to mutate.
func (m Metadata) Clone() Metadata {
	out := m
	if m.Sizes != nil {
		out.Sizes = make(map[string]SizeEntry, len(m.Sizes))
		for k, v := range m.Sizes {
			if v.Optimized != nil {
				rec := *v.Optimized
				v.Optimized = &rec
			}
			out.Sizes[k] = v
		}
	}
	out.FocalX = clonePtr(m.FocalX)
	out.FocalY = clonePtr(m.FocalY)
	if m.Optimized != nil {
		rec := *m.Optimized
		out.Optimized = &rec
	}
	if m.OriginalOptimized != nil {
		rec := *m.OriginalOptimized
		out.OriginalOptimized = &rec
	}
	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Dir is the directory of the main file, relative to the media root.
func (m Metadata) Dir() string {
	d := path.Dir(m.File)
	if d == "." {
		return ""
	}
	return d
}

// RelPath joins a bare filename with the main file's directory.
func (m Metadata) RelPath(name string) string {
	if name == "" {
		return ""
	}
	return path.Join(m.Dir(), name)
}

// HasSize reports whether name was already generated.
func (m Metadata) HasSize(name string) bool {
	_, ok := m.Sizes[name]
	return ok
}

// SetSize records (or replaces) a generated size.
func (m *Metadata) SetSize(name string, e SizeEntry) {
	if m.Sizes == nil {
		m.Sizes = make(map[string]SizeEntry)
	}
	m.Sizes[name] = e
}

// WithFocalFrom carries focal coordinates forward from prev when m lacks
// them. Each axis is merged independently.
func (m Metadata) WithFocalFrom(prev *Metadata) Metadata {
	if prev == nil {
		return m
	}
	if m.FocalX == nil && prev.FocalX != nil {
		m.FocalX = clonePtr(prev.FocalX)
	}
	if m.FocalY == nil && prev.FocalY != nil {
		m.FocalY = clonePtr(prev.FocalY)
	}
	return m
}

// IsImage reports whether the mime type is a raster or vector image.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
