// Package optimizer runs external compressors over generated files and keeps
// a per-file ledger so unchanged files are never compressed twice.
package optimizer

import (
	"path/filepath"
	"strings"
)

// Tool is one external compressor. Args builds the argument list that
// optimizes path in place.
type Tool struct {
	Binary string
	Name   string
	Format string
	Exts   []string
	Args   func(path string) []string
}

// Handles reports whether the tool applies to path, by extension.
func (t Tool) Handles(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range t.Exts {
		if e == ext {
			return true
		}
	}
	return false
}

// DefaultTools is the compressor chain, in run order.
func DefaultTools() []Tool {
	return []Tool{
		{
			Binary: "jpegoptim", Name: "JpegOptim", Format: "JPEG",
			Exts: []string{"jpg", "jpeg"},
			Args: func(p string) []string {
				return []string{"-m85", "--force", "--strip-all", "--all-progressive", "--quiet", p}
			},
		},
		{
			Binary: "pngquant", Name: "Pngquant 2", Format: "PNG",
			Exts: []string{"png"},
			Args: func(p string) []string {
				return []string{"--force", "--skip-if-larger", "--output=" + p, p}
			},
		},
		{
			Binary: "optipng", Name: "Optipng", Format: "PNG",
			Exts: []string{"png"},
			Args: func(p string) []string {
				return []string{"-i0", "-o2", "-quiet", p}
			},
		},
		{
			Binary: "svgo", Name: "SVGO 1", Format: "SVG",
			Exts: []string{"svg"},
			Args: func(p string) []string {
				return []string{"--disable=cleanupIDs", "--input=" + p, "--output=" + p}
			},
		},
		{
			Binary: "gifsicle", Name: "Gifsicle", Format: "GIF",
			Exts: []string{"gif"},
			Args: func(p string) []string {
				return []string{"-b", "-O3", p}
			},
		},
		{
			Binary: "cwebp", Name: "cwebp", Format: "WebP",
			Exts: []string{"webp"},
			Args: func(p string) []string {
				return []string{"-m", "6", "-pass", "10", "-mt", "-q", "80", p, "-o", p}
			},
		},
		{
			Binary: "avifenc", Name: "avifenc", Format: "AVIF",
			Exts: []string{"avif"},
			Args: func(p string) []string {
				return []string{"-a", "cq-level=23", "-j", "all", "--min", "0", "--max", "63", "-a", "end-usage=q", "-a", "tune=ssim", p, p}
			},
		},
	}
}

// ScanExtensions are the file types the media-root scan picks up.
var ScanExtensions = []string{"png", "jpg", "jpeg", "webp", "avif", "svg", "gif"}
