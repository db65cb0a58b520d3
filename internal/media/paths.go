package media

import (
	"os"
	"path/filepath"
)

// Abs resolves a media-root relative path.
func Abs(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// SourcePath picks the file to derive sizes from: the pre-downscale
// original when it is on disk, otherwise the main file. ok is false when
// neither exists.
func SourcePath(root string, m Metadata) (string, bool) {
	if m.File == "" {
		return "", false
	}
	if m.OriginalImage != "" {
		p := Abs(root, m.RelPath(m.OriginalImage))
		if fileExists(p) {
			return p, true
		}
	}
	p := Abs(root, m.File)
	if fileExists(p) {
		return p, true
	}
	return "", false
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
