package optimizer

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path"
	"path/filepath"

	"sprout/internal/media"
)

// Role says which record of an asset a file maps to.
type Role int

const (
	RoleNone Role = iota
	RoleOriginal
	RoleMain
	RoleSize
)

func (r Role) String() string {
	switch r {
	case RoleOriginal:
		return "original"
	case RoleMain:
		return "main"
	case RoleSize:
		return "size"
	}
	return "none"
}

// Match is the outcome of routing a file to its record.
type Match struct {
	Role Role
	Size string
}

// MatchRole routes filePath to a record by its base filename: the
// pre-downscale original first, then the main file, then generated sizes.
func MatchRole(meta media.Metadata, filePath string) Match {
	name := filepath.Base(filePath)
	if meta.OriginalImage != "" && meta.OriginalImage == name {
		return Match{Role: RoleOriginal}
	}
	if meta.File != "" && path.Base(meta.File) == name {
		return Match{Role: RoleMain}
	}
	for _, size := range sortedSizes(meta) {
		if meta.Sizes[size].File == name {
			return Match{Role: RoleSize, Size: size}
		}
	}
	return Match{}
}

// HashFile returns the hex md5 of the file's bytes.
func HashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func recordFor(meta media.Metadata, m Match) *media.OptimizationRecord {
	switch m.Role {
	case RoleOriginal:
		return meta.OriginalOptimized
	case RoleMain:
		return meta.Optimized
	case RoleSize:
		return meta.Sizes[m.Size].Optimized
	}
	return nil
}

// IsOptimized reports whether filePath's current bytes match the hash
// recorded for its role. Files with no role are never optimized.
func IsOptimized(meta media.Metadata, filePath string) bool {
	m := MatchRole(meta, filePath)
	rec := recordFor(meta, m)
	if rec == nil || rec.Hash == "" {
		return false
	}
	hash, err := HashFile(filePath)
	if err != nil {
		return false
	}
	return hash == rec.Hash
}

// Record stores rec for filePath's role, replacing any earlier record.
// fileSize, when positive, refreshes the stored size of main and size
// files. It reports false when the file has no role in meta.
func Record(meta *media.Metadata, filePath string, rec *media.OptimizationRecord, fileSize int64) bool {
	m := MatchRole(*meta, filePath)
	switch m.Role {
	case RoleOriginal:
		meta.OriginalOptimized = rec
	case RoleMain:
		meta.Optimized = rec
		if fileSize > 0 {
			meta.FileSize = fileSize
		}
	case RoleSize:
		e := meta.Sizes[m.Size]
		e.Optimized = rec
		if fileSize > 0 {
			e.FileSize = fileSize
		}
		meta.SetSize(m.Size, e)
	default:
		return false
	}
	return true
}
