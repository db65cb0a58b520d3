package media

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strings"
)

var ErrNotFound = errors.New("media: asset not found")

// Store is the host persistence boundary.
//
// WriteMetadata must merge focal coordinates forward from the stored
// document when the incoming one lacks them. Update runs fn against the
// current document and persists the result atomically for that asset;
// returning an error from fn aborts without writing.
type Store interface {
	Get(ctx context.Context, id uint) (*Asset, error)
	ReadMetadata(ctx context.Context, id uint) (Metadata, error)
	WriteMetadata(ctx context.Context, id uint, meta Metadata) error
	Update(ctx context.Context, id uint, fn func(*Metadata) error) (Metadata, error)
	Create(ctx context.Context, parentType string, meta Metadata) (*Asset, error)
	ListImageIDs(ctx context.Context) ([]uint, error)
	FindByFile(ctx context.Context, relPath string) (uint, error)
}

var derivedSuffix = regexp.MustCompile(`-\d+x\d+$|@\d+x$|-scaled$`)

// LookupPrefix strips generated-size suffixes ("-300x200", "@2x",
// "-scaled") from a relative path's filename and returns the prefix a
// stored main file would start with.
func LookupPrefix(relPath string) string {
	dir, file := path.Split(relPath)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	return dir + derivedSuffix.ReplaceAllString(stem, "")
}
