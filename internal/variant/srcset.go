package variant

import (
	"context"
	"fmt"
	"strings"

	"sprout/internal/media"
	"sprout/internal/sizes"
)

// FullSize names the unmodified main file.
const FullSize = "full"

// Candidate is one file usable for a size, relative to the media root.
type Candidate struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Resolve returns the file to serve for sizeName, generating it when
// needed. When the size cannot be produced the full image is returned
// with fellBack set.
func (m *Materializer) Resolve(ctx context.Context, id uint, sizeName string) (c Candidate, fellBack bool, err error) {
	meta, err := m.store.ReadMetadata(ctx, id)
	if err != nil {
		return Candidate{}, false, err
	}
	full := fullCandidate(meta)
	if sizeName == "" || sizeName == FullSize {
		return full, false, nil
	}

	entry, err := m.Ensure(ctx, id, sizeName)
	if err != nil {
		if _, ok := m.sizes.Effective(sizeName); !ok {
			return Candidate{}, false, ErrUnknownSize
		}
		return full, true, nil
	}
	return entryCandidate(meta, sizeName, entry), false, nil
}

// Srcset ensures sizeName and each of its configured multipliers and
// returns the candidates that exist, base first. With nothing generated
// the full image is the only candidate.
func (m *Materializer) Srcset(ctx context.Context, id uint, sizeName string) ([]Candidate, error) {
	spec, ok := m.sizes.Get(sizes.BaseName(sizeName))
	if !ok {
		return nil, ErrUnknownSize
	}
	meta, err := m.store.ReadMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	names := []string{spec.Name}
	for _, mult := range spec.Srcset {
		names = append(names, sizes.VariantName(spec.Name, mult))
	}

	var out []Candidate
	seen := make(map[int]bool)
	for _, name := range names {
		entry, err := m.Ensure(ctx, id, name)
		if err != nil {
			continue
		}
		// Two multipliers can clamp to the same file; keep one per width.
		if seen[entry.Width] {
			continue
		}
		seen[entry.Width] = true
		out = append(out, entryCandidate(meta, name, entry))
	}
	if len(out) == 0 {
		out = append(out, fullCandidate(meta))
	}
	return out, nil
}

// SrcsetAttr renders candidates as an HTML srcset value.
func SrcsetAttr(cands []Candidate, urlFor func(relPath string) string) string {
	parts := make([]string, 0, len(cands))
	for _, c := range cands {
		if c.Width <= 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %dw", urlFor(c.Path), c.Width))
	}
	return strings.Join(parts, ", ")
}

// SizesAttr renders the sizes attribute for an image displayed at width
// pixels. A caller-supplied value is kept, prefixed with "auto" when it
// does not already start with it.
func SizesAttr(width int, userSizes string) string {
	userSizes = strings.TrimSpace(userSizes)
	if userSizes != "" {
		if strings.HasPrefix(userSizes, "auto") {
			return userSizes
		}
		return "auto, " + userSizes
	}
	if width <= 0 {
		return "auto, 100vw"
	}
	return fmt.Sprintf("auto, (max-width: %dpx) 100vw, %dpx", width, width)
}

func fullCandidate(meta media.Metadata) Candidate {
	return Candidate{Name: FullSize, Path: meta.File, Width: meta.Width, Height: meta.Height}
}

func entryCandidate(meta media.Metadata, name string, e media.SizeEntry) Candidate {
	return Candidate{Name: name, Path: meta.RelPath(e.File), Width: e.Width, Height: e.Height}
}
