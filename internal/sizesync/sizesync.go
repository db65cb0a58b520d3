// Package sizesync mirrors the configured built-in sizes into stored
// options, skipping the work when the configuration has not changed.
package sizesync

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cast"

	"sprout/internal/sizes"
	"sprout/pkg/logger"
)

// HashOption stores the fingerprint of the last synchronized table.
const HashOption = "_image_sizes_hash"

// OptionStore is a string key/value store.
type OptionStore interface {
	GetOption(ctx context.Context, name string) (string, bool, error)
	SetOption(ctx context.Context, name, value string) error
}

type optionNames struct {
	Width  string
	Height string
	Crop   string
}

var mapping = []struct {
	size string
	opts optionNames
}{
	{"thumbnail", optionNames{"thumbnail_size_w", "thumbnail_size_h", "thumbnail_crop"}},
	{"medium", optionNames{"medium_size_w", "medium_size_h", ""}},
	{"medium_large", optionNames{"medium_large_size_w", "medium_large_size_h", ""}},
	{"large", optionNames{"large_size_w", "large_size_h", ""}},
}

// Synchronizer writes size options from the raw image_sizes table.
type Synchronizer struct {
	raw   sizes.Source
	store OptionStore
}

func New(raw sizes.Source, store OptionStore) *Synchronizer {
	return &Synchronizer{raw: raw, store: store}
}

// Fingerprint hashes the canonical JSON form of raw. Map keys are sorted by
// the encoder, so equal tables hash equally.
func Fingerprint(raw map[string]any) (string, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:]), nil
}

// Synchronize writes every changed option. Without force it returns early
// when the stored fingerprint matches. It reports whether a sync ran.
func (s *Synchronizer) Synchronize(ctx context.Context, force bool) (bool, error) {
	var raw map[string]any
	if s.raw != nil {
		raw = s.raw()
	}
	hash, err := Fingerprint(raw)
	if err != nil {
		return false, fmt.Errorf("fingerprint image sizes: %w", err)
	}

	if !force {
		stored, _, err := s.store.GetOption(ctx, HashOption)
		if err != nil {
			return false, fmt.Errorf("read %s: %w", HashOption, err)
		}
		if stored == hash {
			return false, nil
		}
	}

	table := sizes.Normalize(raw)
	written := 0
	for _, m := range mapping {
		spec, ok := table.Get(m.size)
		if !ok {
			continue
		}
		n, err := s.apply(ctx, m.opts, spec)
		if err != nil {
			return false, err
		}
		written += n
	}

	if err := s.store.SetOption(ctx, HashOption, hash); err != nil {
		return false, fmt.Errorf("write %s: %w", HashOption, err)
	}
	logger.LogInfo("Image size options synchronized (%d changed)", written)
	return true, nil
}

func (s *Synchronizer) apply(ctx context.Context, names optionNames, spec sizes.Spec) (int, error) {
	changed := 0
	set := func(name string, v int) error {
		if name == "" {
			return nil
		}
		cur, _, err := s.store.GetOption(ctx, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if cast.ToInt(cur) == v {
			return nil
		}
		if err := s.store.SetOption(ctx, name, strconv.Itoa(v)); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		changed++
		return nil
	}

	crop := 0
	if spec.Crop {
		crop = 1
	}
	if err := set(names.Width, spec.Width); err != nil {
		return changed, err
	}
	if err := set(names.Height, spec.Height); err != nil {
		return changed, err
	}
	if err := set(names.Crop, crop); err != nil {
		return changed, err
	}
	return changed, nil
}
