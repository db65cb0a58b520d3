package sizesync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprout/internal/sizes"
)

type memOptions struct {
	values map[string]string
	writes []string
	fail   bool
}

func newOptions() *memOptions {
	return &memOptions{values: map[string]string{}}
}

func (m *memOptions) GetOption(_ context.Context, name string) (string, bool, error) {
	if m.fail {
		return "", false, errors.New("db down")
	}
	v, ok := m.values[name]
	return v, ok, nil
}

func (m *memOptions) SetOption(_ context.Context, name, value string) error {
	m.values[name] = value
	m.writes = append(m.writes, name)
	return nil
}

func TestSynchronizeWritesMappedOptions(t *testing.T) {
	opts := newOptions()
	raw := sizes.Defaults()
	s := New(func() map[string]any { return raw }, opts)

	changed, err := s.Synchronize(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, "150", opts.values["thumbnail_size_w"])
	assert.Equal(t, "150", opts.values["thumbnail_size_h"])
	assert.Equal(t, "1", opts.values["thumbnail_crop"])
	assert.Equal(t, "400", opts.values["medium_size_w"])
	assert.Equal(t, "768", opts.values["medium_large_size_w"])
	assert.Equal(t, "1024", opts.values["large_size_h"])
	// Zero already matches an absent option.
	assert.NotContains(t, opts.values, "medium_large_size_h")

	hash, err := Fingerprint(raw)
	require.NoError(t, err)
	assert.Equal(t, hash, opts.values[HashOption])
}

func TestSynchronizeSkipsUnchangedConfig(t *testing.T) {
	opts := newOptions()
	raw := sizes.Defaults()
	s := New(func() map[string]any { return raw }, opts)
	ctx := context.Background()

	_, err := s.Synchronize(ctx, false)
	require.NoError(t, err)
	writes := len(opts.writes)

	changed, err := s.Synchronize(ctx, false)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, opts.writes, writes)

	changed, err = s.Synchronize(ctx, true)
	require.NoError(t, err)
	assert.True(t, changed, "force bypasses the fingerprint")
	assert.Len(t, opts.writes, writes+1, "only the fingerprint is rewritten; values are unchanged")

	raw["medium"] = map[string]any{"width": 500, "height": 400}
	changed, err = s.Synchronize(ctx, false)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "500", opts.values["medium_size_w"])
	assert.Equal(t, []string{"medium_size_w", HashOption}, opts.writes[writes+1:])
}

func TestFingerprintIsOrderIndependent(t *testing.T) {
	a, err := Fingerprint(map[string]any{"a": 1, "b": map[string]any{"x": 1, "y": 2}})
	require.NoError(t, err)
	b, err := Fingerprint(map[string]any{"b": map[string]any{"y": 2, "x": 1}, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSynchronizeStoreError(t *testing.T) {
	opts := newOptions()
	opts.fail = true
	s := New(sizes.Defaults, opts)
	_, err := s.Synchronize(context.Background(), false)
	assert.Error(t, err)
}
