package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestWriteMetadataPreservesFocalPoint(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a, err := s.Create(ctx, "post", Metadata{
		File:     "2024/05/cat.jpg",
		MimeType: "image/jpeg",
		FocalX:   ptr(20),
		FocalY:   ptr(80),
	})
	require.NoError(t, err)

	// A regenerated document that knows nothing about focal points.
	require.NoError(t, s.WriteMetadata(ctx, a.ID, Metadata{
		File:     "2024/05/cat.jpg",
		MimeType: "image/jpeg",
		Sizes:    map[string]SizeEntry{"thumbnail": {File: "cat-150x150.jpg", Width: 150, Height: 150}},
	}))

	meta, err := s.ReadMetadata(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, meta.FocalX)
	require.NotNil(t, meta.FocalY)
	assert.Equal(t, 20.0, *meta.FocalX)
	assert.Equal(t, 80.0, *meta.FocalY)
	assert.True(t, meta.HasSize("thumbnail"))
}

func TestWriteMetadataKeepsNewFocalPoint(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a, _ := s.Create(ctx, "", Metadata{File: "a.jpg", FocalX: ptr(10), FocalY: ptr(10)})

	require.NoError(t, s.WriteMetadata(ctx, a.ID, Metadata{File: "a.jpg", FocalX: ptr(90)}))

	meta, _ := s.ReadMetadata(ctx, a.ID)
	assert.Equal(t, 90.0, *meta.FocalX)
	assert.Equal(t, 10.0, *meta.FocalY, "missing axis merged forward")
}

func TestUpdateAbortsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a, _ := s.Create(ctx, "", Metadata{File: "a.jpg", Width: 10})

	boom := errors.New("boom")
	_, err := s.Update(ctx, a.ID, func(m *Metadata) error {
		m.Width = 99
		return boom
	})
	assert.ErrorIs(t, err, boom)

	meta, _ := s.ReadMetadata(ctx, a.ID)
	assert.Equal(t, 10, meta.Width)

	_, err = s.Update(ctx, 404, func(*Metadata) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCloneIsDeep(t *testing.T) {
	m := Metadata{
		Sizes:     map[string]SizeEntry{"a": {File: "a.jpg", Optimized: &OptimizationRecord{Hash: "x"}}},
		FocalX:    ptr(1),
		Optimized: &OptimizationRecord{Hash: "y"},
	}
	c := m.Clone()
	c.Sizes["a"].Optimized.Hash = "changed"
	*c.FocalX = 2
	c.Optimized.Hash = "changed"

	assert.Equal(t, "x", m.Sizes["a"].Optimized.Hash)
	assert.Equal(t, 1.0, *m.FocalX)
	assert.Equal(t, "y", m.Optimized.Hash)
}

func TestPaths(t *testing.T) {
	m := Metadata{File: "2024/05/cat.jpg"}
	assert.Equal(t, "2024/05", m.Dir())
	assert.Equal(t, "2024/05/cat-150x150.jpg", m.RelPath("cat-150x150.jpg"))

	flat := Metadata{File: "cat.jpg"}
	assert.Equal(t, "", flat.Dir())
	assert.Equal(t, "cat-scaled.jpg", flat.RelPath("cat-scaled.jpg"))
}

func TestLookupPrefix(t *testing.T) {
	assert.Equal(t, "2024/05/cat", LookupPrefix("2024/05/cat-300x200.jpg"))
	assert.Equal(t, "2024/05/cat", LookupPrefix("2024/05/cat@2x.png"))
	assert.Equal(t, "cat", LookupPrefix("cat-scaled.jpg"))
	assert.Equal(t, "cat-wide", LookupPrefix("cat-wide.jpg"))
}

func TestFindByFile(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a, _ := s.Create(ctx, "", Metadata{File: "2024/05/cat.jpg", MimeType: "image/jpeg"})
	_, _ = s.Create(ctx, "", Metadata{File: "2024/05/dog.jpg", MimeType: "image/jpeg"})

	id, err := s.FindByFile(ctx, "2024/05/cat.jpg")
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	id, err = s.FindByFile(ctx, "2024/05/cat-768x432.jpg")
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	_, err = s.FindByFile(ctx, "2024/06/bird.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListImageIDsSkipsNonImages(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	img, _ := s.Create(ctx, "", Metadata{File: "a.jpg", MimeType: "image/jpeg"})
	_, _ = s.Create(ctx, "", Metadata{File: "a.pdf", MimeType: "application/pdf"})

	ids, err := s.ListImageIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{img.ID}, ids)
}

func TestSourcePathPrefersOriginal(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2024"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "2024", "cat-scaled.jpg"), []byte("s"), 0o644))

	m := Metadata{File: "2024/cat-scaled.jpg", OriginalImage: "cat.jpg"}

	p, ok := SourcePath(root, m)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "2024", "cat-scaled.jpg"), p, "original missing on disk")

	require.NoError(t, os.WriteFile(filepath.Join(root, "2024", "cat.jpg"), []byte("o"), 0o644))
	p, ok = SourcePath(root, m)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "2024", "cat.jpg"), p)

	_, ok = SourcePath(root, Metadata{File: "missing.jpg"})
	assert.False(t, ok)
}
