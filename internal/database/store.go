package database

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sprout/internal/media"
)

// AttachmentStore persists asset metadata in SQLite.
type AttachmentStore struct {
	db *gorm.DB
}

func NewAttachmentStore(db *gorm.DB) *AttachmentStore {
	return &AttachmentStore{db: db}
}

func (s *AttachmentStore) find(tx *gorm.DB, id uint) (*Attachment, error) {
	var a Attachment
	if err := tx.First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, media.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *AttachmentStore) Get(ctx context.Context, id uint) (*media.Asset, error) {
	a, err := s.find(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return a.toAsset(), nil
}

func (s *AttachmentStore) ReadMetadata(ctx context.Context, id uint) (media.Metadata, error) {
	a, err := s.find(s.db.WithContext(ctx), id)
	if err != nil {
		return media.Metadata{}, err
	}
	return a.Metadata, nil
}

// WriteMetadata replaces the document, carrying focal coordinates forward
// from the stored one when meta lacks them.
func (s *AttachmentStore) WriteMetadata(ctx context.Context, id uint, meta media.Metadata) error {
	_, err := s.Update(ctx, id, func(m *media.Metadata) error {
		*m = meta.Clone()
		return nil
	})
	return err
}

func (s *AttachmentStore) Update(ctx context.Context, id uint, fn func(*media.Metadata) error) (media.Metadata, error) {
	var out media.Metadata
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := s.find(tx, id)
		if err != nil {
			return err
		}
		prev := a.Metadata
		working := prev.Clone()
		if err := fn(&working); err != nil {
			return err
		}
		a.Metadata = working.WithFocalFrom(&prev)
		a.File = a.Metadata.File
		if a.Metadata.MimeType != "" {
			a.MimeType = a.Metadata.MimeType
		}
		if err := tx.Save(a).Error; err != nil {
			return err
		}
		out = a.Metadata
		return nil
	})
	if err != nil {
		return media.Metadata{}, err
	}
	return out, nil
}

func (s *AttachmentStore) Create(ctx context.Context, parentType string, meta media.Metadata) (*media.Asset, error) {
	a := &Attachment{
		File:       meta.File,
		MimeType:   meta.MimeType,
		ParentType: parentType,
		Metadata:   meta,
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a.toAsset(), nil
}

func (s *AttachmentStore) ListImageIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&Attachment{}).
		Where("mime_type LIKE ?", "image/%").
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// FindByFile matches the stored main file exactly, then falls back to the
// first file starting with the path stripped of generated-size suffixes.
func (s *AttachmentStore) FindByFile(ctx context.Context, relPath string) (uint, error) {
	db := s.db.WithContext(ctx)

	var a Attachment
	err := db.Select("id").Where("file = ?", relPath).Order("id ASC").Take(&a).Error
	if err == nil {
		return a.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	pattern := escapeLike(media.LookupPrefix(relPath)) + "%"
	err = db.Select("id").Where(`file LIKE ? ESCAPE '\'`, pattern).Order("id ASC").Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, media.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// OptionStore persists named string options.
type OptionStore struct {
	db *gorm.DB
}

func NewOptionStore(db *gorm.DB) *OptionStore {
	return &OptionStore{db: db}
}

func (s *OptionStore) GetOption(ctx context.Context, name string) (string, bool, error) {
	var o Option
	err := s.db.WithContext(ctx).Where("name = ?", name).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return o.Value, true, nil
}

func (s *OptionStore) SetOption(ctx context.Context, name, value string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Option{Name: name, Value: value}).Error
}
