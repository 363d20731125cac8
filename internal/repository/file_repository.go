package repository

import (
	"context"
	"errors"
	"time"

	"filepulse/internal/domain/file"
	filepulse_errors "filepulse/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresFileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) FileRepository {
	return &PostgresFileRepository{db: db}
}

func (r *PostgresFileRepository) Create(ctx context.Context, rec *file.FileRecord) error {
	res := r.db.WithContext(ctx).Create(rec)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return filepulse_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresFileRepository) GetByID(ctx context.Context, id uuid.UUID) (file.FileRecord, error) {
	var rec file.FileRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return file.FileRecord{}, filepulse_errors.ErrNotFound
		}
		return file.FileRecord{}, err
	}
	return rec, nil
}

func (r *PostgresFileRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).
		Model(&file.FileRecord{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return filepulse_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresFileRepository) List(ctx context.Context) ([]file.FileRecord, error) {
	var recs []file.FileRecord
	err := r.db.WithContext(ctx).
		Omit("parsed").
		Order("created_at DESC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *PostgresFileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&file.FileRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return filepulse_errors.ErrNotFound
	}
	return nil
}
