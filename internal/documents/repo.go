package documents

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/draftforge-backend/pkg/db/models"
	"github.com/angelmondragon/draftforge-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository performs single-row document operations. Lookups return nil, nil
// when nothing matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	FindByProjectAndType(ctx context.Context, projectID uuid.UUID, docType enums.DocumentType) (*models.Document, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Document, error)
	Transition(ctx context.Context, id uuid.UUID, from []enums.DocumentStatus, fields map[string]any) (bool, error)
	DeleteByProjectAndType(ctx context.Context, projectID uuid.UUID, docType enums.DocumentType) (int64, error)
	DeleteInStatus(ctx context.Context, id uuid.UUID, statuses []enums.DocumentStatus) (int64, error)
	ListStuck(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Document, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByProjectAndType(ctx context.Context, projectID uuid.UUID, docType enums.DocumentType) (*models.Document, error) {
	return r.first(r.db.WithContext(ctx).Where("project_id = ? AND type = ?", projectID, docType))
}

func (r *repository) first(query *gorm.DB) (*models.Document, error) {
	var doc models.Document
	if err := query.First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *repository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.Document, error) {
	var rows []models.Document
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Transition applies fields only while the row's status is one of from. It
// reports false when the guard did not match.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []enums.DocumentStatus, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) DeleteByProjectAndType(ctx context.Context, projectID uuid.UUID, docType enums.DocumentType) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("project_id = ? AND type = ?", projectID, docType).
		Delete(&models.Document{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteInStatus(ctx context.Context, id uuid.UUID, statuses []enums.DocumentStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status IN ?", id, statuses).
		Delete(&models.Document{})
	return res.RowsAffected, res.Error
}

// ListStuck returns in-flight documents untouched since updatedBefore, oldest first.
func (r *repository) ListStuck(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Document, error) {
	var rows []models.Document
	query := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []enums.DocumentStatus{enums.DocumentStatusPending, enums.DocumentStatusGenerating}, updatedBefore).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
