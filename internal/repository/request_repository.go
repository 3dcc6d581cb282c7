package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/procflow/internal/models"
)

// RequestRepository provides persistence access for purchase requests.
type RequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository constructs a repository using the provided gorm DB.
func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create persists the request instance.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(request).Error)
}

// Update persists the modified request.
func (r *RequestRepository) Update(ctx context.Context, request *models.Request) error {
	return errors.WithStack(r.db.WithContext(ctx).Save(request).Error)
}

// FindByID returns the request by id.
func (r *RequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return &request, nil
}

// FindByNumber returns the request by its sequential number.
func (r *RequestRepository) FindByNumber(ctx context.Context, number int) (*models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).First(&request, "request_number = ?", number).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return &request, nil
}

// List returns requests ordered by number descending.
func (r *RequestRepository) List(ctx context.Context, limit int) ([]models.Request, error) {
	if limit <= 0 {
		limit = 50
	}
	var requests []models.Request
	err := r.db.WithContext(ctx).Order("request_number desc").Limit(limit).Find(&requests).Error
	return requests, errors.WithStack(err)
}

// AllRequests returns the whole population, oldest first. It satisfies
// the metrics aggregator's RequestSource.
func (r *RequestRepository) AllRequests(ctx context.Context) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.WithContext(ctx).Order("request_number asc").Find(&requests).Error
	return requests, errors.WithStack(err)
}

// ListUnfinished returns requests that have not reached a terminal stage,
// the set the SLA monitor scans.
func (r *RequestRepository) ListUnfinished(ctx context.Context) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.WithContext(ctx).
		Where("stage NOT IN ?", []models.Stage{models.StageRejected, models.StageClosed}).
		Order("request_number asc").
		Find(&requests).Error
	return requests, errors.WithStack(err)
}

// NextRequestNumber allocates the next value of the monotonic request
// sequence. Call it inside the same transaction that creates the request.
func (r *RequestRepository) NextRequestNumber(ctx context.Context) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Select("COALESCE(MAX(request_number), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return max + 1, nil
}
