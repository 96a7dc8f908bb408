package job

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
	List(ctx context.Context, limit, offset int) ([]*Job, error)
	Count(ctx context.Context) (int, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Job, error)
	ClaimNextCreated(ctx context.Context) (*Job, error)
	Complete(ctx context.Context, id uuid.UUID, status Status, result JSONMap) error
}

type UpdateSetter func(*Job) error
