package project

import (
	"context"

	"github.com/fraim-dev/contextd/internal/domain"
)

// Repository defines the storage contract for projects.
type Repository interface {
	Create(ctx context.Context, p domain.Project) error
	Get(ctx context.Context, slug string) (domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
	Delete(ctx context.Context, slug string) error
}
