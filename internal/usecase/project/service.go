// Package project handles tenant lifecycle.
package project

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fraim-dev/contextd/internal/domain"
	"github.com/fraim-dev/contextd/internal/logger"
)

// Service handles project CRUD.
type Service struct {
	repo Repository
}

// New creates a project service.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and provisions a new tenant with its search index.
func (s *Service) Create(
	ctx context.Context, slug, name string, settings map[string]string,
) (domain.Project, error) {
	p, err := domain.NewProject(slug, name, settings)
	if err != nil {
		return domain.Project{}, fmt.Errorf("%w: %s", domain.ErrInvalidRequest, err)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}

	logger.FromContext(ctx).Info("Project created", zap.String("slug", slug))
	return p, nil
}

// Get returns a project by slug.
func (s *Service) Get(ctx context.Context, slug string) (domain.Project, error) {
	p, err := s.repo.Get(ctx, slug)
	if err != nil {
		return domain.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// List returns all projects.
func (s *Service) List(ctx context.Context) ([]domain.Project, error) {
	projects, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Delete removes a tenant, its corpus, and its search index.
func (s *Service) Delete(ctx context.Context, slug string) error {
	if err := s.repo.Delete(ctx, slug); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	logger.FromContext(ctx).Info("Project deleted", zap.String("slug", slug))
	return nil
}
