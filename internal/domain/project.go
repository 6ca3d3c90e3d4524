package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Project is a tenant: an isolated corpus plus its settings (immutable value object).
// The corpus version is a per-tenant monotonic counter bumped exactly once per
// committed document mutation. It is owned by the store (atomic increment-and-fetch)
// and only carried here as a snapshot.
type Project struct {
	id            uuid.UUID
	slug          string
	name          string
	settings      map[string]string
	corpusVersion int64
	createdAt     int64
}

// NewProject validates and creates a Project with corpus version 1.
// Slug: ^[a-z0-9][a-z0-9_-]*$, 1-100 chars.
func NewProject(slug, name string, settings map[string]string) (Project, error) {
	if slug == "" {
		return Project{}, fmt.Errorf("project slug is required")
	}
	if len(slug) > 100 {
		return Project{}, fmt.Errorf("project slug too long (max 100)")
	}
	if !slugRegex.MatchString(slug) {
		return Project{}, fmt.Errorf("project slug must be lowercase alphanumeric with underscores and hyphens")
	}
	if name == "" {
		name = slug
	}

	return Project{
		id:            uuid.New(),
		slug:          slug,
		name:          name,
		settings:      cloneStringMap(settings),
		corpusVersion: 1,
		createdAt:     time.Now().UnixMilli(),
	}, nil
}

// ReconstructProject creates a Project without validation (storage hydration).
func ReconstructProject(
	id uuid.UUID, slug, name string, settings map[string]string,
	corpusVersion, createdAt int64,
) Project {
	return Project{
		id: id, slug: slug, name: name, settings: settings,
		corpusVersion: corpusVersion, createdAt: createdAt,
	}
}

// ID returns the project identifier.
func (p *Project) ID() uuid.UUID { return p.id }

// Slug returns the unique tenant slug.
func (p *Project) Slug() string { return p.slug }

// Name returns the display name.
func (p *Project) Name() string { return p.name }

// Settings returns the tenant-scoped settings.
func (p *Project) Settings() map[string]string { return p.settings }

// CorpusVersion returns the corpus version snapshot taken when the project was read.
func (p *Project) CorpusVersion() int64 { return p.corpusVersion }

// CreatedAt returns the creation time in unix milliseconds.
func (p *Project) CreatedAt() int64 { return p.createdAt }

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
