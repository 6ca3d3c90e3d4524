package project

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/fraim-dev/contextd/internal/domain"
)

// projectToHash converts a domain Project into a flat map[string]string for HSET.
// The corpus version deliberately lives outside this hash, in its own counter key.
func projectToHash(p domain.Project) (map[string]string, error) {
	settings, err := json.Marshal(p.Settings())
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return map[string]string{
		"id":         p.ID().String(),
		"slug":       p.Slug(),
		"name":       p.Name(),
		"settings":   string(settings),
		"created_at": strconv.FormatInt(p.CreatedAt(), 10),
	}, nil
}

// projectFromHash converts a flat hash map back into a domain Project.
func projectFromHash(m map[string]string, corpusVersion int64) (domain.Project, error) {
	id, err := uuid.Parse(m["id"])
	if err != nil {
		return domain.Project{}, fmt.Errorf("parse project id %q: %w", m["id"], err)
	}

	var settings map[string]string
	if raw := m["settings"]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			return domain.Project{}, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return domain.Project{}, fmt.Errorf("parse created_at %q: %w", m["created_at"], err)
	}

	return domain.ReconstructProject(id, m["slug"], m["name"], settings, corpusVersion, createdAt), nil
}
