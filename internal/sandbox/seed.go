// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/applytrack/pkg/types"
)

// Seed is the YAML document loaded by LoadSeed.
type Seed struct {
	Projects     []SeedProject     `yaml:"projects"`
	Applications []SeedApplication `yaml:"applications"`
}

// SeedProject describes one project.
type SeedProject struct {
	ID     int64  `yaml:"id"`
	Title  string `yaml:"title"`
	Status string `yaml:"status"`
	Budget string `yaml:"budget"`
	Owner  string `yaml:"owner"`
}

// SeedApplication describes one existing application.
type SeedApplication struct {
	ProjectID int64  `yaml:"project_id"`
	UserID    int64  `yaml:"user_id"`
	Status    string `yaml:"status"`
	Notes     string `yaml:"notes"`
}

// LoadSeed reads a seed file and applies it to the store. Existing projects
// are updated; applications that already exist keep their row and only take
// the seeded status.
func (s *Store) LoadSeed(ctx context.Context, path string) (projects, applications int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("reading seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, 0, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	return s.ApplySeed(ctx, seed)
}

// ApplySeed writes seed to the store.
func (s *Store) ApplySeed(ctx context.Context, seed Seed) (projects, applications int, err error) {
	now := time.Now().UTC()
	for _, p := range seed.Projects {
		summary := types.ProjectSummary{
			ID:        types.ProjectID(p.ID),
			Title:     p.Title,
			Status:    p.Status,
			Budget:    p.Budget,
			OwnerName: p.Owner,
			UpdatedAt: &now,
		}
		if err := s.UpsertProject(ctx, summary); err != nil {
			return projects, applications, err
		}
		projects++
	}

	for _, a := range seed.Applications {
		id := types.ProjectID(a.ProjectID)
		if _, err := s.Apply(ctx, a.UserID, id, a.Notes); err != nil && !errors.Is(err, ErrConflict) {
			return projects, applications, fmt.Errorf("seeding application to project %d: %w", a.ProjectID, err)
		}
		if a.Status != "" {
			status, ok := types.ParseStatus(a.Status)
			if !ok {
				return projects, applications, fmt.Errorf("seeding application to project %d: unknown status %q", a.ProjectID, a.Status)
			}
			if err := s.SetStatus(ctx, a.UserID, id, status); err != nil {
				return projects, applications, err
			}
		}
		applications++
	}
	return projects, applications, nil
}
