// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// ProjectSummary is the subset of a project posting shown next to an
// application.
type ProjectSummary struct {
	ID        ProjectID  `json:"id" yaml:"id"`
	Title     string     `json:"title" yaml:"title"`
	Status    string     `json:"status,omitempty" yaml:"status,omitempty"`
	Budget    string     `json:"budget,omitempty" yaml:"budget,omitempty"`
	OwnerName string     `json:"owner_name,omitempty" yaml:"owner_name,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// RowState tells the UI whether a row's project details are available.
type RowState string

const (
	RowReady   RowState = "ready"
	RowLoading RowState = "loading"
	RowFailed  RowState = "failed"
)

// Row is one entry of the applications view.
type Row struct {
	ProjectID   ProjectID       `json:"project_id" yaml:"project_id"`
	Status      Status          `json:"status" yaml:"status"`
	StatusLabel string          `json:"status_label" yaml:"status_label"`
	AppliedAt   *time.Time      `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
	Source      Source          `json:"source" yaml:"source"`
	Project     *ProjectSummary `json:"project,omitempty" yaml:"project,omitempty"`
	State       RowState        `json:"state" yaml:"state"`

	// Error carries the backfill failure message when State is RowFailed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
