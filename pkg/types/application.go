// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the applytrack engine:
// project identifiers, application records from each source, the resolved
// canonical status, view rows, and configuration.
package types

import (
	"strconv"
	"strings"
	"time"
)

// ProjectID is the canonical project identifier. Every identifier entering
// the engine is normalized to a positive ProjectID before it is used as a
// map key or compared.
type ProjectID int64

// String returns the decimal form of the id.
func (id ProjectID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Valid reports whether id can be used as a key.
func (id ProjectID) Valid() bool { return id > 0 }

// Status is the lifecycle state of an application, always lowercase.
type Status string

const (
	StatusApplied      Status = "applied"
	StatusShortlisted  Status = "shortlisted"
	StatusInterviewing Status = "interviewing"
	StatusAccepted     Status = "accepted"
	StatusRejected     Status = "rejected"
)

// statusAliases maps legacy or shorthand spellings seen on the wire.
var statusAliases = map[string]Status{
	"pending":   StatusApplied,
	"shortlist": StatusShortlisted,
	"review":    StatusShortlisted,
	"in_review": StatusShortlisted,
	"interview": StatusInterviewing,
	"invited":   StatusInterviewing,
}

// ParseStatus normalizes s case-insensitively. The second return value is
// false when s names no known status.
func ParseStatus(s string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch st := Status(normalized); st {
	case StatusApplied, StatusShortlisted, StatusInterviewing, StatusAccepted, StatusRejected:
		return st, true
	}
	if st, ok := statusAliases[normalized]; ok {
		return st, true
	}
	return "", false
}

// Label returns the capitalized presentation form ("Shortlisted").
func (s Status) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// IsFinal reports whether no further transition is expected.
func (s Status) IsFinal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Source names where a canonical status came from, strongest first.
type Source string

const (
	SourceApplicationsList Source = "applications-list"
	SourceIDsIndex         Source = "ids-index"
	SourceOptimistic       Source = "optimistic"
)

// ApplicationRecord is a full application as returned by the
// applications-list endpoint. Records are never edited in place; a refetch
// replaces the whole list.
type ApplicationRecord struct {
	ProjectID ProjectID  `json:"project_id" yaml:"project_id"`
	Status    Status     `json:"status" yaml:"status"`
	AppliedAt *time.Time `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Notes     string     `json:"notes,omitempty" yaml:"notes,omitempty"`

	// SourceID is the server's own application id. Opaque to the engine.
	SourceID string `json:"source_id,omitempty" yaml:"source_id,omitempty"`
}

// IDStatusEntry is one row of the lighter applied-ids index.
type IDStatusEntry struct {
	ProjectID ProjectID `json:"project_id" yaml:"project_id"`
	Status    Status    `json:"status" yaml:"status"`
}

// OptimisticEntry is written locally on apply, before the server confirms.
type OptimisticEntry struct {
	ProjectID ProjectID `json:"project_id" yaml:"project_id"`
	Status    Status    `json:"status" yaml:"status"`
}

// CanonicalStatus is the resolved status for one project.
type CanonicalStatus struct {
	ProjectID ProjectID  `json:"project_id" yaml:"project_id"`
	Status    Status     `json:"status" yaml:"status"`
	AppliedAt *time.Time `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
	Source    Source     `json:"source" yaml:"source"`
}

// AppliedIDs is the payload of the applied-ids endpoint.
type AppliedIDs struct {
	Entries []IDStatusEntry
	UserID  string
}
