// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package snapshot exports the resolved application state as YAML or JSON
// so it can be diffed, archived, or fed to other tools.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/applytrack/internal/session"
	"github.com/pdiddy/applytrack/pkg/types"
)

// Supported formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Document is the exported form of one engine snapshot.
type Document struct {
	GeneratedAt  time.Time             `json:"generated_at" yaml:"generated_at"`
	UserID       string                `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	AppliedCount int                   `json:"applied_count" yaml:"applied_count"`
	ByStatus     map[string]int        `json:"by_status" yaml:"by_status"`
	Pending      int                   `json:"pending" yaml:"pending"`
	Applications []Entry               `json:"applications" yaml:"applications"`
	Sources      []session.SourceState `json:"sources" yaml:"sources"`
}

// Entry is one application with its project summary when known.
type Entry struct {
	ProjectID int64      `json:"project_id" yaml:"project_id"`
	Status    string     `json:"status" yaml:"status"`
	Source    string     `json:"source" yaml:"source"`
	AppliedAt *time.Time `json:"applied_at,omitempty" yaml:"applied_at,omitempty"`
	Title     string     `json:"title,omitempty" yaml:"title,omitempty"`
	Owner     string     `json:"owner,omitempty" yaml:"owner,omitempty"`
	Budget    string     `json:"budget,omitempty" yaml:"budget,omitempty"`
	Final     bool       `json:"final" yaml:"final"`
	State     string     `json:"state" yaml:"state"`
	Error     string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// Build assembles a document from a snapshot and the applications rows. Row
// order is preserved.
func Build(snap session.Snapshot, rows []types.Row, now time.Time) Document {
	doc := Document{
		GeneratedAt:  now.UTC(),
		UserID:       snap.UserID,
		AppliedCount: snap.AppliedCount,
		ByStatus:     make(map[string]int, len(snap.ByStatus)),
		Pending:      snap.Pending,
		Applications: make([]Entry, 0, len(rows)),
		Sources:      snap.Sources,
	}
	for st, n := range snap.ByStatus {
		doc.ByStatus[string(st)] = n
	}
	for _, r := range rows {
		e := Entry{
			ProjectID: int64(r.ProjectID),
			Status:    string(r.Status),
			Source:    string(r.Source),
			AppliedAt: r.AppliedAt,
			Final:     r.Status.IsFinal(),
			State:     string(r.State),
			Error:     r.Error,
		}
		if r.Project != nil {
			e.Title = r.Project.Title
			e.Owner = r.Project.OwnerName
			e.Budget = r.Project.Budget
		}
		doc.Applications = append(doc.Applications, e)
	}
	return doc
}

// Write encodes doc to w in format.
func Write(w io.Writer, doc Document, format string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case FormatYAML, "yml", "":
		data, err = yaml.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
	case FormatJSON:
		data, err = json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		data = append(data, '\n')
	default:
		return fmt.Errorf("unknown export format %q (want yaml or json)", format)
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes doc to path, choosing the format from the extension when
// format is empty.
func WriteFile(path string, doc Document, format string) error {
	if format == "" {
		format = FormatFromPath(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	if err := Write(f, doc, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads a document written by WriteFile.
func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading export: %w", err)
	}
	var doc Document
	if FormatFromPath(path) == FormatJSON {
		err = json.Unmarshal(data, &doc)
	} else {
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return Document{}, fmt.Errorf("parsing export %s: %w", path, err)
	}
	return doc, nil
}

// FormatFromPath returns FormatJSON for .json files and FormatYAML otherwise.
func FormatFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}
