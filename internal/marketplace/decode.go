// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package marketplace

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/pdiddy/applytrack/internal/identity"
	"github.com/pdiddy/applytrack/pkg/types"
)

// timeLayouts are tried in order for timestamp fields.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// first returns the first of keys present on obj with a non-null value.
func first(obj gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := obj.Get(k); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// projectRef picks the project reference off an application-shaped object.
// A bare "id" on such objects is the application's own id, so it is not
// consulted.
func projectRef(obj gjson.Result) gjson.Result {
	if !obj.IsObject() {
		return obj
	}
	return first(obj, "projectId", "project_id", "project")
}

func parseStatus(raw string, log logrus.FieldLogger, id types.ProjectID) types.Status {
	if st, ok := types.ParseStatus(raw); ok {
		return st
	}
	// A record exists, so the developer has applied even if the server uses
	// a status this client does not know yet.
	log.WithFields(logrus.Fields{"project_id": id, "status": raw}).Warn("unknown application status, treating as applied")
	return types.StatusApplied
}

func parseTime(v gjson.Result) *time.Time {
	switch v.Type {
	case gjson.String:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v.Str); err == nil {
				t = t.UTC()
				return &t
			}
		}
	case gjson.Number:
		// Epoch milliseconds.
		t := time.UnixMilli(v.Int()).UTC()
		return &t
	}
	return nil
}

func decodeAppliedIDs(doc gjson.Result, log logrus.FieldLogger) types.AppliedIDs {
	out := types.AppliedIDs{UserID: first(doc, "userId", "user_id").String()}
	dropped := 0
	first(doc, "projectIds", "project_ids").ForEach(func(_, item gjson.Result) bool {
		id, ok := identity.Normalize(item)
		if !ok {
			dropped++
			return true
		}
		status := types.StatusApplied
		if s := item.Get("status"); item.IsObject() && s.Exists() {
			status = parseStatus(s.String(), log, id)
		}
		out.Entries = append(out.Entries, types.IDStatusEntry{ProjectID: id, Status: status})
		return true
	})
	if dropped > 0 {
		log.WithField("dropped", dropped).Debug("applied ids with malformed project id")
	}
	return out
}

func decodeApplications(doc gjson.Result, log logrus.FieldLogger) []types.ApplicationRecord {
	var records []types.ApplicationRecord
	dropped := 0
	first(doc, "applications", "data").ForEach(func(_, item gjson.Result) bool {
		id, ok := identity.Normalize(projectRef(item))
		if !ok || !item.IsObject() {
			dropped++
			return true
		}
		records = append(records, types.ApplicationRecord{
			ProjectID: id,
			Status:    parseStatus(item.Get("status").String(), log, id),
			AppliedAt: parseTime(first(item, "appliedAt", "applied_at", "createdAt", "created_at")),
			UpdatedAt: parseTime(first(item, "updatedAt", "updated_at")),
			Notes:     first(item, "notes", "coverLetter", "cover_letter").String(),
			SourceID:  first(item, "id", "applicationId", "application_id").String(),
		})
		return true
	})
	if dropped > 0 {
		log.WithField("dropped", dropped).Debug("applications with malformed project id")
	}
	return records
}

func decodeProject(doc gjson.Result) (types.ProjectSummary, bool) {
	if p := doc.Get("project"); p.IsObject() {
		doc = p
	}
	id, ok := identity.Normalize(first(doc, "id", "projectId", "project_id"))
	if !ok {
		return types.ProjectSummary{}, false
	}
	owner := first(doc, "ownerName", "owner_name", "owner.name", "client.name")
	return types.ProjectSummary{
		ID:        id,
		Title:     first(doc, "title", "name").String(),
		Status:    doc.Get("status").String(),
		Budget:    doc.Get("budget").String(),
		OwnerName: owner.String(),
		UpdatedAt: parseTime(first(doc, "updatedAt", "updated_at")),
	}, true
}
