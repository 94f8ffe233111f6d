// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/applytrack/pkg/types"
)

// Apply marks id as applied immediately and submits the application in the
// background. It is a no-op when id is already in the applied set.
func (e *Engine) Apply(id types.ProjectID) {
	e.ApplyWithNotes(id, "")
}

// ApplyWithNotes is Apply with a cover note sent to the server.
//
// The optimistic entry is not rolled back when the submit fails: the
// developer sees a notice while the project stays marked until the next
// refresh from either server source drops it.
func (e *Engine) ApplyWithNotes(id types.ProjectID, notes string) {
	log := e.log.WithFields(logrus.Fields{"op": "apply", "project_id": id})
	if !id.Valid() {
		log.Warn("ignoring apply for invalid project id")
		return
	}

	e.mu.Lock()
	if e.canonical.Has(id) {
		e.mu.Unlock()
		log.Debug("already applied")
		return
	}
	e.overlay = append(e.overlay, types.OptimisticEntry{ProjectID: id, Status: types.StatusApplied})
	e.recomputeLocked()
	e.mu.Unlock()
	e.notify()

	e.goAsync(func(ctx context.Context) {
		err := e.market.SubmitApplication(ctx, id, notes)
		e.metrics.ObserveMutation("apply", err)
		if err != nil {
			e.report(NoticeApplyFailed, id, err)
			return
		}
		log.Info("application submitted")

		e.mu.Lock()
		if e.count.loaded {
			e.count.value++
		}
		e.mu.Unlock()
		e.notify()
		e.Refresh()
	})
}

// Withdraw removes id from every local store and withdraws the application
// in the background. Responses from fetches already in flight are stored
// without the withdrawn project so they cannot bring it back.
//
// A failed withdraw is reported but not rolled back; the next refresh shows
// whatever the server still holds.
func (e *Engine) Withdraw(id types.ProjectID) {
	log := e.log.WithFields(logrus.Fields{"op": "withdraw", "project_id": id})
	if !id.Valid() {
		log.Warn("ignoring withdraw for invalid project id")
		return
	}

	e.mu.Lock()
	wasApplied := e.canonical.Has(id)
	e.overlay = removeOverlay(e.overlay, id)
	e.apps.value = removeRecords(e.apps.value, id)
	e.ids.value.Entries = removeEntries(e.ids.value.Entries, id)
	e.apps.forget(id)
	e.ids.forget(id)
	e.recomputeLocked()
	e.mu.Unlock()
	e.notify()

	e.goAsync(func(ctx context.Context) {
		err := e.market.WithdrawApplication(ctx, id)
		e.metrics.ObserveMutation("withdraw", err)
		if err != nil {
			e.report(NoticeWithdrawFailed, id, err)
			return
		}
		log.Info("application withdrawn")

		e.mu.Lock()
		if wasApplied && e.count.loaded && e.count.value > 0 {
			e.count.value--
		}
		e.mu.Unlock()
		e.notify()
		e.Refresh()
	})
}

// The remove helpers build new slices so values handed out earlier are
// never modified.

func removeOverlay(in []types.OptimisticEntry, id types.ProjectID) []types.OptimisticEntry {
	out := make([]types.OptimisticEntry, 0, len(in))
	for _, o := range in {
		if o.ProjectID != id {
			out = append(out, o)
		}
	}
	return out
}

func removeRecords(in []types.ApplicationRecord, id types.ProjectID) []types.ApplicationRecord {
	out := make([]types.ApplicationRecord, 0, len(in))
	for _, r := range in {
		if r.ProjectID != id {
			out = append(out, r)
		}
	}
	return out
}

func removeEntries(in []types.IDStatusEntry, id types.ProjectID) []types.IDStatusEntry {
	out := make([]types.IDStatusEntry, 0, len(in))
	for _, en := range in {
		if en.ProjectID != id {
			out = append(out, en)
		}
	}
	return out
}
