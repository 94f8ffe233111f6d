// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/applytrack/pkg/types"
)

// NoticeKind identifies a user-facing notification.
type NoticeKind string

const (
	NoticeApplyFailed    NoticeKind = "apply_failed"
	NoticeWithdrawFailed NoticeKind = "withdraw_failed"
)

// Notice reports a mutation the server rejected or never received.
type Notice struct {
	Kind      NoticeKind
	ProjectID types.ProjectID
	Err       error
	At        time.Time
}

func (n Notice) String() string {
	switch n.Kind {
	case NoticeApplyFailed:
		return "could not apply to project " + n.ProjectID.String() + ": " + n.Err.Error()
	case NoticeWithdrawFailed:
		return "could not withdraw from project " + n.ProjectID.String() + ": " + n.Err.Error()
	}
	return string(n.Kind)
}

// Notices delivers failure notifications. The channel is buffered and
// closed by Close; when the buffer is full new notices are logged and dropped.
func (e *Engine) Notices() <-chan Notice {
	return e.notices
}

func (e *Engine) report(kind NoticeKind, id types.ProjectID, err error) {
	n := Notice{Kind: kind, ProjectID: id, Err: err, At: e.now()}
	log := e.log.WithFields(logrus.Fields{"kind": kind, "project_id": id})
	log.WithError(err).Error("mutation failed")

	select {
	case e.notices <- n:
	default:
		log.Warn("notice buffer full, dropping notice")
	}
}
