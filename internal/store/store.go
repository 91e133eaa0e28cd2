package store

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"dagocoffee/counter/internal/domain"
	"dagocoffee/counter/internal/xid"
)

var (
	ErrInvalidEntry = errors.New("invalid audit entry")
	ErrDuplicate    = errors.New("duplicate audit entry")
)

// Repository keeps the terminal's local journal: checkout outcomes
// (including partially applied ones), finance submissions and gate denials.
type Repository interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	// ListAuditLogs returns newest first. An empty terminalID lists every terminal.
	ListAuditLogs(ctx context.Context, terminalID string, limit int) ([]domain.AuditLog, error)
}

// LogAudit writes entry and only warns on failure. A nil repo is ignored.
func LogAudit(ctx context.Context, repo Repository, logger logrus.FieldLogger, entry domain.AuditLog) {
	if repo == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := repo.CreateAuditLog(ctx, entry); err != nil && logger != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"action": entry.Action,
			"entity": entry.EntityType + "/" + entry.EntityID,
		}).Warn("failed to write audit log")
	}
}
