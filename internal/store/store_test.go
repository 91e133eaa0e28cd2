package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagocoffee/counter/internal/domain"
	"dagocoffee/counter/internal/store"
	"dagocoffee/counter/internal/store/memory"
)

type failingRepo struct{}

func (failingRepo) CreateAuditLog(context.Context, domain.AuditLog) error {
	return errors.New("disk full")
}

func (failingRepo) ListAuditLogs(context.Context, string, int) ([]domain.AuditLog, error) {
	return nil, nil
}

func TestLogAuditFillsIDAndTimestamp(t *testing.T) {
	repo := memory.New(10)
	store.LogAudit(context.Background(), repo, nil, domain.AuditLog{TerminalID: "t1", Action: domain.AuditGateDenied})

	logs, err := repo.ListAuditLogs(context.Background(), "t1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.NotEmpty(t, logs[0].ID)
	assert.False(t, logs[0].CreatedAt.IsZero())
}

func TestLogAuditWarnsAndContinues(t *testing.T) {
	logger, hook := test.NewNullLogger()
	store.LogAudit(context.Background(), failingRepo{}, logger, domain.AuditLog{Action: domain.AuditSupplierPaid, EntityType: domain.AuditEntitySupplier, EntityID: "SUP-1"})

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "supplier/SUP-1", hook.LastEntry().Data["entity"])

	store.LogAudit(context.Background(), nil, logger, domain.AuditLog{Action: domain.AuditSupplierPaid})
	assert.Len(t, hook.AllEntries(), 1)
}
