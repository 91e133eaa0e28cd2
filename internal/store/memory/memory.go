package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"dagocoffee/counter/internal/domain"
	"dagocoffee/counter/internal/store"
	"dagocoffee/counter/internal/xid"
)

type Store struct {
	mu        sync.RWMutex
	auditLogs []domain.AuditLog
	ids       map[string]struct{}
	capacity  int
}

// New keeps at most capacity entries, dropping the oldest first.
func New(capacity int) *Store {
	if capacity < 1 {
		capacity = 1000
	}
	return &Store{
		auditLogs: make([]domain.AuditLog, 0, 128),
		ids:       make(map[string]struct{}),
		capacity:  capacity,
	}
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if strings.TrimSpace(entry.Action) == "" {
		return store.ErrInvalidEntry
	}
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ids[entry.ID]; exists {
		return store.ErrDuplicate
	}
	s.auditLogs = append(s.auditLogs, entry)
	s.ids[entry.ID] = struct{}{}
	if overflow := len(s.auditLogs) - s.capacity; overflow > 0 {
		for _, dropped := range s.auditLogs[:overflow] {
			delete(s.ids, dropped.ID)
		}
		s.auditLogs = slices.Clone(s.auditLogs[overflow:])
	}
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, terminalID string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]domain.AuditLog, 0, min(limit, len(s.auditLogs)))
	for i := len(s.auditLogs) - 1; i >= 0 && len(logs) < limit; i-- {
		entry := s.auditLogs[i]
		if terminalID != "" && entry.TerminalID != terminalID {
			continue
		}
		logs = append(logs, entry)
	}
	slices.SortStableFunc(logs, func(a, b domain.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return logs, nil
}
