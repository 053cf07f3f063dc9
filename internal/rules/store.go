package rules

import (
	"context"
	"sync"

	"github.com/procureline/engine/internal/models"
)

// Store supplies the active business rule set for an assignment call.
type Store interface {
	ActiveRules(ctx context.Context) ([]models.BusinessRule, error)
}

// MemoryStore is an in-memory rule store for dev and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	rules []models.BusinessRule
}

func NewMemoryStore(rules []models.BusinessRule) *MemoryStore {
	return &MemoryStore{rules: rules}
}

func (m *MemoryStore) ActiveRules(ctx context.Context) ([]models.BusinessRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.BusinessRule, 0, len(m.rules))
	for _, r := range m.rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

// Replace swaps the rule set. Callers must not mutate rules after handing
// them over.
func (m *MemoryStore) Replace(rules []models.BusinessRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = rules
}
