// Package vendors supplies candidate vendor offers for an assignment context.
// The provider is a swappable collaborator: the engine only sees the
// interface.
package vendors

import (
	"context"
	"sync"

	"github.com/procureline/engine/internal/models"
)

// Query identifies the offers relevant to one purchase-request line.
type Query struct {
	ProductID  string
	CategoryID string
	Location   string
	Quantity   int
}

// Provider returns the vendor offers for a query. Implementations must treat
// the result as read-only input for the caller.
type Provider interface {
	Options(ctx context.Context, q Query) ([]models.VendorOffer, error)
}

// MemoryProvider serves offers from in-memory fixtures keyed by product id.
type MemoryProvider struct {
	mu     sync.RWMutex
	offers map[string][]models.VendorOffer
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{offers: map[string][]models.VendorOffer{}}
}

// Seed registers the offers for a product, replacing any existing set.
func (m *MemoryProvider) Seed(productID string, offers []models.VendorOffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[productID] = offers
}

func (m *MemoryProvider) Options(ctx context.Context, q Query) ([]models.VendorOffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	offers := m.offers[q.ProductID]
	out := make([]models.VendorOffer, len(offers))
	copy(out, offers)
	return out, nil
}
