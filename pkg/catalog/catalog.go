// Package catalog exposes the narrow read-only product contract the
// storefront consumes: variant lookup for add-to-cart and a product list.
// Search, filtering and SEO surfaces belong to the commerce platform.
package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"

	"storefront/pkg/commerce"
)

// ErrNotFound indicates the requested product or variant does not exist.
var ErrNotFound = errors.New("catalog: not found")

// Product groups the purchasable variants of one catalog entry.
type Product struct {
	ID       string                `json:"id"`
	Handle   string                `json:"handle"`
	Title    string                `json:"title"`
	Variants []commerce.Merchandise `json:"variants"`
}

// Service defines catalog reads.
type Service interface {
	// Variant resolves a merchandise variant by id.
	Variant(ctx context.Context, id string) (commerce.Merchandise, error)

	// Product resolves a product by handle.
	Product(ctx context.Context, handle string) (Product, error)

	// List returns all products ordered by title.
	List(ctx context.Context) ([]Product, error)
}

// Memory is an in-memory catalog, seeded at construction. It backs tests
// and the demo deployment.
type Memory struct {
	mu       sync.RWMutex
	byHandle map[string]Product
	variants map[string]commerce.Merchandise
}

// NewMemory builds a catalog over the given products.
func NewMemory(products ...Product) *Memory {
	m := &Memory{
		byHandle: make(map[string]Product, len(products)),
		variants: make(map[string]commerce.Merchandise),
	}
	for _, p := range products {
		m.byHandle[p.Handle] = p
		for _, v := range p.Variants {
			m.variants[v.ID] = v
		}
	}
	return m
}

// Variant resolves a merchandise variant by id.
func (m *Memory) Variant(ctx context.Context, id string) (commerce.Merchandise, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.variants[id]
	if !ok {
		return commerce.Merchandise{}, ErrNotFound
	}
	return v, nil
}

// Product resolves a product by handle.
func (m *Memory) Product(ctx context.Context, handle string) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byHandle[handle]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// List returns all products ordered by title.
func (m *Memory) List(ctx context.Context) ([]Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Product, 0, len(m.byHandle))
	for _, p := range m.byHandle {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}
