// Package memory implements an in-process commerce backend. It is the
// server of record for tests and the demo deployment: every mutation
// recomputes authoritative totals, including tax, the way a real platform
// would.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"storefront/pkg/catalog"
	"storefront/pkg/commerce"
)

// VariantResolver supplies merchandise data for AddLine. catalog.Memory
// satisfies it.
type VariantResolver interface {
	Variant(ctx context.Context, id string) (commerce.Merchandise, error)
}

// Backend is an in-memory commerce.Backend.
type Backend struct {
	mu       sync.Mutex
	carts    map[string]commerce.Cart
	variants VariantResolver

	taxRate      float64
	checkoutBase string
	now          func() time.Time
}

// Option configures the backend.
type Option func(*Backend)

// WithTaxRate sets the flat tax rate applied to the subtotal. Default 0.
func WithTaxRate(rate float64) Option {
	return func(b *Backend) { b.taxRate = rate }
}

// WithCheckoutBase sets the base URL checkout redirects point at.
func WithCheckoutBase(base string) Option {
	return func(b *Backend) { b.checkoutBase = strings.TrimRight(base, "/") }
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// New builds the backend over a variant resolver.
func New(variants VariantResolver, opts ...Option) *Backend {
	b := &Backend{
		carts:        make(map[string]commerce.Cart),
		variants:     variants,
		checkoutBase: "https://checkout.example.com",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CreateCart reserves a new empty cart.
func (b *Backend) CreateCart(ctx context.Context) (string, error) {
	id := uuid.NewString()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.carts[id] = commerce.Cart{ID: id, Lines: []commerce.Line{}, UpdatedAt: b.now()}
	return id, nil
}

// FetchCart returns the authoritative snapshot.
func (b *Backend) FetchCart(ctx context.Context, cartID string) (commerce.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.carts[cartID]
	if !ok {
		return commerce.Cart{}, commerce.ErrCartNotFound
	}
	return c.Clone(), nil
}

// AddLine adds quantity units of the variant, merging into an existing line
// for the same variant.
func (b *Backend) AddLine(ctx context.Context, cartID, merchandiseID string, quantity int) (commerce.Cart, error) {
	if quantity < 1 {
		quantity = 1
	}
	merch, err := b.variants.Variant(ctx, merchandiseID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			err = fmt.Errorf("%w: %s", commerce.ErrVariantNotFound, merchandiseID)
		}
		return commerce.Cart{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.carts[cartID]
	if !ok {
		return commerce.Cart{}, commerce.ErrCartNotFound
	}
	c = c.Clone()
	if line := c.LineByMerchandise(merchandiseID); line != nil {
		line.Quantity += quantity
	} else {
		c.Lines = append(c.Lines, commerce.Line{
			ID:          uuid.NewString(),
			Merchandise: merch,
			Quantity:    quantity,
		})
	}
	b.settle(&c)
	b.carts[cartID] = c
	return c.Clone(), nil
}

// UpdateLine sets the absolute quantity of a line; <= 0 removes it.
func (b *Backend) UpdateLine(ctx context.Context, cartID, lineID string, quantity int) (commerce.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.carts[cartID]
	if !ok {
		return commerce.Cart{}, commerce.ErrCartNotFound
	}
	c = c.Clone()
	line := c.Line(lineID)
	if line == nil {
		return commerce.Cart{}, commerce.ErrLineNotFound
	}
	if quantity <= 0 {
		deleteLine(&c, lineID)
	} else {
		line.Quantity = quantity
	}
	b.settle(&c)
	b.carts[cartID] = c
	return c.Clone(), nil
}

// RemoveLine deletes a line.
func (b *Backend) RemoveLine(ctx context.Context, cartID, lineID string) (commerce.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.carts[cartID]
	if !ok {
		return commerce.Cart{}, commerce.ErrCartNotFound
	}
	c = c.Clone()
	if c.Line(lineID) == nil {
		return commerce.Cart{}, commerce.ErrLineNotFound
	}
	deleteLine(&c, lineID)
	b.settle(&c)
	b.carts[cartID] = c
	return c.Clone(), nil
}

// CheckoutURL issues the redirect target for the cart.
func (b *Backend) CheckoutURL(ctx context.Context, cartID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.carts[cartID]; !ok {
		return "", commerce.ErrCartNotFound
	}
	return b.checkoutBase + "/checkout/" + cartID, nil
}

// settle recomputes the authoritative cost breakdown and timestamps the
// snapshot.
func (b *Backend) settle(c *commerce.Cart) {
	var subtotal commerce.Money
	total := 0
	for i := range c.Lines {
		line := &c.Lines[i]
		line.Cost = line.Merchandise.Price.Mul(line.Quantity)
		subtotal = subtotal.Add(line.Cost)
		total += line.Quantity
	}
	tax := commerce.Money{
		Units:    int64(float64(subtotal.Units)*b.taxRate + 0.5),
		Currency: subtotal.Currency,
	}
	c.Cost = commerce.Cost{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
	c.TotalQuantity = total
	c.UpdatedAt = b.now()
	if c.Lines == nil {
		c.Lines = []commerce.Line{}
	}
}

func deleteLine(c *commerce.Cart, lineID string) {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}
