// Package commerce defines the cart data model shared by the storefront and
// the commerce platform backends.
package commerce

import (
	"context"
	"errors"
	"time"
)

// SelectedOption is a single variant option choice, e.g. Size=M.
type SelectedOption struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DefaultOptionValue is the option value single-variant products carry.
// Display layers suppress it.
const DefaultOptionValue = "Default Title"

// Image references a product image.
type Image struct {
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
}

// Merchandise is a purchasable product variant. It is read-only reference
// data owned by the catalog; cart lines reference it, they do not own it.
type Merchandise struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	ProductID       string           `json:"productId"`
	ProductTitle    string           `json:"productTitle"`
	ProductHandle   string           `json:"productHandle"`
	Price           Money            `json:"price"`
	SelectedOptions []SelectedOption `json:"selectedOptions,omitempty"`
	Image           Image            `json:"image"`
}

// Line is one cart line: a merchandise reference plus a quantity and the
// resulting line cost. Quantity is always >= 1 in a published cart; a
// quantity reduced to zero removes the line entirely.
type Line struct {
	ID          string      `json:"id"`
	Merchandise Merchandise `json:"merchandise"`
	Quantity    int         `json:"quantity"`
	Cost        Money       `json:"cost"`
}

// Cost is the cart-level cost breakdown. The backend is the only party that
// computes tax; optimistic predictions carry the last known tax forward.
type Cost struct {
	Subtotal Money `json:"subtotalAmount"`
	Tax      Money `json:"totalTaxAmount"`
	Total    Money `json:"totalAmount"`
}

// Cart is a complete snapshot of the cart at a point in time. Snapshots are
// values: once published they are never mutated in place.
type Cart struct {
	ID            string    `json:"id"`
	Lines         []Line    `json:"lines"`
	Cost          Cost      `json:"cost"`
	TotalQuantity int       `json:"totalQuantity"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// Line returns the line with the given id, or nil.
func (c *Cart) Line(id string) *Line {
	for i := range c.Lines {
		if c.Lines[i].ID == id {
			return &c.Lines[i]
		}
	}
	return nil
}

// LineByMerchandise returns the line holding the given variant, or nil.
func (c *Cart) LineByMerchandise(merchandiseID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].Merchandise.ID == merchandiseID {
			return &c.Lines[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the snapshot. Lines are copied so the result
// can be modified without affecting the original.
func (c Cart) Clone() Cart {
	out := c
	out.Lines = make([]Line, len(c.Lines))
	copy(out.Lines, c.Lines)
	for i := range out.Lines {
		opts := out.Lines[i].Merchandise.SelectedOptions
		if len(opts) > 0 {
			out.Lines[i].Merchandise.SelectedOptions = append([]SelectedOption(nil), opts...)
		}
	}
	return out
}

// Errors returned by Backend implementations.
var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrVariantNotFound = errors.New("merchandise variant not found")
)

// Backend is the commerce platform contract the cart engine consumes. The
// platform is the server of record: every mutation returns the authoritative
// snapshot it produced, with totals (including tax) recomputed server-side.
type Backend interface {
	// CreateCart reserves a new empty cart and returns its identifier.
	CreateCart(ctx context.Context) (string, error)

	// FetchCart returns the authoritative snapshot for the given cart, or
	// ErrCartNotFound.
	FetchCart(ctx context.Context, cartID string) (Cart, error)

	// AddLine adds quantity units of the given variant, merging into an
	// existing line for the same variant.
	AddLine(ctx context.Context, cartID, merchandiseID string, quantity int) (Cart, error)

	// UpdateLine sets the absolute quantity of a line. Quantity <= 0
	// removes the line.
	UpdateLine(ctx context.Context, cartID, lineID string, quantity int) (Cart, error)

	// RemoveLine deletes a line.
	RemoveLine(ctx context.Context, cartID, lineID string) (Cart, error)

	// CheckoutURL returns the redirect target that completes the purchase
	// of the given cart.
	CheckoutURL(ctx context.Context, cartID string) (string, error)
}
