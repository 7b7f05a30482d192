// Package postgres implements the commerce server of record in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/pkg/catalog"
	"storefront/pkg/commerce"
)

// Schema the backend expects. The caller applies it, the same way the
// service entry point creates its tables at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS carts (
	id TEXT PRIMARY KEY,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS cart_lines (
	id TEXT PRIMARY KEY,
	cart_id TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
	merchandise_id TEXT NOT NULL,
	merchandise JSONB NOT NULL,
	quantity INT NOT NULL,
	position SERIAL
);
CREATE UNIQUE INDEX IF NOT EXISTS cart_lines_cart_merch ON cart_lines (cart_id, merchandise_id);
`

// VariantResolver supplies merchandise data for AddLine.
type VariantResolver interface {
	Variant(ctx context.Context, id string) (commerce.Merchandise, error)
}

// Backend persists carts in PostgreSQL.
type Backend struct {
	db       *sql.DB
	variants VariantResolver

	taxRate      float64
	checkoutBase string
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

// New builds a PostgreSQL-backed commerce backend.
func New(db *sql.DB, variants VariantResolver, opts ...Option) *Backend {
	b := &Backend{
		db:           db,
		variants:     variants,
		checkoutBase: "https://checkout.example.com",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CreateCart reserves a new empty cart.
func (b *Backend) CreateCart(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := b.db.ExecContext(ctx,
		"INSERT INTO carts (id, updated_at) VALUES ($1, $2)", id, time.Now())
	if err != nil {
		return "", fmt.Errorf("create cart: %w", err)
	}
	return id, nil
}

// FetchCart loads the cart and its lines and computes the authoritative
// cost breakdown.
func (b *Backend) FetchCart(ctx context.Context, cartID string) (commerce.Cart, error) {
	return b.load(ctx, b.db, cartID)
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
	raw, err := json.Marshal(merch)
	if err != nil {
		return commerce.Cart{}, err
	}

	return b.mutate(ctx, cartID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE cart_lines SET quantity = quantity + $3 WHERE cart_id = $1 AND merchandise_id = $2",
			cartID, merchandiseID, quantity)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO cart_lines (id, cart_id, merchandise_id, merchandise, quantity) VALUES ($1, $2, $3, $4, $5)",
			uuid.NewString(), cartID, merchandiseID, raw, quantity)
		return err
	})
}

// UpdateLine sets the absolute quantity of a line; <= 0 removes it.
func (b *Backend) UpdateLine(ctx context.Context, cartID, lineID string, quantity int) (commerce.Cart, error) {
	return b.mutate(ctx, cartID, func(tx *sql.Tx) error {
		var (
			query string
			args  []any
		)
		if quantity <= 0 {
			query = "DELETE FROM cart_lines WHERE cart_id = $1 AND id = $2"
			args = []any{cartID, lineID}
		} else {
			query = "UPDATE cart_lines SET quantity = $3 WHERE cart_id = $1 AND id = $2"
			args = []any{cartID, lineID, quantity}
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return commerce.ErrLineNotFound
		}
		return nil
	})
}

// RemoveLine deletes a line.
func (b *Backend) RemoveLine(ctx context.Context, cartID, lineID string) (commerce.Cart, error) {
	return b.UpdateLine(ctx, cartID, lineID, 0)
}

// CheckoutURL issues the redirect target for the cart.
func (b *Backend) CheckoutURL(ctx context.Context, cartID string) (string, error) {
	var exists bool
	err := b.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM carts WHERE id = $1)", cartID).Scan(&exists)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", commerce.ErrCartNotFound
	}
	return b.checkoutBase + "/checkout/" + cartID, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mutate runs fn inside a transaction guarded by the cart row, touches the
// cart timestamp and returns the fresh snapshot.
func (b *Backend) mutate(ctx context.Context, cartID string, fn func(tx *sql.Tx) error) (commerce.Cart, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return commerce.Cart{}, err
	}
	defer tx.Rollback()

	var locked string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM carts WHERE id = $1 FOR UPDATE", cartID).Scan(&locked)
	if err == sql.ErrNoRows {
		return commerce.Cart{}, commerce.ErrCartNotFound
	}
	if err != nil {
		return commerce.Cart{}, err
	}
	if err := fn(tx); err != nil {
		return commerce.Cart{}, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE carts SET updated_at = $2 WHERE id = $1", cartID, time.Now()); err != nil {
		return commerce.Cart{}, err
	}
	snapshot, err := b.load(ctx, tx, cartID)
	if err != nil {
		return commerce.Cart{}, err
	}
	if err := tx.Commit(); err != nil {
		return commerce.Cart{}, err
	}
	return snapshot, nil
}

func (b *Backend) load(ctx context.Context, q querier, cartID string) (commerce.Cart, error) {
	c := commerce.Cart{ID: cartID, Lines: []commerce.Line{}}
	err := q.QueryRowContext(ctx,
		"SELECT updated_at FROM carts WHERE id = $1", cartID).Scan(&c.UpdatedAt)
	if err == sql.ErrNoRows {
		return commerce.Cart{}, commerce.ErrCartNotFound
	}
	if err != nil {
		return commerce.Cart{}, err
	}

	rows, err := q.QueryContext(ctx,
		"SELECT id, merchandise, quantity FROM cart_lines WHERE cart_id = $1 ORDER BY position", cartID)
	if err != nil {
		return commerce.Cart{}, err
	}
	defer rows.Close()

	var subtotal commerce.Money
	total := 0
	for rows.Next() {
		var (
			line commerce.Line
			raw  []byte
		)
		if err := rows.Scan(&line.ID, &raw, &line.Quantity); err != nil {
			return commerce.Cart{}, err
		}
		if err := json.Unmarshal(raw, &line.Merchandise); err != nil {
			return commerce.Cart{}, err
		}
		line.Cost = line.Merchandise.Price.Mul(line.Quantity)
		subtotal = subtotal.Add(line.Cost)
		total += line.Quantity
		c.Lines = append(c.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return commerce.Cart{}, err
	}

	tax := commerce.Money{
		Units:    int64(float64(subtotal.Units)*b.taxRate + 0.5),
		Currency: subtotal.Currency,
	}
	c.Cost = commerce.Cost{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
	c.TotalQuantity = total
	return c, nil
}
