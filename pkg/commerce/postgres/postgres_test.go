package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"storefront/pkg/catalog"
	"storefront/pkg/commerce"
)

type staticVariants map[string]commerce.Merchandise

func (v staticVariants) Variant(ctx context.Context, id string) (commerce.Merchandise, error) {
	m, ok := v[id]
	if !ok {
		return commerce.Merchandise{}, catalog.ErrNotFound
	}
	return m, nil
}

type failingVariants struct{ err error }

func (v failingVariants) Variant(ctx context.Context, id string) (commerce.Merchandise, error) {
	return commerce.Merchandise{}, v.err
}

func testVariants() staticVariants {
	return staticVariants{
		"var-dress-m": {
			ID: "var-dress-m", Title: "M", ProductTitle: "Summer Dress",
			SelectedOptions: []commerce.SelectedOption{{Name: "Size", Value: "M"}},
			Price:           commerce.NewMoney(4000, "USD"),
		},
		"var-tote": {
			ID: "var-tote", Title: commerce.DefaultOptionValue, ProductTitle: "Canvas Tote",
			Price: commerce.NewMoney(1850, "USD"),
		},
	}
}

// openTestDB connects to the database named by DATABASE_URL and applies the
// schema. Without the variable the test is skipped.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

func TestBackendLifecycle(t *testing.T) {
	ctx := context.Background()
	b := New(openTestDB(t), testVariants(), WithTaxRate(0.10))

	id, err := b.CreateCart(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	c, err := b.AddLine(ctx, id, "var-dress-m", 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(c.Lines) != 1 || c.TotalQuantity != 1 {
		t.Fatalf("unexpected cart after add: %+v", c)
	}
	if c.Cost.Subtotal.Units != 4000 || c.Cost.Tax.Units != 400 || c.Cost.Total.Units != 4400 {
		t.Fatalf("unexpected totals: %+v", c.Cost)
	}

	// Same variant merges into the existing line.
	c, err = b.AddLine(ctx, id, "var-dress-m", 2)
	if err != nil {
		t.Fatalf("add again: %v", err)
	}
	if len(c.Lines) != 1 || c.Lines[0].Quantity != 3 {
		t.Fatalf("expected merged line with quantity 3: %+v", c.Lines)
	}

	// The merchandise column must survive storage intact.
	got, err := b.FetchCart(ctx, id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	m := got.Lines[0].Merchandise
	if m.ID != "var-dress-m" || m.ProductTitle != "Summer Dress" || m.Price.Units != 4000 {
		t.Fatalf("merchandise did not round-trip: %+v", m)
	}
	if len(m.SelectedOptions) != 1 || m.SelectedOptions[0].Value != "M" {
		t.Fatalf("selected options did not round-trip: %+v", m.SelectedOptions)
	}

	c, err = b.UpdateLine(ctx, id, c.Lines[0].ID, 1)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if c.Lines[0].Quantity != 1 || c.Cost.Total.Units != 4400 {
		t.Fatalf("unexpected cart after update: %+v", c)
	}

	// Zero removes the line; the cart stays an explicit empty snapshot.
	c, err = b.UpdateLine(ctx, id, c.Lines[0].ID, 0)
	if err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if c.Lines == nil || len(c.Lines) != 0 || c.TotalQuantity != 0 {
		t.Fatalf("expected explicit empty cart: %+v", c)
	}
}

func TestBackendPreservesLinePositions(t *testing.T) {
	ctx := context.Background()
	b := New(openTestDB(t), testVariants())

	id, _ := b.CreateCart(ctx)
	if _, err := b.AddLine(ctx, id, "var-dress-m", 1); err != nil {
		t.Fatalf("add dress: %v", err)
	}
	if _, err := b.AddLine(ctx, id, "var-tote", 1); err != nil {
		t.Fatalf("add tote: %v", err)
	}

	c, err := b.FetchCart(ctx, id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(c.Lines) != 2 || c.Lines[0].Merchandise.ID != "var-dress-m" || c.Lines[1].Merchandise.ID != "var-tote" {
		t.Fatalf("lines out of insertion order: %+v", c.Lines)
	}
}

func TestBackendUnknownIdentifiers(t *testing.T) {
	ctx := context.Background()
	b := New(openTestDB(t), testVariants())

	if _, err := b.FetchCart(ctx, "nope"); err != commerce.ErrCartNotFound {
		t.Fatalf("fetch unknown cart: %v", err)
	}
	if _, err := b.AddLine(ctx, "nope", "var-tote", 1); err != commerce.ErrCartNotFound {
		t.Fatalf("add to unknown cart: %v", err)
	}

	id, _ := b.CreateCart(ctx)
	if _, err := b.AddLine(ctx, id, "nope", 1); !errors.Is(err, commerce.ErrVariantNotFound) {
		t.Fatalf("add unknown variant: %v", err)
	}
	if _, err := b.UpdateLine(ctx, id, "nope", 2); err != commerce.ErrLineNotFound {
		t.Fatalf("update unknown line: %v", err)
	}
	if _, err := b.RemoveLine(ctx, id, "nope"); err != commerce.ErrLineNotFound {
		t.Fatalf("remove unknown line: %v", err)
	}
}

func TestBackendPropagatesResolverFailures(t *testing.T) {
	ctx := context.Background()
	transient := errors.New("catalog timeout")
	b := New(openTestDB(t), failingVariants{err: transient})

	id, _ := b.CreateCart(ctx)
	_, err := b.AddLine(ctx, id, "var-dress-m", 1)
	if !errors.Is(err, transient) {
		t.Fatalf("want the resolver error back, got %v", err)
	}
	if errors.Is(err, commerce.ErrVariantNotFound) {
		t.Fatalf("transient resolver failure reported as unknown variant: %v", err)
	}
}

func TestBackendCheckoutURL(t *testing.T) {
	ctx := context.Background()
	b := New(openTestDB(t), testVariants(), WithCheckoutBase("https://shop.example.com/"))

	id, _ := b.CreateCart(ctx)
	url, err := b.CheckoutURL(ctx, id)
	if err != nil {
		t.Fatalf("checkout url: %v", err)
	}
	want := "https://shop.example.com/checkout/" + id
	if url != want {
		t.Fatalf("got %s, want %s", url, want)
	}

	if _, err := b.CheckoutURL(ctx, "nope"); err != commerce.ErrCartNotFound {
		t.Fatalf("unknown cart: %v", err)
	}
}
