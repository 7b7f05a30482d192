package memory

import (
	"context"
	"errors"
	"testing"
	"time"

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
			Price: commerce.NewMoney(4000, "USD"),
		},
		"var-tote": {
			ID: "var-tote", Title: commerce.DefaultOptionValue, ProductTitle: "Canvas Tote",
			Price: commerce.NewMoney(1850, "USD"),
		},
	}
}

func TestBackendLifecycle(t *testing.T) {
	ctx := context.Background()
	b := New(testVariants(), WithTaxRate(0.10))

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

func TestBackendUnknownIdentifiers(t *testing.T) {
	ctx := context.Background()
	b := New(testVariants())

	if _, err := b.FetchCart(ctx, "nope"); err != commerce.ErrCartNotFound {
		t.Fatalf("fetch unknown cart: %v", err)
	}

	id, _ := b.CreateCart(ctx)
	if _, err := b.AddLine(ctx, id, "nope", 1); !errors.Is(err, commerce.ErrVariantNotFound) {
		t.Fatalf("add unknown variant: %v", err)
	}
	if _, err := b.RemoveLine(ctx, id, "nope"); err != commerce.ErrLineNotFound {
		t.Fatalf("remove unknown line: %v", err)
	}
}

func TestBackendPropagatesResolverFailures(t *testing.T) {
	ctx := context.Background()
	transient := errors.New("catalog timeout")
	b := New(failingVariants{err: transient})

	id, _ := b.CreateCart(ctx)
	_, err := b.AddLine(ctx, id, "var-dress-m", 1)
	if !errors.Is(err, transient) {
		t.Fatalf("want the resolver error back, got %v", err)
	}
	// Only a missing variant may read as ErrVariantNotFound.
	if errors.Is(err, commerce.ErrVariantNotFound) {
		t.Fatalf("transient resolver failure reported as unknown variant: %v", err)
	}
}

func TestBackendCheckoutURL(t *testing.T) {
	ctx := context.Background()
	b := New(testVariants(), WithCheckoutBase("https://shop.example.com/"))

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

func TestBackendTimestamps(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := New(testVariants(), WithClock(func() time.Time { return now }))

	id, _ := b.CreateCart(ctx)
	c, err := b.AddLine(ctx, id, "var-tote", 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !c.UpdatedAt.Equal(now) {
		t.Fatalf("updated at = %v, want %v", c.UpdatedAt, now)
	}
}
