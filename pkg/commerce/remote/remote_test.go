package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront/pkg/commerce"
)

func TestClientCartRoundTrip(t *testing.T) {
	var sawAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/carts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		sawAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"id": "cart-1"})
	})
	mux.HandleFunc("/carts/cart-1/lines", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var in struct {
			MerchandiseID string `json:"merchandiseId"`
			Quantity      int    `json:"quantity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.MerchandiseID != "var-1" || in.Quantity != 2 {
			t.Errorf("unexpected add payload: %+v err=%v", in, err)
		}
		json.NewEncoder(w).Encode(commerce.Cart{
			ID: "cart-1",
			Lines: []commerce.Line{{
				ID:       "line-1",
				Quantity: 2,
				Cost:     commerce.NewMoney(8000, "USD"),
			}},
			TotalQuantity: 2,
		})
	})
	mux.HandleFunc("/carts/cart-1/checkout-url", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"url": "https://pay.example.com/c/1"})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	ctx := context.Background()
	client := New(ts.URL, WithToken("secret"))

	id, err := client.CreateCart(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "cart-1" {
		t.Fatalf("got id %q", id)
	}
	if sawAuth != "Bearer secret" {
		t.Fatalf("missing bearer token, got %q", sawAuth)
	}

	c, err := client.AddLine(ctx, "cart-1", "var-1", 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if c.TotalQuantity != 2 || c.Lines[0].Cost.Units != 8000 {
		t.Fatalf("unexpected cart: %+v", c)
	}

	url, err := client.CheckoutURL(ctx, "cart-1")
	if err != nil {
		t.Fatalf("checkout url: %v", err)
	}
	if url != "https://pay.example.com/c/1" {
		t.Fatalf("got %q", url)
	}
}

func TestClientErrorMapping(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	ctx := context.Background()
	client := New(ts.URL)

	if _, err := client.FetchCart(ctx, "nope"); err != commerce.ErrCartNotFound {
		t.Fatalf("fetch: want ErrCartNotFound, got %v", err)
	}
	if _, err := client.RemoveLine(ctx, "c", "l"); err != commerce.ErrLineNotFound {
		t.Fatalf("remove: want ErrLineNotFound, got %v", err)
	}
}

func TestClientSurfacesServerErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "cart is locked", http.StatusConflict)
	}))
	defer ts.Close()

	_, err := New(ts.URL).UpdateLine(context.Background(), "c", "l", 3)
	if err == nil {
		t.Fatal("expected error")
	}
}
