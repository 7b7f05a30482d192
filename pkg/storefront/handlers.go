package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"storefront/pkg/cart"
	"storefront/pkg/catalog"
	"storefront/pkg/commerce"
	"storefront/pkg/otel"
)

type ctxKey int

const visitorKey ctxKey = 1

func withVisitor(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, visitorKey, id)
}

func visitorFrom(ctx context.Context) string {
	id, _ := ctx.Value(visitorKey).(string)
	return id
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = message
	writeJSON(w, status, body)
}

type addLineRequest struct {
	MerchandiseID string `json:"merchandiseId"`
	Quantity      int    `json:"quantity"`
}

type updateLineRequest struct {
	Delta int `json:"delta"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}

// getCartHandler returns the current snapshot, refreshed from the backend
// when a session exists. Before any interaction there is no cart: 204.
// @Summary Current cart
// @Produce json
// @Success 200 {object} commerce.Cart
// @Success 204
// @Router /api/cart [get]
func (s *Server) getCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getCartHandler")
	defer span.End()

	engine := s.engineFor(visitorFrom(ctx))
	if err := engine.Refresh(ctx); err != nil && !errors.Is(err, commerce.ErrCartNotFound) {
		s.log.Error("refresh cart", zap.Error(err))
	}
	snapshot, ok := engine.Current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// addLineHandler optimistically adds a variant to the cart and returns the
// predicted snapshot without waiting for the backend.
// @Summary Add item
// @Accept json
// @Produce json
// @Param line body addLineRequest true "Variant and quantity"
// @Success 202 {object} commerce.Cart
// @Router /api/cart/lines [post]
func (s *Server) addLineHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "addLineHandler")
	defer span.End()

	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MerchandiseID == "" {
		writeError(w, http.StatusBadRequest, "bad-request", "merchandiseId is required")
		return
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	merch, err := s.catalog.Variant(ctx, req.MerchandiseID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown-variant", "no such merchandise: "+req.MerchandiseID)
			return
		}
		s.log.Error("resolve variant", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "variant lookup failed")
		return
	}

	engine := s.engineFor(visitorFrom(ctx))
	snapshot := engine.AddItem(ctx, merch, req.Quantity)
	mutationsTotal.WithLabelValues("add").Inc()
	writeJSON(w, http.StatusAccepted, snapshot)
}

// updateLineHandler optimistically shifts a line's quantity by a delta and
// returns the predicted snapshot. A resulting quantity <= 0 removes the
// line.
// @Summary Change quantity
// @Accept json
// @Produce json
// @Param id path string true "Line ID"
// @Param change body updateLineRequest true "Signed quantity delta"
// @Success 202 {object} commerce.Cart
// @Router /api/cart/lines/{id} [patch]
func (s *Server) updateLineHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "updateLineHandler")
	defer span.End()

	var req updateLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "bad-request", "delta must be a non-zero integer")
		return
	}

	engine := s.engineFor(visitorFrom(ctx))
	snapshot := engine.UpdateQuantity(ctx, mux.Vars(r)["id"], req.Delta)
	mutationsTotal.WithLabelValues("update").Inc()
	writeJSON(w, http.StatusAccepted, snapshot)
}

// removeLineHandler optimistically deletes a line and returns the predicted
// snapshot.
// @Summary Remove item
// @Produce json
// @Param id path string true "Line ID"
// @Success 202 {object} commerce.Cart
// @Router /api/cart/lines/{id} [delete]
func (s *Server) removeLineHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "removeLineHandler")
	defer span.End()

	engine := s.engineFor(visitorFrom(ctx))
	snapshot := engine.RemoveItem(ctx, mux.Vars(r)["id"])
	mutationsTotal.WithLabelValues("remove").Inc()
	writeJSON(w, http.StatusAccepted, snapshot)
}

// checkoutHandler asks the backend for the checkout redirect target. With
// no cart session it fails fast without a backend round-trip.
// @Summary Checkout
// @Produce json
// @Success 200 {object} checkoutResponse
// @Failure 409 {object} errorBody
// @Failure 502 {object} errorBody
// @Router /api/cart/checkout [post]
func (s *Server) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "checkoutHandler")
	defer span.End()

	engine := s.engineFor(visitorFrom(ctx))
	url, err := engine.Checkout(ctx)
	if err != nil {
		var cerr *cart.Error
		if errors.As(err, &cerr) {
			cartErrorsTotal.WithLabelValues(string(cerr.Kind)).Inc()
			switch cerr.Kind {
			case cart.KindNoSession:
				writeError(w, http.StatusConflict, string(cerr.Kind), "nothing to check out yet")
			default:
				writeError(w, http.StatusBadGateway, string(cerr.Kind), "checkout is unavailable, try again")
			}
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "checkout failed")
		return
	}
	checkoutsTotal.Inc()
	writeJSON(w, http.StatusOK, checkoutResponse{URL: url})
}

// listProductsHandler lists catalog products.
// @Summary List products
// @Produce json
// @Success 200 {array} catalog.Product
// @Router /api/products [get]
func (s *Server) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "listProductsHandler")
	defer span.End()

	products, err := s.catalog.List(ctx)
	if err != nil {
		s.log.Error("list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// getProductHandler resolves one product by handle.
// @Summary Get product
// @Produce json
// @Param handle path string true "Product handle"
// @Success 200 {object} catalog.Product
// @Failure 404 {object} errorBody
// @Router /api/products/{handle} [get]
func (s *Server) getProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.AddSpan(r.Context(), "getProductHandler")
	defer span.End()

	p, err := s.catalog.Product(ctx, mux.Vars(r)["handle"])
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown-product", "no such product")
			return
		}
		s.log.Error("get product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
