// Package storefront is the HTTP boundary of the shop: cart reads and
// mutations, checkout, the snapshot stream and the product pages' narrow
// catalog surface.
package storefront

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/pkg/cart"
	"storefront/pkg/catalog"
	"storefront/pkg/commerce"
	"storefront/pkg/otel"
	"storefront/pkg/session"
)

const visitorCookie = "sf_visitor"

// StoreFactory builds the session-handle store for one visitor.
type StoreFactory func(visitorID string) session.Store

// Server serves the storefront API. Each visitor gets one cart engine,
// created lazily and evicted after idleTTL without interaction.
type Server struct {
	log     *zap.Logger
	backend commerce.Backend
	catalog catalog.Service
	stores  StoreFactory
	tracer  trace.Tracer

	mu      sync.Mutex
	engines map[string]*engineEntry

	idleTTL time.Duration
	done    chan struct{}
	once    sync.Once
}

type engineEntry struct {
	engine   *cart.Engine
	store    session.Store
	lastSeen time.Time
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithTracer enables per-request tracing spans.
func WithTracer(tracer trace.Tracer) ServerOption {
	return func(s *Server) { s.tracer = tracer }
}

// WithIdleTTL sets how long an untouched visitor engine is kept. Default
// one hour.
func WithIdleTTL(d time.Duration) ServerOption {
	return func(s *Server) { s.idleTTL = d }
}

// WithStoreFactory overrides the per-visitor session-handle store. The
// default keeps handles in process memory.
func WithStoreFactory(f StoreFactory) ServerOption {
	return func(s *Server) { s.stores = f }
}

// NewServer wires the storefront over a commerce backend and a catalog.
func NewServer(log *zap.Logger, backend commerce.Backend, cat catalog.Service, opts ...ServerOption) *Server {
	s := &Server{
		log:     log,
		backend: backend,
		catalog: cat,
		stores:  func(string) session.Store { return session.NewMemoryStore() },
		engines: make(map[string]*engineEntry),
		idleTTL: time.Hour,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.evictLoop()
	return s
}

// Close stops the eviction janitor and waits for in-flight cart mutations.
func (s *Server) Close() {
	s.once.Do(func() { close(s.done) })
	s.mu.Lock()
	entries := make([]*engineEntry, 0, len(s.engines))
	for _, e := range s.engines {
		entries = append(entries, e)
	}
	s.mu.Unlock()
	for _, e := range entries {
		e.engine.Wait()
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.traceMiddleware, s.visitorMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cart", s.getCartHandler).Methods(http.MethodGet)
	api.HandleFunc("/cart/lines", s.addLineHandler).Methods(http.MethodPost)
	api.HandleFunc("/cart/lines/{id}", s.updateLineHandler).Methods(http.MethodPatch)
	api.HandleFunc("/cart/lines/{id}", s.removeLineHandler).Methods(http.MethodDelete)
	api.HandleFunc("/cart/checkout", s.checkoutHandler).Methods(http.MethodPost)
	api.HandleFunc("/cart/stream", s.streamHandler).Methods(http.MethodGet)
	api.HandleFunc("/products", s.listProductsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{handle}", s.getProductHandler).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)
	return r
}

// engineFor returns the visitor's cart engine, creating it on first touch.
func (s *Server) engineFor(visitorID string) *cart.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.engines[visitorID]; ok {
		e.lastSeen = time.Now()
		return e.engine
	}

	store := s.stores(visitorID)
	binder := cart.NewBinder(store, s.backend)
	log := s.log.With(zap.String("visitor", visitorID))
	engine := cart.NewEngine(s.backend, binder,
		cart.WithLogger(log),
		cart.OnError(func(err *cart.Error) {
			cartErrorsTotal.WithLabelValues(string(err.Kind)).Inc()
			log.Warn("cart action failed",
				zap.String("op", err.Op),
				zap.String("kind", string(err.Kind)),
				zap.Error(err.Err))
		}),
	)
	s.engines[visitorID] = &engineEntry{engine: engine, store: store, lastSeen: time.Now()}
	activeEngines.Set(float64(len(s.engines)))
	return engine
}

func (s *Server) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.evictIdle()
		case <-s.done:
			return
		}
	}
}

func (s *Server) evictIdle() {
	cutoff := time.Now().Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.engines {
		if e.lastSeen.Before(cutoff) {
			delete(s.engines, id)
		}
	}
	activeEngines.Set(float64(len(s.engines)))
}

// visitorMiddleware guarantees a stable visitor cookie and resolves the
// visitor's engine into the request context.
func (s *Server) visitorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var visitorID string
		if c, err := r.Cookie(visitorCookie); err == nil && c.Value != "" {
			visitorID = c.Value
		} else {
			visitorID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     visitorCookie,
				Value:    visitorID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := withVisitor(r.Context(), visitorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tracer == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := otel.InjectTracing(r.Context(), s.tracer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
