// Package api serves the portal operations and the cached catalog over HTTP.
package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mspro-labs/office-cart/internal/embedder"
	"mspro-labs/office-cart/internal/metrics"
	"mspro-labs/office-cart/internal/models"
	"mspro-labs/office-cart/internal/web"
)

// Operations is the workflow surface the handlers call.
type Operations interface {
	Centers(ctx context.Context, creds models.Credentials, state string) []string
	SelectCenter(ctx context.Context, creds models.Credentials, state, center string) bool
	Search(ctx context.Context, creds models.Credentials, state, center, product string, quantity int) (models.SearchResult, error)
	Buy(ctx context.Context, creds models.Credentials) bool
	Products(ctx context.Context, creds models.Credentials, state, center string) ([]models.Product, error)
}

// Server holds the handler dependencies. DB and Embedder are optional:
// without DB the catalog routes answer 503, without Embedder semantic
// search does only cached queries.
type Server struct {
	Ops      Operations
	DB       *sql.DB
	Embedder embedder.Embedder
	ui       *web.Templates
}

// NewRouter builds the HTTP handler for s.
func NewRouter(s *Server) (http.Handler, error) {
	ui, err := web.Parse()
	if err != nil {
		return nil, err
	}
	s.ui = ui

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(countRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		OkJSON(w, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/states", s.handleStates)
	r.Post("/centers/", s.handleCenters)
	r.Post("/select-center/", s.handleSelectCenter)
	r.Post("/search/", s.handleSearch)
	r.Post("/buy/", s.handleBuy)
	r.Post("/products/", s.handleProducts)

	r.Get("/catalog", s.handleCatalog)
	r.Get("/catalog/search", s.handleCatalogSearch)
	r.Get("/purchases", s.handlePurchases)

	r.Get("/ui", s.handleUIHome)
	r.Get("/ui/search", s.handleUISearch)

	return r, nil
}
