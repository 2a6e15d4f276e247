package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mspro-labs/office-cart/internal/db"
	"mspro-labs/office-cart/internal/logging"
	"mspro-labs/office-cart/internal/models"
	"mspro-labs/office-cart/internal/searcher"
	"mspro-labs/office-cart/internal/workflow"
)

const centerNotFound = "Center not found"

type buyResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	OkJSON(w, map[string][]string{"states": models.States})
}

func (s *Server) handleCenters(w http.ResponseWriter, r *http.Request) {
	var req centersRequest
	if err := decode(r, &req); err != nil {
		Unprocessable(w, err.Error())
		return
	}
	centers := s.Ops.Centers(r.Context(), req.credentials(), req.State)
	OkJSON(w, map[string][]string{"centers": centers})
}

// handleSelectCenter answers 404 when the center could not be selected, as search does.
func (s *Server) handleSelectCenter(w http.ResponseWriter, r *http.Request) {
	var req productsRequest
	if err := decode(r, &req); err != nil {
		Unprocessable(w, err.Error())
		return
	}
	if !s.Ops.SelectCenter(r.Context(), req.credentials(), req.State, req.Center) {
		NotFound(w, centerNotFound)
		return
	}
	OkJSON(w, map[string]bool{"selected": true})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decode(r, &req); err != nil {
		Unprocessable(w, err.Error())
		return
	}
	result, err := s.Ops.Search(r.Context(), req.credentials(), req.State, req.Center, req.Product, req.Quantity)
	if writeWorkflowError(w, err) {
		return
	}
	OkJSON(w, result)
}

// handleBuy mirrors the outcome in both the HTTP status and the body.
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(r, &req); err != nil {
		Unprocessable(w, err.Error())
		return
	}
	if s.Ops.Buy(r.Context(), req.credentials()) {
		OkJSON(w, buyResponse{Message: "success", Status: http.StatusOK})
		return
	}
	WriteJSON(w, http.StatusBadRequest, buyResponse{Message: "failed", Status: http.StatusBadRequest})
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	var req productsRequest
	if err := decode(r, &req); err != nil {
		Unprocessable(w, err.Error())
		return
	}
	products, err := s.Ops.Products(r.Context(), req.credentials(), req.State, req.Center)
	if writeWorkflowError(w, err) {
		return
	}
	OkJSON(w, map[string][]models.Product{"products": products})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	items, err := db.GetActiveProducts(s.DB, r.URL.Query().Get("center"))
	if err != nil {
		logging.From(r.Context()).Error("Failed to load catalog", "error", err)
		InternalError(w, "failed to load catalog")
		return
	}
	if items == nil {
		items = []models.CatalogItem{}
	}
	OkJSON(w, map[string][]models.CatalogItem{"products": items})
}

type catalogMatch struct {
	Center      string  `json:"center"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       string  `json:"price"`
	Score       float32 `json:"score"`
}

// handleCatalogSearch answers ?q= with optional center and limit filters.
func (s *Server) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	params := r.URL.Query()
	q := strings.TrimSpace(params.Get("q"))
	if q == "" {
		Unprocessable(w, "missing required query parameter: q")
		return
	}
	opts := searcher.Options{Center: params.Get("center"), MinScore: searcher.DefaultMinScore}
	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			Unprocessable(w, "limit must be a positive integer")
			return
		}
		opts.Limit = limit
	}

	results, err := searcher.Perform(r.Context(), s.DB, s.Embedder, q, opts)
	if errors.Is(err, searcher.ErrNoEmbedder) {
		ErrorWithCode(w, http.StatusServiceUnavailable, "query is not cached and no embedding client is configured")
		return
	}
	if err != nil {
		logging.From(r.Context()).Error("Catalog search failed", "query", q, "error", err)
		InternalError(w, "catalog search failed")
		return
	}
	matches := make([]catalogMatch, 0, len(results))
	for _, res := range results {
		matches = append(matches, catalogMatch{
			Center:      res.Item.Center,
			Name:        res.Item.Name,
			Description: res.Item.Description,
			Price:       res.Item.Price,
			Score:       res.Score,
		})
	}
	OkJSON(w, map[string]any{"query": q, "results": matches})
}

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	purchases, err := db.ListPurchases(s.DB, r.URL.Query().Get("username"))
	if err != nil {
		logging.From(r.Context()).Error("Failed to load purchases", "error", err)
		InternalError(w, "failed to load purchases")
		return
	}
	if purchases == nil {
		purchases = []models.Purchase{}
	}
	OkJSON(w, map[string][]models.Purchase{"purchases": purchases})
}

// writeWorkflowError answers for a failed Search or Products call and reports whether it did.
func writeWorkflowError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, workflow.ErrCenterNotFound):
		NotFound(w, centerNotFound)
	case errors.Is(err, workflow.ErrPortalUnavailable):
		ErrorWithCode(w, http.StatusServiceUnavailable, "browser session could not be started")
	default:
		InternalError(w, "")
	}
	return true
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.DB == nil {
		ErrorWithCode(w, http.StatusServiceUnavailable, "catalog store is not configured")
		return false
	}
	return true
}
