package api

import (
	"net/http"
	"strings"

	"mspro-labs/office-cart/internal/db"
	"mspro-labs/office-cart/internal/logging"
	"mspro-labs/office-cart/internal/searcher"
	"mspro-labs/office-cart/internal/web"
)

func (s *Server) handleUIHome(w http.ResponseWriter, r *http.Request) {
	logger := logging.From(r.Context())
	data := web.HomeData{Center: r.URL.Query().Get("center")}
	if s.DB != nil {
		items, err := db.GetActiveProducts(s.DB, data.Center)
		if err != nil {
			logger.Error("Failed to load catalog", "error", err)
			http.Error(w, "Failed to load catalog", http.StatusInternalServerError)
			return
		}
		data.Products = items
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.ui.Home(w, data); err != nil {
		logger.Error("Template error", "error", err)
	}
}

func (s *Server) handleUISearch(w http.ResponseWriter, r *http.Request) {
	logger := logging.From(r.Context())
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Redirect(w, r, "/ui", http.StatusFound)
		return
	}

	data := web.SearchData{Query: query}
	switch {
	case s.DB == nil:
		data.Error = "The catalog store is not configured."
	default:
		results, err := searcher.Perform(r.Context(), s.DB, s.Embedder, query, searcher.Options{
			Center:   r.URL.Query().Get("center"),
			MinScore: searcher.DefaultMinScore,
		})
		if err != nil {
			logger.Error("Search error", "query", query, "error", err)
			data.Error = "Search failed."
			break
		}
		for _, res := range results {
			data.Results = append(data.Results, web.Match{
				Center:      res.Item.Center,
				Name:        res.Item.Name,
				Description: res.Item.Description,
				Price:       res.Item.Price,
				Score:       res.Score,
			})
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.ui.Search(w, data); err != nil {
		logger.Error("Template error", "error", err)
	}
}
