package web

import "mspro-labs/office-cart/internal/models"

// HomeData feeds home.html.
type HomeData struct {
	Center   string
	Products []models.CatalogItem
}

// Match is one search hit with its similarity score in [0,1].
type Match struct {
	Center      string
	Name        string
	Description string
	Price       string
	Score       float32
}

// SearchData feeds search.html.
type SearchData struct {
	Query   string
	Results []Match
	Error   string
}
