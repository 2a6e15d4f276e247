package models

import "time"

// Credentials are the portal login supplied with every request.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Center is a regional distribution center as listed by the portal.
type Center struct {
	Name string `json:"name"`
}

// Product holds the scraped data for a single catalog card.
// Price is kept exactly as displayed (e.g. "R$ 89,90").
type Product struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

// SearchResult is what a catalog search returns.
type SearchResult struct {
	Products    []Product `json:"products"`
	AddedToCart bool      `json:"added_to_cart"`
}

// CatalogItem is a product remembered by the local catalog store.
type CatalogItem struct {
	Center      string    `json:"center"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	PriceValue  float64   `json:"price_value"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Purchase is one checkout attempt recorded by the store.
type Purchase struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// States lists the federative units exactly as the portal's state selector spells them.
var States = []string{
	"Acre",
	"Alagoas",
	"Amazonas",
	"Amapá",
	"Bahia",
	"Ceará",
	"Distrito Federal",
	"Espírito Santo",
	"Goiás",
	"Maranhão",
	"Minas Gerais",
	"Mato Grosso do Sul",
	"Mato Grosso",
	"Pará",
	"Paraíba",
	"Pernambuco",
	"Piauí",
	"Paraná",
	"Rio de Janeiro",
	"Rio Grande do Norte",
	"Rondônia",
	"Roraima",
	"Rio Grande do Sul",
	"Santa Catarina",
	"Sergipe",
	"São Paulo",
	"Tocantins",
}
