package scraper

import (
	"mspro-labs/office-cart/internal/config"
	"mspro-labs/office-cart/internal/models"
)

// planSearch decides what a search page yields. Only a single match with a
// positive quantity goes to the cart; AddedToCart is set once the click succeeds.
func planSearch(products []models.Product, quantity int) (result models.SearchResult, addToCart bool) {
	if len(products) == 0 {
		return models.SearchResult{Products: []models.Product{}}, false
	}
	return models.SearchResult{Products: products}, len(products) == 1 && quantity > 0
}

type checkoutStep struct {
	name     string
	selector string
	xpath    bool
}

// checkoutSteps are the cart page clicks, in order.
func checkoutSteps(sel config.Selectors) []checkoutStep {
	return []checkoutStep{
		{name: "address", selector: sel.AddressX, xpath: true},
		{name: "payment", selector: sel.ToPaymentX, xpath: true},
		{name: "pay-with-balance", selector: sel.PayWithBalance},
		{name: "confirm", selector: sel.ConfirmPayment},
	}
}
