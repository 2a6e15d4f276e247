package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mspro-labs/office-cart/internal/config"
	"mspro-labs/office-cart/internal/models"
)

// parseCenters returns the center names listed on the store-internal page.
func parseCenters(html string, sel config.Selectors) ([]models.Center, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse centers page: %w", err)
	}

	var centers []models.Center
	doc.Find(sel.CenterName).Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			centers = append(centers, models.Center{Name: name})
		}
	})
	return centers, nil
}

// parseProducts returns the details of every product card on a store page.
func parseProducts(html string, sel config.Selectors) ([]models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse store page: %w", err)
	}

	var products []models.Product
	doc.Find(sel.Card).Each(func(_ int, s *goquery.Selection) {
		products = append(products, productDetails(s, sel))
	})
	return products, nil
}

// productDetails extracts one card. Missing nodes yield empty strings.
func productDetails(card *goquery.Selection, sel config.Selectors) models.Product {
	var p models.Product
	p.Name = strings.TrimSpace(card.Find(sel.ProductName).First().Text())
	p.Description = strings.TrimSpace(card.Find(sel.ProductDesc).First().Text())

	card.Find(sel.ProductPrice).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if strings.Contains(text, sel.PriceMarker) {
			p.Price = text
			return false
		}
		return true
	})
	return p
}

// xpathLiteral quotes s for use inside an XPath 1.0 expression.
// XPath has no escape sequence, so strings holding both quote kinds are built with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if part != "" {
			quoted = append(quoted, `"`+part+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// centerCardXPath locates the container of the card whose title is center.
func centerCardXPath(center string) string {
	return fmt.Sprintf(`//div[@class="card-body"]//strong[text()=%s]/../..`, xpathLiteral(center))
}
