package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"mspro-labs/office-cart/internal/ai"
	"mspro-labs/office-cart/internal/db"
	"mspro-labs/office-cart/internal/models"
	"mspro-labs/office-cart/internal/scraper"
	"mspro-labs/office-cart/internal/workflow"
)

type fakeOps struct {
	centers     []string
	selectOK    bool
	search      models.SearchResult
	searchErr   error
	buyOK       bool
	products    []models.Product
	productsErr error

	lastCreds    models.Credentials
	lastQuantity int
}

func (f *fakeOps) Centers(_ context.Context, creds models.Credentials, _ string) []string {
	f.lastCreds = creds
	return f.centers
}

func (f *fakeOps) SelectCenter(_ context.Context, creds models.Credentials, _, _ string) bool {
	f.lastCreds = creds
	return f.selectOK
}

func (f *fakeOps) Search(_ context.Context, creds models.Credentials, _, _, _ string, quantity int) (models.SearchResult, error) {
	f.lastCreds = creds
	f.lastQuantity = quantity
	return f.search, f.searchErr
}

func (f *fakeOps) Buy(_ context.Context, creds models.Credentials) bool {
	f.lastCreds = creds
	return f.buyOK
}

func (f *fakeOps) Products(_ context.Context, creds models.Credentials, _, _ string) ([]models.Product, error) {
	f.lastCreds = creds
	return f.products, f.productsErr
}

func newTestServer(t *testing.T, ops *fakeOps, database *sql.DB) http.Handler {
	t.Helper()
	h, err := NewRouter(&Server{Ops: ops, DB: database})
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	return h
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })
	if err := db.CreateSchema(database); err != nil {
		t.Fatal(err)
	}
	return database
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Invalid JSON response %q: %v", rec.Body.String(), err)
	}
}

func TestStates(t *testing.T) {
	h := newTestServer(t, &fakeOps{}, nil)
	rec := do(t, h, http.MethodGet, "/states", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body struct{ States []string }
	decodeBody(t, rec, &body)
	if len(body.States) != 27 {
		t.Errorf("Expected 27 states, got %d", len(body.States))
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("Expected a request id header")
	}
}

func TestCenters(t *testing.T) {
	ops := &fakeOps{centers: []string{"Ozonteck Praia Grande - SP"}}
	h := newTestServer(t, ops, nil)

	rec := do(t, h, http.MethodPost, "/centers/", `{"username":"u@x.com","password":"p","state":"São Paulo"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct{ Centers []string }
	decodeBody(t, rec, &body)
	if len(body.Centers) != 1 || body.Centers[0] != "Ozonteck Praia Grande - SP" {
		t.Errorf("Unexpected centers: %v", body.Centers)
	}
	if ops.lastCreds.Username != "u@x.com" || ops.lastCreds.Password != "p" {
		t.Errorf("Credentials not passed through: %+v", ops.lastCreds)
	}
}

func TestSelectCenter(t *testing.T) {
	body := `{"username":"u","password":"p","state":"Bahia","center":"C"}`

	rec := do(t, newTestServer(t, &fakeOps{selectOK: true}, nil), http.MethodPost, "/select-center/", body)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"selected":true`) {
		t.Errorf("Expected selected, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, newTestServer(t, &fakeOps{}, nil), http.MethodPost, "/select-center/", body)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestValidationErrors(t *testing.T) {
	h := newTestServer(t, &fakeOps{}, nil)
	tests := []struct {
		name string
		path string
		body string
		want string
	}{
		{"malformed", "/centers/", `{"username":`, "invalid JSON body"},
		{"missing password", "/centers/", `{"username":"u","state":"Bahia"}`, "password"},
		{"missing state", "/centers/", `{"username":"u","password":"p"}`, "state"},
		{"missing center", "/products/", `{"username":"u","password":"p","state":"Bahia"}`, "center"},
		{"missing product", "/search/", `{"username":"u","password":"p","state":"Bahia","center":"C"}`, "product"},
		{"quantity of wrong type", "/search/", `{"username":"u","password":"p","state":"Bahia","center":"C","product":"x","quantity":"two"}`, "invalid JSON body"},
		{"missing both", "/buy/", `{}`, "password, username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("Expected 422, got %d", rec.Code)
			}
			var body ErrorResponse
			decodeBody(t, rec, &body)
			if body.Code != 422 || !strings.Contains(body.Message, tt.want) {
				t.Errorf("Unexpected error body: %+v", body)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	ops := &fakeOps{search: models.SearchResult{
		Products:    []models.Product{{Name: "Omega 3", Price: "R$ 89,90"}},
		AddedToCart: true,
	}}
	h := newTestServer(t, ops, nil)

	rec := do(t, h, http.MethodPost, "/search/",
		`{"username":"u","password":"p","state":"Bahia","center":"C","product":"omega","quantity":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body models.SearchResult
	decodeBody(t, rec, &body)
	if !body.AddedToCart || len(body.Products) != 1 || body.Products[0].Name != "Omega 3" {
		t.Errorf("Unexpected result: %+v", body)
	}
	if ops.lastQuantity != 2 {
		t.Errorf("Expected quantity 2, got %d", ops.lastQuantity)
	}
}

func TestSearchQuantityDefaultsToZero(t *testing.T) {
	ops := &fakeOps{search: models.SearchResult{Products: []models.Product{}}}
	h := newTestServer(t, ops, nil)

	rec := do(t, h, http.MethodPost, "/search/",
		`{"username":"u","password":"p","state":"Bahia","center":"C","product":"omega"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ops.lastQuantity != 0 {
		t.Errorf("Expected quantity 0, got %d", ops.lastQuantity)
	}
	if !strings.Contains(rec.Body.String(), `"products":[]`) {
		t.Errorf("Expected an empty products array, got %s", rec.Body.String())
	}
}

func TestSearchNegativeQuantityOnlySearches(t *testing.T) {
	ops := &fakeOps{search: models.SearchResult{Products: []models.Product{{Name: "Omega 3"}}}}
	h := newTestServer(t, ops, nil)

	rec := do(t, h, http.MethodPost, "/search/",
		`{"username":"u","password":"p","state":"Bahia","center":"C","product":"omega","quantity":-1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ops.lastQuantity != -1 {
		t.Errorf("Expected quantity -1 to reach the workflow, got %d", ops.lastQuantity)
	}
}

func TestWorkflowErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"center missing", workflow.ErrCenterNotFound, http.StatusNotFound},
		{"login failed before selection", fmt.Errorf("%w: %w", workflow.ErrCenterNotFound, scraper.ErrLoginFailed), http.StatusNotFound},
		{"center click timed out", fmt.Errorf("%w: %w", workflow.ErrCenterNotFound, scraper.ErrCenterNotSelected), http.StatusNotFound},
		{"no browser", fmt.Errorf("%w: %w", workflow.ErrPortalUnavailable, errors.New("chrome not found")), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &fakeOps{searchErr: tt.err, productsErr: tt.err}, nil)
			for _, path := range []string{"/search/", "/products/"} {
				rec := do(t, h, http.MethodPost, path,
					`{"username":"u","password":"p","state":"Bahia","center":"C","product":"x"}`)
				if rec.Code != tt.want {
					t.Errorf("%s: expected %d, got %d", path, tt.want, rec.Code)
				}
			}
		})
	}
}

func TestCenterNotFound(t *testing.T) {
	ops := &fakeOps{searchErr: workflow.ErrCenterNotFound, productsErr: workflow.ErrCenterNotFound}
	h := newTestServer(t, ops, nil)

	for _, path := range []string{"/search/", "/products/"} {
		rec := do(t, h, http.MethodPost, path,
			`{"username":"u","password":"p","state":"Bahia","center":"Nowhere","product":"x"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
		var body ErrorResponse
		decodeBody(t, rec, &body)
		if body.Message != "Center not found" {
			t.Errorf("%s: unexpected message %q", path, body.Message)
		}
	}
}

func TestBuy(t *testing.T) {
	tests := []struct {
		ok       bool
		wantCode int
		wantMsg  string
	}{
		{true, http.StatusOK, "success"},
		{false, http.StatusBadRequest, "failed"},
	}
	for _, tt := range tests {
		h := newTestServer(t, &fakeOps{buyOK: tt.ok}, nil)
		rec := do(t, h, http.MethodPost, "/buy/", `{"username":"u","password":"p"}`)
		if rec.Code != tt.wantCode {
			t.Errorf("Expected HTTP %d, got %d", tt.wantCode, rec.Code)
		}
		var body buyResponse
		decodeBody(t, rec, &body)
		if body.Message != tt.wantMsg || body.Status != tt.wantCode {
			t.Errorf("Unexpected body: %+v", body)
		}
	}
}

func TestProducts(t *testing.T) {
	ops := &fakeOps{products: []models.Product{{Name: "A"}, {Name: "B"}}}
	h := newTestServer(t, ops, nil)

	rec := do(t, h, http.MethodPost, "/products/", `{"username":"u","password":"p","state":"Bahia","center":"C"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body struct{ Products []models.Product }
	decodeBody(t, rec, &body)
	if len(body.Products) != 2 {
		t.Errorf("Expected 2 products, got %d", len(body.Products))
	}
}

func TestCatalogRoutesNeedStore(t *testing.T) {
	h := newTestServer(t, &fakeOps{}, nil)
	for _, path := range []string{"/catalog", "/catalog/search?q=x", "/purchases"} {
		rec := do(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, rec.Code)
		}
	}
}

func TestCatalogAndPurchases(t *testing.T) {
	database := openTestDB(t)
	if _, err := db.SaveProducts(database, "Center A", []models.Product{{Name: "Omega 3", Price: "R$ 89,90"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.SaveProducts(database, "Center B", []models.Product{{Name: "Colágeno"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordPurchase(database, "u", true); err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, &fakeOps{}, database)

	rec := do(t, h, http.MethodGet, "/catalog?center=Center+A", "")
	var catalog struct{ Products []models.CatalogItem }
	decodeBody(t, rec, &catalog)
	if len(catalog.Products) != 1 || catalog.Products[0].PriceValue != 89.90 {
		t.Errorf("Unexpected catalog: %+v", catalog.Products)
	}

	rec = do(t, h, http.MethodGet, "/purchases?username=u", "")
	var purchases struct{ Purchases []models.Purchase }
	decodeBody(t, rec, &purchases)
	if len(purchases.Purchases) != 1 || !purchases.Purchases[0].Success {
		t.Errorf("Unexpected purchases: %+v", purchases.Purchases)
	}

	rec = do(t, h, http.MethodGet, "/catalog/search", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 without q, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/catalog/search?q=omega&limit=0", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 for a bad limit, got %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/catalog/search?q=omega", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 for an uncached query without an embedder, got %d", rec.Code)
	}
}

type fixedEmbedder []float32

func (f fixedEmbedder) EmbedString(context.Context, string) ([]byte, []float32, error) {
	return ai.FloatsToBytes(f), f, nil
}

func TestCatalogSearchFiltersByCenter(t *testing.T) {
	database := openTestDB(t)
	for _, center := range []string{"Center A", "Center B"} {
		if _, err := db.SaveProducts(database, center, []models.Product{{Name: "Omega 3"}}); err != nil {
			t.Fatal(err)
		}
		if err := db.UpdateEmbedding(database, db.ProductKey{Center: center, Name: "Omega 3"}, ai.FloatsToBytes([]float32{1, 0})); err != nil {
			t.Fatal(err)
		}
	}
	h, err := NewRouter(&Server{Ops: &fakeOps{}, DB: database, Embedder: fixedEmbedder{1, 0}})
	if err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodGet, "/catalog/search?q=omega&center=Center+B", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct{ Results []catalogMatch }
	decodeBody(t, rec, &body)
	if len(body.Results) != 1 || body.Results[0].Center != "Center B" {
		t.Errorf("Expected one match from Center B, got %+v", body.Results)
	}
}

func TestUIPages(t *testing.T) {
	database := openTestDB(t)
	if _, err := db.SaveProducts(database, "Center A", []models.Product{{Name: "Omega 3", Price: "R$ 89,90"}}); err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, &fakeOps{}, database)

	rec := do(t, h, http.MethodGet, "/ui", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Omega 3") {
		t.Errorf("Expected catalog page listing Omega 3, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/ui/search", "")
	if rec.Code != http.StatusFound {
		t.Errorf("Expected redirect for empty query, got %d", rec.Code)
	}

	// No embedder and no cached query vector: the page renders the failure.
	rec = do(t, h, http.MethodGet, "/ui/search?q=omega", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Search failed.") {
		t.Errorf("Expected search failure notice, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, &fakeOps{}, nil)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("Unexpected healthz response: %d %s", rec.Code, rec.Body.String())
	}
}
