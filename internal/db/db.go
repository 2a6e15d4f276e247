package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import for side-effects only

	"mspro-labs/office-cart/internal/models"
)

// Connect opens a connection to the SQLite database and ensures the schema exists.
// It automatically applies recommended settings for concurrency (WAL mode).
func Connect(dbPath string) (*sql.DB, error) {
	// Use robust connection settings to prevent "database locked" errors
	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err = CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

// CreateSchema creates the catalog, query cache and purchase tables if missing.
func CreateSchema(db *sql.DB) error {
	// Products seen in a center's store
	productTable := `
	CREATE TABLE IF NOT EXISTS product (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  center TEXT NOT NULL,
	  name TEXT NOT NULL,
	  description TEXT,
	  price TEXT,
	  price_value REAL,
	  first_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	  last_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	  is_active INTEGER DEFAULT 1,
	  description_embedding BLOB,
	  UNIQUE(center, name)
	);
	CREATE INDEX IF NOT EXISTS idx_product_center ON product(center);
	CREATE INDEX IF NOT EXISTS idx_product_is_active ON product(is_active);
	`
	if _, err := db.Exec(productTable); err != nil {
		return err
	}

	// Search History Table (for local caching of AI queries)
	historyTable := `
	CREATE TABLE IF NOT EXISTS search_history (
		query_text TEXT PRIMARY KEY,
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(historyTable); err != nil {
		return err
	}

	purchaseTable := `
	CREATE TABLE IF NOT EXISTS purchase (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  username TEXT NOT NULL,
	  success INTEGER NOT NULL,
	  created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_purchase_username ON purchase(username);
	`
	if _, err := db.Exec(purchaseTable); err != nil {
		return err
	}

	return nil
}

// MarkCenterInactive sets is_active=0 for every product of a center.
// It is called before a full store listing is saved.
func MarkCenterInactive(db *sql.DB, center string) error {
	_, err := db.Exec(`UPDATE product SET is_active = 0 WHERE center = ? AND is_active = 1;`, center)
	if err != nil {
		return fmt.Errorf("failed to mark products as inactive: %w", err)
	}
	return nil
}

// SaveProducts performs a batch UPSERT of scraped products for a center.
// Saved items are marked active and their 'last_seen_at' is refreshed.
// A changed description drops the stale embedding.
func SaveProducts(db *sql.DB, center string, products []models.Product) (int64, error) {
	upsertSQL := `
	INSERT INTO product (
	  center, name, description, price, price_value, last_seen_at, is_active
	) VALUES (
	  ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, 1
	) ON CONFLICT(center, name) DO UPDATE SET
	  description_embedding = CASE
	    WHEN product.description IS excluded.description THEN product.description_embedding
	    ELSE NULL END,
	  description = excluded.description,
	  price = excluded.price,
	  price_value = excluded.price_value,
	  last_seen_at = CURRENT_TIMESTAMP,
	  is_active = 1;
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	var totalAffected int64 = 0
	for _, p := range products {
		if p.Name == "" {
			continue
		}
		price := ParsePrice(p.Price)
		res, err := stmt.ExecContext(ctx,
			center,
			p.Name,
			sql.NullString{String: p.Description, Valid: p.Description != ""},
			sql.NullString{String: p.Price, Valid: p.Price != ""},
			sql.NullFloat64{Float64: price, Valid: price > 0},
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to upsert %s: %w", p.Name, err)
		}
		rows, _ := res.RowsAffected()
		totalAffected += rows
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return totalAffected, nil
}

var rePrice = regexp.MustCompile(`[^\d,\.]+`)

// ParsePrice turns a display price such as "R$ 1.289,90" into 1289.90.
// Unparseable input yields 0.
func ParsePrice(priceStr string) float64 {
	val := rePrice.ReplaceAllString(priceStr, "")
	// Brazilian format: '.' groups thousands, ',' separates decimals.
	if strings.Contains(val, ",") {
		val = strings.ReplaceAll(val, ".", "")
		val = strings.Replace(val, ",", ".", 1)
	}
	price, _ := strconv.ParseFloat(val, 64)
	return price
}

// GetActiveProducts returns the currently listed products, optionally for one center.
func GetActiveProducts(db *sql.DB, center string) ([]models.CatalogItem, error) {
	query := `
		SELECT center, name, COALESCE(description, ''), COALESCE(price, ''), COALESCE(price_value, 0), last_seen_at
		FROM product
		WHERE is_active = 1`
	var args []any
	if center != "" {
		query += ` AND center = ?`
		args = append(args, center)
	}
	query += ` ORDER BY center, name`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.CatalogItem
	for rows.Next() {
		var i models.CatalogItem
		if err := rows.Scan(&i.Center, &i.Name, &i.Description, &i.Price, &i.PriceValue, &i.LastSeenAt); err == nil {
			items = append(items, i)
		}
	}
	return items, rows.Err()
}

// RecordPurchase logs a checkout attempt.
func RecordPurchase(db *sql.DB, username string, success bool) error {
	_, err := db.Exec(`INSERT INTO purchase (username, success) VALUES (?, ?)`, username, success)
	if err != nil {
		return fmt.Errorf("failed to record purchase: %w", err)
	}
	return nil
}

// ListPurchases returns logged checkouts, newest first, optionally for one user.
func ListPurchases(db *sql.DB, username string) ([]models.Purchase, error) {
	query := `SELECT id, username, success, created_at FROM purchase`
	var args []any
	if username != "" {
		query += ` WHERE username = ?`
		args = append(args, username)
	}
	query += ` ORDER BY id DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []models.Purchase
	for rows.Next() {
		var p models.Purchase
		if err := rows.Scan(&p.ID, &p.Username, &p.Success, &p.CreatedAt); err == nil {
			purchases = append(purchases, p)
		}
	}
	return purchases, rows.Err()
}

// --- Embedding & Search Helpers ---

// ProductKey identifies a catalog row.
type ProductKey struct {
	Center string
	Name   string
}

// GetUnembeddedProducts returns the text to embed for active products missing embeddings.
func GetUnembeddedProducts(db *sql.DB) (map[ProductKey]string, error) {
	rows, err := db.Query(`SELECT center, name, COALESCE(description, '') FROM product WHERE is_active = 1 AND description_embedding IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make(map[ProductKey]string)
	for rows.Next() {
		var center, name, desc string
		if err := rows.Scan(&center, &name, &desc); err == nil {
			// Combine name and description for a richer embedding
			results[ProductKey{Center: center, Name: name}] = fmt.Sprintf("Product Name: %s\nDescription: %s", name, desc)
		}
	}
	return results, rows.Err()
}

// UpdateEmbedding saves the generated vector blob for a product.
func UpdateEmbedding(db *sql.DB, key ProductKey, embedding []byte) error {
	_, err := db.Exec("UPDATE product SET description_embedding = ? WHERE center = ? AND name = ?", embedding, key.Center, key.Name)
	return err
}

// ProductVector is an active product with its embedding, used during search.
type ProductVector struct {
	Center      string
	Name        string
	Description string
	Price       string
	Vector      []byte
}

// GetProductVectors returns active products that have embeddings, optionally for one center.
func GetProductVectors(db *sql.DB, center string) ([]ProductVector, error) {
	query := `SELECT center, name, COALESCE(description, ''), COALESCE(price, ''), description_embedding
		FROM product WHERE is_active = 1 AND description_embedding IS NOT NULL`
	var args []any
	if center != "" {
		query += ` AND center = ?`
		args = append(args, center)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ProductVector
	for rows.Next() {
		var pv ProductVector
		if err := rows.Scan(&pv.Center, &pv.Name, &pv.Description, &pv.Price, &pv.Vector); err == nil {
			results = append(results, pv)
		}
	}
	return results, rows.Err()
}

// GetCachedQuery tries to find a previously searched query vector.
func GetCachedQuery(db *sql.DB, text string) ([]byte, error) {
	var blob []byte
	err := db.QueryRow("SELECT embedding FROM search_history WHERE query_text = ?", text).Scan(&blob)
	return blob, err
}

// SaveCachedQuery saves a new query and its vector to the history table.
func SaveCachedQuery(db *sql.DB, text string, blob []byte) error {
	_, err := db.Exec("INSERT OR IGNORE INTO search_history (query_text, embedding) VALUES (?, ?)", text, blob)
	return err
}

// --- History Management for search ---

type HistoryEntry struct {
	QueryText string
	CreatedAt time.Time
}

// ListSearchHistory returns all cached queries, newest first.
func ListSearchHistory(db *sql.DB) ([]HistoryEntry, error) {
	rows, err := db.Query("SELECT query_text, created_at FROM search_history ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.QueryText, &e.CreatedAt); err == nil {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// ClearSearchHistory removes a specific query from the cache.
func ClearSearchHistory(db *sql.DB, queryText string) (int64, error) {
	res, err := db.Exec("DELETE FROM search_history WHERE query_text = ?", queryText)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearAllSearchHistory wipes the entire cache.
func ClearAllSearchHistory(db *sql.DB) (int64, error) {
	res, err := db.Exec("DELETE FROM search_history")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
