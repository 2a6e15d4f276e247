package embedder

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"mspro-labs/office-cart/internal/ai"
	"mspro-labs/office-cart/internal/db"
	"mspro-labs/office-cart/internal/models"
)

type fakeEmbedder struct {
	calls int
	fail  string
}

func (f *fakeEmbedder) EmbedString(_ context.Context, text string) ([]byte, []float32, error) {
	f.calls++
	if f.fail != "" && strings.Contains(text, f.fail) {
		return nil, nil, errors.New("quota exceeded")
	}
	floats := []float32{float32(len(text)), 1}
	return ai.FloatsToBytes(floats), floats, nil
}

func TestRunEmbedsMissingProducts(t *testing.T) {
	Pace = 0

	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	database.SetMaxOpenConns(1)
	defer database.Close()
	if err := db.CreateSchema(database); err != nil {
		t.Fatal(err)
	}

	_, err = db.SaveProducts(database, "Center A", []models.Product{
		{Name: "Omega 3", Description: "Cápsulas"},
		{Name: "Broken", Description: "fails"},
	})
	if err != nil {
		t.Fatal(err)
	}

	fake := &fakeEmbedder{fail: "Broken"}
	n, err := Run(context.Background(), database, fake)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 embedded product, got %d", n)
	}
	if fake.calls != 2 {
		t.Errorf("Expected 2 embedding calls, got %d", fake.calls)
	}

	vectors, err := db.GetProductVectors(database, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(vectors) != 1 || vectors[0].Name != "Omega 3" {
		t.Errorf("Unexpected vectors: %+v", vectors)
	}

	// Second run only retries the failed product.
	fake.fail = ""
	n, err = Run(context.Background(), database, fake)
	if err != nil || n != 1 {
		t.Errorf("Second run embedded %d (%v), want 1", n, err)
	}
}
