// Package ai embeds catalog text with Gemini and compares the vectors.
package ai

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultEmbeddingModel is used when GEMINI_EMBED_MODEL is unset.
const DefaultEmbeddingModel = "text-embedding-004"

var ErrEmptyEmbedding = errors.New("AI returned empty embedding")

// Client embeds catalog products. Use Query for search text, which Gemini
// embeds with the retrieval-query task type.
type Client struct {
	genaiClient *genai.Client
	documents   *genai.EmbeddingModel
	queries     *genai.EmbeddingModel
}

// NewClient connects with GEMINI_API_KEY and GEMINI_EMBED_MODEL.
func NewClient(ctx context.Context) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}

	modelName := os.Getenv("GEMINI_EMBED_MODEL")
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}

	documents := c.EmbeddingModel(modelName)
	documents.TaskType = genai.TaskTypeRetrievalDocument
	queries := c.EmbeddingModel(modelName)
	queries.TaskType = genai.TaskTypeRetrievalQuery

	return &Client{genaiClient: c, documents: documents, queries: queries}, nil
}

// Close terminates the connection.
func (c *Client) Close() {
	if c != nil && c.genaiClient != nil {
		c.genaiClient.Close()
	}
}

// EmbedString embeds a catalog product text. It returns the vector both as
// a blob for the database and as floats.
func (c *Client) EmbedString(ctx context.Context, text string) ([]byte, []float32, error) {
	return embed(ctx, c.documents, text)
}

// Query returns an embedder for search queries.
func (c *Client) Query() *QueryEmbedder {
	return &QueryEmbedder{client: c}
}

// QueryEmbedder embeds search text against the same model as the catalog.
type QueryEmbedder struct {
	client *Client
}

func (q *QueryEmbedder) EmbedString(ctx context.Context, text string) ([]byte, []float32, error) {
	return embed(ctx, q.client.queries, text)
}

func embed(ctx context.Context, model *genai.EmbeddingModel, text string) ([]byte, []float32, error) {
	res, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, nil, err
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, nil, ErrEmptyEmbedding
	}
	return FloatsToBytes(res.Embedding.Values), res.Embedding.Values, nil
}
