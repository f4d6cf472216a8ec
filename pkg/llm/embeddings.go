package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/chronicle-ai/chronicle/pkg/config"
	"github.com/chronicle-ai/chronicle/pkg/models"
)

// OpenAIEmbedder implements EmbeddingClient over the OpenAI
// Embeddings API.
type OpenAIEmbedder struct {
	api     openai.Client
	model   openai.EmbeddingModel
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIEmbedder builds an embedder from configuration. The API key
// is read from the environment variable named in cfg.APIKeyEnv.
func NewOpenAIEmbedder(cfg *config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("embedding API key env %s is not set", cfg.APIKeyEnv)
	}
	return &OpenAIEmbedder{
		api:     openai.NewClient(option.WithAPIKey(key)),
		model:   openai.EmbeddingModel(cfg.Model),
		timeout: cfg.Timeout(),
		logger:  slog.Default().With("component", "embedder"),
	}, nil
}

// Embed returns one dim-length vector per input text, in input order.
// A response with the wrong vector count or dimension is an internal
// invariant fault, never silently truncated.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string, dim int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Per-batch timeout keeps a hung provider call from stalling the
	// pipeline stage.
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:      e.model,
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions: openai.Int(int64(dim)),
	})
	if err != nil {
		return nil, classifyEmbeddingError("embedding.embed", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, models.NewFault(models.FaultInternalInvariant, "embedding.embed",
			fmt.Errorf("expected %d vectors, got %d", len(texts), len(resp.Data)))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if int(d.Index) >= len(out) {
			return nil, models.NewFault(models.FaultInternalInvariant, "embedding.embed",
				fmt.Errorf("vector index %d out of range", d.Index))
		}
		if len(d.Embedding) != dim {
			return nil, models.NewFault(models.FaultInternalInvariant, "embedding.embed",
				fmt.Errorf("vector has dimension %d, want %d", len(d.Embedding), dim))
		}
		vec := make([]float32, dim)
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[d.Index] = vec
	}
	return out, nil
}

func classifyEmbeddingError(op string, err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= 500 {
			return models.NewFault(models.FaultTransientExternal, op, err)
		}
		return models.NewFault(models.FaultPermanentExternal, op, err)
	}
	return models.NewFault(models.FaultTransientExternal, op, err)
}
