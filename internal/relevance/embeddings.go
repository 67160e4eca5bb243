package relevance

import (
	"context"
	"fmt"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

// EmbeddingProvider turns documents into dense vectors, one per input, in order.
type EmbeddingProvider interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
}

// Embeddings scores chunks by cosine similarity of provider embeddings.
type Embeddings struct {
	provider EmbeddingProvider
}

// NewEmbeddings wraps provider as a Backend.
func NewEmbeddings(provider EmbeddingProvider) *Embeddings {
	return &Embeddings{provider: provider}
}

// Similarity implements Backend. Provider failures are returned as
// *seo.ComparatorBackendError.
func (e *Embeddings) Similarity(ctx context.Context, chunks1, chunks2 []string) (Matrix, error) {
	inputs := make([]string, 0, len(chunks1)+len(chunks2))
	inputs = append(inputs, chunks1...)
	inputs = append(inputs, chunks2...)
	vectors, err := e.provider.EmbedDocuments(ctx, inputs)
	if err != nil {
		return nil, &seo.ComparatorBackendError{Backend: string(MethodEmbeddings), Err: err}
	}
	if len(vectors) != len(inputs) {
		return nil, &seo.ComparatorBackendError{
			Backend: string(MethodEmbeddings),
			Err:     fmt.Errorf("got %d embeddings for %d inputs", len(vectors), len(inputs)),
		}
	}
	return cosineMatrix(vectors[:len(chunks1)], vectors[len(chunks1):]), nil
}
