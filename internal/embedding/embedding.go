// Package embedding maps text to fixed-length vectors used for exemplar
// retrieval.
package embedding

import "context"

// Provider converts text into an embedding vector. Vectors returned by one
// provider always have the same dimensionality.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
