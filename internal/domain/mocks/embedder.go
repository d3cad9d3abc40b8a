package mocks

import "context"

// Embedder is a mock implementation of ports.Embedder returning a fixed
// vector.
type Embedder struct {
	Vector []float32
	Err    error
}

// Embed returns the canned vector.
func (m *Embedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vector, nil
}

// EmbedBatch returns the canned vector for each text.
func (m *Embedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.Vector
	}
	return out, nil
}
