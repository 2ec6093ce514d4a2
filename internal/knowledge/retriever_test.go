package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	model   string
	vectors [][]float32
	err     error
	calls   [][]string
}

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, texts)
	if e.err != nil {
		return nil, e.err
	}
	if e.vectors != nil {
		return e.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (e *stubEmbedder) Model() string {
	if e.model == "" {
		return "test-embed"
	}
	return e.model
}

type stubSearcher struct {
	chunks    []Chunk
	err       error
	gotModel  string
	gotK      int
	gotVector []float32
}

func (s *stubSearcher) Search(ctx context.Context, embedding []float32, model string, k int) ([]Chunk, error) {
	s.gotVector = embedding
	s.gotModel = model
	s.gotK = k
	return s.chunks, s.err
}

func TestRetrieveUsesIndexModel(t *testing.T) {
	embedder := &stubEmbedder{model: "mxbai-embed-large"}
	searcher := &stubSearcher{chunks: []Chunk{{ID: "c1", Distance: 0.1}}}
	r := NewRetriever(embedder, searcher, nil, nil)

	got, err := r.Retrieve(context.Background(), "when is my appointment", 4)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "mxbai-embed-large", searcher.gotModel)
	require.Equal(t, 4, searcher.gotK)
	require.Equal(t, []float32{1, 0, 0}, searcher.gotVector)
}

func TestRetrieveEmbedError(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("embed down")}
	r := NewRetriever(embedder, &stubSearcher{}, nil, nil)

	_, err := r.Retrieve(context.Background(), "q", 3)
	require.Error(t, err)
}

func TestRetrieveSearchError(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("db down")}
	r := NewRetriever(&stubEmbedder{}, searcher, nil, nil)

	_, err := r.Retrieve(context.Background(), "q", 3)
	require.Error(t, err)
}
