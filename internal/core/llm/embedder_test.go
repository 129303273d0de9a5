package llm

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubFeatureModel struct {
	features [][]float32
}

func (s *stubFeatureModel) Features(ctx context.Context, text string) ([][]float32, error) {
	return s.features, nil
}

type countingLoader struct {
	loads int32
	err   error
}

func (c *countingLoader) Load(ctx context.Context, name string) (FeatureModel, error) {
	atomic.AddInt32(&c.loads, 1)
	if c.err != nil {
		return nil, c.err
	}
	return &stubFeatureModel{features: [][]float32{{1, 0}, {0, 1}}}, nil
}

func TestLocalEmbedder(t *testing.T) {
	t.Run("mean pools and normalizes", func(t *testing.T) {
		l := NewLocalEmbedder(&countingLoader{})
		vec, err := l.Embed(context.Background(), "local-all-MiniLM-L6-v2", "hello")
		require.NoError(t, err)
		require.Len(t, vec, 2)

		// mean of (1,0) and (0,1) is (0.5,0.5), normalized to (1/sqrt2, 1/sqrt2).
		want := float32(1 / math.Sqrt2)
		assert.InDelta(t, want, vec[0], 1e-6)
		assert.InDelta(t, want, vec[1], 1e-6)
	})

	t.Run("model loads once under concurrency", func(t *testing.T) {
		loader := &countingLoader{}
		l := NewLocalEmbedder(loader)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := l.Embed(context.Background(), "local-bge-small-zh-v1.5", "并发")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), atomic.LoadInt32(&loader.loads))
	})

	t.Run("unknown local model falls back to default", func(t *testing.T) {
		loader := &countingLoader{}
		l := NewLocalEmbedder(loader)
		_, err := l.Embed(context.Background(), "local-something-else", "x")
		require.NoError(t, err)
		assert.Equal(t, int32(1), loader.loads)
	})

	t.Run("loader error surfaces", func(t *testing.T) {
		l := NewLocalEmbedder(&countingLoader{err: ErrRuntimeUnavailable})
		_, err := l.Embed(context.Background(), "local-bge-small-zh-v1.5", "x")
		assert.ErrorIs(t, err, ErrRuntimeUnavailable)
	})
}

func TestEmbedderDispatch(t *testing.T) {
	t.Run("local failure degrades to empty vector", func(t *testing.T) {
		e := NewEmbedder(
			NewRemoteEmbedder("", "", 512, zaptest.NewLogger(t)),
			NewLocalEmbedder(&countingLoader{err: errors.New("no runtime")}),
			zaptest.NewLogger(t),
		)
		vec, err := e.Embed(context.Background(), "text", "local-bge-small-zh-v1.5", nil)
		require.NoError(t, err)
		assert.Empty(t, vec)
	})

	t.Run("local prefix routes to the local embedder", func(t *testing.T) {
		loader := &countingLoader{}
		e := NewEmbedder(
			NewRemoteEmbedder("", "", 512, zaptest.NewLogger(t)),
			NewLocalEmbedder(loader),
			zaptest.NewLogger(t),
		)
		vec, err := e.Embed(context.Background(), "text", "local-all-MiniLM-L6-v2", nil)
		require.NoError(t, err)
		assert.NotEmpty(t, vec)
		assert.Equal(t, int32(1), loader.loads)
	})

	t.Run("remote without key degrades to empty vector", func(t *testing.T) {
		e := NewEmbedder(
			NewRemoteEmbedder("", "", 512, zaptest.NewLogger(t)),
			NewLocalEmbedder(&countingLoader{}),
			zaptest.NewLogger(t),
		)
		vec, err := e.Embed(context.Background(), "text", "text-embedding-v3", nil)
		require.NoError(t, err)
		assert.Empty(t, vec)
	})
}

func TestIsValidEmbeddingModel(t *testing.T) {
	assert.True(t, IsValidEmbeddingModel("text-embedding-v3"))
	assert.True(t, IsValidEmbeddingModel("local-bge-small-zh-v1.5"))
	assert.True(t, IsValidEmbeddingModel("local-all-MiniLM-L6-v2"))
	assert.False(t, IsValidEmbeddingModel("text-embedding-ada-002"))
	assert.False(t, IsValidEmbeddingModel(""))
}
