package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrRuntimeUnavailable means no local feature-extraction runtime is
// deployed alongside this process. Callers degrade to an empty vector.
var ErrRuntimeUnavailable = errors.New("local embedding runtime unavailable")

// localModelMap resolves the user-facing model names to the hub names the
// runtime loads.
var localModelMap = map[string]string{
	"local-bge-small-zh-v1.5": "BAAI/bge-small-zh-v1.5",
	"local-all-MiniLM-L6-v2":  "Xenova/all-MiniLM-L6-v2",
}

const defaultLocalModel = "Xenova/all-MiniLM-L6-v2"

// FeatureModel produces token-level feature vectors for a text.
type FeatureModel interface {
	Features(ctx context.Context, text string) ([][]float32, error)
}

// ModelLoader loads a named feature-extraction model. Load is expected to
// be expensive (model download/warmup) and is called at most once per name
// per process.
type ModelLoader interface {
	Load(ctx context.Context, name string) (FeatureModel, error)
}

// LocalEmbedder computes mean-pooled, L2-normalized embeddings from a
// locally-resident feature-extraction model. Loaded models are cached per
// name; a concurrent first access single-flights the load so other
// requesters block until population completes and then reuse the result.
type LocalEmbedder struct {
	loader ModelLoader

	mu     sync.RWMutex
	models map[string]FeatureModel
	group  singleflight.Group
}

func NewLocalEmbedder(loader ModelLoader) *LocalEmbedder {
	return &LocalEmbedder{loader: loader, models: make(map[string]FeatureModel)}
}

func (l *LocalEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	name, ok := localModelMap[model]
	if !ok {
		name = defaultLocalModel
	}
	fm, err := l.get(ctx, name)
	if err != nil {
		return nil, err
	}
	features, err := fm.Features(ctx, text)
	if err != nil {
		return nil, err
	}
	vec := meanPool(features)
	l2Normalize(vec)
	return vec, nil
}

func (l *LocalEmbedder) get(ctx context.Context, name string) (FeatureModel, error) {
	l.mu.RLock()
	fm, ok := l.models[name]
	l.mu.RUnlock()
	if ok {
		return fm, nil
	}

	v, err, _ := l.group.Do(name, func() (interface{}, error) {
		l.mu.RLock()
		cached, ok := l.models[name]
		l.mu.RUnlock()
		if ok {
			return cached, nil
		}
		loaded, err := l.loader.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.models[name] = loaded
		l.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(FeatureModel), nil
}

func meanPool(features [][]float32) []float32 {
	if len(features) == 0 {
		return []float32{}
	}
	dim := len(features[0])
	out := make([]float32, dim)
	for _, row := range features {
		for i := 0; i < dim && i < len(row); i++ {
			out[i] += row[i]
		}
	}
	n := float32(len(features))
	for i := range out {
		out[i] /= n
	}
	return out
}

func l2Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// RuntimeLoader talks to the feature-extraction sidecar over localhost
// HTTP. An empty base URL means no runtime is deployed; Load then fails
// with ErrRuntimeUnavailable and the embedder degrades.
type RuntimeLoader struct {
	baseURL string
	client  *http.Client
}

func NewRuntimeLoader(baseURL string) *RuntimeLoader {
	return &RuntimeLoader{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

func (r *RuntimeLoader) Load(ctx context.Context, name string) (FeatureModel, error) {
	if r.baseURL == "" {
		return nil, ErrRuntimeUnavailable
	}

	body, _ := json.Marshal(map[string]string{"model": name})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/models", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: load %s returned %d", ErrRuntimeUnavailable, name, resp.StatusCode)
	}

	return &runtimeModel{loader: r, name: name}, nil
}

type runtimeModel struct {
	loader *RuntimeLoader
	name   string
}

func (m *runtimeModel) Features(ctx context.Context, text string) ([][]float32, error) {
	body, _ := json.Marshal(map[string]string{"model": m.name, "text": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.loader.baseURL+"/features", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.loader.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feature extraction for %s returned %d", m.name, resp.StatusCode)
	}

	var out struct {
		Features [][]float32 `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Features, nil
}
