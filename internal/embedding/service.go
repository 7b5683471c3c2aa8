// Package embedding routes chunk text to the configured embedding models,
// fuses multi-model outputs into one vector per chunk, and normalizes the
// result. Failures are tracked per chunk so one bad batch never sinks an
// entire ingest.
package embedding

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/cortex-x/internal/pkg/model"
	"github.com/kart-io/cortex-x/pkg/embedder"
	"github.com/kart-io/cortex-x/pkg/errors"
	embeddingopts "github.com/kart-io/cortex-x/pkg/options/embedding"
)

// ChunkEmbedding pairs one input chunk with its fused embedding, or with
// the error that kept it from being embedded. Exactly one of Embedding and
// Err is set.
type ChunkEmbedding struct {
	Chunk     model.Chunk
	Embedding *model.Embedding
	Err       error
}

// Service embeds chunks and query texts.
type Service struct {
	opts     *embeddingopts.Options
	provider embedder.Provider
}

// NewService creates the embedding service over a backend provider.
func NewService(opts *embeddingopts.Options, provider embedder.Provider) *Service {
	if opts == nil {
		opts = embeddingopts.NewOptions()
	}
	return &Service{opts: opts, provider: provider}
}

// EmbedChunks embeds every chunk under the given routing profile. The result
// is aligned 1:1 with chunks; chunks the backend failed on carry Err and the
// call itself only errors when no model serves the profile at all.
func (s *Service) EmbedChunks(ctx context.Context, chunks []model.Chunk, profile string) ([]ChunkEmbedding, error) {
	models := route(s.opts.Models, profile)
	if len(models) == 0 {
		return nil, errors.ErrEmbeddingFailed.WithMessagef("no model serves profile %q", profile)
	}

	out := make([]ChunkEmbedding, len(chunks))
	for i := range chunks {
		out[i].Chunk = chunks[i]
	}

	batch := s.opts.BatchSize
	if batch <= 0 {
		batch = 16
	}
	for lo := 0; lo < len(chunks); lo += batch {
		hi := lo + batch
		if hi > len(chunks) {
			hi = len(chunks)
		}
		s.embedBatch(ctx, chunks[lo:hi], out[lo:hi], models, profile)
	}
	return out, nil
}

// Generate embeds raw texts, for the query path. Unlike EmbedChunks the
// whole call fails on any backend failure, since a query cannot proceed
// without its vector.
func (s *Service) Generate(ctx context.Context, texts []string, profile string) ([][]float32, error) {
	models := route(s.opts.Models, profile)
	if len(models) == 0 {
		return nil, errors.ErrEmbeddingFailed.WithMessagef("no model serves profile %q", profile)
	}

	perModel := make([][][]float32, len(models))
	for k, m := range models {
		inputs := make([]string, len(texts))
		for i, t := range texts {
			inputs[i], _ = truncateForModel(t, m)
		}
		vecs, err := s.provider.Embed(ctx, m.Name, inputs)
		if err != nil {
			return nil, errors.ErrEmbeddingFailed.WithCause(err)
		}
		if err := checkModelOutput(m, vecs, len(texts)); err != nil {
			return nil, err
		}
		perModel[k] = vecs
	}

	fused := make([][]float32, len(texts))
	weights := s.weightsFor(models)
	for i := range texts {
		vectors := make([][]float32, len(models))
		for k := range models {
			vectors[k] = perModel[k][i]
		}
		v, err := Fuse(s.opts.FusionStrategy, vectors, weights)
		if err != nil {
			return nil, err
		}
		if s.opts.NormalizeEmbeddings {
			Normalize(v)
		}
		fused[i] = v
	}
	return fused, nil
}

// embedBatch fills results for one batch. A failing model is dropped and
// the batch is fused from the models that answered; chunks only carry Err
// when every serving model failed.
func (s *Service) embedBatch(ctx context.Context, chunks []model.Chunk, results []ChunkEmbedding, models []embeddingopts.ModelOptions, profile string) {
	truncated := make([]bool, len(chunks))
	survivors := make([]embeddingopts.ModelOptions, 0, len(models))
	perModel := make([][][]float32, 0, len(models))
	var lastErr error

	for _, m := range models {
		inputs := make([]string, len(chunks))
		for i, ch := range chunks {
			text, cut := truncateForModel(ch.Content, m)
			inputs[i] = text
			truncated[i] = truncated[i] || cut
		}
		vecs, err := s.provider.Embed(ctx, m.Name, inputs)
		if err == nil {
			err = checkModelOutput(m, vecs, len(chunks))
		}
		if err != nil {
			logger.Warnw("embedding model failed for batch, continuing with remaining models",
				"model", m.Name, "profile", profile, "chunks", len(chunks), "error", err.Error())
			lastErr = err
			continue
		}
		survivors = append(survivors, m)
		perModel = append(perModel, vecs)
	}
	if len(survivors) == 0 {
		for i := range results {
			results[i].Err = errors.ErrEmbeddingFailed.WithCause(lastErr)
		}
		return
	}

	weights := s.weightsFor(survivors)
	tag := modelTag(survivors)
	now := time.Now().UTC()

	for i, ch := range chunks {
		vectors := make([][]float32, len(survivors))
		for k := range survivors {
			vectors[k] = perModel[k][i]
		}
		fused, err := Fuse(s.opts.FusionStrategy, vectors, weights)
		if err != nil {
			results[i].Err = err
			continue
		}

		emb := &model.Embedding{
			ChunkID:   ch.ChunkID,
			Profile:   profile,
			Vector:    fused,
			Dimension: len(fused),
			ModelTag:  tag,
			CreatedAt: now,
		}
		if s.opts.NormalizeEmbeddings {
			if Normalize(fused) {
				emb.Normalized = true
			} else {
				emb.Metadata = map[string]any{"zero_vector": true}
			}
		}
		if truncated[i] {
			if emb.Metadata == nil {
				emb.Metadata = map[string]any{}
			}
			emb.Metadata["truncated"] = true
		}
		results[i].Embedding = emb
	}
}

// weightsFor aligns configured fusion weights with the active model subset.
// Weights pair with Models by index; routing a subset keeps each model's
// own weight.
func (s *Service) weightsFor(active []embeddingopts.ModelOptions) []float64 {
	if s.opts.FusionStrategy != embeddingopts.FusionWeighted || len(s.opts.FusionWeights) != len(s.opts.Models) {
		return s.opts.FusionWeights
	}
	weights := make([]float64, 0, len(active))
	for _, a := range active {
		for i, m := range s.opts.Models {
			if m.Name == a.Name {
				weights = append(weights, s.opts.FusionWeights[i])
				break
			}
		}
	}
	return weights
}

func checkModelOutput(m embeddingopts.ModelOptions, vecs [][]float32, want int) error {
	if len(vecs) != want {
		return errors.ErrEmbeddingFailed.WithMessagef("model %s returned %d vectors for %d inputs", m.Name, len(vecs), want)
	}
	for _, v := range vecs {
		if m.Dimension > 0 && len(v) != m.Dimension {
			return errors.ErrFusionDimMismatch.WithMessagef("model %s returned dimension %d, expected %d", m.Name, len(v), m.Dimension)
		}
	}
	return nil
}

func modelTag(models []embeddingopts.ModelOptions) string {
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return strings.Join(names, "+")
}
