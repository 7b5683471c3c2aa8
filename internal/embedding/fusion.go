package embedding

import (
	"math"

	"github.com/kart-io/cortex-x/pkg/errors"
	embeddingopts "github.com/kart-io/cortex-x/pkg/options/embedding"
)

// Fuse combines one vector per model into a single vector. All strategies
// except concat require equal dimensions. vectors must be non-empty; a
// single vector passes through every strategy unchanged except concat,
// where pass-through and concatenation coincide anyway.
func Fuse(strategy string, vectors [][]float32, weights []float64) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, errors.ErrEmbeddingFailed.WithMessage("no vectors to fuse")
	}
	if strategy != embeddingopts.FusionConcat {
		dim := len(vectors[0])
		for _, v := range vectors[1:] {
			if len(v) != dim {
				return nil, errors.ErrFusionDimMismatch.WithMessagef("strategy %s requires equal dimensions, got %d and %d", strategy, dim, len(v))
			}
		}
	}

	switch strategy {
	case embeddingopts.FusionConcat:
		return fuseConcat(vectors), nil
	case embeddingopts.FusionSum:
		return fuseSum(vectors), nil
	case embeddingopts.FusionMean:
		return fuseMean(vectors), nil
	case embeddingopts.FusionWeighted:
		return fuseWeighted(vectors, weights)
	case embeddingopts.FusionMax:
		return fuseMax(vectors), nil
	case embeddingopts.FusionAttention:
		return fuseAttention(vectors), nil
	default:
		return nil, errors.ErrEmbeddingFailed.WithMessagef("unknown fusion strategy %q", strategy)
	}
}

func fuseConcat(vectors [][]float32) []float32 {
	total := 0
	for _, v := range vectors {
		total += len(v)
	}
	out := make([]float32, 0, total)
	for _, v := range vectors {
		out = append(out, v...)
	}
	return out
}

func fuseSum(vectors [][]float32) []float32 {
	out := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			out[i] += x
		}
	}
	return out
}

func fuseMean(vectors [][]float32) []float32 {
	out := fuseSum(vectors)
	n := float32(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out
}

func fuseWeighted(vectors [][]float32, weights []float64) ([]float32, error) {
	if len(weights) != len(vectors) {
		return nil, errors.ErrInvalidFusionWeights.WithMessagef("%d weights for %d vectors", len(weights), len(vectors))
	}
	out := make([]float32, len(vectors[0]))
	for k, v := range vectors {
		w := float32(weights[k])
		for i, x := range v {
			out[i] += w * x
		}
	}
	return out, nil
}

func fuseMax(vectors [][]float32) []float32 {
	out := make([]float32, len(vectors[0]))
	copy(out, vectors[0])
	for _, v := range vectors[1:] {
		for i, x := range v {
			if x > out[i] {
				out[i] = x
			}
		}
	}
	return out
}

// fuseAttention weights each vector by the softmax of its L2 norm, so
// higher-energy model outputs dominate the blend.
func fuseAttention(vectors [][]float32) []float32 {
	norms := make([]float64, len(vectors))
	maxNorm := math.Inf(-1)
	for k, v := range vectors {
		norms[k] = l2Norm(v)
		if norms[k] > maxNorm {
			maxNorm = norms[k]
		}
	}

	var denom float64
	for k := range norms {
		norms[k] = math.Exp(norms[k] - maxNorm)
		denom += norms[k]
	}

	out := make([]float32, len(vectors[0]))
	for k, v := range vectors {
		w := float32(norms[k] / denom)
		for i, x := range v {
			out[i] += w * x
		}
	}
	return out
}

func l2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize scales v to unit L2 norm in place and reports whether it did.
// Zero vectors are left unchanged.
func Normalize(v []float32) bool {
	n := l2Norm(v)
	if n == 0 {
		return false
	}
	inv := float32(1 / n)
	for i := range v {
		v[i] *= inv
	}
	return true
}
