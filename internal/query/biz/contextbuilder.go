package biz

import (
	"math"
	"strings"

	"github.com/kart-io/cortex-x/internal/pkg/model"
	contextopts "github.com/kart-io/cortex-x/pkg/options/contextbuilder"
)

const (
	// rrfOffset is the standard reciprocal-rank-fusion damping constant.
	rrfOffset = 60

	// mmrLambda balances relevance against diversity in MMR reranking.
	mmrLambda = 0.7

	// recencyScale converts a unix timestamp into a small score bias.
	recencyScale = 1e10

	// truncateFloor is the minimum leftover token budget worth filling
	// with a truncated block.
	truncateFloor = 100

	// charsPerToken is the estimation ratio for budget accounting.
	charsPerToken = 3.5
)

// BuiltContext is the assembled context window.
type BuiltContext struct {
	Blocks      []model.ContextBlock `json:"blocks"`
	TotalTokens int                  `json:"total_tokens"`
	Truncated   bool                 `json:"truncated"`
}

// ContextBuilder reranks merged blocks and packs them into the token
// budget. Reranking permutes, it never drops; the budget pass is the only
// place blocks fall away.
type ContextBuilder struct {
	opts *contextopts.Options
}

// NewContextBuilder creates a builder with default budgets.
func NewContextBuilder(opts *contextopts.Options) *ContextBuilder {
	if opts == nil {
		opts = contextopts.NewOptions()
	}
	return &ContextBuilder{opts: opts}
}

// Build reranks blocks per the plan's strategy and greedily packs them
// until the token or block budget runs out. The final block may be
// truncated to fill a worthwhile remainder.
func (b *ContextBuilder) Build(blocks []model.ContextBlock, plan *model.RetrievalPlan) *BuiltContext {
	ordered := Rerank(blocks, plan.RerankStrategy)

	maxTokens := plan.MaxTokens
	if maxTokens <= 0 {
		maxTokens = b.opts.MaxTokens
	}
	maxBlocks := plan.MaxBlocks
	if maxBlocks <= 0 {
		maxBlocks = b.opts.MaxBlocks
	}

	built := &BuiltContext{}
	for _, block := range ordered {
		if len(built.Blocks) >= maxBlocks {
			built.Truncated = true
			break
		}
		block.TokenCount = EstimateTokens(block.Text)
		remaining := maxTokens - built.TotalTokens
		if block.TokenCount > remaining {
			if remaining > truncateFloor {
				block = truncateBlock(block, remaining)
				built.Blocks = append(built.Blocks, block)
				built.TotalTokens += block.TokenCount
			}
			built.Truncated = true
			break
		}
		built.Blocks = append(built.Blocks, block)
		built.TotalTokens += block.TokenCount
	}
	return built
}

// Rerank returns a permutation of blocks under the given strategy.
func Rerank(blocks []model.ContextBlock, strategy model.RerankStrategy) []model.ContextBlock {
	out := make([]model.ContextBlock, len(blocks))
	copy(out, blocks)

	switch strategy {
	case model.RerankRRF:
		rerankRRF(out)
	case model.RerankDiversityAware:
		out = rerankMMR(out)
	case model.RerankRecencyBiased:
		rerankRecency(out)
	default:
		sortByScore(out)
	}
	return out
}

// rerankRRF applies reciprocal rank fusion: a block earns 1/(60+rank) in
// every retrieval step that returned it and the contributions sum, so a
// source surfaced by both vector search and the graph outranks one step's
// singleton at the same rank.
func rerankRRF(blocks []model.ContextBlock) {
	rankInStep := map[string]int{}
	for i := range blocks {
		b := &blocks[i]
		if len(b.StepRanks) == 0 {
			// No recorded ranks: fall back to emission order within the
			// originating step.
			step := stepOf(*b)
			b.StepRanks = map[string]int{step: rankInStep[step]}
			rankInStep[step]++
		}
		var fused float64
		for _, rank := range b.StepRanks {
			fused += 1.0 / float64(rrfOffset+rank)
		}
		b.Score = fused
	}
	sortByScore(blocks)
}

// rerankMMR applies maximal marginal relevance: seed with the top-scoring
// block, then repeatedly take the block maximizing
// lambda*relevance - (1-lambda)*max-similarity-to-selected.
func rerankMMR(blocks []model.ContextBlock) []model.ContextBlock {
	if len(blocks) <= 1 {
		return blocks
	}

	remaining := make([]model.ContextBlock, len(blocks))
	copy(remaining, blocks)
	sortByScore(remaining)

	tokens := make(map[string]map[string]bool, len(remaining))
	for _, b := range remaining {
		tokens[b.ID] = tokenSet(b.Text)
	}

	selected := []model.ContextBlock{remaining[0]}
	remaining = remaining[1:]

	for len(remaining) > 0 {
		bestIdx, bestVal := 0, math.Inf(-1)
		for i, cand := range remaining {
			maxSim := 0.0
			for _, s := range selected {
				if sim := jaccard(tokens[cand.ID], tokens[s.ID]); sim > maxSim {
					maxSim = sim
				}
			}
			val := mmrLambda*cand.Score - (1-mmrLambda)*maxSim
			if val > bestVal {
				bestIdx, bestVal = i, val
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// rerankRecency biases the score by the block timestamp so newer evidence
// wins close calls without overwhelming relevance.
func rerankRecency(blocks []model.ContextBlock) {
	for i := range blocks {
		if blocks[i].Timestamp != nil {
			blocks[i].Score += float64(blocks[i].Timestamp.Unix()) / recencyScale
		}
	}
	sortByScore(blocks)
}

// EstimateTokens approximates tokenizer output for budget accounting.
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(len(text)) / charsPerToken))
}

// truncateBlock cuts the block text at the character corresponding to the
// remaining token budget and marks the cut with an ellipsis.
func truncateBlock(block model.ContextBlock, remainingTokens int) model.ContextBlock {
	maxChars := int(float64(remainingTokens)*charsPerToken) - 3
	if maxChars < 0 {
		maxChars = 0
	}
	if maxChars > len(block.Text) {
		maxChars = len(block.Text)
	}
	// Do not cut inside a multi-byte rune.
	for maxChars > 0 && block.Text[maxChars-1]&0xC0 == 0x80 {
		maxChars--
	}
	block.Text = block.Text[:maxChars] + "..."
	block.TokenCount = EstimateTokens(block.Text)
	if block.Metadata == nil {
		block.Metadata = map[string]any{}
	}
	block.Metadata["truncated"] = true
	return block
}

func stepOf(b model.ContextBlock) string {
	if b.Metadata != nil {
		if s, ok := b.Metadata["step"].(string); ok {
			return s
		}
	}
	return ""
}

func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[tok] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	inter := 0
	for tok := range small {
		if large[tok] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
