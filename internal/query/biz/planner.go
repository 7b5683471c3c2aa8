package biz

import (
	"strings"

	"github.com/kart-io/cortex-x/internal/pkg/model"
	contextopts "github.com/kart-io/cortex-x/pkg/options/contextbuilder"
)

// Rule phrase sets, matched in order against the lowercased query.
var (
	hybridPhrases  = []string{"who owns", "who wrote", "who maintains", "related to", "connected to"}
	agenticPhrases = []string{"trace", "investigate", "timeline", "how did"}
)

// Planner maps a query to an executable retrieval plan. Planning is pure:
// the same query, mode, and budgets always yield the same plan.
type Planner struct {
	opts *contextopts.Options
}

// NewPlanner creates a planner with the given context budgets.
func NewPlanner(opts *contextopts.Options) *Planner {
	if opts == nil {
		opts = contextopts.NewOptions()
	}
	return &Planner{opts: opts}
}

// Plan builds the retrieval plan. A requested mode other than auto is
// honored as-is; auto mode classifies the query by phrase rules.
func (p *Planner) Plan(query string, mode model.RetrievalMode, maxTokens, maxBlocks int, rerank model.RerankStrategy) *model.RetrievalPlan {
	plan := &model.RetrievalPlan{
		MaxTokens:      p.opts.MaxTokens,
		MaxBlocks:      p.opts.MaxBlocks,
		RerankStrategy: model.RerankStrategy(p.opts.DefaultRerank),
	}
	if maxTokens > 0 {
		plan.MaxTokens = maxTokens
	}
	if maxBlocks > 0 {
		plan.MaxBlocks = maxBlocks
	}

	if mode == "" || mode == model.ModeAuto {
		mode = classify(query)
	}
	plan.Mode = mode

	switch mode {
	case model.ModeHybrid:
		plan.Steps = []model.StepKind{model.StepEntityLookup, model.StepNeighbors, model.StepVectorSearch}
	case model.ModeAgentic:
		plan.Steps = []model.StepKind{model.StepGraphPaths, model.StepVectorSearch}
	default:
		plan.Steps = []model.StepKind{model.StepVectorSearch, model.StepEntityLookup}
	}

	if rerank != "" {
		plan.RerankStrategy = rerank
	} else if len(plan.Steps) > 2 {
		plan.RerankStrategy = model.RerankDiversityAware
	}
	return plan
}

// classify applies the phrase rules in order; the first family whose
// phrases match wins, everything else retrieves by vector.
func classify(query string) model.RetrievalMode {
	q := strings.ToLower(query)
	for _, phrase := range hybridPhrases {
		if strings.Contains(q, phrase) {
			return model.ModeHybrid
		}
	}
	for _, phrase := range agenticPhrases {
		if strings.Contains(q, phrase) {
			return model.ModeAgentic
		}
	}
	return model.ModeVector
}
