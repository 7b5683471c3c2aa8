package model

import "time"

// RetrievalMode selects the retrieval family for a query.
type RetrievalMode string

const (
	ModeVector  RetrievalMode = "vector"
	ModeHybrid  RetrievalMode = "hybrid"
	ModeAgentic RetrievalMode = "agentic"
	ModeAuto    RetrievalMode = "auto"
)

// StepKind is one executable step of a retrieval plan.
type StepKind string

const (
	StepVectorSearch StepKind = "vector_search"
	StepEntityLookup StepKind = "entity_lookup"
	StepNeighbors    StepKind = "neighbors"
	StepGraphPaths   StepKind = "graph_paths"
)

// RerankStrategy names the reranking applied by the context builder.
type RerankStrategy string

const (
	RerankScoreBased     RerankStrategy = "score_based"
	RerankRRF            RerankStrategy = "reciprocal_rank_fusion"
	RerankDiversityAware RerankStrategy = "diversity_aware"
	RerankRecencyBiased  RerankStrategy = "recency_biased"
)

// RetrievalPlan is the planner's output: an ordered step list plus context
// budgets. Planning is deterministic for identical inputs.
type RetrievalPlan struct {
	Mode           RetrievalMode  `json:"mode"`
	Steps          []StepKind     `json:"steps"`
	MaxTokens      int            `json:"max_tokens"`
	MaxBlocks      int            `json:"max_blocks"`
	RerankStrategy RerankStrategy `json:"rerank_strategy"`
}

// ContextBlock is the final unit delivered to a downstream generator.
// SourceID identifies the underlying chunk or entity; two blocks with the
// same SourceID are duplicates and collapse to the higher-scoring one.
type ContextBlock struct {
	ID         string         `json:"id"`
	SourceID   string         `json:"source_id"`
	Text       string         `json:"text"`
	SourceType string         `json:"source_type"`
	Score      float64        `json:"score"`
	TokenCount int            `json:"token_count"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`

	// StepRanks records the block's rank within every retrieval step that
	// returned it, keyed by step name. Rank-fusion reranking sums one
	// reciprocal term per entry.
	StepRanks map[string]int `json:"-"`
}

// QueryFilters narrows retrieval to matching payloads.
type QueryFilters struct {
	SourceTypes []string `json:"source_types,omitempty"`
	Languages   []string `json:"languages,omitempty"`
	DateRange   []string `json:"date_range,omitempty"`
}

// StepDiagnostic records what one plan step contributed, for the response
// diagnostics manifest.
type StepDiagnostic struct {
	Step       StepKind      `json:"step"`
	Blocks     int           `json:"blocks"`
	Deadlined  bool          `json:"deadlined"`
	Err        string        `json:"error,omitempty"`
	DurationMS int64         `json:"duration_ms"`
	TopK       int           `json:"top_k,omitempty"`
	Elapsed    time.Duration `json:"-"`
}
