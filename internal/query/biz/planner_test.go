package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/cortex-x/internal/pkg/model"
)

func TestPlanOwnershipQueriesGoHybrid(t *testing.T) {
	p := NewPlanner(nil)

	for _, q := range []string{
		"Who owns the billing service?",
		"who wrote PaymentProcessor",
		"services related to checkout",
		"what is connected to the auth gateway",
	} {
		plan := p.Plan(q, model.ModeAuto, 0, 0, "")
		assert.Equal(t, model.ModeHybrid, plan.Mode, q)
		assert.Equal(t, []model.StepKind{model.StepEntityLookup, model.StepNeighbors, model.StepVectorSearch}, plan.Steps, q)
	}
}

func TestPlanInvestigativeQueriesGoAgentic(t *testing.T) {
	p := NewPlanner(nil)

	for _, q := range []string{
		"trace the request path for order creation",
		"investigate the checkout latency spike",
		"timeline of the incident on May 3",
		"how did the migration break replication",
	} {
		plan := p.Plan(q, model.ModeAuto, 0, 0, "")
		assert.Equal(t, model.ModeAgentic, plan.Mode, q)
		assert.Equal(t, []model.StepKind{model.StepGraphPaths, model.StepVectorSearch}, plan.Steps, q)
	}
}

func TestPlanDefaultsToVector(t *testing.T) {
	p := NewPlanner(nil)

	plan := p.Plan("what does the chunk size default to", model.ModeAuto, 0, 0, "")
	assert.Equal(t, model.ModeVector, plan.Mode)
	assert.Equal(t, []model.StepKind{model.StepVectorSearch, model.StepEntityLookup}, plan.Steps)
	assert.Equal(t, 8000, plan.MaxTokens)
	assert.Equal(t, 20, plan.MaxBlocks)
	assert.Equal(t, model.RerankRRF, plan.RerankStrategy)
}

func TestPlanFirstRuleWins(t *testing.T) {
	p := NewPlanner(nil)

	// Contains both an ownership phrase and an investigative phrase; the
	// ownership rule is checked first.
	plan := p.Plan("who owns the service and how did it break", model.ModeAuto, 0, 0, "")
	assert.Equal(t, model.ModeHybrid, plan.Mode)
}

func TestPlanHonorsExplicitMode(t *testing.T) {
	p := NewPlanner(nil)

	plan := p.Plan("who owns checkout", model.ModeVector, 0, 0, "")
	assert.Equal(t, model.ModeVector, plan.Mode)
}

func TestPlanBudgetOverridesAndDiversity(t *testing.T) {
	p := NewPlanner(nil)

	plan := p.Plan("who owns checkout", model.ModeAuto, 2000, 5, "")
	assert.Equal(t, 2000, plan.MaxTokens)
	assert.Equal(t, 5, plan.MaxBlocks)
	// Three-step plans switch to diversity-aware reranking.
	require.Len(t, plan.Steps, 3)
	assert.Equal(t, model.RerankDiversityAware, plan.RerankStrategy)

	plan = p.Plan("who owns checkout", model.ModeAuto, 0, 0, model.RerankScoreBased)
	assert.Equal(t, model.RerankScoreBased, plan.RerankStrategy)
}

func TestPlanDeterministic(t *testing.T) {
	p := NewPlanner(nil)
	a := p.Plan("trace the outage", model.ModeAuto, 0, 0, "")
	b := p.Plan("trace the outage", model.ModeAuto, 0, 0, "")
	assert.Equal(t, a, b)
}
