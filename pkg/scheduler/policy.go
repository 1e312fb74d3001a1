package scheduler

import (
	"context"
	"math/rand"

	"github.com/myntacore/mynta-chaos-go/pkg/cerrors"
)

// Action is one tagged entry of the dispatch table: a named handler with
// its static weight. Handlers signal failure through the returned error;
// they never abort the scheduler themselves.
type Action struct {
	Name   string
	Weight int
	Run    func(ctx context.Context) error
}

// Policy decides which actions an iteration executes. Both chaos profiles
// are instances of the same scheduler; only the policy differs.
type Policy interface {
	Next(iteration int) []*Action
}

// WeightedPolicy draws one action per iteration under a static weight
// table, cumulative-sum sampled (weights are not re-normalized per draw)
type WeightedPolicy struct {
	actions []*Action
	total   int
	r       *rand.Rand
}

// NewWeightedPolicy builds the weighted dispatch table; seed 0 keeps the
// non-deterministic default, any other seed makes draws reproducible
func NewWeightedPolicy(r *rand.Rand, actions ...*Action) (*WeightedPolicy, error) {
	total := 0
	for _, action := range actions {
		if action.Weight < 0 {
			return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeGeneric, Reason: "negative weight for action " + action.Name}
		}
		total += action.Weight
	}
	if total == 0 {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeGeneric, Reason: "weight table sums to zero"}
	}
	return &WeightedPolicy{actions: actions, total: total, r: r}, nil
}

// Next draws one action by cumulative weight
func (p *WeightedPolicy) Next(iteration int) []*Action {
	draw := p.r.Intn(p.total) + 1
	cumulative := 0
	for _, action := range p.actions {
		cumulative += action.Weight
		if draw <= cumulative {
			return []*Action{action}
		}
	}
	// unreachable while total is the sum of the weights
	return []*Action{p.actions[len(p.actions)-1]}
}

// CadenceRule fires its action whenever iteration is a multiple of Every
type CadenceRule struct {
	Every  int
	Action *Action
}

// CadencePolicy replaces weighted sampling with deterministic modular
// triggers, the soak-style profile
type CadencePolicy struct {
	rules []CadenceRule
}

// NewCadencePolicy builds the fixed-cadence dispatch table
func NewCadencePolicy(rules ...CadenceRule) *CadencePolicy {
	return &CadencePolicy{rules: rules}
}

// Next collects every rule due at this iteration, in declaration order
func (p *CadencePolicy) Next(iteration int) []*Action {
	var due []*Action
	for _, rule := range p.rules {
		every := rule.Every
		if every <= 1 {
			due = append(due, rule.Action)
			continue
		}
		if iteration%every == 0 {
			due = append(due, rule.Action)
		}
	}
	return due
}
