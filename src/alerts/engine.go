package alerts

import (
	"context"
	"fmt"
	"sync"

	"stratbot/src/datamodels"
	"stratbot/src/persistence"
)

// Engine holds user threshold rules and fires them against closed bars.
// Rules are one-shot: a rule that matches is dispatched and deleted in the
// same evaluation. Every mutation is written through to the rule store.
type Engine struct {
	mu             sync.Mutex
	rules          map[string]datamodels.ThresholdRule
	store          *persistence.RuleStore
	sender         Sender
	defaultTargets []datamodels.AlertTarget
	onFired        func(ctx context.Context, rule datamodels.ThresholdRule, bar datamodels.NormalizedBar)
}

func NewEngine(store *persistence.RuleStore, sender Sender) *Engine {
	e := &Engine{
		rules:  map[string]datamodels.ThresholdRule{},
		store:  store,
		sender: sender,
	}
	for _, rule := range store.Load() {
		e.rules[rule.Id] = rule
	}
	return e
}

// WithDefaultTargets sets the targets used when a rule carries none of its
// own, usually the configured alert targets.
func (e *Engine) WithDefaultTargets(targets []datamodels.AlertTarget) *Engine {
	e.defaultTargets = targets
	return e
}

// WithFiredHook registers a callback invoked for every fired rule, after
// dispatch. Used for best-effort alert history.
func (e *Engine) WithFiredHook(hook func(ctx context.Context, rule datamodels.ThresholdRule, bar datamodels.NormalizedBar)) *Engine {
	e.onFired = hook
	return e
}

func (e *Engine) Register(rule datamodels.ThresholdRule) {
	e.mu.Lock()
	e.rules[rule.Id] = rule
	snapshot := e.listLocked()
	e.mu.Unlock()
	e.store.Save(snapshot)
}

func (e *Engine) Remove(ruleId string) {
	e.mu.Lock()
	delete(e.rules, ruleId)
	snapshot := e.listLocked()
	e.mu.Unlock()
	e.store.Save(snapshot)
}

func (e *Engine) List() []datamodels.ThresholdRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listLocked()
}

func (e *Engine) listLocked() []datamodels.ThresholdRule {
	out := make([]datamodels.ThresholdRule, 0, len(e.rules))
	for _, rule := range e.rules {
		out = append(out, rule)
	}
	return out
}

// Evaluate fires every rule matching the bar's symbol and timeframe whose
// comparator is satisfied by the close. Fired rules are removed before
// dispatch so re-evaluation of the same bar cannot fire them again.
func (e *Engine) Evaluate(ctx context.Context, bar datamodels.NormalizedBar) {
	e.mu.Lock()
	fired := []datamodels.ThresholdRule{}
	for id, rule := range e.rules {
		if rule.Symbol != bar.Symbol || rule.Timeframe != bar.Timeframe {
			continue
		}
		if rule.Comparator.Matches(bar.Close, rule.Value) {
			fired = append(fired, rule)
			delete(e.rules, id)
		}
	}
	var snapshot []datamodels.ThresholdRule
	if len(fired) > 0 {
		snapshot = e.listLocked()
	}
	e.mu.Unlock()

	if len(fired) == 0 {
		return
	}
	e.store.Save(snapshot)
	for _, rule := range fired {
		targets := rule.AlertTargets
		if len(targets) == 0 {
			targets = e.defaultTargets
		}
		e.sender.Send(ctx, targets, datamodels.SignalAlert{
			Title: fmt.Sprintf("%s %s %g", rule.Symbol, rule.Comparator, rule.Value),
			Body:  fmt.Sprintf("Close %.4f hit your alert (%s).", bar.Close, rule.Timeframe),
		})
		if e.onFired != nil {
			e.onFired(ctx, rule, bar)
		}
	}
}
