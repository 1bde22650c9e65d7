package rules

import (
	"stratbot/src/datamodels"
)

// Evaluate reports whether every condition in the block passes at bar index
// idx. An empty block never passes: entry/exit blocks must opt in explicitly.
func Evaluate(conditions []datamodels.RuleCondition, features datamodels.FeatureSet, idx int) bool {
	if len(conditions) == 0 {
		return false
	}
	for _, cond := range conditions {
		if !evaluateCondition(cond, features, idx) {
			return false
		}
	}
	return true
}

// EvaluateFilters is Evaluate with the empty-block default flipped: no
// filters means nothing to block on.
func EvaluateFilters(conditions []datamodels.RuleCondition, features datamodels.FeatureSet, idx int) bool {
	if len(conditions) == 0 {
		return true
	}
	return Evaluate(conditions, features, idx)
}

func evaluateCondition(cond datamodels.RuleCondition, features datamodels.FeatureSet, idx int) bool {
	series := features[cond.Indicator]
	targetIdx := idx - cond.Lookback
	if targetIdx < 0 {
		targetIdx = 0
	}
	if targetIdx >= len(series) {
		return false
	}
	frame := series[targetIdx]
	if len(cond.Operands) == 0 {
		return false
	}
	lhs, ok := frame.Values[cond.Operands[0]]
	if !ok {
		return false
	}

	rhs, rhsOk := resolveRhs(cond, frame, true)

	switch cond.Comparator {
	case datamodels.ComparatorGt:
		return rhsOk && lhs > rhs
	case datamodels.ComparatorGte:
		return rhsOk && lhs >= rhs
	case datamodels.ComparatorLt:
		return rhsOk && lhs < rhs
	case datamodels.ComparatorLte:
		return rhsOk && lhs <= rhs
	case datamodels.ComparatorEquals:
		return rhsOk && lhs == rhs
	case datamodels.ComparatorInsideRange:
		if cond.Range == nil {
			return false
		}
		return lhs >= cond.Range[0] && lhs <= cond.Range[1]
	case datamodels.ComparatorOutsideRange:
		if cond.Range == nil {
			return false
		}
		return lhs < cond.Range[0] || lhs > cond.Range[1]
	case datamodels.ComparatorCrossesAbove, datamodels.ComparatorCrossesBelow:
		if targetIdx == 0 {
			return false
		}
		prev := series[targetIdx-1]
		lhsPrev, ok := prev.Values[cond.Operands[0]]
		if !ok {
			return false
		}
		rhsPrev, prevOk := resolveRhs(cond, prev, false)
		if !rhsOk || !prevOk {
			return false
		}
		if cond.Comparator == datamodels.ComparatorCrossesAbove {
			return lhsPrev <= rhsPrev && lhs > rhs
		}
		return lhsPrev >= rhsPrev && lhs < rhs
	default:
		return false
	}
}

// resolveRhs picks the comparison target: an explicit threshold wins, then the
// second operand's value in the frame, then (for the current frame only) the
// lower bound of the rule's range.
func resolveRhs(cond datamodels.RuleCondition, frame datamodels.FeatureFrame, allowRangeFallback bool) (float64, bool) {
	if cond.Threshold != nil {
		return *cond.Threshold, true
	}
	if len(cond.Operands) > 1 {
		if v, ok := frame.Values[cond.Operands[1]]; ok {
			return v, true
		}
	}
	if allowRangeFallback && cond.Range != nil {
		return cond.Range[0], true
	}
	return 0, false
}
