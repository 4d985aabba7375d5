// Package rollout implements rule evaluation: picking one fig version out of a family
// for a given evaluation context.
package rollout

import (
	"strconv"
	"strings"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/figchain/go-client-sdk/fcmodel"
)

// Evaluator selects a fig version from a family. It holds no mutable state and is safe
// for concurrent use.
type Evaluator struct {
	loggers ldlog.Loggers
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(loggers ldlog.Loggers) Evaluator {
	return Evaluator{loggers: loggers}
}

// Evaluate picks a version from the family, first success wins:
//
//  1. The first rule, in list order, whose conditions all hold resolves its target
//     version. A rule with no conditions always holds.
//  2. Otherwise the family's default version, if it has one.
//  3. Otherwise the first version in the list, treated as the latest.
//  4. Otherwise there is no result.
//
// A target or default version that does not resolve to any version in the family is not
// an error; evaluation falls through to the next step.
func (e Evaluator) Evaluate(family fcmodel.FigFamily, context fcmodel.EvaluationContext) (fcmodel.Fig, bool) {
	for _, rule := range family.Rules {
		if e.ruleMatches(rule, context) {
			if fig, ok := family.FindVersion(rule.TargetVersion); ok {
				return fig, true
			}
			// The rule matched but names a version the family doesn't have; fall through
			// rather than fail.
			break
		}
	}

	if family.DefaultVersion != "" {
		if fig, ok := family.FindVersion(family.DefaultVersion); ok {
			return fig, true
		}
	}

	if len(family.Figs) > 0 {
		return family.Figs[0], true
	}

	return fcmodel.Fig{}, false
}

func (e Evaluator) ruleMatches(rule fcmodel.Rule, context fcmodel.EvaluationContext) bool {
	for _, condition := range rule.Conditions {
		if !e.conditionHolds(condition, context) {
			return false
		}
	}
	return true
}

func (e Evaluator) conditionHolds(c fcmodel.Condition, context fcmodel.EvaluationContext) bool {
	contextValue, present := context.Value(c.Variable)
	if !present {
		// An absent attribute never matches, regardless of operator.
		return false
	}

	var first string
	if len(c.Values) > 0 {
		first = c.Values[0]
	}

	switch c.Op {
	case fcmodel.OperatorEquals:
		return len(c.Values) > 0 && contextValue == first
	case fcmodel.OperatorNotEquals:
		// With no comparison value, a present attribute trivially differs.
		return len(c.Values) == 0 || contextValue != first
	case fcmodel.OperatorIn:
		for _, v := range c.Values {
			if contextValue == v {
				return true
			}
		}
		return false
	case fcmodel.OperatorNotIn:
		for _, v := range c.Values {
			if contextValue == v {
				return false
			}
		}
		return true
	case fcmodel.OperatorContains:
		return len(c.Values) > 0 && strings.Contains(contextValue, first)
	case fcmodel.OperatorGreaterThan:
		// Lexicographic, not numeric: "9" is greater than "10". This matches the server's
		// rule semantics and must not be changed unilaterally.
		return len(c.Values) > 0 && strings.Compare(contextValue, first) > 0
	case fcmodel.OperatorLessThan:
		return len(c.Values) > 0 && strings.Compare(contextValue, first) < 0
	case fcmodel.OperatorSplit:
		if len(c.Values) == 0 {
			return false
		}
		threshold, err := strconv.Atoi(first)
		if err != nil {
			e.loggers.Warnf("Invalid split threshold %q in condition on %q", first, c.Variable)
			return false
		}
		return Bucket(contextValue) < threshold
	default:
		return false
	}
}
