// Package fcmodel contains the data model types that represent FigChain configuration
// data: fig families, fig versions, rollout rules, and evaluation contexts.
//
// These types are deserialized from server responses and replaced wholesale on every
// update to the same (namespace, key); they are never merged field by field.
package fcmodel

// Operator is the comparison operator used in a rollout rule condition.
type Operator string

const (
	// OperatorEquals matches when the context value is exactly equal to the first condition value.
	OperatorEquals Operator = "EQUALS"
	// OperatorNotEquals matches when the context value differs from the first condition value.
	OperatorNotEquals Operator = "NOT_EQUALS"
	// OperatorIn matches when the context value is one of the condition values.
	OperatorIn Operator = "IN"
	// OperatorNotIn matches when the context value is none of the condition values.
	OperatorNotIn Operator = "NOT_IN"
	// OperatorContains matches when the context value contains the first condition value as a substring.
	OperatorContains Operator = "CONTAINS"
	// OperatorGreaterThan matches when the context value sorts lexicographically after the first
	// condition value. The comparison is on strings, not numbers: "9" is greater than "10".
	OperatorGreaterThan Operator = "GREATER_THAN"
	// OperatorLessThan matches when the context value sorts lexicographically before the first
	// condition value. Like OperatorGreaterThan, this is a string comparison.
	OperatorLessThan Operator = "LESS_THAN"
	// OperatorSplit matches when the context value hashes into a bucket below the percentage
	// threshold given as the first condition value. Bucketing is deterministic, so the same
	// context value always falls on the same side of the split.
	OperatorSplit Operator = "SPLIT"
)

// Condition is a single predicate within a rollout rule.
type Condition struct {
	// Variable is the name of the context attribute the condition inspects. If the attribute
	// is absent from the evaluation context, the condition never holds, for any operator.
	Variable string
	// Op is the comparison operator.
	Op Operator
	// Values holds one or more comparison values. Most operators use only the first value;
	// IN and NOT_IN use the whole set.
	Values []string
}

// Rule selects a target fig version when all of its conditions hold. A rule with no
// conditions always matches.
type Rule struct {
	Conditions    []Condition
	TargetVersion string
}

// Fig is one version of a configuration payload within a family.
type Fig struct {
	// ID is an opaque identifier for this fig.
	ID string
	// Version is the version tag that rules and the family default refer to.
	Version string
	// Payload is the opaque configuration payload. If Encrypted is set, it is ciphertext
	// that must be decrypted with the data-encryption key wrapped in WrappedDEK.
	Payload []byte
	// Encrypted indicates that Payload is envelope-encrypted.
	Encrypted bool
	// KeyID identifies the key that wrapped the data-encryption key.
	KeyID string
	// WrappedDEK is the wrapped data-encryption key for an encrypted payload.
	WrappedDEK []byte
}

// FigFamily is the full set of versions and rollout rules for one (namespace, key)
// configuration.
type FigFamily struct {
	Namespace string
	Key       string
	// Figs is the ordered list of candidate versions. The first entry is treated as the
	// latest and is the fallback of last resort during evaluation.
	Figs []Fig
	// Rules is evaluated in order; the first rule whose conditions all hold wins.
	Rules []Rule
	// DefaultVersion names the version to use when no rule matches. Empty means no default.
	DefaultVersion string
}

// FindVersion returns the first fig in the family whose version tag equals version.
// A version referenced by a rule or default that is not present in the list is tolerated;
// the caller falls through to the next evaluation step.
func (f FigFamily) FindVersion(version string) (Fig, bool) {
	for _, fig := range f.Figs {
		if fig.Version == version {
			return fig, true
		}
	}
	return Fig{}, false
}
