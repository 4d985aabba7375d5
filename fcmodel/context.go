package fcmodel

// EvaluationContext is an immutable set of attributes that rollout rules are evaluated
// against, such as a user ID, tenant, or region. Build one with NewContextBuilder, or
// from an existing map with ContextFromMap.
//
// The zero value is a valid empty context.
type EvaluationContext struct {
	attributes map[string]string
}

// ContextBuilder is a mutable builder for EvaluationContext.
type ContextBuilder struct {
	attributes map[string]string
}

// NewContextBuilder creates a ContextBuilder.
func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{attributes: make(map[string]string)}
}

// Set adds or replaces an attribute.
func (b *ContextBuilder) Set(name, value string) *ContextBuilder {
	b.attributes[name] = value
	return b
}

// Build creates the immutable context. The builder can be reused afterward without
// affecting contexts already built.
func (b *ContextBuilder) Build() EvaluationContext {
	attrs := make(map[string]string, len(b.attributes))
	for k, v := range b.attributes {
		attrs[k] = v
	}
	return EvaluationContext{attributes: attrs}
}

// ContextFromMap creates an EvaluationContext from a map. The map is copied.
func ContextFromMap(attributes map[string]string) EvaluationContext {
	attrs := make(map[string]string, len(attributes))
	for k, v := range attributes {
		attrs[k] = v
	}
	return EvaluationContext{attributes: attrs}
}

// Value returns the named attribute and whether it is present.
func (c EvaluationContext) Value(name string) (string, bool) {
	v, ok := c.attributes[name]
	return v, ok
}

// Merge produces a new context containing the attributes of both contexts. On a key
// collision, the attribute from override wins.
func (c EvaluationContext) Merge(override EvaluationContext) EvaluationContext {
	if len(override.attributes) == 0 {
		return ContextFromMap(c.attributes)
	}
	merged := make(map[string]string, len(c.attributes)+len(override.attributes))
	for k, v := range c.attributes {
		merged[k] = v
	}
	for k, v := range override.attributes {
		merged[k] = v
	}
	return EvaluationContext{attributes: merged}
}
