// Package hook is the message-processing callback the host invokes once
// per message and direction.
package hook

import (
	"github.com/raaihank/isolated-regex/internal/metrics"
	"github.com/raaihank/isolated-regex/internal/rule"
)

// RuleSource returns a copy of the active character's rule
type RuleSource interface {
	Snapshot(ref string) (rule.Rule, bool)
}

// Applier runs one substitution pass
type Applier interface {
	Apply(text string, r *rule.Rule) string
}

// Processor applies the active character's rule to messages whose role is
// in the rule's scope
type Processor struct {
	rules    RuleSource
	executor Applier
}

// New creates a processor
func New(rules RuleSource, executor Applier) *Processor {
	return &Processor{rules: rules, executor: executor}
}

// Process returns text after the active character's rule has been applied
// to it. Text passes through unchanged when no character is active, the
// rule does not cover role or the rule is inactive.
func (p *Processor) Process(role rule.Role, text string) string {
	r, ok := p.rules.Snapshot("")
	if !ok {
		metrics.MessagesProcessed.WithLabelValues(string(role), "no_character").Inc()
		return text
	}
	if !r.Scope.Has(role) {
		metrics.MessagesProcessed.WithLabelValues(string(role), "out_of_scope").Inc()
		return text
	}

	out := p.executor.Apply(text, &r)
	if out == text {
		metrics.MessagesProcessed.WithLabelValues(string(role), "unchanged").Inc()
	} else {
		metrics.MessagesProcessed.WithLabelValues(string(role), "rewritten").Inc()
	}
	return out
}

// ProcessOutput handles model-generated text
func (p *Processor) ProcessOutput(text string) string {
	return p.Process(rule.RoleAIOutput, text)
}

// ProcessInput handles user-submitted text
func (p *Processor) ProcessInput(text string) string {
	return p.Process(rule.RoleUserInput, text)
}
