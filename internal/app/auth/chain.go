package auth

import (
	"context"
)

// Chain executes rules in sequence.
type Chain struct {
	rules []Rule
}

// NewChain creates a new rule chain.
func NewChain() *Chain {
	return &Chain{
		rules: make([]Rule, 0),
	}
}

// Add adds a rule to the chain.
func (c *Chain) Add(r Rule) {
	c.rules = append(c.rules, r)
}

// Execute runs the rules that apply to action in sequence.
// Returns immediately if any rule rejects the credentials.
func (c *Chain) Execute(ctx context.Context, creds Credentials, action Action) Result {
	for _, r := range c.rules {
		if !r.AppliesTo(action) {
			continue
		}

		result := r.Check(ctx, creds)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Rules returns all rules in the chain.
func (c *Chain) Rules() []Rule {
	return c.rules
}
