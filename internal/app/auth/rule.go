package auth

import (
	"context"
	"sort"
)

// Action identifies the operation credentials are checked for.
type Action int

const (
	ActionSignup Action = iota
	ActionLogin
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionSignup:
		return "signup"
	case ActionLogin:
		return "login"
	default:
		return "unknown"
	}
}

// Credentials are the values submitted by the login form.
type Credentials struct {
	Email    string
	Password string
}

// Result represents the result of a rule check.
type Result struct {
	Accepted bool
	Code     string // e.g., "invalid_email", "password_too_short"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Rule is the interface for credential rules.
type Rule interface {
	// Name returns the rule name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this rule can return.
	ReturnCodes() []string
	// ValidateConfig decodes and validates the rule settings.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if the rule should run for the action.
	AppliesTo(action Action) bool
	// Check performs the rule check.
	Check(ctx context.Context, creds Credentials) Result
}

// registry holds registered rule factories.
var registry = make(map[string]func() Rule)

// Register registers a rule factory.
func Register(name string, factory func() Rule) {
	registry[name] = factory
}

// GetRegistered returns all registered rule factories.
func GetRegistered() map[string]func() Rule {
	return registry
}

// RegisteredNames returns the registered rule names, sorted.
func RegisteredNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
