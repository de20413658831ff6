package auth

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/infra/config"
)

// ruleOrder is the order rules run in. Format is checked before the domain,
// and password rules in the order the signup form reports them.
var ruleOrder = []string{
	"email_format",
	"allowed_domain",
	"password_length",
	"password_digit",
	"password_special",
}

// NewChainFromConfig creates a rule chain from configuration.
// Rules absent from the configuration run with their default settings.
func NewChainFromConfig(cfg *config.Config) (*Chain, error) {
	for name := range cfg.Rules {
		if _, ok := registry[name]; !ok {
			return nil, errors.Newf("unknown rule: %s", name)
		}
	}

	chain := NewChain()
	for _, name := range ruleOrder {
		factory, ok := registry[name]
		if !ok {
			continue
		}
		if !cfg.RuleEnabled(name) {
			zlog.Info().Msgf("credential rule disabled: name=%s", name)
			continue
		}

		r := factory()
		if err := r.ValidateConfig(cfg.RuleSettings(name)); err != nil {
			return nil, errors.Wrapf(err, "invalid settings for rule %s", name)
		}
		chain.Add(r)
		zlog.Debug().Msgf("registered credential rule: name=%s codes=%v", name, r.ReturnCodes())
	}

	return chain, nil
}
