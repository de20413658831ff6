package auth

import (
	"context"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunebox/internal/domain/user"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// EmailFormatRule rejects strings that do not look like an email address.
type EmailFormatRule struct{}

func (r *EmailFormatRule) Name() string {
	return "email_format"
}

func (r *EmailFormatRule) Description() string {
	return "Checks that the email looks like name@domain.tld"
}

func (r *EmailFormatRule) ReturnCodes() []string {
	return []string{"invalid_email"}
}

func (r *EmailFormatRule) ValidateConfig(settings map[string]any) error {
	return nil
}

func (r *EmailFormatRule) AppliesTo(action Action) bool {
	return true
}

func (r *EmailFormatRule) Check(ctx context.Context, creds Credentials) Result {
	if !emailPattern.MatchString(strings.TrimSpace(creds.Email)) {
		return Reject("invalid_email")
	}
	return Accept()
}

// AllowedDomainConfig represents the configuration for AllowedDomainRule.
type AllowedDomainConfig struct {
	Domains []string `yaml:"domains" mapstructure:"domains" default:"[\"gmail.com\",\"yahoo.com\",\"outlook.com\",\"hotmail.com\",\"icloud.com\",\"protonmail.com\"]" validate:"min=1,dive,required"`
}

// AllowedDomainRule accepts emails whose domain is an allowed domain or one
// of its subdomains.
type AllowedDomainRule struct {
	config *AllowedDomainConfig
}

// NewAllowedDomainRule creates a rule allowing the given domains.
func NewAllowedDomainRule(domains ...string) *AllowedDomainRule {
	return &AllowedDomainRule{config: &AllowedDomainConfig{Domains: domains}}
}

func (r *AllowedDomainRule) Name() string {
	return "allowed_domain"
}

func (r *AllowedDomainRule) Description() string {
	return "Accepts only emails from allowed domains or their subdomains"
}

func (r *AllowedDomainRule) ReturnCodes() []string {
	return []string{"domain_not_allowed"}
}

func (r *AllowedDomainRule) ValidateConfig(settings map[string]any) error {
	var config AllowedDomainConfig

	if err := mapstructure.Decode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	for i, d := range config.Domains {
		config.Domains[i] = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
	}
	r.config = &config
	zlog.Debug().Msgf("allowed domain rule config: %+v", config)
	return nil
}

func (r *AllowedDomainRule) AppliesTo(action Action) bool {
	return true
}

// Domains returns the allowed domains.
func (r *AllowedDomainRule) Domains() []string {
	if r.config == nil {
		return nil
	}
	return r.config.Domains
}

func (r *AllowedDomainRule) Check(ctx context.Context, creds Credentials) Result {
	// Not configured: accept all domains
	if r.config == nil {
		return Accept()
	}

	domain := user.Domain(strings.TrimSpace(creds.Email))
	for _, allowed := range r.config.Domains {
		if domain == allowed || strings.HasSuffix(domain, "."+allowed) {
			return Accept()
		}
	}
	return Reject("domain_not_allowed")
}

func init() {
	Register("email_format", func() Rule {
		return &EmailFormatRule{}
	})
	Register("allowed_domain", func() Rule {
		return &AllowedDomainRule{}
	})
}
