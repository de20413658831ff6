package auth

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// PasswordLengthConfig represents the configuration for PasswordLengthRule.
type PasswordLengthConfig struct {
	MinLength int `yaml:"min_length" mapstructure:"min_length" default:"8" validate:"gte=1,lte=72"`
}

// PasswordLengthRule checks the minimum password length.
type PasswordLengthRule struct {
	config *PasswordLengthConfig
}

func (r *PasswordLengthRule) Name() string {
	return "password_length"
}

func (r *PasswordLengthRule) Description() string {
	return "Checks that the password has a minimum number of characters"
}

func (r *PasswordLengthRule) ReturnCodes() []string {
	return []string{"password_too_short"}
}

func (r *PasswordLengthRule) ValidateConfig(settings map[string]any) error {
	var config PasswordLengthConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	r.config = &config
	zlog.Debug().Msgf("password length rule config: %+v", config)
	return nil
}

func (r *PasswordLengthRule) AppliesTo(action Action) bool {
	// Existing accounts may predate the rule
	return action == ActionSignup
}

func (r *PasswordLengthRule) Check(ctx context.Context, creds Credentials) Result {
	if r.config == nil {
		return Accept()
	}
	if utf8.RuneCountInString(creds.Password) < r.config.MinLength {
		return Reject("password_too_short")
	}
	return Accept()
}

// PasswordDigitRule requires at least one decimal digit.
type PasswordDigitRule struct{}

func (r *PasswordDigitRule) Name() string {
	return "password_digit"
}

func (r *PasswordDigitRule) Description() string {
	return "Checks that the password contains a number"
}

func (r *PasswordDigitRule) ReturnCodes() []string {
	return []string{"password_missing_digit"}
}

func (r *PasswordDigitRule) ValidateConfig(settings map[string]any) error {
	return nil
}

func (r *PasswordDigitRule) AppliesTo(action Action) bool {
	return action == ActionSignup
}

func (r *PasswordDigitRule) Check(ctx context.Context, creds Credentials) Result {
	if !strings.ContainsAny(creds.Password, "0123456789") {
		return Reject("password_missing_digit")
	}
	return Accept()
}

// PasswordSpecialConfig represents the configuration for PasswordSpecialRule.
type PasswordSpecialConfig struct {
	Characters string `yaml:"characters" mapstructure:"characters" default:"!@#$%^&*" validate:"required"`
}

// PasswordSpecialRule requires at least one special character.
type PasswordSpecialRule struct {
	config *PasswordSpecialConfig
}

func (r *PasswordSpecialRule) Name() string {
	return "password_special"
}

func (r *PasswordSpecialRule) Description() string {
	return "Checks that the password contains a special character"
}

func (r *PasswordSpecialRule) ReturnCodes() []string {
	return []string{"password_missing_special"}
}

func (r *PasswordSpecialRule) ValidateConfig(settings map[string]any) error {
	var config PasswordSpecialConfig

	if err := mapstructure.Decode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	r.config = &config
	zlog.Debug().Msgf("password special rule config: %+v", config)
	return nil
}

func (r *PasswordSpecialRule) AppliesTo(action Action) bool {
	return action == ActionSignup
}

func (r *PasswordSpecialRule) Check(ctx context.Context, creds Credentials) Result {
	if r.config == nil {
		return Accept()
	}
	if !strings.ContainsAny(creds.Password, r.config.Characters) {
		return Reject("password_missing_special")
	}
	return Accept()
}

func init() {
	Register("password_length", func() Rule {
		return &PasswordLengthRule{}
	})
	Register("password_digit", func() Rule {
		return &PasswordDigitRule{}
	})
	Register("password_special", func() Rule {
		return &PasswordSpecialRule{}
	})
}
