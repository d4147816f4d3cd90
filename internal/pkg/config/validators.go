// internal/pkg/config/validators.go
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMissingRequiredConfig is returned when a required setting is empty or a placeholder
var ErrMissingRequiredConfig = errors.New("missing required configuration")

// ProductionValidator performs strict validation for production environments
type ProductionValidator struct{}

// Validate performs production-specific validation
func (v *ProductionValidator) Validate(cfg *Config) error {
	if strings.Contains(cfg.AWS.SecretAccessKey, "MISSING_") {
		return fmt.Errorf("%w: AWS secret access key", ErrMissingRequiredConfig)
	}

	if !cfg.Security.SecureHeaders {
		return fmt.Errorf("secure headers must be enabled in production")
	}

	for _, origin := range cfg.Security.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("wildcard origin (*) not allowed in production")
		}
	}

	if cfg.App.Debug {
		return fmt.Errorf("debug mode must be disabled in production")
	}

	return nil
}

var validate = validator.New()

// validateRequired checks the validate tags on cfg and reports the first
// offending setting by its dotted path
func validateRequired(cfg *Config) error {
	err := validate.Struct(cfg)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequiredConfig, strings.TrimPrefix(verrs[0].Namespace(), "Config."))
	}
	return err
}
