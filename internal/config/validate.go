// ABOUTME: Structural and cross-field validation of a loaded Config
// ABOUTME: Field errors are reported by their YAML path, e.g. ao.accounts[0].character

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]error, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Errorf("%s: failed %q check", yamlPath(fe.Namespace()), fe.Tag()))
		}
		return errors.Join(msgs...)
	}

	if c.Dispatch.Timeout <= 0 {
		return errors.New("dispatch.timeout must be positive")
	}
	if c.Supervisor.BackoffInitial <= 0 {
		return errors.New("supervisor.backoff_initial must be positive")
	}
	if c.Supervisor.BackoffMax < c.Supervisor.BackoffInitial {
		return errors.New("supervisor.backoff_max must not be less than supervisor.backoff_initial")
	}

	seen := make(map[string]bool, len(c.AO.Accounts))
	for _, acc := range c.AO.Accounts {
		name := acc.SessionName()
		if seen[name] {
			return fmt.Errorf("duplicate account for character %s", name)
		}
		seen[name] = true
	}

	return nil
}

// yamlPath drops the leading struct name from a validator namespace.
func yamlPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
