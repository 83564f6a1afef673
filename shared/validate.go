package shared

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator"
	"github.com/pkg/errors"
)

const (
	SUPABASE_BACKEND = "supabase"
	SQLITE_BACKEND   = "sqlite"
	MEMORY_BACKEND   = "memory"
)

var (
	validate = newValidator()

	countryCodeRegex = regexp.MustCompile(`^[0-9]{1,4}$`)
)

func newValidator() *validator.Validate {
	v := validator.New()

	// country codes are bare digits, without '+' or a sign
	err := v.RegisterValidation("country_code", func(fl validator.FieldLevel) bool {
		return countryCodeRegex.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateConfig checks cfg's field rules and the settings each store backend
// depends on.
func ValidateConfig(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}

		msgs := []string{}
		for _, fieldErr := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("'%v' failed on the '%v' rule", fieldErr.Namespace(), fieldErr.Tag()))
		}
		return fmt.Errorf("invalid config: %v", strings.Join(msgs, "; "))
	}

	switch cfg.Store.Backend {
	case SUPABASE_BACKEND:
		if cfg.Supabase.URL == "" || cfg.Supabase.AnonKey == "" {
			return errors.New("invalid config: 'supabase.url' and 'supabase.anonKey' are required for the supabase backend")
		}
	case SQLITE_BACKEND:
		if cfg.Sqlite.PassPhrase == "" {
			return errors.New("invalid config: 'sqlite.passPhrase' is required for the sqlite backend")
		}
	}

	return nil
}
