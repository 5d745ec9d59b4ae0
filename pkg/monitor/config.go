package monitor

import (
	"fmt"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/hashstructure/v2"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid monitoring configuration")

// Config describes one monitoring session. It is immutable once a session
// starts.
type Config struct {
	Duration time.Duration `json:"duration" validate:"gt=0,wholeseconds"`
	Interval time.Duration `json:"interval" validate:"gt=0,wholeseconds,ltefield=Duration"`
	Names    []string      `json:"names" validate:"min=1,dive,required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("wholeseconds", func(fl validator.FieldLevel) bool {
		return time.Duration(fl.Field().Int())%time.Second == 0
	})
	return v
}

// NewConfig builds a normalized Config.
func NewConfig(duration, interval time.Duration, names ...string) Config {
	return Config{
		Duration: duration,
		Interval: interval,
		Names:    names,
	}.Normalize()
}

// Normalize trims names and drops duplicates, keeping first-seen order.
func (c Config) Normalize() Config {
	seen := make(map[string]struct{}, len(c.Names))
	names := make([]string, 0, len(c.Names))
	for _, name := range c.Names {
		name = strings.TrimSpace(name)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	c.Names = names
	return c
}

// Validate reports every constraint violation in a single error wrapping
// ErrInvalidConfig.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.StructField())
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("%s must be positive", field)
	case "wholeseconds":
		return fmt.Sprintf("%s must be a whole number of seconds", field)
	case "ltefield":
		return "interval must not exceed duration"
	case "min":
		return "at least one process name is required"
	case "required":
		return "process names must not be empty"
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}

// ExpectedTicks returns how many samples per name a session that is not
// stopped early records.
func (c Config) ExpectedTicks() int {
	if c.Interval <= 0 {
		return 0
	}
	n := int(c.Duration / c.Interval)
	if c.Duration%c.Interval != 0 {
		n++
	}
	return n
}

// ID returns a short stable identifier derived from the configuration.
func (c Config) ID() string {
	hash, err := hashstructure.Hash(c, hashstructure.FormatV2, nil)
	if err != nil {
		return "unknown"
	}
	return fmt.Sprintf("%016x", hash)[:8]
}
