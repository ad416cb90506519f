package config

import (
	"errors"
	"fmt"

	"github.com/hyp3rd/ewrap"
)

var (
	// ErrConfigMissing is returned when no configuration source yields a document.
	ErrConfigMissing = ewrap.New("observability config missing").WithContext(configErrorContext())
	// ErrConfigMalformed is returned when the document is not a well-formed configuration.
	ErrConfigMalformed = ewrap.New("observability config malformed").WithContext(configErrorContext())
	// ErrUnknownEventType is returned for event type names outside the enumeration.
	ErrUnknownEventType = ewrap.New("unknown event type").WithContext(configErrorContext())
	// ErrFilterPatternMissing is returned when a log filter omits its pattern.
	ErrFilterPatternMissing = ewrap.New("log filter pattern is required").WithContext(configErrorContext())
)

func configErrorContext() *ewrap.ErrorContext {
	return &ewrap.ErrorContext{
		Severity: ewrap.SeverityError,
		Type:     ewrap.ErrorTypeConfiguration,
	}
}

// IsConfigError reports whether err belongs to the configuration error taxonomy.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfigMissing) ||
		errors.Is(err, ErrConfigMalformed) ||
		errors.Is(err, ErrUnknownEventType) ||
		errors.Is(err, ErrFilterPatternMissing)
}

func malformedError(err error, msg string) error {
	return &malformedConfigError{
		err:   ewrap.Wrap(err, msg),
		cause: err,
	}
}

func unknownEventTypeError(name string) error {
	return ewrap.Wrapf(ErrUnknownEventType, "event type %q", name)
}

func missingPatternError(index int) error {
	return malformedError(ErrFilterPatternMissing, fmt.Sprintf("log_filters[%d]", index))
}

// malformedConfigError marks a decode failure as ErrConfigMalformed while
// keeping the underlying cause reachable through errors.Is.
type malformedConfigError struct {
	err   *ewrap.Error
	cause error
}

// Error implements error.
func (m *malformedConfigError) Error() string {
	if m == nil || m.err == nil {
		return ""
	}

	return ErrConfigMalformed.Error() + ": " + m.err.Error()
}

// Unwrap implements errors.Wrapper.
func (m *malformedConfigError) Unwrap() []error {
	if m == nil {
		return nil
	}

	return []error{ErrConfigMalformed, m.cause}
}
