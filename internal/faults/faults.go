package faults

import (
	"errors"
	"fmt"
)

// ErrEmptySelection marks an operation that ran over no incidents. Public
// operations recover it into an empty or zero result.
var ErrEmptySelection = errors.New("empty selection")

// #region data-format
// DataFormatError reports an unparsable deviation blob, threshold expression
// or upstream payload.
type DataFormatError struct {
	Source string // what was being parsed, e.g. "threshold" or "deviation"
	Input  string
	Reason string
	Err    error
}

func (e *DataFormatError) Error() string {
	msg := fmt.Sprintf("%s: malformed input %q: %s", e.Source, e.Input, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// DataFormat builds a DataFormatError.
func DataFormat(source, input, reason string) *DataFormatError {
	return &DataFormatError{Source: source, Input: input, Reason: reason}
}

// #endregion data-format

// #region configuration
// ConfigurationError reports an unknown metric, severity label or an out of
// range configuration value.
type ConfigurationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s=%q: %s", e.Field, e.Value, e.Reason)
}

// Configuration builds a ConfigurationError.
func Configuration(field, value, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

// #endregion configuration

// #region predicates
// IsDataFormat reports whether err wraps a DataFormatError.
func IsDataFormat(err error) bool {
	var target *DataFormatError
	return errors.As(err, &target)
}

// IsConfiguration reports whether err wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// #endregion predicates
