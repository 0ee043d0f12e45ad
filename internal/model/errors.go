package model

import "fmt"

// NormalizationError reports a required field that is absent or unparsable in
// the raw input. Path names the offending field in the raw record.
type NormalizationError struct {
	Path    string
	Message string
	Cause   error
}

func (e *NormalizationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("normalize %s: %s (%v)", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("normalize %s: %s", e.Path, e.Message)
}

func (e *NormalizationError) Unwrap() error {
	return e.Cause
}

// NewNormalizationError creates a new normalization error
func NewNormalizationError(path, message string, cause error) *NormalizationError {
	return &NormalizationError{
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// SerializationError reports that the invoice violates a structural
// requirement of one target schema. The other format may still succeed.
type SerializationError struct {
	Format  OutputFormat
	Field   string
	Message string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize [%s] %s: %s", e.Format, e.Field, e.Message)
}

// NewSerializationError creates a new serialization error
func NewSerializationError(format OutputFormat, field, message string) *SerializationError {
	return &SerializationError{
		Format:  format,
		Field:   field,
		Message: message,
	}
}

// ValidationError represents construction-time validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed on %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("validation failed on %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, rule, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}
