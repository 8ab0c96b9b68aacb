// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// ErrConfig marks a fatal configuration problem detected before any paper
// is processed.
var ErrConfig = errors.New("invalid configuration")

// ConfigError describes a fatal configuration problem for one field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Unwrap returns ErrConfig for use with errors.Is.
func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// NewConfigError formats a ConfigError.
func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}
