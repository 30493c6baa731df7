package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers engine-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("directory_backend", validateDirectoryBackend); err != nil {
		return fmt.Errorf("failed to register directory_backend validator: %w", err)
	}
	return nil
}

// validateDirectoryBackend validates the directory backend field.
// Valid values: "sqlite", "snapshot", "memory".
func validateDirectoryBackend(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "sqlite", "snapshot", "memory":
		return true
	}
	return false
}

// Validate validates the Config using struct tags and cross-field
// rules. Returns an error with actionable messages on failure.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// Cross-field validation: each backend needs its own path.
	switch c.Directory.Backend {
	case "sqlite":
		if c.Directory.SQLitePath == "" {
			return errors.New("directory.sqlite_path is required when directory.backend is \"sqlite\"")
		}
	case "snapshot":
		if c.Directory.SnapshotPath == "" {
			return errors.New("directory.snapshot_path is required when directory.backend is \"snapshot\"")
		}
	}

	return nil
}

// formatValidationErrors converts validator errors into readable
// configuration messages.
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "directory_backend":
			msgs = append(msgs, fmt.Sprintf("%s: must be one of sqlite, snapshot, memory", fe.Namespace()))
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: required", fe.Namespace()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %s validation", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
