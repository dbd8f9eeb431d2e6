// Package config provides YAML-based configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Load decodes a YAML file over target, expanding ${VAR} and ${VAR:-default}
// references first, then validates it. Keys absent from the file keep the
// values already in target.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if err := Decode(data, target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return validate(target)
}

// LoadOptional behaves like Load, except a missing file leaves the defaults
// in target and only validates them.
func LoadOptional[T any](filename string, target *T) error {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return validate(target)
	}
	return Load(filename, target)
}

// Decode expands environment references in data and unmarshals it. Unknown
// keys are rejected so typos do not silently fall back to defaults.
func Decode[T any](data []byte, target *T) error {
	dec := yaml.NewDecoder(strings.NewReader(Expand(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Expand replaces ${VAR} and $VAR with the environment value. ${VAR:-def}
// falls back to def when VAR is unset or empty.
func Expand(s string) string {
	return os.Expand(s, func(key string) string {
		name, def, hasDef := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" || !hasDef {
			return v
		}
		return def
	})
}

func validate(target any) error {
	if validator, ok := target.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
