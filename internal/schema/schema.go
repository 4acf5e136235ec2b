// Package schema implements the schema adapter contract of spec §6:
// declared fields, normalization, and an unknown-keys policy. Grounded
// on the teacher's adapter-as-interface convention (pkg/domain/provider,
// pkg/domain/skill) — a small closed Go interface with no dynamic
// plugin loading, the same shape this package gives to FieldSchema-based
// document header validation.
package schema

import (
	"fmt"

	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/domain/document"
)

// FieldType is the closed set of header field types (spec §6).
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeBool    FieldType = "bool"
	TypeInt     FieldType = "int"
	TypeEnum    FieldType = "enum"
	TypeArray   FieldType = "array"
)

// Field declares one header field's shape and constraints.
type Field struct {
	Name      string
	Type      FieldType
	Required  bool
	Default   any
	EnumVals  []string    // populated when Type == TypeEnum
	ElemType  FieldType   // populated when Type == TypeArray (homogeneous)
	Validator func(any) error
}

// UnknownKeysPolicy controls how a header key with no matching Field is
// treated (spec §6).
type UnknownKeysPolicy string

const (
	UnknownWarn   UnknownKeysPolicy = "warn"
	UnknownIgnore UnknownKeysPolicy = "ignore"
	UnknownReject UnknownKeysPolicy = "reject"
)

// Adapter is the schema adapter contract: declared fields plus the
// unknown-keys policy to apply during validation.
type Adapter interface {
	Fields() []Field
	UnknownKeysPolicy() UnknownKeysPolicy
}

// StaticAdapter is a fixed, in-memory Adapter — the common case where
// fields are declared once at startup rather than discovered dynamically.
type StaticAdapter struct {
	FieldList []Field
	Unknown   UnknownKeysPolicy
}

func (s StaticAdapter) Fields() []Field                      { return s.FieldList }
func (s StaticAdapter) UnknownKeysPolicy() UnknownKeysPolicy { return s.Unknown }

// ValidationResult is the outcome of Validate: ok with normalized
// values and warnings, or a list of errors (spec §6).
type ValidationResult struct {
	OK         bool
	Normalized document.Header
	Warnings   []string
	Errors     []error
}

// Validate checks header against adapter's declared fields, applying
// defaults for missing optional fields and the configured unknown-keys
// policy for keys with no matching field.
func Validate(header document.Header, adapter Adapter) ValidationResult {
	fields := make(map[string]Field, len(adapter.Fields()))
	for _, f := range adapter.Fields() {
		fields[f.Name] = f
	}

	normalized := header.Clone()
	var warnings []string
	var errs []error

	for name, f := range fields {
		v, present := normalized[name]
		if !present {
			if f.Required {
				errs = append(errs, fieldError(name, "required field missing"))
				continue
			}
			if f.Default != nil {
				normalized[name] = f.Default
			}
			continue
		}
		if err := checkType(v, f); err != nil {
			errs = append(errs, fieldError(name, err.Error()))
			continue
		}
		if f.Validator != nil {
			if err := f.Validator(v); err != nil {
				errs = append(errs, fieldError(name, err.Error()))
			}
		}
	}

	for key := range header {
		if _, known := fields[key]; known {
			continue
		}
		switch adapter.UnknownKeysPolicy() {
		case UnknownReject:
			errs = append(errs, fieldError(key, "unknown key rejected by schema policy"))
		case UnknownWarn:
			warnings = append(warnings, fmt.Sprintf("%s: unknown key not declared by schema", key))
		case UnknownIgnore:
			// no-op
		}
	}

	if len(errs) > 0 {
		return ValidationResult{OK: false, Errors: errs}
	}
	return ValidationResult{OK: true, Normalized: normalized, Warnings: warnings}
}

func checkType(v any, f Field) error {
	switch f.Type {
	case TypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("expected string, got %T", v)
		}
	case TypeBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
	case TypeInt:
		switch v.(type) {
		case int, int64, float64:
		default:
			return fmt.Errorf("expected int, got %T", v)
		}
	case TypeEnum:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected enum string, got %T", v)
		}
		for _, allowed := range f.EnumVals {
			if s == allowed {
				return nil
			}
		}
		return fmt.Errorf("value %q not in enum set %v", s, f.EnumVals)
	case TypeArray:
		if _, ok := v.([]any); !ok {
			return fmt.Errorf("expected array, got %T", v)
		}
	}
	return nil
}

func fieldError(name, msg string) error {
	return domain.NewError(domain.ErrValidationFailed, msg).WithDetail("field", name)
}
