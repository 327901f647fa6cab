package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind selects the representation a Value carries.
type Kind uint8

const (
	// KindNone marks an absent type. Control ports carry no value and use it.
	KindNone Kind = iota
	KindNumber
	KindBoolean
	KindText
	KindOption
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBoolean:
		return "bool"
	case KindText:
		return "text"
	case KindOption:
		return "option"
	case KindOpaque:
		return "opaque"
	default:
		return "none"
	}
}

// TypeSpec is the declared type of a port, setting or graph slot.
// Choices is only meaningful for KindOption and is always >= 1 there.
type TypeSpec struct {
	Kind    Kind
	Choices int
}

// --- Factory Functions ---

// None returns the absent type.
func None() TypeSpec { return TypeSpec{} }

// Number creates a numeric type.
func Number() TypeSpec { return TypeSpec{Kind: KindNumber} }

// Boolean creates a boolean type.
func Boolean() TypeSpec { return TypeSpec{Kind: KindBoolean} }

// Text creates a text type.
func Text() TypeSpec { return TypeSpec{Kind: KindText} }

// Opaque creates an untyped passthrough type.
func Opaque() TypeSpec { return TypeSpec{Kind: KindOpaque} }

// Option creates an index type over an external choice list of size n.
// n below 1 is raised to 1 so the type always has a valid index.
func Option(n int) TypeSpec {
	if n < 1 {
		n = 1
	}
	return TypeSpec{Kind: KindOption, Choices: n}
}

// IsNone reports whether the type is absent.
func (t TypeSpec) IsNone() bool { return t.Kind == KindNone }

// Equal reports whether two specs are identical, including option arity.
func (t TypeSpec) Equal(o TypeSpec) bool {
	if t.Kind != o.Kind {
		return false
	}
	if t.Kind == KindOption {
		return t.Choices == o.Choices
	}
	return true
}

// Name returns the human-readable name of the type (e.g., "number", "option(3)").
func (t TypeSpec) Name() string {
	if t.Kind == KindOption {
		return fmt.Sprintf("option(%d)", t.Choices)
	}
	return t.Kind.String()
}

func (t TypeSpec) String() string { return t.Name() }

// ParseType converts a type name to a TypeSpec.
// Supports "number", "bool", "text", "opaque", "option(N)" and a few aliases.
// The empty string and "none" parse to the absent type.
func ParseType(typeStr string) (TypeSpec, error) {
	s := strings.ToLower(strings.TrimSpace(typeStr))

	// Handle option types: option(3)
	if strings.HasPrefix(s, "option(") && strings.HasSuffix(s, ")") {
		n, err := strconv.Atoi(strings.TrimSpace(s[len("option(") : len(s)-1]))
		if err != nil {
			return TypeSpec{}, fmt.Errorf("invalid option arity in %q: %w", typeStr, err)
		}
		if n < 1 {
			return TypeSpec{}, fmt.Errorf("option arity must be at least 1, got %d", n)
		}
		return Option(n), nil
	}

	switch s {
	case "", "none":
		return None(), nil
	case "number", "float", "int":
		return Number(), nil
	case "bool", "boolean":
		return Boolean(), nil
	case "text", "string":
		return Text(), nil
	case "opaque", "any":
		return Opaque(), nil
	default:
		return TypeSpec{}, fmt.Errorf("unsupported type: %s", typeStr)
	}
}

// MarshalText encodes the spec by name so it round-trips through YAML and JSON.
func (t TypeSpec) MarshalText() ([]byte, error) {
	return []byte(t.Name()), nil
}

// UnmarshalText decodes a spec previously encoded with MarshalText.
func (t *TypeSpec) UnmarshalText(data []byte) error {
	parsed, err := ParseType(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
