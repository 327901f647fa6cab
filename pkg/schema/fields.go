package schema

import "fmt"

// Field is a named-typed pair: the unit schemas are declared and reconciled in.
// Ports, settings and graph slots are all described by Fields.
type Field struct {
	Name    string   `json:"name" yaml:"name"`
	Type    TypeSpec `json:"type,omitempty" yaml:"type,omitempty"`
	Default Value    `json:"default,omitempty" yaml:"-"`
}

// F is shorthand for a Field without an explicit default.
func F(name string, t TypeSpec) Field {
	return Field{Name: name, Type: t}
}

// Initial returns the value a freshly created entry for this field holds.
func (f Field) Initial() Value {
	if f.Default.IsNone() {
		return Zero(f.Type)
	}
	return f.Default.Cast(f.Type)
}

func (f Field) String() string {
	if f.Type.IsNone() {
		return f.Name
	}
	return fmt.Sprintf("%s:%s", f.Name, f.Type.Name())
}

// Names returns the field names in order.
func Names(fields []Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// ParseFields converts an ordered list of "name" -> "type" declarations.
// Every failure is collected into an AggregateError.
func ParseFields(decls []map[string]string) ([]Field, error) {
	var errs []error
	fields := make([]Field, 0, len(decls))
	for i, d := range decls {
		name := d["name"]
		if name == "" {
			errs = append(errs, &ValidationError{Key: fmt.Sprintf("[%d]", i), Reason: "name is required"})
			continue
		}
		t, err := ParseType(d["type"])
		if err != nil {
			errs = append(errs, &ValidationError{Key: name, Reason: err.Error(), Value: d["type"]})
			continue
		}
		fields = append(fields, Field{Name: name, Type: t})
	}
	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return fields, nil
}
