// Package schema declares the typed column schema a SubTable carries,
// generalizing encoding/pam/fieldio's fixed BAM field set (gbam.FieldType)
// to a caller-declared field list, per spec.md §4.3.
package schema

import "fmt"

// FieldType is the closed set of value types a schema field may hold.
type FieldType int

const (
	// Int64 stores a signed 64-bit integer.
	Int64 FieldType = iota
	// Float64 stores a 64-bit float.
	Float64
	// String stores a UTF-8 string.
	String
	// Bytes stores an opaque byte blob.
	Bytes
)

func (t FieldType) String() string {
	switch t {
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field declares one column beyond the mandatory source/sink/weight
// triple.
type Field struct {
	Name    string
	Type    FieldType
	Default interface{}
}

// Schema is the ordered set of extension fields a SubTable declares at
// creation time, copied from the (0,0) canonical template per I5.
// source, sink and weight are implicit and not repeated here.
type Schema struct {
	Fields []Field
}

// Field looks up a declared field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Validate checks that a row of extension-field values matches the
// schema: every supplied field must be declared and type-compatible.
// Fields missing from values are not an error; Validate does not fill
// them in (Fill applies the schema-declared defaults).
func (s Schema) Validate(values map[string]interface{}) error {
	for name, v := range values {
		f, ok := s.Field(name)
		if !ok {
			return fmt.Errorf("field %q not declared in schema", name)
		}
		if !typeMatches(f.Type, v) {
			return fmt.Errorf("field %q: value %v does not match declared type %v", name, v, f.Type)
		}
	}
	return nil
}

// Fill returns a copy of values with schema-declared defaults applied
// for any field not present.
func (s Schema) Fill(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = f.Default
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}

func typeMatches(t FieldType, v interface{}) bool {
	switch t {
	case Int64:
		switch v.(type) {
		case int, int64, int32:
			return true
		}
	case Float64:
		switch v.(type) {
		case float64, float32:
			return true
		}
	case String:
		_, ok := v.(string)
		return ok
	case Bytes:
		_, ok := v.([]byte)
		return ok
	}
	return false
}

// Row is one stored edge record: the canonical (source, sink, weight)
// triple, its extension fields, and the mask bit (true = masked /
// invalid, hidden from scans).
type Row struct {
	Source uint32
	Sink   uint32
	Weight float64
	Fields map[string]interface{}
	Masked bool
}

// Clone returns a deep copy of r (Fields is copied shallowly per value,
// which is sufficient since field values are immutable scalars/blobs).
func (r Row) Clone() Row {
	out := r
	out.Fields = make(map[string]interface{}, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return out
}
