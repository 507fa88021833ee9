package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Field is one bound variable of an instantiation.
type Field struct {
	Name  string
	Value any
}

// Instantiation is one concrete point of a test matrix sweep: an ordered list
// of field bindings applied on top of a run configuration template. It is a
// value object; two instantiations are equal when their canonical forms match,
// regardless of how they were produced.
type Instantiation struct {
	fields []Field
}

func NewInstantiation(fields ...Field) Instantiation {
	copied := make([]Field, len(fields))
	copy(copied, fields)
	return Instantiation{fields: copied}
}

// Fields returns the ordered field bindings.
func (i Instantiation) Fields() []Field {
	out := make([]Field, len(i.fields))
	copy(out, i.fields)
	return out
}

func (i Instantiation) Len() int {
	return len(i.fields)
}

// Lookup returns the value bound to the named field.
func (i Instantiation) Lookup(name string) (any, bool) {
	for _, f := range i.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Canonical returns a stable string form of the instantiation, used for
// content equality and for position-matching in derived-metric evaluation.
func (i Instantiation) Canonical() string {
	parts := make([]string, 0, len(i.fields))
	for _, f := range i.fields {
		parts = append(parts, f.Name+"="+FormatValue(f.Value))
	}
	return strings.Join(parts, ",")
}

// Suffix returns a filename-safe rendering of the instantiation used in
// output-file naming.
func (i Instantiation) Suffix() string {
	parts := make([]string, 0, len(i.fields))
	for _, f := range i.fields {
		value := strings.ReplaceAll(FormatValue(f.Value), "/", "")
		value = strings.ReplaceAll(value, " ", "_")
		parts = append(parts, f.Name+"="+value)
	}
	return strings.Join(parts, ",")
}

func (i Instantiation) Equal(other Instantiation) bool {
	return i.Canonical() == other.Canonical()
}

func (i Instantiation) String() string {
	return i.Canonical()
}

type instantiationField struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// MarshalJSON encodes the instantiation as an ordered list of tagged
// field/value records so the ledger file stays inspectable and order is not
// lost to map re-hashing.
func (i Instantiation) MarshalJSON() ([]byte, error) {
	records := make([]instantiationField, 0, len(i.fields))
	for _, f := range i.fields {
		records = append(records, instantiationField{Field: f.Name, Value: f.Value})
	}
	return json.Marshal(records)
}

func (i *Instantiation) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []instantiationField
	if err := dec.Decode(&records); err != nil {
		return fmt.Errorf("decode instantiation: %w", err)
	}
	fields := make([]Field, 0, len(records))
	for _, record := range records {
		if strings.TrimSpace(record.Field) == "" {
			return fmt.Errorf("decode instantiation: empty field name")
		}
		fields = append(fields, Field{Name: record.Field, Value: normalizeValue(record.Value)})
	}
	i.fields = fields
	return nil
}

// normalizeValue collapses json.Number into int64 where the value is
// integral, so values survive a ledger round trip with the same canonical
// form they had when first expanded.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case []any:
		out := make([]any, len(v))
		for idx, item := range v {
			out[idx] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = normalizeValue(item)
		}
		return out
	default:
		return value
	}
}

// FormatValue renders an instantiation value deterministically. Composite
// values fall back to JSON, which sorts map keys.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case json.Number:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
