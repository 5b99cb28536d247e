package cookiedb

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FieldKind enumerates the primitive column kinds a schema may declare.
type FieldKind string

const (
	KindString     FieldKind = "string"
	KindBoolean    FieldKind = "boolean"
	KindNumber     FieldKind = "number"
	KindForeignKey FieldKind = "foreign_key"
)

var validKinds = map[FieldKind]bool{
	KindString:     true,
	KindBoolean:    true,
	KindNumber:     true,
	KindForeignKey: true,
}

// FieldType is a schema type descriptor: either a Column or a nested Schema.
type FieldType interface {
	fieldType()
}

// Column describes a scalar schema field. On the wire it is a descriptor
// string such as "string", "nullable number" or "unique nullable string";
// modifier order is insignificant and each modifier may appear at most once.
type Column struct {
	Kind     FieldKind
	Nullable bool
	Unique   bool
}

func (Column) fieldType() {}

// MarshalJSON emits the textual descriptor, modifiers first.
func (c Column) MarshalJSON() ([]byte, error) {
	if !validKinds[c.Kind] {
		return nil, fmt.Errorf("cookiedb: invalid field kind %q", c.Kind)
	}
	parts := make([]string, 0, 3)
	if c.Nullable {
		parts = append(parts, "nullable")
	}
	if c.Unique {
		parts = append(parts, "unique")
	}
	parts = append(parts, string(c.Kind))
	return json.Marshal(strings.Join(parts, " "))
}

// UnmarshalJSON parses a descriptor string. Tokens may appear in any order;
// duplicate modifiers and missing or repeated kinds are rejected. The older
// "number?" nullable suffix is accepted for compatibility but never emitted.
func (c *Column) UnmarshalJSON(data []byte) error {
	var descriptor string
	if err := json.Unmarshal(data, &descriptor); err != nil {
		return fmt.Errorf("cookiedb: column descriptor must be a string: %w", err)
	}
	parsed, err := ParseColumn(descriptor)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseColumn parses a textual column descriptor.
func ParseColumn(descriptor string) (Column, error) {
	var col Column
	tokens := strings.Fields(descriptor)
	if len(tokens) == 0 {
		return col, fmt.Errorf("cookiedb: empty column descriptor")
	}
	for _, token := range tokens {
		if suffix, ok := strings.CutSuffix(token, "?"); ok {
			if col.Nullable {
				return Column{}, fmt.Errorf("cookiedb: duplicate nullable modifier in %q", descriptor)
			}
			col.Nullable = true
			token = suffix
		}
		switch {
		case token == "nullable":
			if col.Nullable {
				return Column{}, fmt.Errorf("cookiedb: duplicate nullable modifier in %q", descriptor)
			}
			col.Nullable = true
		case token == "unique":
			if col.Unique {
				return Column{}, fmt.Errorf("cookiedb: duplicate unique modifier in %q", descriptor)
			}
			col.Unique = true
		case validKinds[FieldKind(token)]:
			if col.Kind != "" {
				return Column{}, fmt.Errorf("cookiedb: multiple kinds in column descriptor %q", descriptor)
			}
			col.Kind = FieldKind(token)
		default:
			return Column{}, fmt.Errorf("cookiedb: unknown token %q in column descriptor", token)
		}
	}
	if col.Kind == "" {
		return Column{}, fmt.Errorf("cookiedb: column descriptor %q has no kind", descriptor)
	}
	return col, nil
}

// Schema maps field names to type descriptors. Nested objects are declared
// by mapping a field to another Schema. A nil Schema means a schemaless
// table.
type Schema map[string]FieldType

func (Schema) fieldType() {}

// MarshalJSON emits fields in sorted order for stable wire bodies.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		value, err := json.Marshal(s[name])
		if err != nil {
			return nil, fmt.Errorf("cookiedb: field %q: %w", name, err)
		}
		b.Write(value)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("cookiedb: schema must be an object: %w", err)
	}
	if raw == nil {
		*s = nil
		return nil
	}
	out := make(Schema, len(raw))
	for name, value := range raw {
		field, err := unmarshalFieldType(value)
		if err != nil {
			return fmt.Errorf("cookiedb: field %q: %w", name, err)
		}
		out[name] = field
	}
	*s = out
	return nil
}

func unmarshalFieldType(data []byte) (FieldType, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var nested Schema
		if err := json.Unmarshal(data, &nested); err != nil {
			return nil, err
		}
		return nested, nil
	}
	var col Column
	if err := json.Unmarshal(data, &col); err != nil {
		return nil, err
	}
	return col, nil
}

// Document is one stored record: a field-to-value mapping where values are
// JSON scalars, arrays of scalars, or nested documents. Documents returned
// by read operations carry a synthetic "key" field.
type Document map[string]any

// Key returns the synthetic storage key, if present.
func (d Document) Key() string {
	key, _ := d["key"].(string)
	return key
}

// Alias maps field names to reference expressions (e.g. "$name") or nested
// aliases, re-projecting fields during editTable and select.
type Alias map[string]any

// Order names the field select results are sorted by.
type Order struct {
	By         string `json:"by"`
	Descending bool   `json:"descending"`
}

// SelectOptions tunes a Select call. The zero value selects every matching
// document in server-defined order.
type SelectOptions struct {
	// MaxResults caps the number of returned documents; values <= 0 mean
	// unbounded.
	MaxResults int
	// ExpandKeys resolves foreign-key fields into their referenced
	// documents recursively.
	ExpandKeys bool
	// Order sorts results by a named field.
	Order *Order
	// Alias re-projects fields on the returned documents.
	Alias Alias
	// ShowKeys toggles the synthetic key field (older protocol revision;
	// current servers always include it). Left nil, the flag is omitted.
	ShowKeys *bool
}

// GetOptions tunes a Get call.
type GetOptions struct {
	// ExpandKeys resolves foreign-key fields into their referenced
	// documents recursively.
	ExpandKeys bool
}

// EditTable describes a table edit; zero-valued fields are omitted from the
// request. The server applies name, schema and alias changes atomically.
type EditTable struct {
	Name   string `json:"name,omitempty"`
	Schema Schema `json:"schema,omitempty"`
	Alias  Alias  `json:"alias,omitempty"`
}

// TableMeta reports a single table's schema and document count.
type TableMeta struct {
	Schema Schema `json:"schema"`
	Size   int    `json:"size"`
}

// TableSummary is the per-table entry in DatabaseMeta.
type TableSummary struct {
	Schema Schema `json:"schema"`
}

// DatabaseMeta reports every table's schema plus the aggregate size.
type DatabaseMeta struct {
	Tables map[string]TableSummary `json:"tables"`
	Size   int                     `json:"size"`
}

// CreateUserOptions parameterizes CreateUser. Empty username or token lets
// the server generate them.
type CreateUserOptions struct {
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
	Admin    bool   `json:"admin"`
}

// User is the credential pair returned by user administration calls.
type User struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}
