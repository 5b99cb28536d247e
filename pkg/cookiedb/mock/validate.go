package mock

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/cookiedb/cookiedb-go/pkg/cookiedb"
)

// validateSchema rejects schemas whose columns carry an unknown kind.
// Modifier legality is already enforced by the Column type itself.
func validateSchema(schema cookiedb.Schema) error {
	for field, ft := range schema {
		switch typed := ft.(type) {
		case cookiedb.Column:
			switch typed.Kind {
			case cookiedb.KindString, cookiedb.KindBoolean, cookiedb.KindNumber, cookiedb.KindForeignKey:
			default:
				return fmt.Errorf("field %q has invalid kind %q", field, typed.Kind)
			}
		case cookiedb.Schema:
			if err := validateSchema(typed); err != nil {
				return err
			}
		default:
			return fmt.Errorf("field %q has unsupported descriptor type %T", field, ft)
		}
	}
	return nil
}

// validateDocument checks a full document against a schema: every schema
// field must be present (null only when nullable), kinds must match, and no
// extra fields may appear.
func validateDocument(schema cookiedb.Schema, doc cookiedb.Document) error {
	for field := range doc {
		if _, declared := schema[field]; !declared {
			return fmt.Errorf("field %q is not in the schema", field)
		}
	}
	for field, ft := range schema {
		value, present := doc[field]
		switch typed := ft.(type) {
		case cookiedb.Column:
			if !present {
				return fmt.Errorf("field %q is missing", field)
			}
			if value == nil {
				if typed.Nullable {
					continue
				}
				return fmt.Errorf("field %q is not nullable", field)
			}
			if err := checkKind(typed.Kind, value); err != nil {
				return fmt.Errorf("field %q: %w", field, err)
			}
		case cookiedb.Schema:
			if !present {
				return fmt.Errorf("field %q is missing", field)
			}
			nested, ok := asObject(value)
			if !ok {
				return fmt.Errorf("field %q must be an object", field)
			}
			if err := validateDocument(typed, nested); err != nil {
				return fmt.Errorf("field %q: %w", field, err)
			}
		}
	}
	return nil
}

func checkKind(kind cookiedb.FieldKind, value any) error {
	switch kind {
	case cookiedb.KindString, cookiedb.KindForeignKey:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected %s, got %T", kind, value)
		}
	case cookiedb.KindBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case cookiedb.KindNumber:
		if _, ok := asNumber(value); !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
	}
	return nil
}

// checkUnique enforces unique columns against the stored documents (minus
// excludeKey, for updates) plus any staged-but-unstored batch documents.
func checkUnique(t *table, doc cookiedb.Document, excludeKey string, staged []cookiedb.Document) error {
	paths := uniquePaths(t.schema, nil)
	for _, path := range paths {
		value := lookupSegments(doc, path)
		if value == nil {
			continue
		}
		for key, other := range t.docs {
			if key == excludeKey {
				continue
			}
			if equalValues(value, lookupSegments(other, path)) {
				return fmt.Errorf("field %q must be unique", joinPath(path))
			}
		}
		for _, other := range staged {
			if equalValues(value, lookupSegments(other, path)) {
				return fmt.Errorf("field %q must be unique", joinPath(path))
			}
		}
	}
	return nil
}

func uniquePaths(schema cookiedb.Schema, prefix []string) [][]string {
	var paths [][]string
	for field, ft := range schema {
		path := append(append([]string(nil), prefix...), field)
		switch typed := ft.(type) {
		case cookiedb.Column:
			if typed.Unique {
				paths = append(paths, path)
			}
		case cookiedb.Schema:
			paths = append(paths, uniquePaths(typed, path)...)
		}
	}
	return paths
}

func joinPath(path []string) string {
	out := ""
	for i, seg := range path {
		if i > 0 {
			out += "."
		}
		out += seg
	}
	return out
}

func asObject(value any) (cookiedb.Document, bool) {
	switch typed := value.(type) {
	case cookiedb.Document:
		return typed, true
	case map[string]any:
		return cookiedb.Document(typed), true
	default:
		return nil, false
	}
}

func asNumber(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case json.Number:
		f, err := typed.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// equalValues compares with numeric normalization so 21 and 21.0 match.
func equalValues(a, b any) bool {
	if na, ok := asNumber(a); ok {
		nb, okb := asNumber(b)
		return okb && na == nb
	}
	return reflect.DeepEqual(a, b)
}

// lookupPath resolves a dot path like "address.city" against a document.
func lookupPath(doc cookiedb.Document, path string) any {
	return lookupSegments(doc, splitPath(path))
}

func lookupSegments(doc cookiedb.Document, segments []string) any {
	var current any = map[string]any(doc)
	for _, seg := range segments {
		obj, ok := current.(map[string]any)
		if !ok {
			if d, okd := current.(cookiedb.Document); okd {
				obj = d
			} else {
				return nil
			}
		}
		current = obj[seg]
	}
	return current
}

func splitPath(path string) []string {
	var segments []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '.' {
			if i > start {
				segments = append(segments, path[start:i])
			}
			start = i + 1
		}
	}
	return segments
}

// lessValues orders numbers numerically, strings lexically, booleans
// false-first; nil sorts before everything. Mixed kinds fall back to a
// stable type-name ordering.
func lessValues(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	na, aok := asNumber(a)
	nb, bok := asNumber(b)
	if aok && bok {
		return na < nb
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return sa < sb
	}
	ba, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return !ba && bb
	}
	return fmt.Sprintf("%T", a) < fmt.Sprintf("%T", b)
}
