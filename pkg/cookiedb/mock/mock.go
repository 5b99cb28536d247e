package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cookiedb/cookiedb-go/internal/devseed"
	"github.com/cookiedb/cookiedb-go/pkg/cookiedb"
)

// Mock implements CookieDB semantics in memory: tables with optional
// schemas, schema enforcement, query evaluation, foreign-key expansion and
// a user registry. It backs the sandbox command and offline tests.
type Mock struct {
	mu      sync.RWMutex
	tables  map[string]*table
	users   map[string]*user
	keyFn   func() string
	tokenFn func() string
}

type table struct {
	schema cookiedb.Schema
	docs   map[string]cookiedb.Document
	order  []string
}

type user struct {
	name  string
	token string
	admin bool
}

// Option configures the mock instance.
type Option func(*Mock)

// WithKeyFunc overrides document key generation (useful in tests).
func WithKeyFunc(fn func() string) Option {
	return func(m *Mock) {
		if fn != nil {
			m.keyFn = fn
		}
	}
}

// WithTokenFunc overrides user token generation.
func WithTokenFunc(fn func() string) Option {
	return func(m *Mock) {
		if fn != nil {
			m.tokenFn = fn
		}
	}
}

// WithUser pre-registers a credential. A mock with no registered users
// accepts any bearer token and grants it administrator privilege.
func WithUser(name, token string, admin bool) Option {
	return func(m *Mock) {
		m.users[name] = &user{name: name, token: token, admin: admin}
	}
}

// New creates an empty mock database.
func New(opts ...Option) *Mock {
	m := &Mock{
		tables:  make(map[string]*table),
		users:   make(map[string]*user),
		keyFn:   uuid.NewString,
		tokenFn: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed loads tables, documents and users from a devseed document.
func (m *Mock) Seed(seed *devseed.Seed) error {
	if seed == nil {
		return nil
	}
	ctx := context.Background()
	for _, ts := range seed.Tables {
		var schema cookiedb.Schema
		if len(ts.Schema) > 0 {
			if err := json.Unmarshal(ts.Schema, &schema); err != nil {
				return fmt.Errorf("mock: seed table %q schema: %w", ts.Name, err)
			}
		}
		if err := m.CreateTable(ctx, ts.Name, schema); err != nil {
			return fmt.Errorf("mock: seed table %q: %w", ts.Name, err)
		}
		for i, doc := range ts.Documents {
			if _, err := m.Insert(ctx, ts.Name, cookiedb.Document(doc)); err != nil {
				return fmt.Errorf("mock: seed table %q document %d: %w", ts.Name, i, err)
			}
		}
	}
	for _, us := range seed.Users {
		m.mu.Lock()
		m.users[us.Username] = &user{name: us.Username, token: us.Token, admin: us.Admin}
		m.mu.Unlock()
	}
	return nil
}

// authenticate resolves a bearer token. With no registered users the mock
// is open and every token is an administrator.
func (m *Mock) authenticate(token string) (admin, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.users) == 0 {
		return true, true
	}
	for _, u := range m.users {
		if u.token == token {
			return u.admin, true
		}
	}
	return false, false
}

// CreateTable registers a table. A nil schema creates a schemaless table.
func (m *Mock) CreateTable(ctx context.Context, name string, schema cookiedb.Schema) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("table name is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tables[name]; exists {
		return fmt.Errorf("table %q already exists", name)
	}
	if err := validateSchema(schema); err != nil {
		return err
	}
	m.tables[name] = &table{schema: schema, docs: make(map[string]cookiedb.Document)}
	return nil
}

// EditTable applies alias re-projection, schema migration and rename, in
// that order, atomically.
func (m *Mock) EditTable(ctx context.Context, name string, edit cookiedb.EditTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, exists := m.tables[name]
	if !exists {
		return fmt.Errorf("table %q does not exist", name)
	}
	if edit.Name != "" && edit.Name != name {
		if _, taken := m.tables[edit.Name]; taken {
			return fmt.Errorf("table %q already exists", edit.Name)
		}
	}

	// Stage the change so a failing validation leaves the table untouched.
	staged := make(map[string]cookiedb.Document, len(t.docs))
	for key, doc := range t.docs {
		next := doc
		if edit.Alias != nil {
			projected, err := applyAlias(edit.Alias, doc)
			if err != nil {
				return err
			}
			next = projected
		}
		staged[key] = next
	}
	schema := t.schema
	if edit.Schema != nil {
		if err := validateSchema(edit.Schema); err != nil {
			return err
		}
		schema = edit.Schema
	}
	if schema != nil {
		// Re-check uniqueness too: the migrated schema may declare unique
		// columns the old one did not.
		checked := &table{schema: schema, docs: make(map[string]cookiedb.Document, len(staged))}
		for _, key := range t.order {
			doc, found := staged[key]
			if !found {
				continue
			}
			if err := validateDocument(schema, doc); err != nil {
				return fmt.Errorf("document %s: %w", key, err)
			}
			if err := checkUnique(checked, doc, "", nil); err != nil {
				return fmt.Errorf("document %s: %w", key, err)
			}
			checked.docs[key] = doc
		}
	}

	t.docs = staged
	t.schema = schema
	if edit.Name != "" && edit.Name != name {
		m.tables[edit.Name] = t
		delete(m.tables, name)
	}
	return nil
}

// DropTable removes a table and its documents.
func (m *Mock) DropTable(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tables[name]; !exists {
		return fmt.Errorf("table %q does not exist", name)
	}
	delete(m.tables, name)
	return nil
}

// TableMeta reports the table's schema and document count.
func (m *Mock) TableMeta(ctx context.Context, name string) (*cookiedb.TableMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, exists := m.tables[name]
	if !exists {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	return &cookiedb.TableMeta{Schema: t.schema, Size: len(t.docs)}, nil
}

// Meta reports every table's schema and the total document count.
func (m *Mock) Meta(ctx context.Context) (*cookiedb.DatabaseMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta := &cookiedb.DatabaseMeta{Tables: make(map[string]cookiedb.TableSummary, len(m.tables))}
	for name, t := range m.tables {
		meta.Tables[name] = cookiedb.TableSummary{Schema: t.schema}
		meta.Size += len(t.docs)
	}
	return meta, nil
}

// Insert stores one document and returns its new key.
func (m *Mock) Insert(ctx context.Context, name string, doc cookiedb.Document) (string, error) {
	keys, err := m.InsertMany(ctx, name, []cookiedb.Document{doc})
	if err != nil {
		return "", err
	}
	return keys[0], nil
}

// InsertMany validates every document before storing any, then returns keys
// index-aligned with the input.
func (m *Mock) InsertMany(ctx context.Context, name string, docs []cookiedb.Document) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, exists := m.tables[name]
	if !exists {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	for i, doc := range docs {
		if doc == nil {
			return nil, fmt.Errorf("document %d is null", i)
		}
		if _, reserved := doc["key"]; reserved {
			return nil, fmt.Errorf("document %d: key is a reserved field", i)
		}
		if t.schema != nil {
			if err := validateDocument(t.schema, doc); err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			if err := checkUnique(t, doc, "", docs[:i]); err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
		}
	}

	keys := make([]string, 0, len(docs))
	for _, doc := range docs {
		key := m.keyFn()
		t.docs[key] = deepCopy(doc)
		t.order = append(t.order, key)
		keys = append(keys, key)
	}
	return keys, nil
}

// Get returns the document stored under key, augmented with the synthetic
// key field. expand resolves foreign keys recursively.
func (m *Mock) Get(ctx context.Context, name, key string, expand bool) (cookiedb.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, exists := m.tables[name]
	if !exists {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	doc, found := t.docs[key]
	if !found {
		return nil, fmt.Errorf("document %q does not exist", key)
	}
	return m.render(t, key, doc, renderOptions{expandKeys: expand, showKeys: true}), nil
}

// Update merges partial into the stored document; untouched fields survive.
func (m *Mock) Update(ctx context.Context, name, key string, partial cookiedb.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, exists := m.tables[name]
	if !exists {
		return fmt.Errorf("table %q does not exist", name)
	}
	doc, found := t.docs[key]
	if !found {
		return fmt.Errorf("document %q does not exist", key)
	}
	if _, reserved := partial["key"]; reserved {
		return fmt.Errorf("key is a reserved field")
	}

	merged := deepCopy(doc)
	for field, value := range partial {
		merged[field] = value
	}
	if t.schema != nil {
		if err := validateDocument(t.schema, merged); err != nil {
			return err
		}
		if err := checkUnique(t, merged, key, nil); err != nil {
			return err
		}
	}
	t.docs[key] = deepCopy(merged)
	return nil
}

// Delete removes one document. Deleting an absent key is an error.
func (m *Mock) Delete(ctx context.Context, name, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, exists := m.tables[name]
	if !exists {
		return fmt.Errorf("table %q does not exist", name)
	}
	if _, found := t.docs[key]; !found {
		return fmt.Errorf("document %q does not exist", key)
	}
	delete(t.docs, key)
	t.removeFromOrder(key)
	return nil
}

// DeleteByQuery removes every document matching the expression and returns
// the deleted keys in insertion order.
func (m *Mock) DeleteByQuery(ctx context.Context, name, where string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, exists := m.tables[name]
	if !exists {
		return nil, fmt.Errorf("table %q does not exist", name)
	}

	deleted := []string{}
	for _, key := range append([]string(nil), t.order...) {
		doc, found := t.docs[key]
		if !found {
			continue
		}
		match, err := evalQuery(where, doc)
		if err != nil {
			return nil, err
		}
		if match {
			delete(t.docs, key)
			t.removeFromOrder(key)
			deleted = append(deleted, key)
		}
	}
	return deleted, nil
}

// Select returns documents matching where (empty selects all), honouring
// order, max results, alias projection and foreign-key expansion.
func (m *Mock) Select(ctx context.Context, name, where string, opts *cookiedb.SelectOptions) ([]cookiedb.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, exists := m.tables[name]
	if !exists {
		return nil, fmt.Errorf("table %q does not exist", name)
	}
	if opts == nil {
		opts = &cookiedb.SelectOptions{}
	}

	type match struct {
		key string
		doc cookiedb.Document
	}
	matches := []match{}
	for _, key := range t.order {
		doc, found := t.docs[key]
		if !found {
			continue
		}
		if where != "" {
			ok, err := evalQuery(where, doc)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		matches = append(matches, match{key: key, doc: doc})
	}

	if opts.Order != nil {
		by := opts.Order.By
		sort.SliceStable(matches, func(i, j int) bool {
			a := lookupPath(matches[i].doc, by)
			b := lookupPath(matches[j].doc, by)
			// Swapping operands keeps equal elements "not less" both
			// ways, preserving stability on ties.
			if opts.Order.Descending {
				return lessValues(b, a)
			}
			return lessValues(a, b)
		})
	}
	if opts.MaxResults > 0 && len(matches) > opts.MaxResults {
		matches = matches[:opts.MaxResults]
	}

	showKeys := opts.ShowKeys == nil || *opts.ShowKeys
	results := make([]cookiedb.Document, 0, len(matches))
	for _, mt := range matches {
		doc := m.render(t, mt.key, mt.doc, renderOptions{expandKeys: opts.ExpandKeys, showKeys: showKeys})
		if opts.Alias != nil {
			projected, err := applyAlias(opts.Alias, doc)
			if err != nil {
				return nil, err
			}
			if showKeys {
				projected["key"] = mt.key
			}
			doc = projected
		}
		results = append(results, doc)
	}
	return results, nil
}

// CreateUser registers a credential, generating username and token when
// omitted.
func (m *Mock) CreateUser(ctx context.Context, opts cookiedb.CreateUserOptions) (*cookiedb.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	name := opts.Username
	if name == "" {
		name = "user_" + m.tokenFn()[:8]
	}
	if _, exists := m.users[name]; exists {
		return nil, fmt.Errorf("user %q already exists", name)
	}
	token := opts.Token
	if token == "" {
		token = m.tokenFn()
	}
	m.users[name] = &user{name: name, token: token, admin: opts.Admin}
	return &cookiedb.User{Username: name, Token: token}, nil
}

// DeleteUser removes a credential.
func (m *Mock) DeleteUser(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; !exists {
		return fmt.Errorf("user %q does not exist", username)
	}
	delete(m.users, username)
	return nil
}

// RegenerateToken mints a fresh token, invalidating the previous one.
func (m *Mock) RegenerateToken(ctx context.Context, username string) (*cookiedb.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, exists := m.users[username]
	if !exists {
		return nil, fmt.Errorf("user %q does not exist", username)
	}
	prev := u.token
	next := m.tokenFn()
	for next == prev {
		next = m.tokenFn()
	}
	u.token = next
	return &cookiedb.User{Username: username, Token: next}, nil
}

func (t *table) removeFromOrder(key string) {
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

type renderOptions struct {
	expandKeys bool
	showKeys   bool
}

// render copies the stored document for return, attaching the synthetic key
// and expanding foreign keys when requested. Callers hold m.mu.
func (m *Mock) render(t *table, key string, doc cookiedb.Document, opts renderOptions) cookiedb.Document {
	out := deepCopy(doc)
	if opts.expandKeys && t.schema != nil {
		visited := map[string]bool{key: true}
		m.expand(t.schema, out, visited)
	}
	if opts.showKeys {
		out["key"] = key
	}
	return out
}

// expand replaces foreign-key field values with the referenced documents.
// Cycles stop at the first key repeated along the current descent path,
// leaving the raw key in place.
func (m *Mock) expand(schema cookiedb.Schema, doc cookiedb.Document, visited map[string]bool) {
	for field, ft := range schema {
		switch typed := ft.(type) {
		case cookiedb.Column:
			if typed.Kind != cookiedb.KindForeignKey {
				continue
			}
			ref, _ := doc[field].(string)
			if ref == "" || visited[ref] {
				continue
			}
			target, targetTable := m.findByKey(ref)
			if target == nil {
				continue
			}
			// Mark for this descent only, so sibling fields referencing
			// the same document still expand.
			visited[ref] = true
			resolved := deepCopy(target)
			if targetTable.schema != nil {
				m.expand(targetTable.schema, resolved, visited)
			}
			delete(visited, ref)
			resolved["key"] = ref
			doc[field] = resolved
		case cookiedb.Schema:
			if nested, ok := doc[field].(map[string]any); ok {
				m.expand(typed, cookiedb.Document(nested), visited)
			}
		}
	}
}

// findByKey scans all tables for the document stored under key. Keys are
// uuids, so cross-table collisions are not a concern.
func (m *Mock) findByKey(key string) (cookiedb.Document, *table) {
	for _, t := range m.tables {
		if doc, found := t.docs[key]; found {
			return doc, t
		}
	}
	return nil, nil
}

// applyAlias re-projects doc through alias expressions: string values are
// $field references resolved against doc, nested maps recurse.
func applyAlias(alias cookiedb.Alias, doc cookiedb.Document) (cookiedb.Document, error) {
	out := make(cookiedb.Document, len(alias))
	for field, expr := range alias {
		switch typed := expr.(type) {
		case string:
			if !strings.HasPrefix(typed, "$") {
				return nil, fmt.Errorf("alias for %q must be a $field reference", field)
			}
			out[field] = lookupPath(doc, strings.TrimPrefix(typed, "$"))
		case map[string]any:
			nested, err := applyAlias(cookiedb.Alias(typed), doc)
			if err != nil {
				return nil, err
			}
			out[field] = nested
		case cookiedb.Alias:
			nested, err := applyAlias(typed, doc)
			if err != nil {
				return nil, err
			}
			out[field] = nested
		default:
			return nil, fmt.Errorf("alias for %q must be a reference or nested alias", field)
		}
	}
	return out, nil
}

// deepCopy clones a document so stored state never aliases caller memory.
func deepCopy(doc cookiedb.Document) cookiedb.Document {
	out := make(cookiedb.Document, len(doc))
	for field, value := range doc {
		out[field] = copyValue(value)
	}
	return out
}

func copyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = copyValue(v)
		}
		return out
	case cookiedb.Document:
		return map[string]any(deepCopy(typed))
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = copyValue(v)
		}
		return out
	default:
		return typed
	}
}
