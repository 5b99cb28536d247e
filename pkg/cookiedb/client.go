package cookiedb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cookiedb/cookiedb-go/internal/cookieapi"
	"github.com/cookiedb/cookiedb-go/internal/httpx"
)

// Backend performs one CookieDB request and returns the raw response body.
// Implementations exist for HTTP (the default) and for the in-memory mock.
type Backend interface {
	Post(ctx context.Context, path string, payload any) ([]byte, error)
}

// Client exposes one method per CookieDB endpoint. It holds only the
// immutable transport configuration; concurrent calls are independent and
// may be issued in parallel.
type Client struct {
	backend Backend
}

// New constructs a Client for the given base URL and bearer token. No
// network I/O happens here and neither value is validated beyond URL
// parsing; the token is presented as "Bearer <token>" on every request.
func New(baseURL, token string, opts ...httpx.Option) (*Client, error) {
	auth := httpx.WithHeaders(http.Header{"Authorization": {"Bearer " + token}})
	cl, err := httpx.NewClient(baseURL, append([]httpx.Option{auth}, opts...)...)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(&httpBackend{client: cl}), nil
}

// NewWithBackend allows callers to supply a custom backend (e.g., mocks).
func NewWithBackend(b Backend) *Client {
	return &Client{backend: b}
}

// CreateTable creates a table. A nil schema creates a schemaless table.
func (c *Client) CreateTable(ctx context.Context, table string, schema Schema) error {
	body, err := c.post(ctx, "create", []string{table}, schemaOrNil(schema))
	if err != nil {
		return wrapErr("createTable", err)
	}
	return wrapErr("createTable", cookieapi.DecodeAck(body))
}

// EditTable renames a table, migrates its schema and/or re-projects fields
// through alias expressions in one atomic server-side operation. The client
// passes the edit through without local validation.
func (c *Client) EditTable(ctx context.Context, table string, edit EditTable) error {
	body, err := c.post(ctx, "edit", []string{table}, edit)
	if err != nil {
		return wrapErr("editTable", err)
	}
	return wrapErr("editTable", cookieapi.DecodeAck(body))
}

// DropTable removes a table and all of its documents. Irreversible; fails
// if the table does not exist.
func (c *Client) DropTable(ctx context.Context, table string) error {
	body, err := c.post(ctx, "drop", []string{table}, nil)
	if err != nil {
		return wrapErr("dropTable", err)
	}
	return wrapErr("dropTable", cookieapi.DecodeAck(body))
}

// TableMeta reports the table's schema and document count.
func (c *Client) TableMeta(ctx context.Context, table string) (*TableMeta, error) {
	body, err := c.post(ctx, "meta", []string{table}, nil)
	if err != nil {
		return nil, wrapErr("metaTable", err)
	}
	var meta TableMeta
	if err := cookieapi.DecodeResult(body, &meta); err != nil {
		return nil, wrapErr("metaTable", err)
	}
	return &meta, nil
}

// Meta reports every table's schema plus the database's aggregate size.
func (c *Client) Meta(ctx context.Context) (*DatabaseMeta, error) {
	body, err := c.post(ctx, "meta", nil, nil)
	if err != nil {
		return nil, wrapErr("meta", err)
	}
	var meta DatabaseMeta
	if err := cookieapi.DecodeResult(body, &meta); err != nil {
		return nil, wrapErr("meta", err)
	}
	return &meta, nil
}

// Insert stores one document and returns its newly assigned key.
func (c *Client) Insert(ctx context.Context, table string, doc Document) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("cookiedb: document is required")
	}
	body, err := c.post(ctx, "insert", []string{table}, doc)
	if err != nil {
		return "", wrapErr("insert", err)
	}
	var key string
	if err := cookieapi.DecodeResult(body, &key); err != nil {
		return "", wrapErr("insert", err)
	}
	return key, nil
}

// InsertMany stores the documents in one request and returns their keys,
// index-aligned with the input slice.
func (c *Client) InsertMany(ctx context.Context, table string, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("cookiedb: at least one document is required")
	}
	body, err := c.post(ctx, "insert", []string{table}, docs)
	if err != nil {
		return nil, wrapErr("insert", err)
	}
	var keys []string
	if err := cookieapi.DecodeResult(body, &keys); err != nil {
		return nil, wrapErr("insert", err)
	}
	return keys, nil
}

// Get retrieves the document stored under key. With opts.ExpandKeys set,
// foreign-key fields are resolved into their referenced documents
// recursively instead of returning the raw key.
func (c *Client) Get(ctx context.Context, table, key string, opts *GetOptions) (Document, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("cookiedb: key is required")
	}
	payload := map[string]any{"expand_keys": opts != nil && opts.ExpandKeys}
	body, err := c.post(ctx, "get", []string{table, key}, payload)
	if err != nil {
		return nil, wrapErr("get", err)
	}
	var doc Document
	if err := cookieapi.DecodeResult(body, &doc); err != nil {
		return nil, wrapErr("get", err)
	}
	return doc, nil
}

// Update merges partial into the stored document: only the provided fields
// are overwritten, everything else is left untouched server-side.
func (c *Client) Update(ctx context.Context, table, key string, partial Document) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("cookiedb: key is required")
	}
	if partial == nil {
		return fmt.Errorf("cookiedb: partial document is required")
	}
	body, err := c.post(ctx, "update", []string{table, key}, partial)
	if err != nil {
		return wrapErr("update", err)
	}
	return wrapErr("update", cookieapi.DecodeAck(body))
}

// Delete removes the document stored under key. Deleting an absent key is a
// server-reported error, not a silent success.
func (c *Client) Delete(ctx context.Context, table, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("cookiedb: key is required")
	}
	body, err := c.post(ctx, "delete", []string{table, key}, nil)
	if err != nil {
		return wrapErr("delete", err)
	}
	return wrapErr("delete", cookieapi.DecodeAck(body))
}

// DeleteByQuery removes every document matching the boolean query
// expression and returns the deleted keys, possibly none.
func (c *Client) DeleteByQuery(ctx context.Context, table, where string) ([]string, error) {
	if strings.TrimSpace(where) == "" {
		return nil, fmt.Errorf("cookiedb: query expression is required")
	}
	body, err := c.post(ctx, "delete", []string{table}, map[string]any{"where": where})
	if err != nil {
		return nil, wrapErr("deleteByQuery", err)
	}
	keys := []string{}
	if err := cookieapi.DecodeResult(body, &keys); err != nil {
		return nil, wrapErr("deleteByQuery", err)
	}
	return keys, nil
}

// Select returns the documents matching the where expression, a boolean
// filter over $field references; an empty where selects every document.
// Result order is server-defined unless opts.Order is set.
func (c *Client) Select(ctx context.Context, table, where string, opts *SelectOptions) ([]Document, error) {
	payload := map[string]any{}
	if where != "" {
		payload["where"] = where
	}
	if opts != nil {
		if opts.MaxResults > 0 {
			payload["max_results"] = opts.MaxResults
		}
		if opts.ExpandKeys {
			payload["expand_keys"] = true
		}
		if opts.Order != nil {
			payload["order"] = opts.Order
		}
		if opts.Alias != nil {
			payload["alias"] = opts.Alias
		}
		if opts.ShowKeys != nil {
			payload["show_keys"] = *opts.ShowKeys
		}
	}
	body, err := c.post(ctx, "select", []string{table}, payload)
	if err != nil {
		return nil, wrapErr("select", err)
	}
	docs := []Document{}
	if err := cookieapi.DecodeResult(body, &docs); err != nil {
		return nil, wrapErr("select", err)
	}
	return docs, nil
}

// CreateUser registers a user; the server generates the username and token
// when omitted. Requires an administrator credential.
func (c *Client) CreateUser(ctx context.Context, opts CreateUserOptions) (*User, error) {
	body, err := c.post(ctx, "create_user", nil, opts)
	if err != nil {
		return nil, wrapErr("createUser", err)
	}
	var user User
	if err := cookieapi.DecodeResult(body, &user); err != nil {
		return nil, wrapErr("createUser", err)
	}
	return &user, nil
}

// DeleteUser removes a user. Requires an administrator credential.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("cookiedb: username is required")
	}
	body, err := c.post(ctx, "delete_user", []string{username}, nil)
	if err != nil {
		return wrapErr("deleteUser", err)
	}
	return wrapErr("deleteUser", cookieapi.DecodeAck(body))
}

// RegenerateToken mints a fresh token for the user, invalidating the
// previous one server-side. Requires an administrator credential.
func (c *Client) RegenerateToken(ctx context.Context, username string) (*User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("cookiedb: username is required")
	}
	body, err := c.post(ctx, "regenerate_token", []string{username}, nil)
	if err != nil {
		return nil, wrapErr("regenerateToken", err)
	}
	var user User
	if err := cookieapi.DecodeResult(body, &user); err != nil {
		return nil, wrapErr("regenerateToken", err)
	}
	return &user, nil
}

func (c *Client) post(ctx context.Context, endpoint string, segments []string, payload any) ([]byte, error) {
	if c == nil || c.backend == nil {
		return nil, fmt.Errorf("client is nil")
	}
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("empty path segment")
		}
	}
	path := "/" + endpoint
	for _, s := range segments {
		path += "/" + url.PathEscape(s)
	}
	return c.backend.Post(ctx, path, payload)
}

// schemaOrNil keeps a nil Schema out of the request body so schemaless
// tables are created with an empty POST rather than a JSON null.
func schemaOrNil(schema Schema) any {
	if schema == nil {
		return nil
	}
	return schema
}

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) Post(ctx context.Context, path string, payload any) ([]byte, error) {
	resp, err := b.client.PostJSON(ctx, path, payload)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
