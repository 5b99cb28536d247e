package mock

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/cookiedb/cookiedb-go/internal/httpx"
	"github.com/cookiedb/cookiedb-go/pkg/cookiedb"
)

// Backend adapts a Mock to the cookiedb.Backend interface by driving its
// HTTP handler in-process, so mock-backed clients exercise the exact wire
// encoding without a listening socket.
type Backend struct {
	handler http.Handler
	token   string
}

// NewBackend wraps the mock for direct use by a cookiedb.Client.
func NewBackend(m *Mock, token string) *Backend {
	return &Backend{handler: m.Handler(), token: token}
}

// NewClient is a convenience constructor for a fully wired mock-backed
// client.
func NewClient(m *Mock, token string) *cookiedb.Client {
	return cookiedb.NewWithBackend(NewBackend(m, token))
}

// Post implements cookiedb.Backend.
func (b *Backend) Post(ctx context.Context, path string, payload any) ([]byte, error) {
	if b == nil || b.handler == nil {
		return nil, fmt.Errorf("mock: backend not configured")
	}

	var body *bytes.Reader
	if payload != nil {
		data, err := httpx.MarshalJSON(payload)
		if err != nil {
			return nil, fmt.Errorf("mock: encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(http.MethodPost, path, body).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	return rec.Body.Bytes(), nil
}
