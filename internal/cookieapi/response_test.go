package cookieapi

import (
	"errors"
	"testing"
)

func TestDecodeResult(t *testing.T) {
	t.Run("object payload", func(t *testing.T) {
		var out struct {
			Size int `json:"size"`
		}
		if err := DecodeResult([]byte(`{"size": 3}`), &out); err != nil {
			t.Fatalf("DecodeResult returned error: %v", err)
		}
		if out.Size != 3 {
			t.Fatalf("unexpected size: %d", out.Size)
		}
	})

	t.Run("array payload", func(t *testing.T) {
		var keys []string
		if err := DecodeResult([]byte(`["a","b"]`), &keys); err != nil {
			t.Fatalf("DecodeResult returned error: %v", err)
		}
		if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
			t.Fatalf("unexpected keys: %v", keys)
		}
	})

	t.Run("bare string payload", func(t *testing.T) {
		var key string
		if err := DecodeResult([]byte(`"01c0ff33"`), &key); err != nil {
			t.Fatalf("DecodeResult returned error: %v", err)
		}
		if key != "01c0ff33" {
			t.Fatalf("unexpected key: %q", key)
		}
	})

	t.Run("error envelope", func(t *testing.T) {
		err := DecodeResult([]byte(`{"error":"table \"users\" does not exist"}`), nil)
		var serverErr *ServerError
		if !errors.As(err, &serverErr) {
			t.Fatalf("expected *ServerError, got %v", err)
		}
		if serverErr.Message != `table "users" does not exist` {
			t.Fatalf("unexpected message: %q", serverErr.Message)
		}
	})

	t.Run("null error field is not an error", func(t *testing.T) {
		var out map[string]any
		if err := DecodeResult([]byte(`{"error":null,"size":1}`), &out); err != nil {
			t.Fatalf("DecodeResult returned error: %v", err)
		}
	})

	t.Run("non-string error payload", func(t *testing.T) {
		err := DecodeResult([]byte(`{"error":{"reason":"busy"}}`), nil)
		var serverErr *ServerError
		if !errors.As(err, &serverErr) {
			t.Fatalf("expected *ServerError, got %v", err)
		}
		if serverErr.Message != `{"reason":"busy"}` {
			t.Fatalf("unexpected message: %q", serverErr.Message)
		}
	})

	t.Run("non-JSON body is malformed", func(t *testing.T) {
		err := DecodeResult([]byte("Internal Server Error"), nil)
		var malformed *MalformedResponseError
		if !errors.As(err, &malformed) {
			t.Fatalf("expected *MalformedResponseError, got %v", err)
		}
	})

	t.Run("empty body is malformed", func(t *testing.T) {
		var malformed *MalformedResponseError
		if err := DecodeResult(nil, nil); !errors.As(err, &malformed) {
			t.Fatalf("expected *MalformedResponseError, got %v", err)
		}
	})
}

func TestDecodeAck(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "text sentinel", body: "success"},
		{name: "padded text sentinel", body: "  success\n"},
		{name: "json ack", body: `{"ok":true}`},
		{name: "json true", body: `true`},
		{name: "error envelope", body: `{"error":"document does not exist"}`, wantErr: "document does not exist"},
		{name: "other text", body: "table is locked", wantErr: "table is locked"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := DecodeAck([]byte(tc.body))
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("DecodeAck returned error: %v", err)
				}
				return
			}
			var serverErr *ServerError
			if !errors.As(err, &serverErr) {
				t.Fatalf("expected *ServerError, got %v", err)
			}
			if serverErr.Message != tc.wantErr {
				t.Fatalf("unexpected message: %q", serverErr.Message)
			}
		})
	}
}

func TestDecodeAckEmptyBodyIsMalformed(t *testing.T) {
	var malformed *MalformedResponseError
	if err := DecodeAck(nil); !errors.As(err, &malformed) {
		t.Fatalf("expected *MalformedResponseError, got %v", err)
	}
	if err := DecodeAck([]byte("  \n")); !errors.As(err, &malformed) {
		t.Fatalf("expected *MalformedResponseError for whitespace body, got %v", err)
	}
}
