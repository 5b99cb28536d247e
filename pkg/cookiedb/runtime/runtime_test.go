package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cookiedb/cookiedb-go/pkg/cookiedb"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvMode, EnvURL, EnvToken, EnvMockSeed} {
		t.Setenv(key, "")
	}
}

func TestNewFromEnvAutoPrefersHTTP(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"tables": map[string]any{}, "size": 0})
	}))
	t.Cleanup(srv.Close)

	clearEnv(t)
	t.Setenv(EnvURL, srv.URL)
	t.Setenv(EnvToken, "tok")

	client, mode, err := NewFromEnv()
	require.NoError(t, err)
	require.Equal(t, ModeHTTP, mode)

	_, err = client.Meta(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer tok", gotAuth)
}

func TestNewFromEnvAutoFallsBackToMock(t *testing.T) {
	clearEnv(t)

	client, mode, err := NewFromEnv()
	require.NoError(t, err)
	require.Equal(t, ModeMock, mode)

	// The mock is fully usable without any server.
	ctx := context.Background()
	require.NoError(t, client.CreateTable(ctx, "notes", nil))
	_, err = client.Insert(ctx, "notes", cookiedb.Document{"text": "hi"})
	require.NoError(t, err)
}

func TestNewFromEnvHTTPRequiresURL(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMode, ModeHTTP)

	_, _, err := NewFromEnv()
	require.Error(t, err)
	require.Contains(t, err.Error(), EnvURL)
}

func TestNewFromEnvRejectsUnknownMode(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMode, "carrier-pigeon")

	_, _, err := NewFromEnv()
	require.Error(t, err)
}

func TestNewFromEnvModeIsCaseInsensitive(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMode, " Mock ")

	_, mode, err := NewFromEnv()
	require.NoError(t, err)
	require.Equal(t, ModeMock, mode)
}

func TestNewFromEnvMockSeed(t *testing.T) {
	seed := `{
		"tables": [
			{
				"name": "users",
				"schema": {"name": "string"},
				"documents": [{"name": "alice"}, {"name": "bob"}]
			}
		],
		"users": [{"username": "admin", "token": "seeded", "admin": true}]
	}`
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	clearEnv(t)
	t.Setenv(EnvMode, ModeMock)
	t.Setenv(EnvToken, "seeded")
	t.Setenv(EnvMockSeed, path)

	client, mode, err := NewFromEnv()
	require.NoError(t, err)
	require.Equal(t, ModeMock, mode)

	meta, err := client.TableMeta(context.Background(), "users")
	require.NoError(t, err)
	require.Equal(t, 2, meta.Size)
}

func TestNewFromEnvMockSeedErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvMode, ModeMock)
	t.Setenv(EnvMockSeed, filepath.Join(t.TempDir(), "missing.json"))

	_, _, err := NewFromEnv()
	require.Error(t, err)
}
