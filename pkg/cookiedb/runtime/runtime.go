// Package runtime bootstraps a cookiedb.Client from environment variables,
// resolving between a live HTTP server and the in-memory mock so programs
// run unchanged inside and outside a CookieDB deployment.
package runtime

import (
	"fmt"
	"os"
	"strings"

	"github.com/cookiedb/cookiedb-go/internal/devseed"
	"github.com/cookiedb/cookiedb-go/pkg/cookiedb"
	"github.com/cookiedb/cookiedb-go/pkg/cookiedb/mock"
)

const (
	// EnvMode selects the runtime mode: auto (default), http or mock.
	EnvMode = "COOKIEDB_RUNTIME_MODE"
	// EnvURL is the CookieDB server base URL for HTTP mode.
	EnvURL = "COOKIEDB_API_URL"
	// EnvToken is the bearer token presented on every request.
	EnvToken = "COOKIEDB_API_TOKEN"
	// EnvMockSeed optionally points at a devseed JSON file applied to the
	// mock in mock mode.
	EnvMockSeed = "COOKIEDB_MOCK_SEED"

	// ModeHTTP and ModeMock are the resolved modes reported by NewFromEnv.
	ModeHTTP = "http"
	ModeMock = "mock"

	modeAuto = "auto"
)

// NewFromEnv initialises a client based on CookieDB environment variables
// and returns the resolved mode ("http" or "mock"). Auto mode picks HTTP
// when a base URL is configured and falls back to a fresh mock otherwise.
func NewFromEnv() (client *cookiedb.Client, mode string, err error) {
	mode = strings.ToLower(strings.TrimSpace(os.Getenv(EnvMode)))
	baseURL := strings.TrimSpace(os.Getenv(EnvURL))
	token := strings.TrimSpace(os.Getenv(EnvToken))

	switch mode {
	case "", modeAuto:
		if baseURL != "" {
			return newHTTPClient(baseURL, token)
		}
		return newMockClient(token)
	case ModeHTTP:
		if baseURL == "" {
			return nil, "", fmt.Errorf("runtime: HTTP mode requires %s", EnvURL)
		}
		return newHTTPClient(baseURL, token)
	case ModeMock:
		return newMockClient(token)
	default:
		return nil, "", fmt.Errorf("runtime: unsupported %s value %q", EnvMode, mode)
	}
}

func newHTTPClient(baseURL, token string) (*cookiedb.Client, string, error) {
	client, err := cookiedb.New(baseURL, token)
	if err != nil {
		return nil, "", fmt.Errorf("runtime: init HTTP client: %w", err)
	}
	return client, ModeHTTP, nil
}

func newMockClient(token string) (*cookiedb.Client, string, error) {
	store := mock.New()
	if path := strings.TrimSpace(os.Getenv(EnvMockSeed)); path != "" {
		seed, err := devseed.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("runtime: load mock seed: %w", err)
		}
		if err := store.Seed(seed); err != nil {
			return nil, "", fmt.Errorf("runtime: apply mock seed: %w", err)
		}
	}
	if token == "" {
		token = "dev"
	}
	return mock.NewClient(store, token), ModeMock, nil
}
