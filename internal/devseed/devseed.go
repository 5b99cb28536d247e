// Package devseed loads JSON seed files used to pre-populate the in-memory
// CookieDB mock for local development and tests.
package devseed

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Seed is the top-level seed document.
type Seed struct {
	Tables []TableSeed `json:"tables"`
	Users  []UserSeed  `json:"users"`
}

// TableSeed declares one table plus its initial documents. Schema uses the
// wire format (descriptor strings, nested objects); a missing schema seeds a
// schemaless table.
type TableSeed struct {
	Name      string           `json:"name"`
	Schema    json.RawMessage  `json:"schema,omitempty"`
	Documents []map[string]any `json:"documents,omitempty"`
}

// UserSeed declares one credential.
type UserSeed struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	Admin    bool   `json:"admin"`
}

// Load reads and validates a seed file.
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("devseed: parse %s: %w", path, err)
	}
	for i, table := range seed.Tables {
		if strings.TrimSpace(table.Name) == "" {
			return nil, fmt.Errorf("devseed: table entry %d missing name", i)
		}
	}
	for i, user := range seed.Users {
		if strings.TrimSpace(user.Username) == "" || strings.TrimSpace(user.Token) == "" {
			return nil, fmt.Errorf("devseed: user entry %d missing username or token", i)
		}
	}
	return &seed, nil
}
