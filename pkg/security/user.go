package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/gantry/pkg/contextkeys"
)

// User is an authenticated caller
type User struct {
	Username string
	Roles    []string
}

// HashToken computes the SHA256 hash of a token for lookup
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// TokenTable maps bearer tokens to users. Only token hashes are kept.
type TokenTable struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewTokenTable creates an empty token table
func NewTokenTable() *TokenTable {
	return &TokenTable{users: make(map[string]*User)}
}

// Add registers a token for a user
func (t *TokenTable) Add(token string, user User) {
	u := user
	u.Roles = append([]string(nil), user.Roles...)
	t.mu.Lock()
	t.users[HashToken(token)] = &u
	t.mu.Unlock()
}

// Lookup returns the user of a token
func (t *TokenTable) Lookup(token string) (*User, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.users[HashToken(token)]
	return u, ok
}

// tokenFile is the YAML layout read by LoadTokens:
//
//	tokens:
//	  - token: admin-token
//	    username: admin
//	    roles: [ROLE_ADMIN]
type tokenFile struct {
	Tokens []struct {
		Token    string   `yaml:"token"`
		Username string   `yaml:"username"`
		Roles    []string `yaml:"roles"`
	} `yaml:"tokens"`
}

// LoadTokens decodes a YAML token table
func LoadTokens(r io.Reader) (*TokenTable, error) {
	var file tokenFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode tokens: %w", err)
	}

	table := NewTokenTable()
	for i, entry := range file.Tokens {
		if entry.Token == "" || entry.Username == "" {
			return nil, fmt.Errorf("token %d: token and username are required", i)
		}
		table.Add(entry.Token, User{Username: entry.Username, Roles: entry.Roles})
	}
	return table, nil
}

// LoadTokenFile decodes a YAML token table from disk
func LoadTokenFile(path string) (*TokenTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tokens: %w", err)
	}
	defer f.Close()
	return LoadTokens(f)
}

// Replace swaps the tokens of t for those of other
func (t *TokenTable) Replace(other *TokenTable) {
	other.mu.RLock()
	users := make(map[string]*User, len(other.users))
	for hash, u := range other.users {
		users[hash] = u
	}
	other.mu.RUnlock()

	t.mu.Lock()
	t.users = users
	t.mu.Unlock()
}

// Len returns the number of known tokens
func (t *TokenTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.users)
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// WithUser stores the authenticated user in the context
func WithUser(ctx context.Context, user *User) context.Context {
	ctx = contextkeys.WithAuth(ctx, user)
	return contextkeys.WithUserID(ctx, user.Username)
}

// UserFromContext returns the authenticated user or nil for anonymous callers
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(contextkeys.AuthKey).(*User)
	return user
}
