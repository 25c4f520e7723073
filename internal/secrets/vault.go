// Package secrets provides a thread-safe secret vault with hot reload support.
package secrets

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/Strob0t/memorybridge/internal/config"
)

// Environment variables holding the service secrets.
const (
	KeyZepAPIKey        = "ZEP_API_KEY"
	KeyMem0APIKey       = "MEM0_API_KEY"
	KeyEncryptionSecret = "MEMORYBRIDGE_ENCRYPTION_SECRET"
)

// ServiceKeys lists every secret read by memorybridge.
var ServiceKeys = []string{KeyZepAPIKey, KeyMem0APIKey, KeyEncryptionSecret}

// minRedactLen is the shortest secret RedactString will search for.
const minRedactLen = 4

// Loader retrieves secrets from a source (env vars, file, remote vault, etc.).
type Loader func() (map[string]string, error)

// Vault holds secret values in memory and supports atomic reloading.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault creates a Vault, calling the loader once to populate initial values.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{
		values: vals,
		loader: loader,
	}, nil
}

// Get returns the secret for key, or an empty string if not found.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Keys returns the names of all loaded secrets.
func (v *Vault) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	return keys
}

// Reload calls the loader and swaps in the new values atomically.
// If the loader returns an error, existing values are preserved.
func (v *Vault) Reload() error {
	newVals, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = newVals
	v.mu.Unlock()
	return nil
}

// Redacted returns a masked form of the secret suitable for logs.
func (v *Vault) Redacted(key string) string {
	return mask(v.Get(key))
}

// RedactString masks every loaded secret occurring in s.
func (v *Vault) RedactString(s string) string {
	v.mu.RLock()
	vals := make([]string, 0, len(v.values))
	for _, val := range v.values {
		if len(val) >= minRedactLen {
			vals = append(vals, val)
		}
	}
	v.mu.RUnlock()
	if len(vals) == 0 {
		return s
	}

	// Longest first so a secret containing another is masked whole.
	slices.SortFunc(vals, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
	pairs := make([]string, 0, 2*len(vals))
	for _, val := range vals {
		pairs = append(pairs, val, mask(val))
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Overlay copies the loaded service secrets into cfg. Absent secrets leave
// the config value untouched.
func (v *Vault) Overlay(cfg *config.Config) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if s := v.values[KeyZepAPIKey]; s != "" {
		cfg.Gateway.APIKey = s
	}
	if s := v.values[KeyMem0APIKey]; s != "" {
		cfg.Mem0.APIKey = s
	}
	if s := v.values[KeyEncryptionSecret]; s != "" {
		cfg.Credentials.EncryptionSecret = s
	}
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= minRedactLen:
		return "****"
	default:
		return s[:2] + "****"
	}
}
