package config

import (
	"fmt"
	"sync/atomic"
)

// Holder keeps the current Config and swaps it atomically on Reload.
// Readers always see a complete, validated Config.
type Holder struct {
	path string
	cur  atomic.Pointer[Config]
}

// NewHolder wraps an already loaded cfg. path is the YAML file re-read by Reload.
func NewHolder(cfg *Config, path string) *Holder {
	h := &Holder{path: path}
	h.cur.Store(cfg)
	return h
}

// Get returns the current configuration. The returned value must not be mutated.
func (h *Holder) Get() *Config {
	return h.cur.Load()
}

// Reload re-reads defaults < YAML < ENV. On error the previous
// configuration stays in place.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.path)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	h.cur.Store(cfg)
	return nil
}
