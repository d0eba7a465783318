// Package config is the process-wide key/value store that role definitions
// and task bodies read their settings from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store wraps a koanf instance with bootleg's defaults. Values layer as
// defaults < config file < BOOTLEG_* environment < explicit Set calls.
type Store struct {
	k *koanf.Koanf
}

// New creates a store seeded with defaults.
func New() *Store {
	k := koanf.New(".")

	home, _ := os.UserHomeDir()
	k.Set("workspace", ".")
	k.Set("ssh.user", os.Getenv("USER"))
	k.Set("ssh.port", 22)
	k.Set("ssh.identity", filepath.Join(home, ".ssh", "id_rsa"))
	k.Set("history.path", filepath.Join(home, ".bootleg", "history.db"))

	return &Store{k: k}
}

// Load merges the YAML file at path (skipped when empty), then BOOTLEG_*
// environment overrides (BOOTLEG_SSH_USER -> ssh.user).
func (s *Store) Load(path string) error {
	if path != "" {
		if err := s.k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := s.k.Load(env.Provider("BOOTLEG_", ".", func(key string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(key, "BOOTLEG_")), "_", ".", -1)
	}), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// Get returns the value for key, or def when the key is unset.
func (s *Store) Get(key string, def interface{}) interface{} {
	if s.k.Exists(key) {
		return s.k.Get(key)
	}
	return def
}

// GetString returns the string value for key, or def when unset or empty.
func (s *Store) GetString(key, def string) string {
	if v := s.k.String(key); v != "" {
		return v
	}
	return def
}

// GetInt returns the int value for key, or def when unset.
func (s *Store) GetInt(key string, def int) int {
	if s.k.Exists(key) {
		return s.k.Int(key)
	}
	return def
}

// Set stores value under key, replacing any loaded value.
func (s *Store) Set(key string, value interface{}) {
	s.k.Set(key, value)
}

// All returns a flat map of every key currently set.
func (s *Store) All() map[string]interface{} {
	return s.k.All()
}
