package httpapi

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// APIKey maps one bearer key to the owning user. The key file is the
// boundary to the external identity provider: whoever holds a key acts as
// that user.
type APIKey struct {
	UserID string `yaml:"user_id"`
	Key    string `yaml:"key"`
	Name   string `yaml:"name"`
}

type APIKeyStore struct {
	byKey map[string]*APIKey
}

func LoadAPIKeys(path string) (*APIKeyStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read api keys file: %w", err)
	}

	var entries []APIKey
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse api keys file: %w", err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("api keys file is empty")
	}

	store := &APIKeyStore{byKey: make(map[string]*APIKey, len(entries))}
	for i := range entries {
		entry := entries[i]
		entry.UserID = strings.TrimSpace(entry.UserID)
		entry.Key = strings.TrimSpace(entry.Key)
		if entry.UserID == "" {
			return nil, fmt.Errorf("api key at index %d has empty user_id", i)
		}
		if entry.Key == "" {
			return nil, fmt.Errorf("api key for user %q has empty key", entry.UserID)
		}
		if _, exists := store.byKey[entry.Key]; exists {
			return nil, fmt.Errorf("duplicate api key value for user %q", entry.UserID)
		}
		entries[i] = entry
		store.byKey[entry.Key] = &entries[i]
	}

	return store, nil
}

func (s *APIKeyStore) Lookup(key string) (*APIKey, bool) {
	if s == nil {
		return nil, false
	}
	k, ok := s.byKey[key]
	return k, ok
}
