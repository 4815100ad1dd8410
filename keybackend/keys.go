// Package keybackend loads the access keys the HTTP gateway accepts.
package keybackend

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrKeyNotFound is returned by Lookup for an unknown access key.
var ErrKeyNotFound = errors.New("access key not found")

// KeysConfig lists access keys inline, in a JSON or YAML file, or both.
type KeysConfig struct {
	Inline []KeyPair `mapstructure:"inline"`
	File   string    `mapstructure:"file"`
}

// MapSecretStore is an immutable access key to secret table.
type MapSecretStore struct {
	keys map[string]string
}

// NewMapSecretStore copies keys into a store.
func NewMapSecretStore(keys map[string]string) *MapSecretStore {
	return &MapSecretStore{keys: maps.Clone(keys)}
}

// NewSecretStore merges the inline pairs with those read from File. On a
// duplicate access key the file wins.
func NewSecretStore(cfg KeysConfig) (*MapSecretStore, error) {
	keys := make(map[string]string, len(cfg.Inline))
	addPairs(keys, cfg.Inline)

	if cfg.File != "" {
		pairs, err := readPairs(cfg.File)
		if err != nil {
			return nil, err
		}
		addPairs(keys, pairs)
	}

	return &MapSecretStore{keys: keys}, nil
}

func (s *MapSecretStore) Lookup(accessKey string) (string, error) {
	secret, ok := s.keys[accessKey]
	if !ok {
		return "", fmt.Errorf("lookup %q: %w", accessKey, ErrKeyNotFound)
	}
	return secret, nil
}

func (s *MapSecretStore) Len() int {
	return len(s.keys)
}

// AccessKeys returns the access key ids in sorted order. Secrets are never
// exposed.
func (s *MapSecretStore) AccessKeys() []string {
	return slices.Sorted(maps.Keys(s.keys))
}

// addPairs skips pairs with an empty half; later pairs replace earlier ones.
func addPairs(dst map[string]string, pairs []KeyPair) {
	for _, p := range pairs {
		if p.AccessKey == "" || p.SecretKey == "" {
			continue
		}
		dst[p.AccessKey] = p.SecretKey
	}
}
