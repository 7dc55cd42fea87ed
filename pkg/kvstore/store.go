// Package kvstore persists whole JSON collections and single string values
// under named keys. The medium is pluggable through Backend.
package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaVersion is written into every collection envelope.
const SchemaVersion = 1

var (
	// ErrPersistence wraps every failure of the underlying medium.
	ErrPersistence = errors.New("persistence error")
	// ErrCorrupt marks a stored value that cannot be decoded.
	ErrCorrupt = errors.New("corrupt stored value")
)

// Backend is a raw byte medium. Read reports found=false for absent keys.
type Backend interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

type envelope struct {
	Schema int               `json:"schema"`
	Items  []json.RawMessage `json:"items"`
}

type Store struct {
	backend Backend
}

func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Get returns the collection stored under key, or an empty slice when absent.
func (s *Store) Get(ctx context.Context, key string) ([]json.RawMessage, error) {
	raw, found, err := s.read(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return []json.RawMessage{}, nil
	}
	return decodeCollection(key, raw)
}

// Set replaces the whole collection under key.
func (s *Store) Set(ctx context.Context, key string, items []json.RawMessage) error {
	if items == nil {
		items = []json.RawMessage{}
	}
	raw, err := json.Marshal(envelope{Schema: SchemaVersion, Items: items})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.write(ctx, key, raw)
}

// Has reports whether key holds a value. A blank stored value counts as absent.
func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, found, err := s.read(ctx, key)
	return found, err
}

// GetString reads a single-value key. Values are stored as JSON strings;
// a raw unquoted value is accepted as-is. An empty value counts as absent.
func (s *Store) GetString(ctx context.Context, key string) (string, bool, error) {
	raw, found, err := s.read(ctx, key)
	if err != nil || !found {
		return "", false, err
	}
	value := string(raw)
	var decoded string
	if err := json.Unmarshal(raw, &decoded); err == nil {
		value = decoded
	}
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

func (s *Store) SetString(ctx context.Context, key, value string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.write(ctx, key, raw)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.Remove(ctx, key); err != nil {
		return fmt.Errorf("%w: removing %s: %v", ErrPersistence, key, err)
	}
	return nil
}

func (s *Store) read(ctx context.Context, key string) ([]byte, bool, error) {
	raw, found, err := s.backend.Read(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading %s: %v", ErrPersistence, key, err)
	}
	if found && len(bytes.TrimSpace(raw)) == 0 {
		return nil, false, nil
	}
	return raw, found, nil
}

func (s *Store) write(ctx context.Context, key string, raw []byte) error {
	if err := s.backend.Write(ctx, key, raw); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrPersistence, key, err)
	}
	return nil
}

// decodeCollection accepts the versioned envelope and the bare array layout
// written by earlier clients.
func decodeCollection(key string, raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return []json.RawMessage{}, nil
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
		}
		if items == nil {
			items = []json.RawMessage{}
		}
		return items, nil
	case '{':
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
		}
		if env.Schema < 1 || env.Schema > SchemaVersion {
			return nil, fmt.Errorf("%w: %s: unsupported schema %d", ErrCorrupt, key, env.Schema)
		}
		if env.Items == nil {
			env.Items = []json.RawMessage{}
		}
		return env.Items, nil
	default:
		return nil, fmt.Errorf("%w: %s: not a collection", ErrCorrupt, key)
	}
}
