package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/medisetu/platform/pkg/idgen"
	"github.com/medisetu/platform/pkg/kvstore"
)

// Collection keys in the key-value store.
const (
	KeyPatients     = "medisetu_patients"
	KeyReports      = "medisetu_reports"
	KeyAppointments = "medisetu_appointments"
	KeyNotes        = "medisetu_notes"
	KeyDoctors      = "medisetu_doctors"
)

const maxIDAttempts = 8

var (
	ErrNotFound          = errors.New("record not found")
	ErrSlotTaken         = errors.New("this slot is already booked")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidRecord     = errors.New("invalid record")
	ErrCorruptRecord     = errors.New("corrupt stored record")
	ErrIDCollision       = errors.New("could not generate a unique id")
)

type entity interface {
	Validate() error
}

// Collection is a typed view over one key. Every write rewrites the whole
// collection; the mutex serialises read-modify-write cycles in this process.
type Collection[T entity] struct {
	store *kvstore.Store
	key   string
	mu    sync.Mutex
}

func NewCollection[T entity](store *kvstore.Store, key string) *Collection[T] {
	return &Collection[T]{store: store, key: key}
}

// List returns all records in stored order.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	return c.load(ctx)
}

func (c *Collection[T]) Find(ctx context.Context, match func(T) bool) (T, error) {
	var zero T
	items, err := c.load(ctx)
	if err != nil {
		return zero, err
	}
	for _, item := range items {
		if match(item) {
			return item, nil
		}
	}
	return zero, ErrNotFound
}

func (c *Collection[T]) Filter(ctx context.Context, match func(T) bool) ([]T, error) {
	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		if match(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// Mutate loads the collection, applies fn and persists the result unless fn
// fails. Nothing is written when fn returns an error.
func (c *Collection[T]) Mutate(ctx context.Context, fn func([]T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	updated, err := fn(items)
	if err != nil {
		return err
	}
	return c.save(ctx, updated)
}

func (c *Collection[T]) load(ctx context.Context) ([]T, error) {
	raw, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0, len(raw))
	for i, msg := range raw {
		var item T
		if err := json.Unmarshal(msg, &item); err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrCorruptRecord, c.key, i, err)
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrCorruptRecord, c.key, i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Collection[T]) save(ctx context.Context, items []T) error {
	raw := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		msg, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", c.key, err)
		}
		raw = append(raw, msg)
	}
	return c.store.Set(ctx, c.key, raw)
}

// uniqueID draws ids until one is not already used in items.
func uniqueID[T any](gen idgen.Generator, prefix string, items []T, idOf func(T) string) (string, error) {
	used := make(map[string]struct{}, len(items))
	for _, item := range items {
		used[idOf(item)] = struct{}{}
	}
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := gen.NewID(prefix)
		if id == "" {
			continue
		}
		if _, taken := used[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w with prefix %s", ErrIDCollision, prefix)
}
