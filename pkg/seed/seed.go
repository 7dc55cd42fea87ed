// Package seed gives a fresh store a demoable first-run state.
package seed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medisetu/platform/pkg/common/logger"
	"github.com/medisetu/platform/pkg/kvstore"
	"github.com/medisetu/platform/pkg/records"
)

type Seeder struct {
	store    *kvstore.Store
	fixtures Fixtures
}

func NewSeeder(store *kvstore.Store, fixtures Fixtures) *Seeder {
	return &Seeder{store: store, fixtures: fixtures}
}

// Run writes the doctor and report fixtures, each only when its key is
// absent. Existing data is never touched, so Run is idempotent.
func (s *Seeder) Run(ctx context.Context) error {
	if err := seedKey(ctx, s.store, records.KeyDoctors, s.fixtures.Doctors); err != nil {
		return err
	}
	return seedKey(ctx, s.store, records.KeyReports, s.fixtures.Reports)
}

func seedKey[T any](ctx context.Context, store *kvstore.Store, key string, items []T) error {
	exists, err := store.Has(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		logger.Log.WithField("key", key).Debug("seed skipped, key present")
		return nil
	}

	raw := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		msg, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encoding %s fixture: %w", key, err)
		}
		raw = append(raw, msg)
	}
	if err := store.Set(ctx, key, raw); err != nil {
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"key":   key,
		"count": len(raw),
	}).Info("Seeded collection")
	return nil
}
