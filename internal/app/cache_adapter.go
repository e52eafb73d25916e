package app

import (
	"context"
	"fmt"

	"github.com/deusflow/dailybrief/internal/config"
	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/storage"
)

// openStore selects the translation cache / delivery log backend.
// Driver "none" yields a nil store.
func openStore(cfg *config.Config) (storage.Store, error) {
	path := cfg.StoragePath()
	store, err := storage.Open(cfg.Storage.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("open storage (%s): %w", cfg.Storage.Driver, err)
	}
	if store == nil {
		logger.Component("app").Info("storage disabled")
		return nil, nil
	}
	logger.Component("app").Info("storage opened", "driver", cfg.Storage.Driver, "path", path)
	return store, nil
}

func translationCache(s storage.Store) storage.TranslationCache {
	if s == nil {
		return nil
	}
	return s
}

// alreadyDelivered reports whether channel already received day's brief.
// Lookup errors count as not delivered.
func alreadyDelivered(ctx context.Context, s storage.Store, day, channel string) bool {
	if s == nil {
		return false
	}
	sent, err := s.WasDelivered(ctx, day, channel)
	if err != nil {
		logger.Component("app").Warn("delivery log lookup failed", "channel", channel, "error", err)
		return false
	}
	return sent
}

func recordDelivery(ctx context.Context, s storage.Store, day, channel, runID string) {
	if s == nil {
		return
	}
	if err := s.RecordDelivery(ctx, day, channel, runID); err != nil {
		logger.Component("app").Warn("delivery log write failed", "channel", channel, "error", err)
	}
}
