// Package storage persists the translation cache and the delivery log.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// TranslationCache stores per-field translations keyed by language and source text.
type TranslationCache interface {
	GetTranslation(ctx context.Context, lang, text string) (string, bool, error)
	PutTranslation(ctx context.Context, lang, text, translated, provider string) error
}

// DeliveryLog records which channels already received a given day's brief.
type DeliveryLog interface {
	WasDelivered(ctx context.Context, day, channel string) (bool, error)
	RecordDelivery(ctx context.Context, day, channel, runID string) error
}

// Store is implemented by every backend.
type Store interface {
	TranslationCache
	DeliveryLog
	Close() error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*FileCache)(nil)
)

// TranslationKey is sha256(lang + text) in lowercase hex.
func TranslationKey(lang, text string) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(lang)))
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Open returns the backend named by driver. "none" yields a nil Store.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "sqlite", "":
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "file":
		fc := NewFileCache(path, 0)
		if err := fc.Load(); err != nil {
			return nil, err
		}
		return fc, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
