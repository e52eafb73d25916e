package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CachedTranslation is one translated field.
type CachedTranslation struct {
	Hash        string    `json:"hash"`
	Lang        string    `json:"lang"`
	Translation string    `json:"translation"`
	Provider    string    `json:"provider"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeliveryRecord marks one channel as delivered for a day.
type DeliveryRecord struct {
	Day         string    `json:"day"`
	Channel     string    `json:"channel"`
	RunID       string    `json:"run_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type fileCacheData struct {
	Translations []CachedTranslation `json:"translations"`
	Deliveries   []DeliveryRecord    `json:"deliveries"`
}

// FileCache keeps translations and deliveries in a JSON file.
// Every write is saved immediately.
type FileCache struct {
	filePath     string
	ttlHours     int
	translations map[string]CachedTranslation
	deliveries   map[string]DeliveryRecord
	mu           sync.RWMutex
}

// NewFileCache creates a file cache. ttlHours 0 keeps translations forever.
func NewFileCache(filePath string, ttlHours int) *FileCache {
	return &FileCache{
		filePath:     filePath,
		ttlHours:     ttlHours,
		translations: make(map[string]CachedTranslation),
		deliveries:   make(map[string]DeliveryRecord),
	}
}

// Load reads the cache file. A missing or empty file is an empty cache.
func (fc *FileCache) Load() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	data, err := os.ReadFile(fc.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var stored fileCacheData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("unmarshal cache: %w", err)
	}

	for _, item := range stored.Translations {
		if fc.fresh(item.CreatedAt) {
			fc.translations[item.Hash] = item
		}
	}
	for _, d := range stored.Deliveries {
		fc.deliveries[deliveryKey(d.Day, d.Channel)] = d
	}
	return nil
}

// Save writes the cache file.
func (fc *FileCache) Save() error {
	fc.mu.RLock()
	stored := fileCacheData{
		Translations: make([]CachedTranslation, 0, len(fc.translations)),
		Deliveries:   make([]DeliveryRecord, 0, len(fc.deliveries)),
	}
	for _, item := range fc.translations {
		stored.Translations = append(stored.Translations, item)
	}
	for _, d := range fc.deliveries {
		stored.Deliveries = append(stored.Deliveries, d)
	}
	fc.mu.RUnlock()

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	if dir := filepath.Dir(fc.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	if err := os.WriteFile(fc.filePath, data, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

func (fc *FileCache) fresh(created time.Time) bool {
	if fc.ttlHours <= 0 {
		return true
	}
	return created.After(time.Now().Add(-time.Duration(fc.ttlHours) * time.Hour))
}

func (fc *FileCache) GetTranslation(ctx context.Context, lang, text string) (string, bool, error) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	item, ok := fc.translations[TranslationKey(lang, text)]
	if !ok || !fc.fresh(item.CreatedAt) {
		return "", false, nil
	}
	return item.Translation, true, nil
}

func (fc *FileCache) PutTranslation(ctx context.Context, lang, text, translated, provider string) error {
	key := TranslationKey(lang, text)
	fc.mu.Lock()
	fc.translations[key] = CachedTranslation{
		Hash:        key,
		Lang:        lang,
		Translation: translated,
		Provider:    provider,
		CreatedAt:   time.Now(),
	}
	fc.mu.Unlock()
	return fc.Save()
}

func (fc *FileCache) WasDelivered(ctx context.Context, day, channel string) (bool, error) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	_, ok := fc.deliveries[deliveryKey(day, channel)]
	return ok, nil
}

func (fc *FileCache) RecordDelivery(ctx context.Context, day, channel, runID string) error {
	fc.mu.Lock()
	fc.deliveries[deliveryKey(day, channel)] = DeliveryRecord{
		Day:         day,
		Channel:     channel,
		RunID:       runID,
		DeliveredAt: time.Now(),
	}
	fc.mu.Unlock()
	return fc.Save()
}

// Cleanup drops expired translations from memory.
func (fc *FileCache) Cleanup() {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for hash, item := range fc.translations {
		if !fc.fresh(item.CreatedAt) {
			delete(fc.translations, hash)
		}
	}
}

// GetStats returns cache statistics.
func (fc *FileCache) GetStats() map[string]int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return map[string]int{
		"translation_cache": len(fc.translations),
		"delivery_log":      len(fc.deliveries),
	}
}

func (fc *FileCache) Close() error {
	return fc.Save()
}

func deliveryKey(day, channel string) string {
	return day + "|" + channel
}
