// Package local provides the device-local durable cache backed by Badger.
package local

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/rewireapp/rewire-server/internal/domain"
	"github.com/rewireapp/rewire-server/internal/store"
)

// Key prefixes.
const (
	keyDeviceID           = "device:id"
	prefixAchievements    = "achievements:"
	achievementSnapshotV1 = 1
)

// achievementSnapshot is the on-disk form of a user's achievement state.
type achievementSnapshot struct {
	Version      int                  `json:"version"`
	SavedAt      time.Time            `json:"saved_at"`
	Achievements []domain.Achievement `json:"achievements"`
}

// Cache wraps a Badger database holding the device id and achievement snapshots.
type Cache struct {
	db     *badger.DB
	logger *slog.Logger
}

var _ store.LocalCache = (*Cache)(nil)

// Open opens (or creates) the cache at path.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Disable Badger's internal logging
	opts.SyncWrites = true       // The device id must survive a crash right after first run
	opts.CompactL0OnClose = true // Compact L0 tables on close for faster startup

	return open(opts, logger)
}

// OpenInMemory opens a cache that lives only as long as the process.
func OpenInMemory(logger *slog.Logger) (*Cache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Cache, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Info("Local cache opened", "path", opts.Dir, "in_memory", opts.InMemory)
	}
	return &Cache{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (c *Cache) Close() error {
	if c.logger != nil {
		c.logger.Info("Closing local cache")
	}
	return c.db.Close()
}

// Ping reports whether the cache is usable.
func (c *Cache) Ping(_ context.Context) error {
	if c.db.IsClosed() {
		return errors.New("local cache is closed")
	}
	return nil
}

// GetDeviceID returns the stored device id, or "" if none has been stored.
func (c *Cache) GetDeviceID(_ context.Context) (string, error) {
	var id string
	err := c.get([]byte(keyDeviceID), &id)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get device id: %w", err)
	}
	return id, nil
}

// SetDeviceID stores the device id.
func (c *Cache) SetDeviceID(_ context.Context, id string) error {
	if id == "" {
		return store.ErrInvalidInput.WithMessage("device id is empty")
	}
	if err := c.set([]byte(keyDeviceID), id); err != nil {
		return fmt.Errorf("set device id: %w", err)
	}
	return nil
}

// GetAchievements returns the last saved achievement snapshot for a user, or nil.
func (c *Cache) GetAchievements(_ context.Context, userID string) ([]domain.Achievement, error) {
	var snap achievementSnapshot
	err := c.get(achievementsKey(userID), &snap)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get achievements for %s: %w", userID, err)
	}
	return snap.Achievements, nil
}

// SetAchievements replaces the achievement snapshot for a user.
func (c *Cache) SetAchievements(_ context.Context, userID string, achievements []domain.Achievement) error {
	snap := achievementSnapshot{
		Version:      achievementSnapshotV1,
		SavedAt:      time.Now().UTC(),
		Achievements: achievements,
	}
	if err := c.set(achievementsKey(userID), snap); err != nil {
		return fmt.Errorf("set achievements for %s: %w", userID, err)
	}
	return nil
}

func achievementsKey(userID string) []byte {
	return []byte(prefixAchievements + userID)
}

// get retrieves a value by key.
func (c *Cache) get(key []byte, dest any) error {
	return c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
}

// set stores a value by key.
func (c *Cache) set(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}
