package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/lehigh-university-libraries/wagner/internal/providers"
	"github.com/lehigh-university-libraries/wagner/internal/utils"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("responses")

// Store is a bbolt-backed key/value store of model responses
type Store struct {
	db *bolt.DB
}

// Open opens or creates the cache database at path
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for cache: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached value for key
func (s *Store) Get(key string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			value = string(v)
			found = true
		}
		return nil
	})
	return value, found, err
}

// Put stores value under key
func (s *Store) Put(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
}

// Provider wraps a providers.Provider and memoizes successful responses
type Provider struct {
	next  providers.Provider
	store *Store
}

// Wrap returns a caching provider. A nil store disables caching.
func Wrap(next providers.Provider, store *Store) providers.Provider {
	if store == nil {
		return next
	}
	return &Provider{next: next, store: store}
}

// ExtractText returns a cached response when one exists for the same request
func (p *Provider) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	key := Key(config)

	if cached, ok, err := p.store.Get(key); err != nil {
		slog.Warn("Cache read failed", "err", err)
	} else if ok {
		slog.Debug("Cache hit", "model", config.Model, "key", key[:12])
		return cached, nil
	}

	out, err := p.next.ExtractText(ctx, config)
	if err != nil {
		return "", err
	}

	if err := p.store.Put(key, out); err != nil {
		slog.Warn("Cache write failed", "err", err)
	}
	return out, nil
}

// Key derives the cache key for a provider request
func Key(config providers.Config) string {
	parts := [][]byte{
		[]byte(config.Model),
		[]byte(config.Prompt),
		[]byte(strconv.FormatFloat(config.Temperature, 'f', -1, 64)),
		[]byte(strconv.Itoa(config.MaxTokens)),
		[]byte(strconv.FormatBool(config.JSON)),
	}
	for _, img := range config.Images {
		parts = append(parts, []byte(img.MIMEType), img.Data)
	}
	return utils.CalculateSHA256(parts...)
}
