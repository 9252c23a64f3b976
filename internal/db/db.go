package db

import (
	"context"
	"slices"
	"time"
)

// Store is the Redis/Valkey connection behind hosted layers.
type Store interface {
	Pinger
	HashStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Hash is one stored record: a key and its field/value pairs.
type Hash struct {
	Key    string
	Fields map[string]string
}

// HashStore is the hash subset hosted layers are seeded and read through.
type HashStore interface {
	// PutHashes writes hashes in one pipeline. Hashes without fields are skipped.
	PutHashes(ctx context.Context, hashes []Hash) error
	// GetHashes fetches keys in one pipeline, in key order. Keys that no longer
	// exist are left out of the result.
	GetHashes(ctx context.Context, keys []string) ([]Hash, error)
	// Delete removes keys and reports how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)
	// ScanPages calls fn with each SCAN page of keys matching pattern.
	// A key may be reported twice if the keyspace is resized mid-scan.
	ScanPages(ctx context.Context, pattern string, fn func(keys []string) error) error
}

// Scanner is the part of HashStore that Keys needs.
type Scanner interface {
	ScanPages(ctx context.Context, pattern string, fn func(keys []string) error) error
}

// Keys collects every key matching pattern, sorted and deduplicated.
func Keys(ctx context.Context, s Scanner, pattern string) ([]string, error) {
	var out []string
	err := s.ScanPages(ctx, pattern, func(keys []string) error {
		out = append(out, keys...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
