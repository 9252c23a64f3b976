package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/geosuggest/internal/db"
)

// PutHashes writes hashes in one DoMulti round-trip.
func (s *Store) PutHashes(ctx context.Context, hashes []db.Hash) error {
	cmds := make(rueidis.Commands, 0, len(hashes))
	keys := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if len(h.Fields) == 0 {
			continue
		}
		cmd := s.client.B().Hset().Key(h.Key).FieldValue()
		for k, v := range h.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds = append(cmds, cmd.Build())
		keys = append(keys, h.Key)
	}
	if len(cmds) == 0 {
		return nil
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Key: keys[i], Err: err}
		}
	}
	return nil
}

// GetHashes fetches keys in one DoMulti round-trip. A key deleted since it was
// scanned comes back as an empty map and is dropped.
func (s *Store) GetHashes(ctx context.Context, keys []string) ([]db.Hash, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make(rueidis.Commands, len(keys))
	for i, key := range keys {
		cmds[i] = s.client.B().Hgetall().Key(key).Build()
	}

	out := make([]db.Hash, 0, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpHGetAll, Key: keys[i], Err: err}
		}
		if len(m) == 0 {
			continue
		}
		out = append(out, db.Hash{Key: keys[i], Fields: m})
	}
	return out, nil
}

// Delete removes keys and returns the number that existed.
func (s *Store) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Do(ctx, s.client.B().Del().Key(keys...).Build()).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpDel, Err: fmt.Errorf("%d keys: %w", len(keys), err)}
	}
	return n, nil
}

// ScanPages walks the keyspace with SCAN MATCH and hands each non-empty page to fn.
// An error from fn stops the walk and is returned as is.
func (s *Store) ScanPages(ctx context.Context, pattern string, fn func(keys []string) error) error {
	var cursor uint64
	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(pattern).Count(s.scanCount).Build()
		entry, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return &db.Error{Op: db.OpScan, Key: pattern, Err: err}
		}
		if len(entry.Elements) > 0 {
			if err := fn(entry.Elements); err != nil {
				return err
			}
		}
		if entry.Cursor == 0 {
			return nil
		}
		cursor = entry.Cursor
	}
}
