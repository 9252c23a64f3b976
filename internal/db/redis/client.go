package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest/internal/db"
)

var _ db.Store = (*Store)(nil)

const (
	// DefaultScanCount is the SCAN page hint used when Config.ScanCount is unset.
	DefaultScanCount = 500
	readyPoll        = 100 * time.Millisecond
)

// Config holds connection parameters for a Redis or Valkey server.
// Both speak the same protocol, so one client serves either driver.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	// ScanCount is the COUNT hint for SCAN pages.
	ScanCount int
}

// Store is the hosted layer store over rueidis. Client-side caching is off:
// hosted layers are replicated into the index instead.
type Store struct {
	client    rueidis.Client
	scanCount int64
	logger    *zap.Logger
}

// NewStore connects to the configured server.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return newStore(client, cfg.ScanCount, logger), nil
}

func newStore(client rueidis.Client, scanCount int, logger *zap.Logger) *Store {
	if scanCount <= 0 {
		scanCount = DefaultScanCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, scanCount: int64(scanCount), logger: logger}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the server answers or timeout expires.
// A server still loading its dataset answers PING with an error, so this
// also waits out a restart.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.Ping(ctx)
	if err == nil {
		return nil
	}
	s.logger.Info("Waiting for database", zap.Duration("timeout", timeout), zap.Error(err))

	ticker := time.NewTicker(readyPoll)
	defer ticker.Stop()

	attempts := 1
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database after %d attempts: %w", attempts, ctx.Err())
		case <-ticker.C:
			attempts++
			if err = s.Ping(ctx); err == nil {
				s.logger.Debug("Database ready", zap.Int("attempts", attempts))
				return nil
			}
		}
	}
}
