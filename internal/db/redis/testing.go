package redis

import (
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// NewStoreForTest wraps a mock rueidis client with a quiet logger and the given SCAN hint.
func NewStoreForTest(c rueidis.Client, scanCount int) *Store {
	return newStore(c, scanCount, zap.NewNop())
}
