package storage

import (
	"context"
	"strings"

	"NewsAggregator/internal/config"
	"NewsAggregator/internal/ports"
)

// MemoryDSN selects the in-process store.
const MemoryDSN = "memory://"

// Open returns the store named by the DSN: the in-memory store for
// "memory://", postgres otherwise.
func Open(ctx context.Context, cfg config.DatabaseConfig) (ports.Store, error) {
	if strings.HasPrefix(cfg.DSN, MemoryDSN) {
		return NewMemoryStore(), nil
	}
	repo, err := OpenPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return repo, nil
}
