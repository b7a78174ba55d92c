package collector

import (
	"context"

	"github.com/bassista/weather_collector/internal/storage"
)

// UnitOfWork is one refresh call's batch of staged inserts.
type UnitOfWork interface {
	Stage(entity any) error
	Commit() error
	Rollback() error
	Staged() int
}

// Gateway is the part of the persistence layer the collector drives.
type Gateway interface {
	EnsureDatabase(ctx context.Context) error
	CreateSchema(ctx context.Context) error
	Begin(ctx context.Context) (UnitOfWork, error)
}

type storageGateway struct {
	*storage.Gateway
}

// FromStorage adapts a *storage.Gateway to Gateway.
func FromStorage(gw *storage.Gateway) Gateway {
	return storageGateway{gw}
}

func (g storageGateway) Begin(ctx context.Context) (UnitOfWork, error) {
	batch, err := g.Gateway.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return batch, nil
}
