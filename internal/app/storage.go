package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
	"github.com/vladislavdragonenkov/serviceflow/internal/storage/memory"
	"github.com/vladislavdragonenkov/serviceflow/internal/storage/postgres"
)

// Storage содержит репозитории выбранного драйвера.
type Storage struct {
	Orders   domain.ServiceOrderRepository
	Timeline domain.TimelineRepository
	Outbox   domain.OutboxRepository
	Users    domain.UserRepository
	Revoked  domain.TokenRevocationRepository
	// Tx объединяет запись заказа и outbox в одну транзакцию; nil для памяти.
	Tx domain.Transactor

	ping  func(ctx context.Context) error
	close func() error
}

// Ping проверяет доступность хранилища.
func (s *Storage) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close освобождает соединения.
func (s *Storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func openStorage(ctx context.Context, cfg Config, logger *log.Entry) (*Storage, error) {
	switch cfg.StorageDriver {
	case StorageDriverPostgres:
		return openPostgresStorage(ctx, cfg, logger)
	case StorageDriverMemory:
		var opts []memory.Option
		if cfg.MemoryLatency > 0 {
			opts = append(opts, memory.WithLatency(cfg.MemoryLatency/2, cfg.MemoryLatency))
		}
		logger.WithField("latency", cfg.MemoryLatency).Info("using in-memory storage")
		return &Storage{
			Orders:   memory.NewServiceOrderRepository(opts...),
			Timeline: memory.NewTimelineRepository(),
			Outbox:   memory.NewOutboxRepository(),
			Users:    memory.NewUserRepository(),
			Revoked:  memory.NewTokenRevocationRepository(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func openPostgresStorage(ctx context.Context, cfg Config, logger *log.Entry) (*Storage, error) {
	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("postgres migrations applied")
	}

	logger.Info("using postgres storage")
	return &Storage{
		Orders:   postgres.NewServiceOrderRepository(store),
		Timeline: postgres.NewTimelineRepository(store),
		Outbox:   postgres.NewOutboxRepository(store),
		Users:    postgres.NewUserRepository(store),
		Revoked:  postgres.NewTokenRevocationRepository(store),
		Tx:       store,
		ping:     store.Ping,
		close:    store.Close,
	}, nil
}
