package client

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
	"github.com/vladislavdragonenkov/serviceflow/internal/service/orders"
	"github.com/vladislavdragonenkov/serviceflow/internal/storage/memory"
)

// DefaultMockLatency: верхняя граница имитируемой задержки mock backend.
const DefaultMockLatency = 300 * time.Millisecond

// LocalClient реализует mock backend: сервис заказов над in-memory хранилищем с задержкой.
type LocalClient struct {
	svc *orders.Service
}

// NewLocalClient создаёт mock backend с задержкой от latency/2 до latency.
func NewLocalClient(latency time.Duration, seed ...domain.ServiceOrder) *LocalClient {
	opts := []memory.Option{memory.WithSeed(seed...)}
	if latency > 0 {
		opts = append(opts, memory.WithLatency(latency/2, latency))
	}
	repo := memory.NewServiceOrderRepository(opts...)
	return &LocalClient{
		svc: orders.NewService(repo, orders.WithLogger(log.WithField("component", "mock-backend"))),
	}
}

// NewLocalClientWithService оборачивает уже собранный сервис.
func NewLocalClientWithService(svc *orders.Service) *LocalClient {
	return &LocalClient{svc: svc}
}

func (c *LocalClient) List(ctx context.Context) ([]domain.ServiceOrder, error) {
	return c.svc.List(ctx)
}

func (c *LocalClient) Get(ctx context.Context, id string) (*domain.ServiceOrder, error) {
	order, err := c.svc.Get(ctx, id)
	return absentOnNotFound(order, err)
}

func (c *LocalClient) Create(ctx context.Context, data domain.CreateServiceOrderData) (domain.ServiceOrder, error) {
	return c.svc.Create(ctx, data)
}

func (c *LocalClient) Update(ctx context.Context, id string, patch domain.UpdateServiceOrderData) (*domain.ServiceOrder, error) {
	order, err := c.svc.Update(ctx, id, patch)
	return absentOnNotFound(order, err)
}

func (c *LocalClient) Delete(ctx context.Context, id string) (bool, error) {
	if err := c.svc.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *LocalClient) Search(ctx context.Context, query string) ([]domain.ServiceOrder, error) {
	return c.svc.Search(ctx, query)
}

func (c *LocalClient) FilterByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.ServiceOrder, error) {
	return c.svc.FilterByStatus(ctx, status)
}

func absentOnNotFound(order domain.ServiceOrder, err error) (*domain.ServiceOrder, error) {
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

var (
	_ OrderAccess = (*HTTPClient)(nil)
	_ OrderAccess = (*LocalClient)(nil)
)
