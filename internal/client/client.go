// Package client реализует доступ к сервисным заказам и аутентификации
// через REST API или локальный mock с имитацией сетевой задержки.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

const (
	// DefaultBaseURL: адрес API по умолчанию.
	DefaultBaseURL = "http://localhost:3000"
	// DefaultTimeout ограничивает один HTTP-запрос.
	DefaultTimeout = 10 * time.Second

	BackendHTTP = "http"
	BackendMock = "mock"
)

// OrderAccess: единый контракт доступа к заказам для обоих backend.
// Отсутствующий заказ в Get/Update/Delete возвращается как nil/false без ошибки.
type OrderAccess interface {
	List(ctx context.Context) ([]domain.ServiceOrder, error)
	Get(ctx context.Context, id string) (*domain.ServiceOrder, error)
	Create(ctx context.Context, data domain.CreateServiceOrderData) (domain.ServiceOrder, error)
	Update(ctx context.Context, id string, patch domain.UpdateServiceOrderData) (*domain.ServiceOrder, error)
	Delete(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, query string) ([]domain.ServiceOrder, error)
	FilterByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.ServiceOrder, error)
}

// Config выбирает backend.
type Config struct {
	Backend string
	BaseURL string
	Timeout time.Duration
	Tokens  TokenStore

	// MockLatency: верхняя граница задержки mock backend.
	MockLatency time.Duration
	// MockSeed заполняет mock backend начальными заказами.
	MockSeed []domain.ServiceOrder
}

// New возвращает клиент для Config.Backend (пусто: http).
func New(cfg Config) (OrderAccess, error) {
	switch cfg.Backend {
	case "", BackendHTTP:
		return NewHTTPClient(cfg.BaseURL, cfg.Tokens, WithTimeout(cfg.Timeout)), nil
	case BackendMock:
		return NewLocalClient(cfg.MockLatency, cfg.MockSeed...), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", cfg.Backend, BackendHTTP, BackendMock)
	}
}
