package memory

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

// Option настраивает in-memory репозиторий заказов.
type Option func(*serviceOrderRepositoryInMemory)

// WithLatency включает имитацию сетевой задержки: каждый вызов ждёт
// случайное время в диапазоне [min, max] или до отмены контекста.
func WithLatency(min, max time.Duration) Option {
	return func(r *serviceOrderRepositoryInMemory) {
		if min < 0 {
			min = 0
		}
		if max < min {
			max = min
		}
		r.minLatency = min
		r.maxLatency = max
	}
}

// WithSeed заполняет хранилище начальными заказами в заданном порядке.
func WithSeed(orders ...domain.ServiceOrder) Option {
	return func(r *serviceOrderRepositoryInMemory) {
		for _, order := range orders {
			if _, exists := r.items[order.ID]; exists {
				continue
			}
			r.order = append(r.order, order.ID)
			r.items[order.ID] = order.Clone()
		}
	}
}

// serviceOrderRepositoryInMemory хранит заказы в памяти с сохранением порядка вставки.
type serviceOrderRepositoryInMemory struct {
	mu    sync.RWMutex
	order []string
	items map[string]domain.ServiceOrder

	minLatency time.Duration
	maxLatency time.Duration
}

// NewServiceOrderRepository возвращает in-memory репозиторий для mock-режима и тестов.
func NewServiceOrderRepository(opts ...Option) domain.ServiceOrderRepository {
	r := &serviceOrderRepositoryInMemory{
		items: make(map[string]domain.ServiceOrder),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create сохраняет новый заказ в конец коллекции, если ID ещё не занят.
func (r *serviceOrderRepositoryInMemory) Create(ctx context.Context, order domain.ServiceOrder) error {
	if err := r.delay(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrOrderVersionConflict
	}
	r.order = append(r.order, order.ID)
	r.items[order.ID] = order.Clone()
	return nil
}

// Get возвращает копию заказа или ErrOrderNotFound.
func (r *serviceOrderRepositoryInMemory) Get(ctx context.Context, id string) (domain.ServiceOrder, error) {
	if err := r.delay(ctx); err != nil {
		return domain.ServiceOrder{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.ServiceOrder{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// List возвращает копии всех заказов в порядке вставки.
func (r *serviceOrderRepositoryInMemory) List(ctx context.Context) ([]domain.ServiceOrder, error) {
	return r.collect(ctx, func(domain.ServiceOrder) bool { return true })
}

// ListByStatus сохраняет относительный порядок вставки.
func (r *serviceOrderRepositoryInMemory) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.ServiceOrder, error) {
	return r.collect(ctx, func(o domain.ServiceOrder) bool { return o.Status == status })
}

// Search выполняет регистронезависимый поиск подстроки в title, client и description.
func (r *serviceOrderRepositoryInMemory) Search(ctx context.Context, query string) ([]domain.ServiceOrder, error) {
	return r.collect(ctx, func(o domain.ServiceOrder) bool { return o.Matches(query) })
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *serviceOrderRepositoryInMemory) Save(ctx context.Context, order domain.ServiceOrder) error {
	if err := r.delay(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}
	order.Version++
	r.items[order.ID] = order.Clone()
	return nil
}

// Delete удаляет заказ или возвращает ErrOrderNotFound.
func (r *serviceOrderRepositoryInMemory) Delete(ctx context.Context, id string) error {
	if err := r.delay(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.items, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	return nil
}

func (r *serviceOrderRepositoryInMemory) collect(ctx context.Context, keep func(domain.ServiceOrder) bool) ([]domain.ServiceOrder, error) {
	if err := r.delay(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.ServiceOrder, 0, len(r.order))
	for _, id := range r.order {
		order := r.items[id]
		if keep(order) {
			result = append(result, order.Clone())
		}
	}
	return result, nil
}

// delay имитирует задержку удалённого хранилища. Без настроенной задержки
// проверяет только отмену контекста.
func (r *serviceOrderRepositoryInMemory) delay(ctx context.Context) error {
	if r.maxLatency <= 0 {
		return ctx.Err()
	}

	d := r.minLatency
	if spread := r.maxLatency - r.minLatency; spread > 0 {
		d += rand.N(spread + 1)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ domain.ServiceOrderRepository = (*serviceOrderRepositoryInMemory)(nil)
