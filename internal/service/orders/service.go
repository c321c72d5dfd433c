package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
	"github.com/vladislavdragonenkov/serviceflow/internal/metrics"
)

// Service реализует прикладной слой над репозиторием заказов: назначает id и
// временные метки, валидирует входные данные, ведёт историю и пишет события в outbox.
type Service struct {
	repo     domain.ServiceOrderRepository
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	tx       domain.Transactor
	metrics  *metrics.OrderMetrics
	logger   *log.Entry
	now      func() time.Time
	newID    func() string
}

// Option настраивает Service.
type Option func(*Service)

// WithTimeline включает запись истории заказа.
func WithTimeline(repo domain.TimelineRepository) Option {
	return func(s *Service) { s.timeline = repo }
}

// WithOutbox включает запись интеграционных событий в transactional outbox.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(s *Service) { s.outbox = repo }
}

// WithTransactor фиксирует запись заказа и его события outbox одной транзакцией.
func WithTransactor(tx domain.Transactor) Option {
	return func(s *Service) { s.tx = tx }
}

// WithMetrics задаёт метрики сервиса.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// NewService создаёт сервис заказов поверх репозитория.
func NewService(repo domain.ServiceOrderRepository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		logger: log.WithField("component", "order-service"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List возвращает все заказы в порядке добавления.
func (s *Service) List(ctx context.Context) (orders []domain.ServiceOrder, err error) {
	defer s.observe("list", time.Now(), &err)
	return s.repo.List(ctx)
}

// FilterByStatus возвращает заказы с указанным статусом.
func (s *Service) FilterByStatus(ctx context.Context, status domain.OrderStatus) (orders []domain.ServiceOrder, err error) {
	defer s.observe("filter_by_status", time.Now(), &err)
	if !status.Valid() {
		return nil, domain.NewValidationError([]error{domain.ErrInvalidStatus})
	}
	return s.repo.ListByStatus(ctx, status)
}

// Search ищет заказы по подстроке в title, client и description.
func (s *Service) Search(ctx context.Context, query string) (orders []domain.ServiceOrder, err error) {
	defer s.observe("search", time.Now(), &err)
	return s.repo.Search(ctx, query)
}

// Get возвращает заказ или domain.ErrOrderNotFound.
func (s *Service) Get(ctx context.Context, id string) (order domain.ServiceOrder, err error) {
	defer s.observe("get", time.Now(), &err)
	return s.repo.Get(ctx, id)
}

// Create валидирует данные и сохраняет новый заказ со статусом pending.
func (s *Service) Create(ctx context.Context, data domain.CreateServiceOrderData) (order domain.ServiceOrder, err error) {
	defer s.observe("create", time.Now(), &err)

	if err := data.Validate(); err != nil {
		return domain.ServiceOrder{}, err
	}
	if data.DueDate != nil {
		due := truncate(*data.DueDate)
		data.DueDate = &due
	}

	order = domain.NewServiceOrder(s.newID(), data, s.clock())
	events := []event{{domain.EventOrderCreated, domain.OrderEventPayload{
		OrderID:    order.ID,
		Status:     order.Status,
		Order:      &order,
		OccurredAt: order.CreatedAt,
	}}}
	err = s.persist(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, order); err != nil {
			return fmt.Errorf("create service order: %w", err)
		}
		return nil
	}, events)
	if err != nil {
		return domain.ServiceOrder{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"priority": order.Priority,
	}).Info("service order created")

	s.appendTimeline(ctx, order.ID, domain.TimelineOrderCreated, "", order.CreatedAt)
	return order, nil
}

// Update применяет частичное обновление. Пустой патч только обновляет updatedAt.
func (s *Service) Update(ctx context.Context, id string, patch domain.UpdateServiceOrderData) (order domain.ServiceOrder, err error) {
	defer s.observe("update", time.Now(), &err)

	if err := patch.Validate(); err != nil {
		return domain.ServiceOrder{}, err
	}
	if patch.DueDate.Set && !patch.DueDate.Null {
		patch.DueDate.Value = truncate(patch.DueDate.Value)
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.ServiceOrder{}, err
	}

	updated := patch.Apply(current, s.clock())
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		updated.UpdatedAt = updated.CreatedAt
	}
	// Save проверяет прежнюю версию, наружу уходит уже увеличенная.
	saved := updated
	saved.Version++

	statusChanged := saved.Status != current.Status
	events := []event{{domain.EventOrderUpdated, domain.OrderEventPayload{
		OrderID:    id,
		Status:     saved.Status,
		Order:      &saved,
		OccurredAt: saved.UpdatedAt,
	}}}
	if statusChanged {
		events = append(events, event{domain.EventOrderStatusChanged, domain.OrderEventPayload{
			OrderID:        id,
			Status:         saved.Status,
			PreviousStatus: current.Status,
			OccurredAt:     saved.UpdatedAt,
		}})
	}
	err = s.persist(ctx, func(ctx context.Context) error {
		if err := s.repo.Save(ctx, updated); err != nil {
			return fmt.Errorf("save service order: %w", err)
		}
		return nil
	}, events)
	if err != nil {
		return domain.ServiceOrder{}, err
	}

	s.logger.WithField("order_id", id).Info("service order updated")

	s.appendTimeline(ctx, id, domain.TimelineOrderUpdated, "", saved.UpdatedAt)
	if statusChanged {
		reason := fmt.Sprintf("%s -> %s", current.Status, saved.Status)
		s.appendTimeline(ctx, id, domain.TimelineOrderStatusChanged, reason, saved.UpdatedAt)
		s.metrics.RecordStatusChange(string(saved.Status))
	}

	return saved, nil
}

// Delete удаляет заказ или возвращает domain.ErrOrderNotFound.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	now := s.clock()
	events := []event{{domain.EventOrderDeleted, domain.OrderEventPayload{OrderID: id, OccurredAt: now}}}
	err = s.persist(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, id)
	}, events)
	if err != nil {
		return err
	}

	s.logger.WithField("order_id", id).Info("service order deleted")
	s.appendTimeline(ctx, id, domain.TimelineOrderDeleted, "", now)
	return nil
}

// Timeline возвращает историю заказа. История удалённого заказа недоступна.
func (s *Service) Timeline(ctx context.Context, id string) (events []domain.TimelineEvent, err error) {
	defer s.observe("timeline", time.Now(), &err)

	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return s.timeline.List(ctx, id)
}

// appendTimeline не прерывает операцию: заказ уже сохранён.
func (s *Service) appendTimeline(ctx context.Context, orderID, eventType, reason string, occurred time.Time) {
	if s.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := s.timeline.Append(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("append timeline event failed")
		return
	}
	s.metrics.RecordTimelineEvent()
}

type event struct {
	eventType string
	payload   domain.OrderEventPayload
}

// persist выполняет write и пишет события в outbox. С транзакцией ошибка
// outbox откатывает запись заказа; без неё события пишутся после записи и
// их ошибки только логируются.
func (s *Service) persist(ctx context.Context, write func(ctx context.Context) error, events []event) error {
	if s.outbox == nil {
		return write(ctx)
	}

	if s.tx == nil {
		if err := write(ctx); err != nil {
			return err
		}
		for _, e := range events {
			if err := s.enqueue(ctx, e); err != nil {
				s.logger.WithError(err).WithFields(log.Fields{
					"order_id": e.payload.OrderID,
					"event":    e.eventType,
				}).Error("enqueue event failed")
				continue
			}
			s.metrics.RecordOutboxEvent()
		}
		return nil
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := write(ctx); err != nil {
			return err
		}
		for _, e := range events {
			if err := s.enqueue(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for range events {
		s.metrics.RecordOutboxEvent()
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, e event) error {
	data, err := json.Marshal(e.payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.eventType, err)
	}

	msg := domain.OutboxMessage{
		AggregateType: domain.AggregateServiceOrder,
		AggregateID:   e.payload.OrderID,
		EventType:     e.eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s event: %w", e.eventType, err)
	}
	return nil
}

// clock отдаёт время с точностью до микросекунд, как его хранит PostgreSQL.
func (s *Service) clock() time.Time {
	return truncate(s.now())
}

func truncate(t time.Time) time.Time {
	return t.Truncate(time.Microsecond)
}

func (s *Service) observe(operation string, start time.Time, errp *error) {
	s.metrics.ObserveOperation(operation, resultOf(*errp), time.Since(start))
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, domain.ErrOrderNotFound):
		return metrics.ResultNotFound
	case domain.IsValidation(err):
		return metrics.ResultInvalid
	case domain.IsVersionConflict(err):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}
