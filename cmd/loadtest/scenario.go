package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/serviceflow/internal/client"
	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

// errOrderVanished: сервер вернул 404 для только что созданного заказа.
var errOrderVanished = errors.New("order disappeared during scenario")

type scenario struct {
	api   *client.HTTPClient
	cfg   config
	runID string
	col   *collector
}

// outcome классифицирует результат вызова для отчёта.
func outcome(err error) string {
	var apiErr *client.APIError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, client.ErrUnauthorized):
		return strconv.Itoa(http.StatusUnauthorized)
	case errors.Is(err, errOrderVanished):
		return strconv.Itoa(http.StatusNotFound)
	case errors.As(err, &apiErr):
		return strconv.Itoa(apiErr.StatusCode)
	default:
		return "error"
	}
}

func (s *scenario) run(ctx context.Context, index int) {
	start := time.Now()
	err := s.steps(ctx, index)
	s.col.record(scenarioMethod, time.Since(start), err)
}

func (s *scenario) steps(ctx context.Context, index int) error {
	created, err := s.create(ctx, index)
	if err != nil {
		return err
	}
	if s.cfg.mode == modeCreate {
		return nil
	}

	if err := s.update(ctx, created.ID, domain.OrderStatusInProgress); err != nil {
		return err
	}
	if s.cfg.mode == modeCreateUpdate {
		return nil
	}

	if err := s.update(ctx, created.ID, domain.OrderStatusCompleted); err != nil {
		return err
	}
	return s.delete(ctx, created.ID)
}

func (s *scenario) create(ctx context.Context, index int) (domain.ServiceOrder, error) {
	hours := 1 + index%8
	data := domain.CreateServiceOrderData{
		Title:          fmt.Sprintf("Load order %d", index),
		Description:    "generated by loadtest " + s.runID,
		Client:         fmt.Sprintf("%s-%s-%d", s.cfg.clientTag, s.runID, index),
		Priority:       []domain.Priority{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh}[index%3],
		Category:       "loadtest",
		EstimatedHours: &hours,
	}

	start := time.Now()
	created, err := s.api.Create(ctx, data)
	s.col.record("Create", time.Since(start), err)
	return created, err
}

func (s *scenario) update(ctx context.Context, id string, status domain.OrderStatus) error {
	start := time.Now()
	updated, err := s.api.Update(ctx, id, domain.UpdateServiceOrderData{Status: domain.Some(status)})
	if err == nil && updated == nil {
		err = errOrderVanished
	}
	s.col.record("Update", time.Since(start), err)
	return err
}

func (s *scenario) delete(ctx context.Context, id string) error {
	start := time.Now()
	deleted, err := s.api.Delete(ctx, id)
	if err == nil && !deleted {
		err = errOrderVanished
	}
	s.col.record("Delete", time.Since(start), err)
	return err
}
