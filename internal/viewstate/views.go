package viewstate

import (
	"cmp"
	"math"
	"slices"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

// StatusAll: значение фильтра статуса «все».
const StatusAll = "all"

// recentOrdersLimit: сколько последних заказов показывает dashboard.
const recentOrdersLimit = 5

// FilterOrders отбирает заказы по подстроке (title, client, description) и статусу.
// Пустой запрос и статус "all" (или пустой) не ограничивают выборку.
func FilterOrders(orders []domain.ServiceOrder, query, status string) []domain.ServiceOrder {
	out := make([]domain.ServiceOrder, 0, len(orders))
	for _, order := range orders {
		if !order.Matches(query) {
			continue
		}
		if status != "" && status != StatusAll && string(order.Status) != status {
			continue
		}
		out = append(out, order.Clone())
	}
	return out
}

// Dashboard: сводка по коллекции заказов.
type Dashboard struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	// CompletionRate: доля завершённых в процентах с одним знаком после запятой.
	CompletionRate float64               `json:"completion_rate"`
	Recent         []domain.ServiceOrder `json:"recent"`
}

// BuildDashboard считает распределение по статусам и выбирает последние заказы.
func BuildDashboard(orders []domain.ServiceOrder) Dashboard {
	d := Dashboard{Total: len(orders)}
	for _, order := range orders {
		switch order.Status {
		case domain.OrderStatusPending:
			d.Pending++
		case domain.OrderStatusInProgress:
			d.InProgress++
		case domain.OrderStatusCompleted:
			d.Completed++
		case domain.OrderStatusCancelled:
			d.Cancelled++
		}
	}
	if d.Total > 0 {
		d.CompletionRate = math.Round(float64(d.Completed)/float64(d.Total)*1000) / 10
	}

	recent := mostRecentFirst(orders)
	if len(recent) > recentOrdersLimit {
		recent = recent[:recentOrdersLimit]
	}
	d.Recent = recent
	return d
}

// mostRecentFirst возвращает копию, упорядоченную по createdAt по убыванию.
func mostRecentFirst(orders []domain.ServiceOrder) []domain.ServiceOrder {
	out := make([]domain.ServiceOrder, 0, len(orders))
	for _, order := range orders {
		out = append(out, order.Clone())
	}
	slices.SortStableFunc(out, func(a, b domain.ServiceOrder) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return out
}
