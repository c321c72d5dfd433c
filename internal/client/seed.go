package client

import (
	"time"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

// SampleOrders возвращает демонстрационные заказы для mock backend.
func SampleOrders(now time.Time) []domain.ServiceOrder {
	hours := func(h int) *int { return &h }
	due := now.Add(72 * time.Hour).Truncate(24 * time.Hour)

	return []domain.ServiceOrder{
		{
			ID: "sample-1", Title: "Manutenção preventiva do ar-condicionado",
			Description: "Limpeza de filtros e verificação do gás", Client: "Padaria Central",
			Priority: domain.PriorityMedium, Status: domain.OrderStatusPending, Category: "Climatização",
			CreatedAt: now.Add(-48 * time.Hour), UpdatedAt: now.Add(-48 * time.Hour),
			DueDate: &due, EstimatedHours: hours(3),
		},
		{
			ID: "sample-2", Title: "Troca de disjuntor", Description: "Disjuntor do quadro principal desarma",
			Client: "Escritório Lima", Priority: domain.PriorityHigh, Status: domain.OrderStatusInProgress,
			Category: "Elétrica", Technician: "Carlos", CreatedAt: now.Add(-24 * time.Hour),
			UpdatedAt: now.Add(-2 * time.Hour), EstimatedHours: hours(2),
		},
		{
			ID: "sample-3", Title: "Instalação de impressora", Description: "Configurar impressora de rede",
			Client: "Clínica Sorriso", Priority: domain.PriorityLow, Status: domain.OrderStatusCompleted,
			Category: "TI", Technician: "Ana", CreatedAt: now.Add(-96 * time.Hour),
			UpdatedAt: now.Add(-72 * time.Hour), Notes: "Driver atualizado",
		},
	}
}
