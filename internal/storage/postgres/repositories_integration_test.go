package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
	"github.com/vladislavdragonenkov/serviceflow/internal/service/orders"
)

func integrationOrder(id, title string, status domain.OrderStatus, created time.Time) domain.ServiceOrder {
	hours := 3
	return domain.ServiceOrder{
		ID:             id,
		Title:          title,
		Description:    "Manutenção preventiva",
		Client:         "Cliente " + id,
		Priority:       domain.PriorityHigh,
		Status:         status,
		Category:       "HVAC",
		CreatedAt:      created,
		UpdatedAt:      created,
		EstimatedHours: &hours,
	}
}

func TestServiceOrderRepository_Integration(t *testing.T) {
	store := openStoreForIntegrationTest(t)
	repo := NewServiceOrderRepository(store)
	ctx := context.Background()
	created := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	first := integrationOrder("so-1", "Reparo 100% urgente", domain.OrderStatusPending, created)
	second := integrationOrder("so-2", "Instalação", domain.OrderStatusCompleted, created)
	third := integrationOrder("so-3", "Pintura", domain.OrderStatusPending, created)
	for _, o := range []domain.ServiceOrder{first, second, third} {
		require.NoError(t, repo.Create(ctx, o))
	}
	assert.ErrorIs(t, repo.Create(ctx, first), domain.ErrOrderVersionConflict)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"so-1", "so-2", "so-3"}, []string{list[0].ID, list[1].ID, list[2].ID})
	require.NotNil(t, list[0].EstimatedHours)
	assert.Equal(t, 3, *list[0].EstimatedHours)
	assert.Nil(t, list[0].DueDate)

	pending, err := repo.ListByStatus(ctx, domain.OrderStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "so-3", pending[1].ID)

	found, err := repo.Search(ctx, "100%")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "so-1", found[0].ID)

	none, err := repo.Search(ctx, "_")
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := repo.Search(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	due := created.Add(48 * time.Hour)
	first.DueDate = &due
	first.EstimatedHours = nil
	first.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, repo.Save(ctx, first))
	assert.ErrorIs(t, repo.Save(ctx, first), domain.ErrOrderVersionConflict)

	stored, err := repo.Get(ctx, "so-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	require.NotNil(t, stored.DueDate)
	assert.True(t, stored.DueDate.Equal(due))
	assert.Nil(t, stored.EstimatedHours)

	require.NoError(t, repo.Delete(ctx, "so-2"))
	assert.ErrorIs(t, repo.Delete(ctx, "so-2"), domain.ErrOrderNotFound)
	_, err = repo.Get(ctx, "so-2")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOrderService_Integration_RoundTripAndOutboxInTx(t *testing.T) {
	store := openStoreForIntegrationTest(t)
	repo := NewServiceOrderRepository(store)
	outbox := NewOutboxRepository(store)
	ctx := context.Background()
	now := time.Date(2025, 4, 1, 10, 0, 0, 123456789, time.UTC)
	svc := orders.NewService(repo,
		orders.WithOutbox(outbox),
		orders.WithTransactor(store),
		orders.WithClock(func() time.Time { return now }),
	)

	due := time.Date(2025, 4, 3, 15, 30, 0, 987654321, time.UTC)
	created, err := svc.Create(ctx, domain.CreateServiceOrderData{
		Title: "Troca de filtro", Description: "d", Client: "C", Priority: domain.PriorityLow, Category: "HVAC", DueDate: &due,
	})
	require.NoError(t, err)
	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, stored)

	now = now.Add(time.Minute)
	updated, err := svc.Update(ctx, created.ID, domain.UpdateServiceOrderData{Status: domain.Some(domain.OrderStatusInProgress)})
	require.NoError(t, err)
	stored, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)

	pending, err := outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, domain.EventOrderCreated, pending[0].EventType)

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Create(ctx, integrationOrder("so-rollback", "Rollback", domain.OrderStatusPending, now)))
		_, err := outbox.Enqueue(ctx, domain.OutboxMessage{AggregateType: "service_order", AggregateID: "so-rollback", EventType: "order.created", Payload: []byte(`{}`)})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = repo.Get(ctx, "so-rollback")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	stats, err := outbox.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.PendingCount)
}

func TestAuxRepositories_Integration(t *testing.T) {
	store := openStoreForIntegrationTest(t)
	ctx := context.Background()

	users := NewUserRepository(store)
	require.NoError(t, users.Create(ctx, domain.User{
		ID: "u-1", Email: "Ana@Example.com", PasswordHash: "hash", CreatedAt: time.Now().UTC(),
	}))
	assert.ErrorIs(t, users.Create(ctx, domain.User{ID: "u-2", Email: "ana@example.com", PasswordHash: "x", CreatedAt: time.Now()}), domain.ErrEmailTaken)
	user, err := users.GetByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)

	revocations := NewTokenRevocationRepository(store)
	require.NoError(t, revocations.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	require.NoError(t, revocations.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err := revocations.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	require.NoError(t, revocations.Revoke(ctx, "jti-old", time.Now().Add(-time.Hour)))
	deleted, err := revocations.DeleteExpired(ctx, time.Now(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	revoked, err = revocations.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)

	timeline := NewTimelineRepository(store)
	now := time.Now().UTC()
	require.NoError(t, timeline.Append(ctx, domain.TimelineEvent{OrderID: "so-1", Type: domain.TimelineOrderUpdated, Occurred: now.Add(time.Second)}))
	require.NoError(t, timeline.Append(ctx, domain.TimelineEvent{OrderID: "so-1", Type: domain.TimelineOrderCreated, Occurred: now}))
	events, err := timeline.List(ctx, "so-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.TimelineOrderCreated, events[0].Type)

	outbox := NewOutboxRepository(store)
	msg, err := outbox.Enqueue(ctx, domain.OutboxMessage{AggregateType: "service_order", AggregateID: "so-1", EventType: "order.created", Payload: []byte(`{}`)})
	require.NoError(t, err)
	stats, err := outbox.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingCount)
	require.NoError(t, outbox.MarkSent(ctx, msg.ID))
	pending, err := outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.ErrorIs(t, outbox.MarkFailed(ctx, "missing"), domain.ErrOutboxPublish)
}

func TestMigrator_Integration_DownAndUp(t *testing.T) {
	store := openStoreForIntegrationTest(t)
	ctx := context.Background()

	state, err := store.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Pending)
	assert.Equal(t, int64(1), state.Version)

	require.NoError(t, store.MigrateDown(ctx, 1))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, state.Applied)
	assert.Equal(t, 1, state.Pending)

	require.NoError(t, store.MigrateUp(ctx, 0))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Applied)
}
