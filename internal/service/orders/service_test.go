package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
	"github.com/vladislavdragonenkov/serviceflow/internal/metrics"
	"github.com/vladislavdragonenkov/serviceflow/internal/service/orders"
	"github.com/vladislavdragonenkov/serviceflow/internal/storage/memory"
)

type fixture struct {
	svc      *orders.Service
	repo     domain.ServiceOrderRepository
	timeline domain.TimelineRepository
	outbox   *memory.OutboxRepository
	clock    *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})

	clock := &fakeClock{now: time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)}
	seq := 0
	f := &fixture{
		repo:     memory.NewServiceOrderRepository(),
		timeline: memory.NewTimelineRepository(),
		outbox:   memory.NewOutboxRepository(),
		clock:    clock,
	}
	f.svc = orders.NewService(f.repo,
		orders.WithTimeline(f.timeline),
		orders.WithOutbox(f.outbox),
		orders.WithMetrics(metrics.NewOrderMetrics(prometheus.NewRegistry())),
		orders.WithLogger(logger.WithField("component", "order-service-test")),
		orders.WithClock(clock.Now),
		orders.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("so-%d", seq)
		}),
	)
	return f
}

func testData() domain.CreateServiceOrderData {
	return domain.CreateServiceOrderData{
		Title:       "Test",
		Description: "d",
		Client:      "C",
		Priority:    domain.PriorityLow,
		Category:    "X",
	}
}

func TestService_CreateDefaultsAndListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, testData())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, domain.OrderStatusPending, created.Status)
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestService_CreateRejectsInvalidData(t *testing.T) {
	f := newFixture(t)

	data := testData()
	data.Title = ""
	data.Priority = "urgent"

	_, err := f.svc.Create(context.Background(), data)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.ErrorIs(t, err, domain.ErrTitleRequired)
	assert.ErrorIs(t, err, domain.ErrInvalidPriority)

	list, _ := f.svc.List(context.Background())
	assert.Empty(t, list)
}

func TestService_UpdateMissingLeavesCollectionUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, testData())
	require.NoError(t, err)
	before, _ := f.svc.List(ctx)

	_, err = f.svc.Update(ctx, "missing", domain.UpdateServiceOrderData{Status: domain.Some(domain.OrderStatusCompleted)})
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	after, _ := f.svc.List(ctx)
	assert.Equal(t, before, after)
}

func TestService_DeleteTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, _ := f.svc.Create(ctx, testData())
	_, _ = f.svc.Create(ctx, testData())

	require.NoError(t, f.svc.Delete(ctx, first.ID))
	list, _ := f.svc.List(ctx)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, f.svc.Delete(ctx, first.ID), domain.ErrOrderNotFound)
}

func TestService_FilterByStatusAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	titles := []string{"Reparo ar condicionado", "Troca de lâmpada", "Instalação AR CONDICIONADO split", "Pintura"}
	var ids []string
	for _, title := range titles {
		data := testData()
		data.Title = title
		o, err := f.svc.Create(ctx, data)
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	for _, i := range []int{0, 2, 3} {
		_, err := f.svc.Update(ctx, ids[i], domain.UpdateServiceOrderData{Status: domain.Some(domain.OrderStatusCompleted)})
		require.NoError(t, err)
	}

	completed, err := f.svc.FilterByStatus(ctx, domain.OrderStatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 3)
	assert.Equal(t, []string{ids[0], ids[2], ids[3]}, []string{completed[0].ID, completed[1].ID, completed[2].ID})
	for _, o := range completed {
		assert.Equal(t, domain.OrderStatusCompleted, o.Status)
	}

	found, err := f.svc.Search(ctx, "ar condicionado")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, ids[0], found[0].ID)
	assert.Equal(t, ids[2], found[1].ID)

	_, err = f.svc.FilterByStatus(ctx, "done")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestService_EndToEndScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, testData())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, domain.OrderStatusPending, created.Status)
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

	f.clock.Advance(time.Minute)
	updated, err := f.svc.Update(ctx, created.ID, domain.UpdateServiceOrderData{
		Status: domain.Some(domain.OrderStatusCompleted),
	})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(created.CreatedAt))
	assert.Equal(t, domain.OrderStatusCompleted, updated.Status)

	expected := created
	expected.Status = domain.OrderStatusCompleted
	expected.UpdatedAt = updated.UpdatedAt
	expected.Version = updated.Version
	assert.Equal(t, expected, updated)

	stored, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, stored)

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	_, err = f.svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestService_TimelineAndOutbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, testData())
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.svc.Update(ctx, created.ID, domain.UpdateServiceOrderData{Status: domain.Some(domain.OrderStatusInProgress)})
	require.NoError(t, err)

	events, err := f.svc.Timeline(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.TimelineOrderCreated, events[0].Type)
	assert.Equal(t, domain.TimelineOrderUpdated, events[1].Type)
	assert.Equal(t, domain.TimelineOrderStatusChanged, events[2].Type)
	assert.Equal(t, "pending -> in_progress", events[2].Reason)

	pending, err := f.outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, domain.EventOrderCreated, pending[0].EventType)
	assert.Equal(t, domain.EventOrderUpdated, pending[1].EventType)
	assert.Equal(t, domain.EventOrderStatusChanged, pending[2].EventType)

	var payload domain.OrderEventPayload
	require.NoError(t, json.Unmarshal(pending[2].Payload, &payload))
	assert.Equal(t, created.ID, payload.OrderID)
	assert.Equal(t, domain.OrderStatusPending, payload.PreviousStatus)
	assert.Equal(t, domain.OrderStatusInProgress, payload.Status)

	_, err = f.svc.Timeline(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestService_UpdatePatchSemantics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	data := testData()
	data.Technician = "Ana"
	data.Notes = "portão lateral"
	created, err := f.svc.Create(ctx, data)
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, created.ID, domain.UpdateServiceOrderData{
		Technician: domain.Null[string](),
		Title:      domain.Some("Novo título"),
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Technician)
	assert.Equal(t, "Novo título", updated.Title)
	assert.Equal(t, "portão lateral", updated.Notes)

	_, err = f.svc.Update(ctx, created.ID, domain.UpdateServiceOrderData{Client: domain.Null[string]()})
	assert.ErrorIs(t, err, domain.ErrClientRequired)
}

type failingTimeline struct{}

func (failingTimeline) Append(context.Context, domain.TimelineEvent) error {
	return errors.New("timeline down")
}

func (failingTimeline) List(context.Context, string) ([]domain.TimelineEvent, error) {
	return nil, errors.New("timeline down")
}

func TestService_TimelineFailureDoesNotFailMutation(t *testing.T) {
	svc := orders.NewService(memory.NewServiceOrderRepository(), orders.WithTimeline(failingTimeline{}))

	created, err := svc.Create(context.Background(), testData())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

type txMarker struct{}

type recordingTx struct {
	calls      int
	rolledBack bool
}

func (r *recordingTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.calls++
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		r.rolledBack = true
		return err
	}
	return nil
}

type failingOutbox struct {
	domain.OutboxRepository
	inTx []bool
}

func (o *failingOutbox) Enqueue(ctx context.Context, _ domain.OutboxMessage) (domain.OutboxMessage, error) {
	o.inTx = append(o.inTx, ctx.Value(txMarker{}) != nil)
	return domain.OutboxMessage{}, errors.New("outbox down")
}

func TestService_OutboxFailureRollsBackWithinTransaction(t *testing.T) {
	tx := &recordingTx{}
	outbox := &failingOutbox{}
	svc := orders.NewService(memory.NewServiceOrderRepository(),
		orders.WithOutbox(outbox),
		orders.WithTransactor(tx),
	)

	_, err := svc.Create(context.Background(), testData())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox down")
	assert.Equal(t, 1, tx.calls)
	assert.True(t, tx.rolledBack)
	assert.Equal(t, []bool{true}, outbox.inTx)
}

func TestService_OutboxFailureWithoutTransactionIsLogged(t *testing.T) {
	outbox := &failingOutbox{}
	repo := memory.NewServiceOrderRepository()
	svc := orders.NewService(repo, orders.WithOutbox(outbox))

	created, err := svc.Create(context.Background(), testData())
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, outbox.inTx)

	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, stored.ID)
}

func TestService_TransactionCarriesOrderAndEvents(t *testing.T) {
	tx := &recordingTx{}
	outbox := memory.NewOutboxRepository()
	svc := orders.NewService(memory.NewServiceOrderRepository(),
		orders.WithOutbox(outbox),
		orders.WithTransactor(tx),
	)
	ctx := context.Background()

	created, err := svc.Create(ctx, testData())
	require.NoError(t, err)
	updated, err := svc.Update(ctx, created.ID, domain.UpdateServiceOrderData{Status: domain.Some(domain.OrderStatusInProgress)})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID))

	assert.Equal(t, 3, tx.calls)
	assert.False(t, tx.rolledBack)

	pending, err := outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 4)

	var payload domain.OrderEventPayload
	require.NoError(t, json.Unmarshal(pending[1].Payload, &payload))
	require.NotNil(t, payload.Order)
	assert.Equal(t, updated.Version, payload.Order.Version)
}

func TestService_TimestampsTruncatedToMicroseconds(t *testing.T) {
	now := time.Date(2025, 5, 10, 8, 0, 0, 123456789, time.UTC)
	svc := orders.NewService(memory.NewServiceOrderRepository(),
		orders.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	data := testData()
	due := time.Date(2025, 6, 1, 15, 30, 0, 987654321, time.UTC)
	data.DueDate = &due
	created, err := svc.Create(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 123456000, created.CreatedAt.Nanosecond())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	require.NotNil(t, created.DueDate)
	assert.Equal(t, 987654000, created.DueDate.Nanosecond())

	now = now.Add(time.Second)
	updated, err := svc.Update(ctx, created.ID, domain.UpdateServiceOrderData{DueDate: domain.Some(due.Add(1))})
	require.NoError(t, err)
	assert.Equal(t, 123456000, updated.UpdatedAt.Nanosecond())
	assert.Equal(t, 987654000, updated.DueDate.Nanosecond())
}
