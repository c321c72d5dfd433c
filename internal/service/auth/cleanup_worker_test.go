package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
	"github.com/vladislavdragonenkov/serviceflow/internal/metrics"
	"github.com/vladislavdragonenkov/serviceflow/internal/service/auth"
	"github.com/vladislavdragonenkov/serviceflow/internal/storage/memory"
)

type stubRevocations struct {
	mu            sync.Mutex
	deleteResults []int
	deleteErrors  []error
	deleteCalls   int
}

var _ domain.TokenRevocationRepository = (*stubRevocations)(nil)

func (s *stubRevocations) Revoke(context.Context, string, time.Time) error { return nil }

func (s *stubRevocations) IsRevoked(context.Context, string) (bool, error) { return false, nil }

func (s *stubRevocations) DeleteExpired(_ context.Context, _ time.Time, _ int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.deleteCalls
	s.deleteCalls++
	if idx < len(s.deleteErrors) && s.deleteErrors[idx] != nil {
		return 0, s.deleteErrors[idx]
	}
	if idx < len(s.deleteResults) {
		return s.deleteResults[idx], nil
	}
	return 0, nil
}

func (s *stubRevocations) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteCalls
}

func TestCleanupWorker_DeleteExpired_Batches(t *testing.T) {
	t.Parallel()

	repo := &stubRevocations{deleteResults: []int{2, 2, 1}}
	m := metrics.NewCleanupMetrics(prometheus.NewRegistry())
	worker := auth.NewCleanupWorker(repo, auth.WithCleanupBatchSize(2), auth.WithCleanupMetrics(m))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)
	assert.Equal(t, 3, repo.calls())
}

func TestCleanupWorker_DeleteExpired_Error(t *testing.T) {
	t.Parallel()

	repo := &stubRevocations{deleteResults: []int{10}, deleteErrors: []error{nil, errors.New("boom")}}
	worker := auth.NewCleanupWorker(repo, auth.WithCleanupBatchSize(10))

	deleted, err := worker.DeleteExpired(context.Background(), time.Now().UTC())
	require.EqualError(t, err, "boom")
	assert.Equal(t, 10, deleted)
}

func TestCleanupWorker_DeleteExpired_Canceled(t *testing.T) {
	t.Parallel()

	repo := &stubRevocations{}
	worker := auth.NewCleanupWorker(repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := worker.DeleteExpired(ctx, time.Time{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, repo.calls())
}

func TestCleanupWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubRevocations{}
	worker := auth.NewCleanupWorker(repo, auth.WithCleanupInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	require.Eventually(t, func() bool { return repo.calls() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestCleanupWorker_Run_NilRepo(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		auth.NewCleanupWorker(nil).Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker with nil repo should return immediately")
	}
}

func TestCleanupWorker_RemovesExpiredRevocations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewTokenRevocationRepository()
	now := time.Now().UTC()
	require.NoError(t, repo.Revoke(ctx, "expired-1", now.Add(-time.Hour)))
	require.NoError(t, repo.Revoke(ctx, "expired-2", now.Add(-time.Minute)))
	require.NoError(t, repo.Revoke(ctx, "active", now.Add(time.Hour)))

	registry := prometheus.NewRegistry()
	worker := auth.NewCleanupWorker(repo,
		auth.WithCleanupBatchSize(1),
		auth.WithCleanupMetrics(metrics.NewCleanupMetrics(registry)),
	)

	deleted, err := worker.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	for id, want := range map[string]bool{"expired-1": false, "expired-2": false, "active": true} {
		revoked, err := repo.IsRevoked(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, revoked, id)
	}

	count, err := testutil.GatherAndCount(registry, "serviceflow_revocation_cleanup_deleted_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
