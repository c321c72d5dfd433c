package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/serviceflow/internal/client"
	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
	"github.com/vladislavdragonenkov/serviceflow/internal/service/auth"
	"github.com/vladislavdragonenkov/serviceflow/internal/service/orders"
	"github.com/vladislavdragonenkov/serviceflow/internal/storage/memory"
	"github.com/vladislavdragonenkov/serviceflow/internal/transport/httpapi"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := log.New()
	logger.SetOutput(io.Discard)
	entry := logger.WithField("component", "client-test")

	authService, err := auth.NewService(memory.NewUserRepository(), memory.NewTokenRevocationRepository(),
		auth.Config{Secret: testSecret, BcryptCost: bcrypt.MinCost}, auth.WithLogger(entry))
	require.NoError(t, err)

	handler := httpapi.NewHandler(
		orders.NewService(memory.NewServiceOrderRepository(), orders.WithLogger(entry)),
		authService,
		httpapi.WithLogger(entry),
	)
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return server
}

func signedInClient(t *testing.T) (*client.HTTPClient, *client.AuthClient, client.TokenStore) {
	t.Helper()

	server := newServer(t)
	tokens := client.NewMemoryTokenStore()
	api := client.NewHTTPClient(server.URL, tokens, client.WithHTTPClient(server.Client()))
	authClient := client.NewAuthClient(api)

	_, err := authClient.SignUp(context.Background(), "tech@example.com", "secret1", "Tech")
	require.NoError(t, err)
	return api, authClient, tokens
}

func sampleData(title string) domain.CreateServiceOrderData {
	return domain.CreateServiceOrderData{
		Title:       title,
		Description: "Replace the compressor",
		Client:      "Acme",
		Priority:    domain.PriorityHigh,
		Category:    "HVAC",
	}
}

// Один и тот же сценарий должен вести себя одинаково на обоих backend.
func exerciseOrderAccess(t *testing.T, access client.OrderAccess) {
	t.Helper()
	ctx := context.Background()

	created, err := access.Create(ctx, sampleData("Fix AC"))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, created.Status)
	_, err = access.Create(ctx, sampleData("Paint wall"))
	require.NoError(t, err)

	got, err := access.Get(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Fix AC", got.Title)

	missing, err := access.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	updated, err := access.Update(ctx, created.ID, domain.UpdateServiceOrderData{Status: domain.Some(domain.OrderStatusCompleted)})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, domain.OrderStatusCompleted, updated.Status)

	absent, err := access.Update(ctx, "missing", domain.UpdateServiceOrderData{Notes: domain.Some("x")})
	require.NoError(t, err)
	assert.Nil(t, absent)

	completed, err := access.FilterByStatus(ctx, domain.OrderStatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)

	found, err := access.Search(ctx, "PAINT")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Paint wall", found[0].Title)

	all, err := access.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, created.ID, all[0].ID)

	deleted, err := access.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = access.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = access.Create(ctx, domain.CreateServiceOrderData{Priority: domain.PriorityLow})
	require.Error(t, err)
}

func TestHTTPClient_OrderAccess(t *testing.T) {
	api, _, _ := signedInClient(t)
	exerciseOrderAccess(t, api)
}

func TestLocalClient_OrderAccess(t *testing.T) {
	exerciseOrderAccess(t, client.NewLocalClient(2*time.Millisecond))
}

func TestHTTPClient_ValidationErrorCarriesDetails(t *testing.T) {
	api, _, _ := signedInClient(t)

	_, err := api.Create(context.Background(), domain.CreateServiceOrderData{Priority: domain.PriorityLow})

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Details, domain.ErrTitleRequired.Error())
	assert.True(t, client.IsStatus(err, http.StatusBadRequest))
}

func TestHTTPClient_UnauthorizedWithoutToken(t *testing.T) {
	server := newServer(t)
	api := client.NewHTTPClient(server.URL, nil, client.WithHTTPClient(server.Client()))

	_, err := api.List(context.Background())
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	_, err = api.Get(context.Background(), "x")
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestHTTPClient_ServerErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer stored-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	}))
	defer server.Close()

	tokens := client.NewMemoryTokenStore()
	require.NoError(t, tokens.Save(client.Credentials{Token: "stored-token"}))
	api := client.NewHTTPClient(server.URL, tokens)

	_, err := api.Delete(context.Background(), "so-1")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "internal server error", apiErr.Message)
}

func TestHTTPClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	api := client.NewHTTPClient(server.URL, nil, client.WithTimeout(20*time.Millisecond))
	_, err := api.List(context.Background())
	require.Error(t, err)
}

func TestAuthClient_Flow(t *testing.T) {
	api, authClient, tokens := signedInClient(t)
	ctx := context.Background()

	creds, err := tokens.Load()
	require.NoError(t, err)
	require.NotEmpty(t, creds.Token)
	assert.Equal(t, "tech@example.com", creds.Email)

	user, err := authClient.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Tech", user.FullName)

	refreshed, err := authClient.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, creds.Token, refreshed.Token)

	require.NoError(t, authClient.SignOut(ctx))
	creds, err = tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, creds.Token)

	_, err = api.List(ctx)
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	_, err = authClient.SignIn(ctx, "tech@example.com", "wrong-pass")
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestAuthClient_SignOutClearsTokenOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	tokens := client.NewMemoryTokenStore()
	require.NoError(t, tokens.Save(client.Credentials{Token: "t"}))
	authClient := client.NewAuthClient(client.NewHTTPClient(server.URL, tokens))

	err := authClient.SignOut(context.Background())
	require.Error(t, err)

	creds, err := tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, creds.Token)
}

func TestSession_RestoreAndGenericErrors(t *testing.T) {
	server := newServer(t)
	tokens := client.NewMemoryTokenStore()
	api := client.NewHTTPClient(server.URL, tokens, client.WithHTTPClient(server.Client()))
	session := client.NewSession(client.NewAuthClient(api))
	ctx := context.Background()

	assert.Nil(t, session.Restore(ctx))

	require.NoError(t, session.SignUp(ctx, "tech@example.com", "secret1", "Tech"))
	require.NotNil(t, session.User())

	restored := client.NewSession(client.NewAuthClient(api)).Restore(ctx)
	require.NotNil(t, restored)
	assert.Equal(t, "tech@example.com", restored.Email)

	require.NoError(t, session.SignOut(ctx))
	assert.Nil(t, session.User())

	err := session.SignIn(ctx, "tech@example.com", "wrong-pass")
	assert.Equal(t, client.ErrSignInFailed, err)

	err = session.SignUp(ctx, "tech@example.com", "secret1", "")
	assert.ErrorIs(t, err, client.ErrSignUpFailed)
	assert.True(t, client.IsStatus(err, http.StatusConflict))

	require.NoError(t, tokens.Save(client.Credentials{Token: "stale"}))
	assert.Nil(t, client.NewSession(client.NewAuthClient(api)).Restore(ctx), "rejected token means signed out")
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.yaml")
	store := client.NewFileTokenStore(path)

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, creds.Token)

	expires := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(client.Credentials{Token: "abc", Email: "a@b.c", ExpiresAt: expires}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	creds, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc", creds.Token)
	assert.True(t, creds.ExpiresAt.Equal(expires))

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileTokenStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unclosed"), 0o600))

	_, err := client.NewFileTokenStore(path).Load()
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	access, err := client.New(client.Config{})
	require.NoError(t, err)
	assert.IsType(t, &client.HTTPClient{}, access)

	access, err = client.New(client.Config{Backend: client.BackendMock, MockSeed: client.SampleOrders(time.Now())})
	require.NoError(t, err)
	orders, err := access.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 3)

	_, err = client.New(client.Config{Backend: "grpc"})
	assert.Error(t, err)
}

func TestLocalClient_LatencyHonoursContext(t *testing.T) {
	access := client.NewLocalClient(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := access.List(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
