package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

// HTTPClient обращается к REST API ServiceFlow.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore
}

// HTTPOption настраивает HTTPClient.
type HTTPOption func(*HTTPClient)

// WithTimeout задаёт таймаут запроса; d <= 0 оставляет значение по умолчанию.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient подменяет транспорт (httptest).
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewHTTPClient создаёт клиент. Токен читается из tokens перед каждым запросом.
func NewHTTPClient(baseURL string, tokens TokenStore, opts ...HTTPOption) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errNotFound: внутренний сигнал 404, наружу выходит как отсутствующий результат.
var errNotFound = errors.New("not found")

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	creds, err := c.tokens.Load()
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return decodeAPIError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	}
	return apiErr
}

func orderPath(id string) string {
	return "/service-orders/" + url.PathEscape(id)
}

// List возвращает все заказы в порядке, который отдал сервер.
func (c *HTTPClient) List(ctx context.Context) ([]domain.ServiceOrder, error) {
	var orders []domain.ServiceOrder
	if err := c.do(ctx, http.MethodGet, "/service-orders", nil, &orders); err != nil {
		return nil, notFoundAsError(err)
	}
	return orders, nil
}

// Get возвращает nil, если заказ не найден.
func (c *HTTPClient) Get(ctx context.Context, id string) (*domain.ServiceOrder, error) {
	var order domain.ServiceOrder
	if err := c.do(ctx, http.MethodGet, orderPath(id), nil, &order); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// Create создаёт заказ на сервере.
func (c *HTTPClient) Create(ctx context.Context, data domain.CreateServiceOrderData) (domain.ServiceOrder, error) {
	var order domain.ServiceOrder
	if err := c.do(ctx, http.MethodPost, "/service-orders", data, &order); err != nil {
		return domain.ServiceOrder{}, notFoundAsError(err)
	}
	return order, nil
}

// Update возвращает nil, если заказ не найден.
func (c *HTTPClient) Update(ctx context.Context, id string, patch domain.UpdateServiceOrderData) (*domain.ServiceOrder, error) {
	var order domain.ServiceOrder
	if err := c.do(ctx, http.MethodPut, orderPath(id), patch, &order); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// Delete возвращает false, если заказ не найден.
func (c *HTTPClient) Delete(ctx context.Context, id string) (bool, error) {
	if err := c.do(ctx, http.MethodDelete, orderPath(id), nil, nil); err != nil {
		if errors.Is(err, errNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Search ищет подстроку в title, client и description.
func (c *HTTPClient) Search(ctx context.Context, query string) ([]domain.ServiceOrder, error) {
	var orders []domain.ServiceOrder
	path := "/service-orders/search?" + url.Values{"q": {query}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &orders); err != nil {
		return nil, notFoundAsError(err)
	}
	return orders, nil
}

// FilterByStatus возвращает заказы с указанным статусом.
func (c *HTTPClient) FilterByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.ServiceOrder, error) {
	var orders []domain.ServiceOrder
	path := "/service-orders?" + url.Values{"status": {string(status)}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &orders); err != nil {
		return nil, notFoundAsError(err)
	}
	return orders, nil
}

// notFoundAsError: для коллекций 404 означает неверный адрес API, а не пустой результат.
func notFoundAsError(err error) error {
	if errors.Is(err, errNotFound) {
		return &APIError{StatusCode: http.StatusNotFound, Message: "endpoint not found"}
	}
	return err
}
