package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

// AuthResult: ответ login/register/refresh.
type AuthResult struct {
	User      domain.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// AuthClient выполняет вход и выход, сохраняя токен в TokenStore.
type AuthClient struct {
	api    *HTTPClient
	tokens TokenStore
}

// NewAuthClient использует тот же HTTPClient и TokenStore, что и доступ к заказам.
func NewAuthClient(api *HTTPClient) *AuthClient {
	return &AuthClient{api: api, tokens: api.tokens}
}

// SignIn обменивает email и пароль на токен и сохраняет его.
func (c *AuthClient) SignIn(ctx context.Context, email, password string) (AuthResult, error) {
	return c.authenticate(ctx, "/auth/login", map[string]string{"email": email, "password": password})
}

// SignUp регистрирует пользователя и сохраняет выданный токен.
func (c *AuthClient) SignUp(ctx context.Context, email, password, fullName string) (AuthResult, error) {
	return c.authenticate(ctx, "/auth/register", map[string]string{
		"email":     email,
		"password":  password,
		"full_name": fullName,
	})
}

// Refresh меняет текущий токен на новый.
func (c *AuthClient) Refresh(ctx context.Context) (AuthResult, error) {
	return c.authenticate(ctx, "/auth/refresh", nil)
}

func (c *AuthClient) authenticate(ctx context.Context, path string, body any) (AuthResult, error) {
	var res AuthResult
	if err := c.api.do(ctx, http.MethodPost, path, body, &res); err != nil {
		return AuthResult{}, notFoundAsError(err)
	}
	if res.Token == "" {
		return AuthResult{}, errors.New("server returned empty token")
	}
	creds := Credentials{Token: res.Token, Email: res.User.Email, ExpiresAt: res.ExpiresAt}
	if err := c.tokens.Save(creds); err != nil {
		return AuthResult{}, fmt.Errorf("store token: %w", err)
	}
	return res, nil
}

// SignOut отзывает токен на сервере. Локальный токен удаляется в любом случае.
func (c *AuthClient) SignOut(ctx context.Context) error {
	reqErr := c.api.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if err := c.tokens.Clear(); err != nil {
		return errors.Join(reqErr, fmt.Errorf("clear token: %w", err))
	}
	if reqErr != nil {
		return notFoundAsError(reqErr)
	}
	return nil
}

// CurrentUser возвращает владельца сохранённого токена.
func (c *AuthClient) CurrentUser(ctx context.Context) (domain.User, error) {
	var res struct {
		User domain.User `json:"user"`
	}
	if err := c.api.do(ctx, http.MethodGet, "/auth/me", nil, &res); err != nil {
		return domain.User{}, notFoundAsError(err)
	}
	return res.User, nil
}
