package client

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

// Ошибки, которые безопасно показывать пользователю.
var (
	ErrSignInFailed = errors.New("sign in failed: check email and password")
	ErrSignUpFailed = errors.New("sign up failed")
)

// Session хранит текущего пользователя поверх AuthClient.
type Session struct {
	auth   *AuthClient
	tokens TokenStore
	logger *log.Entry

	mu   sync.RWMutex
	user *domain.User
}

// NewSession создаёт сессию без пользователя.
func NewSession(auth *AuthClient) *Session {
	return &Session{
		auth:   auth,
		tokens: auth.tokens,
		logger: log.WithField("component", "client-session"),
	}
}

// Restore восстанавливает пользователя по сохранённому токену.
// Любая ошибка означает «не выполнен вход» и не возвращается.
func (s *Session) Restore(ctx context.Context) *domain.User {
	creds, err := s.tokens.Load()
	if err != nil || creds.Token == "" {
		return nil
	}

	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		s.logger.WithError(err).Debug("stored token rejected")
		return nil
	}
	s.setUser(&user)
	return s.User()
}

// SignIn возвращает обобщённую ошибку; причина пишется в debug-лог.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	res, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		s.logger.WithError(err).Debug("sign in failed")
		if errors.Is(err, ErrUnauthorized) {
			return ErrSignInFailed
		}
		return errors.Join(ErrSignInFailed, err)
	}
	s.setUser(&res.User)
	return nil
}

// SignUp регистрирует пользователя; ошибки валидации сервера сохраняются в цепочке.
func (s *Session) SignUp(ctx context.Context, email, password, fullName string) error {
	res, err := s.auth.SignUp(ctx, email, password, fullName)
	if err != nil {
		s.logger.WithError(err).Debug("sign up failed")
		return errors.Join(ErrSignUpFailed, err)
	}
	s.setUser(&res.User)
	return nil
}

// SignOut всегда сбрасывает пользователя.
func (s *Session) SignOut(ctx context.Context) error {
	err := s.auth.SignOut(ctx)
	s.setUser(nil)
	return err
}

// User возвращает копию текущего пользователя или nil.
func (s *Session) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

func (s *Session) setUser(user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}
