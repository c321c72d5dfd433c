package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
	"github.com/vladislavdragonenkov/serviceflow/internal/metrics"
)

// Session описывает результат успешного входа: пользователь и bearer-токен.
type Session struct {
	User      domain.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Config задаёт параметры выпуска токенов.
type Config struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
}

// Service реализует регистрацию, вход, выход и проверку bearer-токенов.
type Service struct {
	users      domain.UserRepository
	revoked    domain.TokenRevocationRepository
	tokens     *tokenIssuer
	bcryptCost int
	metrics    *metrics.OrderMetrics
	logger     *log.Entry
	now        func() time.Time

	// dummyHash выравнивает время ответа для несуществующего email.
	dummyHash []byte
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics задаёт метрики попыток аутентификации.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock подменяет источник времени (истечение токенов в тестах).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService создаёт сервис аутентификации.
func NewService(users domain.UserRepository, revoked domain.TokenRevocationRepository, cfg Config, opts ...Option) (*Service, error) {
	issuer, err := newTokenIssuer(cfg.Secret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	s := &Service{
		users:      users,
		revoked:    revoked,
		tokens:     issuer,
		bcryptCost: cost,
		logger:     log.WithField("component", "auth-service"),
		now:        func() time.Time { return time.Now().UTC() },
		dummyHash:  dummy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SignUp регистрирует пользователя и сразу выдаёт токен.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (Session, error) {
	if err := domain.ValidateSignUp(email, password); err != nil {
		s.metrics.RecordAuth("sign_up", metrics.ResultInvalid)
		return Session{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        domain.NormalizeEmail(email),
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: string(hash),
		CreatedAt:    s.now().Truncate(time.Microsecond),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			s.metrics.RecordAuth("sign_up", metrics.ResultConflict)
			return Session{}, err
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	s.metrics.RecordAuth("sign_up", metrics.ResultOK)
	s.logger.WithField("user_id", user.ID).Info("user registered")
	return s.issue(user)
}

// SignIn проверяет учётные данные. Любое несовпадение даёт ErrInvalidCredentials,
// не раскрывая, что именно было неверно.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return Session{}, fmt.Errorf("load user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		s.metrics.RecordAuth("sign_in", metrics.ResultRejected)
		return Session{}, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.metrics.RecordAuth("sign_in", metrics.ResultRejected)
		return Session{}, domain.ErrInvalidCredentials
	}

	s.metrics.RecordAuth("sign_in", metrics.ResultOK)
	return s.issue(user)
}

// SignOut отзывает токен до истечения его срока.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.verify(ctx, token)
	if err != nil {
		return err
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.logger.WithField("user_id", claims.Subject).Debug("token revoked")
	return nil
}

// Authenticate проверяет подпись, срок действия, издателя и отзыв токена.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.verify(ctx, token)
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// CurrentUser: синоним Authenticate для /auth/me.
func (s *Service) CurrentUser(ctx context.Context, token string) (domain.User, error) {
	return s.Authenticate(ctx, token)
}

// Refresh выдаёт новый токен и отзывает предъявленный.
func (s *Service) Refresh(ctx context.Context, token string) (Session, error) {
	claims, err := s.verify(ctx, token)
	if err != nil {
		s.metrics.RecordAuth("refresh", metrics.ResultRejected)
		return Session{}, err
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return Session{}, domain.ErrUnauthorized
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return Session{}, fmt.Errorf("revoke token: %w", err)
	}

	s.metrics.RecordAuth("refresh", metrics.ResultOK)
	return s.issue(user)
}

func (s *Service) verify(ctx context.Context, token string) (Claims, error) {
	if token == "" {
		return Claims{}, domain.ErrUnauthorized
	}

	claims, err := s.tokens.parse(token, s.now())
	if err != nil {
		s.logger.WithError(err).Debug("token rejected")
		return Claims{}, domain.ErrUnauthorized
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Claims{}, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return Claims{}, domain.ErrUnauthorized
	}
	return claims, nil
}

func (s *Service) issue(user domain.User) (Session, error) {
	token, claims, err := s.tokens.issue(user.ID, s.now())
	if err != nil {
		return Session{}, err
	}
	return Session{
		User:      user,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}
