package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
	"github.com/vladislavdragonenkov/serviceflow/internal/metrics"
	"github.com/vladislavdragonenkov/serviceflow/internal/service/auth"
)

// maxBodyBytes ограничивает размер JSON-тела запроса.
const maxBodyBytes = 1 << 20

// OrderService: операции над заказами, которые обслуживает API.
type OrderService interface {
	List(ctx context.Context) ([]domain.ServiceOrder, error)
	FilterByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.ServiceOrder, error)
	Search(ctx context.Context, query string) ([]domain.ServiceOrder, error)
	Get(ctx context.Context, id string) (domain.ServiceOrder, error)
	Create(ctx context.Context, data domain.CreateServiceOrderData) (domain.ServiceOrder, error)
	Update(ctx context.Context, id string, patch domain.UpdateServiceOrderData) (domain.ServiceOrder, error)
	Delete(ctx context.Context, id string) error
	Timeline(ctx context.Context, id string) ([]domain.TimelineEvent, error)
}

// AuthService: регистрация, вход и проверка bearer-токенов.
type AuthService interface {
	SignUp(ctx context.Context, email, password, fullName string) (auth.Session, error)
	SignIn(ctx context.Context, email, password string) (auth.Session, error)
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (domain.User, error)
	Refresh(ctx context.Context, token string) (auth.Session, error)
}

// Handler: REST API сервисных заказов и аутентификации.
type Handler struct {
	orders      OrderService
	auth        AuthService
	limiter     *RateLimiter
	metrics     *metrics.OrderMetrics
	httpMetrics *metrics.HTTPMetrics
	logger      *log.Entry
}

// Option настраивает Handler.
type Option func(*Handler)

// WithRateLimiter ограничивает частоту login/register по IP.
func WithRateLimiter(limiter *RateLimiter) Option {
	return func(h *Handler) { h.limiter = limiter }
}

// WithMetrics задаёт метрики аутентификации.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithHTTPMetrics задаёт метрики HTTP-запросов.
func WithHTTPMetrics(m *metrics.HTTPMetrics) Option {
	return func(h *Handler) { h.httpMetrics = m }
}

// WithLogger задаёт logger для access log и ошибок.
func WithLogger(logger *log.Entry) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler создаёт API поверх сервисов заказов и аутентификации.
func NewHandler(orders OrderService, authService AuthService, opts ...Option) *Handler {
	h := &Handler{
		orders: orders,
		auth:   authService,
		logger: log.WithField("component", "http-api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router собирает маршруты. /service-orders/search регистрируется раньше /{id}.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(observe(h.logger, h.httpMetrics))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/auth/login", h.limitByIP("sign_in", h.signIn)).Methods(http.MethodPost)
	// Старые клиенты отправляют вход на /login.
	r.HandleFunc("/login", h.limitByIP("sign_in", h.signIn)).Methods(http.MethodPost)
	r.HandleFunc("/auth/register", h.limitByIP("sign_up", h.signUp)).Methods(http.MethodPost)

	private := r.NewRoute().Subrouter()
	private.Use(h.requireAuth)
	private.HandleFunc("/auth/logout", h.signOut).Methods(http.MethodPost)
	private.HandleFunc("/auth/me", h.me).Methods(http.MethodGet)
	private.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)

	private.HandleFunc("/service-orders", h.listOrders).Methods(http.MethodGet)
	private.HandleFunc("/service-orders", h.createOrder).Methods(http.MethodPost)
	private.HandleFunc("/service-orders/search", h.searchOrders).Methods(http.MethodGet)
	private.HandleFunc("/service-orders/{id}", h.getOrder).Methods(http.MethodGet)
	private.HandleFunc("/service-orders/{id}", h.updateOrder).Methods(http.MethodPut)
	private.HandleFunc("/service-orders/{id}", h.deleteOrder).Methods(http.MethodDelete)
	private.HandleFunc("/service-orders/{id}/timeline", h.orderTimeline).Methods(http.MethodGet)

	return r
}
