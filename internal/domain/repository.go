package domain

import "context"

// ServiceOrderRepository описывает требования к хранилищу сервисных заказов.
// Все методы возвращают копии, а не ссылки на внутреннее состояние.
type ServiceOrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderVersionConflict, если ID уже занят.
	Create(ctx context.Context, order ServiceOrder) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (ServiceOrder, error)
	// List возвращает все заказы в порядке добавления.
	List(ctx context.Context) ([]ServiceOrder, error)
	// ListByStatus возвращает заказы с указанным статусом, сохраняя порядок добавления.
	ListByStatus(ctx context.Context, status OrderStatus) ([]ServiceOrder, error)
	// Search ищет подстроку без учёта регистра в title, client и description.
	Search(ctx context.Context, query string) ([]ServiceOrder, error)
	// Save перезаписывает заказ с учётом optimistic locking.
	Save(ctx context.Context, order ServiceOrder) error
	// Delete удаляет заказ или возвращает ErrOrderNotFound.
	Delete(ctx context.Context, id string) error
}

// UserRepository хранит учётные записи.
type UserRepository interface {
	// Create сохраняет пользователя или возвращает ErrEmailTaken.
	Create(ctx context.Context, user User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
}
