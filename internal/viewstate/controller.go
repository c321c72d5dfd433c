// Package viewstate содержит контроллер экранов приложения: переходы между
// dashboard, списком, формой и карточкой заказа поверх client.OrderAccess.
package viewstate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/serviceflow/internal/client"
	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

// Mode: текущий экран.
type Mode string

const (
	ModeDashboard Mode = "dashboard"
	ModeList      Mode = "list"
	ModeForm      Mode = "form"
	ModeDetails   Mode = "details"
)

var (
	// ErrInvalidTransition: действие недоступно в текущем режиме.
	ErrInvalidTransition = errors.New("action is not available in the current view")
	// ErrSubmitInProgress: предыдущая отправка формы ещё не завершилась.
	ErrSubmitInProgress = errors.New("form submission already in progress")
	// ErrDeleteNotConfirmed: пользователь отказался от удаления.
	ErrDeleteNotConfirmed = errors.New("delete not confirmed")
	// ErrInvalidStatusFilter: фильтр не "all" и не известный статус.
	ErrInvalidStatusFilter = errors.New("status filter must be all or a known status")
)

// State: снимок состояния контроллера.
type State struct {
	Mode         Mode
	Selected     *domain.ServiceOrder
	Orders       []domain.ServiceOrder
	SearchQuery  string
	StatusFilter string
	Loading      bool
	Submitting   bool
}

// Controller управляет режимами экрана и локальной коллекцией заказов.
// Блокировка не удерживается во время сетевых вызовов; ответ, пришедший
// после смены экрана, не меняет режим и выбранный заказ.
type Controller struct {
	access   client.OrderAccess
	notifier Notifier
	confirm  func(domain.ServiceOrder) bool

	mu           sync.Mutex
	mode         Mode
	selected     *domain.ServiceOrder
	formOrigin   Mode
	orders       []domain.ServiceOrder
	searchQuery  string
	statusFilter string
	loading      bool
	submitting   bool
	generation   uint64
	// mutations растёт при каждом применённом create, update или delete.
	mutations uint64
}

// Option настраивает Controller.
type Option func(*Controller)

// WithNotifier задаёт получателя уведомлений.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithConfirm задаёт подтверждение удаления. По умолчанию удаление подтверждено.
func WithConfirm(confirm func(domain.ServiceOrder) bool) Option {
	return func(c *Controller) {
		if confirm != nil {
			c.confirm = confirm
		}
	}
}

// NewController создаёт контроллер в режиме dashboard с пустой коллекцией.
func NewController(access client.OrderAccess, opts ...Option) *Controller {
	c := &Controller{
		access:       access,
		notifier:     NewLogNotifier(log.WithField("component", "viewstate")),
		confirm:      func(domain.ServiceOrder) bool { return true },
		mode:         ModeDashboard,
		statusFilter: StatusAll,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State возвращает копию текущего состояния.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		Mode:         c.mode,
		Selected:     cloneOrder(c.selected),
		Orders:       cloneOrders(c.orders),
		SearchQuery:  c.searchQuery,
		StatusFilter: c.statusFilter,
		Loading:      c.loading,
		Submitting:   c.submitting,
	}
}

// Mode возвращает текущий экран.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Selected возвращает копию выбранного заказа или nil.
func (c *Controller) Selected() *domain.ServiceOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneOrder(c.selected)
}

// Visible возвращает заказы списка с учётом поиска и фильтра статуса.
func (c *Controller) Visible() []domain.ServiceOrder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return FilterOrders(c.orders, c.searchQuery, c.statusFilter)
}

// Dashboard считает сводку по всей коллекции.
func (c *Controller) Dashboard() Dashboard {
	c.mu.Lock()
	defer c.mu.Unlock()
	return BuildDashboard(c.orders)
}

// SetSearchQuery меняет строку поиска списка.
func (c *Controller) SetSearchQuery(query string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchQuery = query
}

// SetStatusFilter принимает "all" или известный статус.
func (c *Controller) SetStatusFilter(status string) error {
	if status != StatusAll && !domain.OrderStatus(status).Valid() {
		return ErrInvalidStatusFilter
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusFilter = status
	return nil
}

// Load загружает коллекцию и упорядочивает её от новых к старым.
// При ошибке прежняя коллекция сохраняется. Ответ, пришедший после локально
// применённого изменения коллекции, отбрасывается как устаревший.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	mutations := c.mutations
	c.mu.Unlock()

	orders, err := c.access.List(ctx)

	c.mu.Lock()
	c.loading = false
	stale := c.mutations != mutations
	if err == nil && !stale {
		c.orders = mostRecentFirst(orders)
	}
	c.mu.Unlock()

	if err == nil && stale {
		c.notifier.Notify(Notification{Level: LevelInfo, Message: "discarded outdated service order list"})
		return nil
	}

	if err != nil {
		c.notifier.Notify(Notification{Level: LevelError, Message: "could not load service orders", Err: err})
		return fmt.Errorf("load service orders: %w", err)
	}
	return nil
}

// ShowDashboard переключает на dashboard из любого режима.
func (c *Controller) ShowDashboard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.navigate(ModeDashboard)
}

// ShowList переключает на список из любого режима.
func (c *Controller) ShowList() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.navigate(ModeList)
}

// NewOrder открывает пустую форму из списка или dashboard.
func (c *Controller) NewOrder() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeList && c.mode != ModeDashboard {
		return ErrInvalidTransition
	}
	c.selected = nil
	c.formOrigin = ModeList
	c.navigate(ModeForm)
	return nil
}

// EditOrder открывает форму редактирования заказа из списка.
func (c *Controller) EditOrder(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeList {
		return ErrInvalidTransition
	}
	order, ok := c.find(id)
	if !ok {
		return domain.ErrOrderNotFound
	}
	c.selected = &order
	c.formOrigin = ModeList
	c.navigate(ModeForm)
	return nil
}

// ViewOrder открывает карточку заказа из списка.
func (c *Controller) ViewOrder(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeList {
		return ErrInvalidTransition
	}
	order, ok := c.find(id)
	if !ok {
		return domain.ErrOrderNotFound
	}
	c.selected = &order
	c.navigate(ModeDetails)
	return nil
}

// EditSelected открывает форму для заказа из карточки; выбор не меняется.
func (c *Controller) EditSelected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeDetails || c.selected == nil {
		return ErrInvalidTransition
	}
	c.formOrigin = ModeDetails
	c.navigate(ModeForm)
	return nil
}

// Cancel закрывает форму: в карточку, если форма открыта из неё, иначе в список без выбора.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeForm {
		return ErrInvalidTransition
	}
	if c.formOrigin == ModeDetails && c.selected != nil {
		c.navigate(ModeDetails)
		return nil
	}
	c.selected = nil
	c.navigate(ModeList)
	return nil
}

// CloseDetails возвращает в список и сбрасывает выбор.
func (c *Controller) CloseDetails() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeDetails {
		return ErrInvalidTransition
	}
	c.selected = nil
	c.navigate(ModeList)
	return nil
}

// Submit отправляет форму: создание, если заказ не выбран, иначе редактирование.
// Невалидная форма возвращает *FormErrors и не доходит до backend.
func (c *Controller) Submit(ctx context.Context, form FormInput) error {
	c.mu.Lock()
	if c.mode != ModeForm {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmitInProgress
	}
	if err := form.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.submitting = true
	gen := c.generation
	editing := cloneOrder(c.selected)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	if editing == nil {
		return c.create(ctx, gen, form)
	}
	return c.update(ctx, gen, editing.ID, form)
}

func (c *Controller) create(ctx context.Context, gen uint64, form FormInput) error {
	data, err := form.ToCreate()
	if err != nil {
		return err
	}

	created, err := c.access.Create(ctx, data)
	if err != nil {
		c.notifier.Notify(Notification{Level: LevelError, Message: "could not create service order", Err: err})
		return fmt.Errorf("create service order: %w", err)
	}

	c.mu.Lock()
	c.orders = append([]domain.ServiceOrder{created.Clone()}, c.orders...)
	c.mutations++
	if c.generation == gen && c.mode == ModeForm {
		c.navigate(ModeList)
	}
	c.mu.Unlock()

	c.notifier.Notify(Notification{Level: LevelSuccess, Message: "service order created", OrderID: created.ID})
	return nil
}

func (c *Controller) update(ctx context.Context, gen uint64, id string, form FormInput) error {
	patch, err := form.ToUpdate()
	if err != nil {
		return err
	}

	updated, err := c.access.Update(ctx, id, patch)
	if err != nil {
		c.notifier.Notify(Notification{Level: LevelError, Message: "could not update service order", Err: err, OrderID: id})
		return fmt.Errorf("update service order: %w", err)
	}
	if updated == nil {
		c.notifier.Notify(Notification{Level: LevelError, Message: "service order no longer exists", OrderID: id})
		return domain.ErrOrderNotFound
	}

	c.mu.Lock()
	c.replace(*updated)
	c.mutations++
	if c.generation == gen && c.mode == ModeForm {
		c.selected = cloneOrder(updated)
		c.navigate(ModeDetails)
	}
	c.mu.Unlock()

	c.notifier.Notify(Notification{Level: LevelSuccess, Message: "service order updated", OrderID: id})
	return nil
}

// Delete удаляет заказ из списка после подтверждения. Если backend уже не
// знает заказ, локальная запись всё равно удаляется.
func (c *Controller) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.mode != ModeList {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	order, ok := c.find(id)
	c.mu.Unlock()
	if !ok {
		return domain.ErrOrderNotFound
	}

	if !c.confirm(order) {
		return ErrDeleteNotConfirmed
	}

	deleted, err := c.access.Delete(ctx, id)
	if err != nil {
		c.notifier.Notify(Notification{Level: LevelError, Message: "could not delete service order", Err: err, OrderID: id})
		return fmt.Errorf("delete service order: %w", err)
	}

	c.mu.Lock()
	c.orders = slices.DeleteFunc(c.orders, func(o domain.ServiceOrder) bool { return o.ID == id })
	c.mutations++
	if c.selected != nil && c.selected.ID == id {
		c.selected = nil
	}
	c.mu.Unlock()

	if deleted {
		c.notifier.Notify(Notification{Level: LevelSuccess, Message: "service order deleted", OrderID: id})
	} else {
		c.notifier.Notify(Notification{Level: LevelInfo, Message: "service order was already removed", OrderID: id})
	}
	return nil
}

// navigate вызывается под c.mu.
func (c *Controller) navigate(mode Mode) {
	c.mode = mode
	c.generation++
}

func (c *Controller) find(id string) (domain.ServiceOrder, bool) {
	for _, order := range c.orders {
		if order.ID == id {
			return order.Clone(), true
		}
	}
	return domain.ServiceOrder{}, false
}

func (c *Controller) replace(order domain.ServiceOrder) {
	for i := range c.orders {
		if c.orders[i].ID == order.ID {
			c.orders[i] = order.Clone()
			return
		}
	}
}

func cloneOrder(order *domain.ServiceOrder) *domain.ServiceOrder {
	if order == nil {
		return nil
	}
	out := order.Clone()
	return &out
}

func cloneOrders(orders []domain.ServiceOrder) []domain.ServiceOrder {
	out := make([]domain.ServiceOrder, 0, len(orders))
	for _, order := range orders {
		out = append(out, order.Clone())
	}
	return out
}
