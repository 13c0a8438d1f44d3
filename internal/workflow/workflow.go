// Package workflow реализует клиентский сценарий оформления заказа и смены статуса.
package workflow

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/food-ordering-system/internal/apperr"
	"github.com/mmeshcher/food-ordering-system/internal/model"
	"github.com/mmeshcher/food-ordering-system/internal/validation"
)

var ErrBusy = errors.New("order placement already in progress")

// OrderAPI выполняет серверные операции с заказами.
type OrderAPI interface {
	CreateOrder(ctx context.Context, items []model.OrderItemRequest) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error)
}

// Cart отдаёт строки для оформления заказа.
type Cart interface {
	Lines() []model.CartLine
	Clear(ctx context.Context) error
}

// Identity сообщает роль текущего пользователя.
type Identity interface {
	Role() model.Role
}

// Workflow оформляет заказы из корзины и держит кэш списка заказов.
type Workflow struct {
	api      OrderAPI
	cart     Cart
	identity Identity
	logger   *zap.Logger

	mu     sync.Mutex
	busy   bool
	orders []model.Order
}

func New(api OrderAPI, cart Cart, identity Identity, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		api:      api,
		cart:     cart,
		identity: identity,
		logger:   logger,
	}
}

// PlaceOrder отправляет содержимое корзины как заказ.
// При успехе корзина очищается и список заказов обновляется; при ошибке корзина не меняется.
func (w *Workflow) PlaceOrder(ctx context.Context) (*model.Order, error) {
	lines := w.cart.Lines()
	if len(lines) == 0 {
		return nil, apperr.Validationf("cart is empty")
	}

	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	w.busy = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
	}()

	items := make([]model.OrderItemRequest, 0, len(lines))
	for _, l := range lines {
		items = append(items, model.OrderItemRequest{MenuItem: l.ItemID, Quantity: l.Quantity})
	}

	o, err := w.api.CreateOrder(ctx, items)
	if err != nil {
		return nil, err
	}

	if err := w.cart.Clear(ctx); err != nil {
		w.logger.Warn("failed to clear cart after checkout", zap.Error(err))
	}
	if err := w.RefreshOrders(ctx); err != nil {
		w.logger.Warn("failed to refresh orders after checkout", zap.Error(err))
	}
	return o, nil
}

// RefreshOrders перечитывает список заказов с сервера.
func (w *Workflow) RefreshOrders(ctx context.Context) error {
	orders, err := w.api.ListOrders(ctx)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.orders = orders
	w.mu.Unlock()
	return nil
}

// Orders возвращает копию закэшированного списка заказов.
func (w *Workflow) Orders() []model.Order {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]model.Order, len(w.orders))
	copy(out, w.orders)
	return out
}

// ToggleStatus переключает заказ между Pending и Completed.
func (w *Workflow) ToggleStatus(ctx context.Context, orderID string) (*model.Order, error) {
	if !w.identity.Role().CanManageOrders() {
		return nil, apperr.Forbiddenf("only admin or manager can change order status")
	}

	current, ok := w.cached(orderID)
	if !ok {
		if err := w.RefreshOrders(ctx); err != nil {
			return nil, err
		}
		if current, ok = w.cached(orderID); !ok {
			return nil, apperr.NotFoundf("order not found")
		}
	}

	return w.SetStatus(ctx, orderID, current.Status.Toggled())
}

// SetStatus устанавливает статус заказа. Подтверждённый сервером заказ заменяет копию в кэше.
func (w *Workflow) SetStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error) {
	if !w.identity.Role().CanManageOrders() {
		return nil, apperr.Forbiddenf("only admin or manager can change order status")
	}
	if err := validation.OrderStatus(status); err != nil {
		return nil, err
	}

	o, err := w.api.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	for i := range w.orders {
		if w.orders[i].ID == o.ID {
			w.orders[i] = *o
			break
		}
	}
	w.mu.Unlock()
	return o, nil
}

func (w *Workflow) cached(orderID string) (model.Order, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, o := range w.orders {
		if o.ID == orderID {
			return o, true
		}
	}
	return model.Order{}, false
}
