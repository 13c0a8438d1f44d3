// Package cart реализует клиентскую корзину: список строк в памяти и его снимок в хранилище.
package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/food-ordering-system/internal/model"
	"github.com/mmeshcher/food-ordering-system/internal/pricing"
)

// Cart хранит корзину пользователя в памяти и сохраняет её целиком при каждом изменении.
type Cart struct {
	store  Store
	logger *zap.Logger

	mu    sync.Mutex
	lines []model.CartLine
}

// New создаёт корзину и загружает сохранённый снимок.
// Нечитаемый снимок логируется, корзина при этом остаётся пустой.
func New(ctx context.Context, store Store, logger *zap.Logger) *Cart {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cart{store: store, logger: logger}

	lines, err := store.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSnapshot):
	case err != nil:
		logger.Warn("failed to load cart snapshot", zap.Error(err))
	default:
		c.lines = lines
	}
	return c
}

// Add добавляет позицию меню. Повторное добавление увеличивает количество на единицу.
func (c *Cart) Add(ctx context.Context, item model.MenuItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(item.ID); i >= 0 {
		c.lines[i].Quantity++
	} else {
		c.lines = append(c.lines, model.CartLine{
			ItemID:   item.ID,
			Name:     item.Name,
			Price:    item.Price,
			Category: item.Category,
			Quantity: 1,
		})
	}
	return c.persist(ctx)
}

// SetQuantity задаёт количество. Неположительное количество удаляет строку.
func (c *Cart) SetQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return c.Remove(ctx, itemID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(itemID); i >= 0 {
		c.lines[i].Quantity = quantity
	}
	return c.persist(ctx)
}

// Remove удаляет строку; отсутствующая строка не считается ошибкой.
func (c *Cart) Remove(ctx context.Context, itemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.indexOf(itemID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
	return c.persist(ctx)
}

// Clear очищает корзину и удаляет снимок.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	return c.store.Delete(ctx)
}

// Lines возвращает копию строк корзины.
func (c *Cart) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// IsEmpty сообщает, что в корзине нет строк.
func (c *Cart) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.lines) == 0
}

// Count возвращает общее количество единиц.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

// Subtotal возвращает сумму по ценам на момент добавления.
func (c *Cart) Subtotal() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return pricing.Float(c.subtotal())
}

// Total возвращает сумму с доставкой. Используется только для отображения.
func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return pricing.Float(pricing.WithShipping(c.subtotal(), len(c.lines) == 0))
}

func (c *Cart) subtotal() decimal.Decimal {
	lines := make([]pricing.Line, 0, len(c.lines))
	for _, l := range c.lines {
		lines = append(lines, pricing.Line{Price: l.Price, Quantity: l.Quantity})
	}
	return pricing.Subtotal(lines)
}

func (c *Cart) indexOf(itemID string) int {
	for i, l := range c.lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}

func (c *Cart) persist(ctx context.Context) error {
	lines := c.lines
	if lines == nil {
		lines = []model.CartLine{}
	}
	return c.store.Save(ctx, lines)
}
