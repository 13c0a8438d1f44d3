// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"

	"github.com/mmeshcher/food-ordering-system/internal/apperr"
	"github.com/mmeshcher/food-ordering-system/internal/model"
)

const (
	// MinPasswordLength задаёт минимальную длину пароля.
	MinPasswordLength = 6
	// MaxItemQuantity ограничивает количество в строке заказа.
	MaxItemQuantity = 10000
)

// Credentials проверяет логин и пароль при регистрации.
func Credentials(username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return apperr.Validationf("username and password are required")
	}
	if len(password) < MinPasswordLength {
		return apperr.Validationf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// MenuItem проверяет новую позицию меню.
func MenuItem(item model.MenuItem) error {
	if strings.TrimSpace(item.Name) == "" || item.Category == "" {
		return apperr.Validationf("name, category, and price are required")
	}
	if !item.Category.Valid() {
		return apperr.Validationf("invalid category %q", item.Category)
	}
	if item.Price < 0 {
		return apperr.Validationf("price must be a positive number")
	}
	return nil
}

// MenuItemPatch проверяет частичное обновление позиции меню.
func MenuItemPatch(p model.MenuItemPatch) error {
	if p.Price != nil && *p.Price < 0 {
		return apperr.Validationf("price must be a positive number")
	}
	if p.Category != nil && *p.Category != "" && !p.Category.Valid() {
		return apperr.Validationf("invalid category %q", *p.Category)
	}
	return nil
}

// OrderItems проверяет строки заказа, присланные клиентом.
func OrderItems(items []model.OrderItemRequest) error {
	if len(items) == 0 {
		return apperr.Validationf("order must contain at least one item")
	}
	for _, it := range items {
		if it.MenuItem == "" || it.Quantity < 1 {
			return apperr.Validationf("invalid item format, each item must have menuItem and quantity")
		}
		if it.Quantity > MaxItemQuantity {
			return apperr.Validationf("quantity must not exceed %d", MaxItemQuantity)
		}
	}
	return nil
}

// OrderStatus проверяет запрошенный статус заказа.
func OrderStatus(s model.OrderStatus) error {
	if s.Valid() {
		return nil
	}
	names := make([]string, 0, len(model.OrderStatuses))
	for _, v := range model.OrderStatuses {
		names = append(names, string(v))
	}
	return apperr.Validationf("invalid status, must be one of: %s", strings.Join(names, ", "))
}
