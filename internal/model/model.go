// Package model содержит доменные сущности и форматы обмена сервиса заказа еды.
package model

import "time"

// Role описывает роль пользователя.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// Valid сообщает, является ли роль одной из допустимых.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

// CanManageOrders сообщает, может ли роль менять статусы заказов и видеть все заказы.
func (r Role) CanManageOrders() bool {
	return r == RoleAdmin || r == RoleManager
}

// CanEditMenu сообщает, может ли роль редактировать позиции меню.
func (r Role) CanEditMenu() bool {
	return r == RoleAdmin || r == RoleManager
}

// CanAdministerMenu сообщает, может ли роль создавать и удалять позиции меню.
func (r Role) CanAdministerMenu() bool {
	return r == RoleAdmin
}

// User представляет зарегистрированного пользователя.
type User struct {
	ID           string
	Username     string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// UserInfo описывает пользователя в ответах API.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// AuthResult возвращается при регистрации и входе.
type AuthResult struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    UserInfo `json:"user"`
}

// Category описывает раздел меню.
type Category string

const (
	CategoryAppetizers Category = "Appetizers"
	CategoryMainCourse Category = "Main Course"
	CategoryDesserts   Category = "Desserts"
	CategoryBeverages  Category = "Beverages"
)

// Categories перечисляет разделы меню в порядке отображения.
var Categories = []Category{CategoryAppetizers, CategoryMainCourse, CategoryDesserts, CategoryBeverages}

// Valid сообщает, является ли категория одной из допустимых.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// MenuItem описывает позицию меню.
type MenuItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Category     Category  `json:"category"`
	Price        float64   `json:"price"`
	Availability bool      `json:"availability"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MenuItemPatch содержит частичное обновление позиции меню. Nil-поля не меняются.
type MenuItemPatch struct {
	Name         *string   `json:"name,omitempty"`
	Category     *Category `json:"category,omitempty"`
	Price        *float64  `json:"price,omitempty"`
	Availability *bool     `json:"availability,omitempty"`
	Description  *string   `json:"description,omitempty"`
}

// Apply применяет обновление к позиции меню.
func (p MenuItemPatch) Apply(item *MenuItem) {
	if p.Name != nil && *p.Name != "" {
		item.Name = *p.Name
	}
	if p.Category != nil && *p.Category != "" {
		item.Category = *p.Category
	}
	if p.Price != nil {
		item.Price = *p.Price
	}
	if p.Availability != nil {
		item.Availability = *p.Availability
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
}

// SortField задаёт поле сортировки меню.
type SortField string

const (
	SortByName  SortField = "name"
	SortByPrice SortField = "price"
)

// MenuFilter описывает параметры выборки меню на стороне сервера.
type MenuFilter struct {
	Category     Category
	Availability *bool
	MinPrice     *float64
	MaxPrice     *float64
	Search       string
	SortBy       SortField
	Descending   bool
	Page         int
	Limit        int
}

// Offset возвращает количество пропускаемых записей для текущей страницы.
func (f MenuFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination описывает положение страницы в выборке.
type Pagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
}

// NewPagination вычисляет пагинацию по общему числу записей.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   total,
		ItemsPerPage: limit,
		HasNextPage:  page < totalPages,
		HasPrevPage:  page > 1,
	}
}

// MenuPage содержит страницу меню вместе с пагинацией.
type MenuPage struct {
	Items      []MenuItem `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusCompleted  OrderStatus = "Completed"
	OrderStatusCancelled  OrderStatus = "Cancelled"
)

// OrderStatuses перечисляет все допустимые статусы.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Valid сообщает, является ли статус одним из допустимых.
func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Toggled возвращает статус, в который переключает заказ кнопка в интерфейсе:
// Pending переходит в Completed, любой другой статус возвращается в Pending.
func (s OrderStatus) Toggled() OrderStatus {
	if s == OrderStatusPending {
		return OrderStatusCompleted
	}
	return OrderStatusPending
}

// OrderItemRequest описывает строку заказа от клиента. Цена не передаётся.
type OrderItemRequest struct {
	MenuItem string `json:"menuItem"`
	Quantity int    `json:"quantity"`
}

// OrderMenuItem подставляется в строку заказа при чтении.
type OrderMenuItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Price float64 `json:"price"`
}

// OrderItem описывает строку сохранённого заказа.
type OrderItem struct {
	MenuItem OrderMenuItem `json:"menuItem"`
	Quantity int           `json:"quantity"`
}

// OrderOwner заполняется только в выдаче для администраторов и менеджеров.
type OrderOwner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Order описывает заказ пользователя.
type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	User        *OrderOwner `json:"user,omitempty"`
	Items       []OrderItem `json:"items"`
	TotalAmount float64     `json:"totalAmount"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// CartLine хранит строку корзины клиента. Цена и название фиксируются в момент добавления.
type CartLine struct {
	ItemID   string   `json:"itemId"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Category Category `json:"category"`
	Quantity int      `json:"quantity"`
}

// Principal описывает аутентифицированного вызывающего.
type Principal struct {
	UserID   string
	Username string
	Role     Role
}
