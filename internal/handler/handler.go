// Package handler содержит HTTP-обработчики API сервиса заказа еды.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/food-ordering-system/internal/apperr"
	"github.com/mmeshcher/food-ordering-system/internal/middleware"
	"github.com/mmeshcher/food-ordering-system/internal/model"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, username, password string, role model.Role) (*model.User, error)
	AuthenticateUser(ctx context.Context, username, password string) (*model.User, error)
	ListMenu(ctx context.Context, f model.MenuFilter) (*model.MenuPage, error)
	GetMenuItem(ctx context.Context, id string) (*model.MenuItem, error)
	CreateMenuItem(ctx context.Context, p model.Principal, item model.MenuItem) (*model.MenuItem, error)
	UpdateMenuItem(ctx context.Context, p model.Principal, id string, patch model.MenuItemPatch) (*model.MenuItem, error)
	DeleteMenuItem(ctx context.Context, p model.Principal, id string) error
	CreateOrder(ctx context.Context, p model.Principal, items []model.OrderItemRequest) (*model.Order, error)
	ListOrders(ctx context.Context, p model.Principal) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, p model.Principal, id string, status model.OrderStatus) (*model.Order, error)
}

// Handler реализует HTTP-обработчики API сервиса заказа еды.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	corsOrigins    []string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, corsOrigins []string) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		corsOrigins:    corsOrigins,
	}
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError отображает класс ошибки в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var status int
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	default:
		h.logger.Error(op+" error", zap.Error(err), zap.String("path", r.URL.Path))
		writeJSON(w, http.StatusInternalServerError, messageResponse{
			Message: "Server error",
			Error:   err.Error(),
		})
		return
	}
	writeJSON(w, status, messageResponse{Message: apperr.Message(err)})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, messageResponse{Message: "authorization token required"})
	}
	return p, ok
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "invalid request body"})
		return false
	}
	return true
}

type registerRequest struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     model.Role `json:"role,omitempty"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, err := h.service.RegisterUser(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		h.writeError(w, r, "register user", err)
		return
	}

	h.writeAuthResult(w, r, http.StatusCreated, "User registered successfully", u)
}

// Login выполняет аутентификацию пользователя и выдаёт токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	u, err := h.service.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, "login user", err)
		return
	}

	h.writeAuthResult(w, r, http.StatusOK, "Login successful", u)
}

func (h *Handler) writeAuthResult(w http.ResponseWriter, r *http.Request, status int, msg string, u *model.User) {
	token, err := h.authMiddleware.IssueToken(u)
	if err != nil {
		h.writeError(w, r, "issue token", err)
		return
	}

	writeJSON(w, status, model.AuthResult{
		Message: msg,
		Token:   token,
		User:    model.UserInfo{ID: u.ID, Username: u.Username, Role: u.Role},
	})
}

// ParseMenuFilter разбирает параметры запроса списка меню.
// Некорректные номера страниц и размеры заменяются значениями по умолчанию.
func ParseMenuFilter(q url.Values) (model.MenuFilter, error) {
	f := model.MenuFilter{
		Search:     strings.TrimSpace(q.Get("search")),
		SortBy:     model.SortByName,
		Descending: strings.EqualFold(q.Get("order"), "desc"),
	}

	if c := q.Get("category"); c != "" && !strings.EqualFold(c, "all") {
		f.Category = model.Category(c)
		if !f.Category.Valid() {
			return f, apperr.Validationf("invalid category %q", c)
		}
	}

	if q.Get("sortBy") == string(model.SortByPrice) {
		f.SortBy = model.SortByPrice
	}

	if v := q.Get("availability"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, apperr.Validationf("availability must be true or false")
		}
		f.Availability = &b
	}

	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"minPrice", &f.MinPrice},
		{"maxPrice", &f.MaxPrice},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 {
			return f, apperr.Validationf("%s must be a non-negative number", p.name)
		}
		*p.dst = &n
	}

	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	return f, nil
}

// ListMenu возвращает страницу меню с фильтрами, сортировкой и пагинацией.
func (h *Handler) ListMenu(w http.ResponseWriter, r *http.Request) {
	f, err := ParseMenuFilter(r.URL.Query())
	if err != nil {
		h.writeError(w, r, "list menu", err)
		return
	}

	page, err := h.service.ListMenu(r.Context(), f)
	if err != nil {
		h.writeError(w, r, "list menu", err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// GetMenuItem возвращает позицию меню.
func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetMenuItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "get menu item", err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// CreateMenuItem добавляет позицию меню.
func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	item := model.MenuItem{Availability: true}
	if !decodeBody(w, r, &item) {
		return
	}

	created, err := h.service.CreateMenuItem(r.Context(), p, item)
	if err != nil {
		h.writeError(w, r, "create menu item", err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// UpdateMenuItem частично обновляет позицию меню.
func (h *Handler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var patch model.MenuItemPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	updated, err := h.service.UpdateMenuItem(r.Context(), p, chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeError(w, r, "update menu item", err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

type deleteResponse struct {
	Message string `json:"message"`
	Data    struct {
		ID string `json:"id"`
	} `json:"data"`
}

// DeleteMenuItem удаляет позицию меню.
func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.service.DeleteMenuItem(r.Context(), p, id); err != nil {
		h.writeError(w, r, "delete menu item", err)
		return
	}

	resp := deleteResponse{Message: "Menu item deleted successfully"}
	resp.Data.ID = id
	writeJSON(w, http.StatusOK, resp)
}

type createOrderRequest struct {
	Items []model.OrderItemRequest `json:"items"`
}

// CreateOrder создаёт заказ текущего пользователя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.service.CreateOrder(r.Context(), p, req.Items)
	if err != nil {
		h.writeError(w, r, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, o)
}

// ListOrders возвращает заказы, доступные текущему пользователю.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), p)
	if err != nil {
		h.writeError(w, r, "list orders", err)
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}

	writeJSON(w, http.StatusOK, orders)
}

type statusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// UpdateOrderStatus меняет статус заказа и возвращает подтверждённый заказ.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	o, err := h.service.UpdateOrderStatus(r.Context(), p, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.writeError(w, r, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}
