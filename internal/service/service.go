// Package service реализует бизнес-логику сервиса заказа еды.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/food-ordering-system/internal/apperr"
	"github.com/mmeshcher/food-ordering-system/internal/cache"
	"github.com/mmeshcher/food-ordering-system/internal/model"
	"github.com/mmeshcher/food-ordering-system/internal/pricing"
	"github.com/mmeshcher/food-ordering-system/internal/repository"
	"github.com/mmeshcher/food-ordering-system/internal/validation"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	// maxPage ограничивает номер страницы так, чтобы смещение выборки не переполнялось.
	maxPage          = math.MaxInt32 / maxPageLimit
	menuQueryTimeout = 10 * time.Second
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListMenuItems(ctx context.Context, f model.MenuFilter) ([]model.MenuItem, int64, error)
	GetMenuItem(ctx context.Context, id string) (*model.MenuItem, error)
	CreateMenuItem(ctx context.Context, item *model.MenuItem) error
	UpdateMenuItem(ctx context.Context, item *model.MenuItem) error
	DeleteMenuItem(ctx context.Context, id string) error
	CreateOrder(ctx context.Context, o *model.Order) error
	ListOrders(ctx context.Context) ([]model.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error)
}

// Service содержит бизнес-логику сервиса заказа еды.
type Service struct {
	repo       Repository
	menuCache  cache.MenuCache
	logger     *zap.Logger
	menuFlight singleflight.Group
	strict     bool
	bcryptCost int
}

// Option настраивает Service.
type Option func(*Service)

// WithMenuCache включает кэширование страниц меню.
func WithMenuCache(c cache.MenuCache) Option {
	return func(s *Service) {
		s.menuCache = c
	}
}

// WithStrictTransitions включает проверку переходов статуса заказа.
func WithStrictTransitions(enabled bool) Option {
	return func(s *Service) {
		s.strict = enabled
	}
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:       repo,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя. Пустая роль означает обычного пользователя.
func (s *Service) RegisterUser(ctx context.Context, username, password string, role model.Role) (*model.User, error) {
	if err := validation.Credentials(username, password); err != nil {
		return nil, err
	}
	if role == "" {
		role = model.RoleUser
	}
	if !role.Valid() {
		return nil, apperr.Validationf("invalid role %q", role)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hashed,
		Role:         role,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, apperr.Conflictf("user already exists")
		}
		return nil, err
	}
	return u, nil
}

// AuthenticateUser проверяет логин и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, apperr.Validationf("username and password are required")
	}

	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperr.Unauthenticatedf("invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, apperr.Unauthenticatedf("invalid credentials")
	}
	return u, nil
}

// NormalizeMenuFilter подставляет значения по умолчанию и ограничивает размер страницы.
func NormalizeMenuFilter(f model.MenuFilter) model.MenuFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > maxPage {
		f.Page = maxPage
	}
	if f.Limit < 1 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}
	if f.SortBy != model.SortByPrice {
		f.SortBy = model.SortByName
	}
	return f
}

// ListMenu возвращает страницу меню. Одинаковые одновременные запросы к хранилищу схлопываются.
func (s *Service) ListMenu(ctx context.Context, f model.MenuFilter) (*model.MenuPage, error) {
	f = NormalizeMenuFilter(f)
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, apperr.Validationf("minPrice must not exceed maxPrice")
	}

	gen, cached := s.menuGeneration(ctx)
	if cached {
		page, err := s.menuCache.Get(ctx, gen, f)
		if err == nil {
			return page, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("menu cache get failed", zap.Error(err))
		}
	}

	key := strconv.FormatInt(gen, 10) + "|" + cache.FilterKey(f)
	ch := s.menuFlight.DoChan(key, func() (any, error) {
		// общий запрос не должен зависеть от отмены запроса первого клиента
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), menuQueryTimeout)
		defer cancel()

		items, total, err := s.repo.ListMenuItems(qctx, f)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []model.MenuItem{}
		}
		page := &model.MenuPage{
			Items:      items,
			Pagination: model.NewPagination(f.Page, f.Limit, total),
		}
		if cached {
			if err := s.menuCache.Set(qctx, gen, f, page); err != nil {
				s.logger.Warn("menu cache set failed", zap.Error(err))
			}
		}
		return page, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*model.MenuPage), nil
	}
}

// menuGeneration читает поколение кэша до обращения к хранилищу.
// При недоступном кэше страница читается из хранилища и не сохраняется.
func (s *Service) menuGeneration(ctx context.Context) (int64, bool) {
	if s.menuCache == nil {
		return 0, false
	}
	gen, err := s.menuCache.Generation(ctx)
	if err != nil {
		s.logger.Warn("menu cache generation failed", zap.Error(err))
		return 0, false
	}
	return gen, true
}

// GetMenuItem возвращает позицию меню по идентификатору.
func (s *Service) GetMenuItem(ctx context.Context, id string) (*model.MenuItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFoundf("menu item not found")
	}
	item, err := s.repo.GetMenuItem(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, repository.ErrMenuItemNotFound, "menu item not found")
	}
	return item, nil
}

// CreateMenuItem добавляет позицию меню. Доступно только администратору.
func (s *Service) CreateMenuItem(ctx context.Context, p model.Principal, item model.MenuItem) (*model.MenuItem, error) {
	if !p.Role.CanAdministerMenu() {
		return nil, apperr.Forbiddenf("access denied")
	}
	if err := validation.MenuItem(item); err != nil {
		return nil, err
	}

	item.ID = uuid.NewString()
	if err := s.repo.CreateMenuItem(ctx, &item); err != nil {
		return nil, err
	}
	s.invalidateMenu(ctx)
	return &item, nil
}

// UpdateMenuItem частично обновляет позицию меню. Доступно администратору и менеджеру.
func (s *Service) UpdateMenuItem(ctx context.Context, p model.Principal, id string, patch model.MenuItemPatch) (*model.MenuItem, error) {
	if !p.Role.CanEditMenu() {
		return nil, apperr.Forbiddenf("access denied")
	}
	if err := validation.MenuItemPatch(patch); err != nil {
		return nil, err
	}

	item, err := s.GetMenuItem(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(item)

	if err := s.repo.UpdateMenuItem(ctx, item); err != nil {
		return nil, mapNotFound(err, repository.ErrMenuItemNotFound, "menu item not found")
	}
	s.invalidateMenu(ctx)
	return item, nil
}

// DeleteMenuItem удаляет позицию меню. Доступно только администратору.
// Сохранённые заказы продолжают ссылаться на удалённую позицию.
func (s *Service) DeleteMenuItem(ctx context.Context, p model.Principal, id string) error {
	if !p.Role.CanAdministerMenu() {
		return apperr.Forbiddenf("access denied")
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFoundf("menu item not found")
	}
	if err := s.repo.DeleteMenuItem(ctx, id); err != nil {
		return mapNotFound(err, repository.ErrMenuItemNotFound, "menu item not found")
	}
	s.invalidateMenu(ctx)
	return nil
}

func (s *Service) invalidateMenu(ctx context.Context) {
	if s.menuCache == nil {
		return
	}
	if err := s.menuCache.Invalidate(ctx); err != nil {
		s.logger.Warn("menu cache invalidate failed", zap.Error(err))
	}
}

// CreateOrder создаёт заказ от имени вызывающего. Цены берутся из меню, сумма клиента не используется.
func (s *Service) CreateOrder(ctx context.Context, p model.Principal, items []model.OrderItemRequest) (*model.Order, error) {
	if err := validation.OrderItems(items); err != nil {
		return nil, err
	}

	lines := make([]model.OrderItem, 0, len(items))
	priced := make([]pricing.Line, 0, len(items))
	for _, it := range items {
		menuItem, err := s.GetMenuItem(ctx, it.MenuItem)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.NotFoundf("menu item %s not found", it.MenuItem)
			}
			return nil, err
		}
		if !menuItem.Availability {
			return nil, apperr.Conflictf("menu item %s is not available", menuItem.Name)
		}

		lines = append(lines, model.OrderItem{
			MenuItem: model.OrderMenuItem{ID: menuItem.ID, Name: menuItem.Name, Price: menuItem.Price},
			Quantity: it.Quantity,
		})
		priced = append(priced, pricing.Line{Price: menuItem.Price, Quantity: it.Quantity})
	}

	o := &model.Order{
		ID:          uuid.NewString(),
		UserID:      p.UserID,
		Items:       lines,
		TotalAmount: pricing.Float(pricing.Subtotal(priced)),
		Status:      model.OrderStatusPending,
	}
	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders возвращает заказы с учётом роли: администратор и менеджер видят все заказы с владельцами,
// пользователь видит только свои.
func (s *Service) ListOrders(ctx context.Context, p model.Principal) ([]model.Order, error) {
	var (
		orders []model.Order
		err    error
	)
	if p.Role.CanManageOrders() {
		orders, err = s.repo.ListOrders(ctx)
	} else {
		orders, err = s.repo.ListOrdersByUser(ctx, p.UserID)
		for i := range orders {
			orders[i].User = nil
		}
	}
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// UpdateOrderStatus меняет статус заказа. Доступно администратору и менеджеру.
func (s *Service) UpdateOrderStatus(ctx context.Context, p model.Principal, id string, status model.OrderStatus) (*model.Order, error) {
	if !p.Role.CanManageOrders() {
		return nil, apperr.Forbiddenf("access denied")
	}
	if err := validation.OrderStatus(status); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.NotFoundf("order not found")
	}

	if s.strict {
		current, err := s.repo.GetOrder(ctx, id)
		if err != nil {
			return nil, mapNotFound(err, repository.ErrOrderNotFound, "order not found")
		}
		if !CanTransition(current.Status, status) {
			return nil, apperr.Conflictf("cannot change status from %s to %s", current.Status, status)
		}
	}

	o, err := s.repo.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		return nil, mapNotFound(err, repository.ErrOrderNotFound, "order not found")
	}
	return o, nil
}

func mapNotFound(err, sentinel error, msg string) error {
	if errors.Is(err, sentinel) {
		return apperr.NotFoundf("%s", msg)
	}
	return err
}
