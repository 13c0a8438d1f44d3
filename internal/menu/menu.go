// Package menu реализует клиентский запрос меню с фильтрами и пагинацией.
package menu

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/food-ordering-system/internal/model"
)

// AllCategories означает отсутствие фильтра по категории.
const AllCategories = "all"

// Filters задаёт параметры запроса меню.
type Filters struct {
	Category string
	SortBy   model.SortField
	Order    string
	Search   string
	Page     int
	Limit    int
}

// DefaultFilters возвращает фильтры начального экрана меню.
func DefaultFilters() Filters {
	return Filters{
		Category: AllCategories,
		SortBy:   model.SortByName,
		Order:    "asc",
		Page:     1,
		Limit:    9,
	}
}

// Values переводит фильтры в параметры запроса. Пустые поля и категория "all" не передаются.
func (f Filters) Values() url.Values {
	v := url.Values{}
	if f.Category != "" && f.Category != AllCategories {
		v.Set("category", f.Category)
	}
	if f.SortBy != "" {
		v.Set("sortBy", string(f.SortBy))
	}
	if f.Order != "" {
		v.Set("order", f.Order)
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}

// Fetcher запрашивает страницу меню у сервера.
type Fetcher interface {
	ListMenu(ctx context.Context, params url.Values) (*model.MenuPage, error)
}

// Service выполняет запросы меню.
type Service struct {
	fetcher Fetcher
	logger  *zap.Logger
}

func NewService(fetcher Fetcher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{fetcher: fetcher, logger: logger}
}

// Query возвращает страницу меню. Ошибка запроса логируется, и возвращается пустая страница.
// Номер страницы не корректируется, см. ClampPage.
func (s *Service) Query(ctx context.Context, f Filters) model.MenuPage {
	page, err := s.fetcher.ListMenu(ctx, f.Values())
	if err != nil {
		s.logger.Error("menu query failed", zap.Error(err))
		return emptyPage(f)
	}
	if page.Items == nil {
		page.Items = []model.MenuItem{}
	}
	return *page
}

func emptyPage(f Filters) model.MenuPage {
	return model.MenuPage{
		Items: []model.MenuItem{},
		Pagination: model.Pagination{
			CurrentPage:  f.Page,
			ItemsPerPage: f.Limit,
		},
	}
}

// ClampPage приводит номер страницы к диапазону [1, totalPages].
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		return 1
	}
	if page < 1 {
		return 1
	}
	if page > totalPages {
		return totalPages
	}
	return page
}
