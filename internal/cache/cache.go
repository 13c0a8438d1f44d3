// Package cache содержит кэш страниц меню.
package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/mmeshcher/food-ordering-system/internal/model"
)

var ErrCacheMiss = errors.New("cache miss")

// MenuCache хранит готовые страницы меню по ключу фильтра.
// Страница сохраняется под поколением, прочитанным до запроса к хранилищу,
// поэтому запись, опоздавшая после Invalidate, попадает в уже устаревшее поколение.
type MenuCache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, f model.MenuFilter) (*model.MenuPage, error)
	Set(ctx context.Context, gen int64, f model.MenuFilter, page *model.MenuPage) error
	// Invalidate делает недействительными все ранее сохранённые страницы.
	Invalidate(ctx context.Context) error
}

// FilterKey строит детерминированный ключ фильтра меню.
func FilterKey(f model.MenuFilter) string {
	var b strings.Builder
	b.WriteString("c=")
	b.WriteString(string(f.Category))
	b.WriteString("|a=")
	if f.Availability != nil {
		b.WriteString(strconv.FormatBool(*f.Availability))
	}
	b.WriteString("|min=")
	if f.MinPrice != nil {
		b.WriteString(strconv.FormatFloat(*f.MinPrice, 'f', -1, 64))
	}
	b.WriteString("|max=")
	if f.MaxPrice != nil {
		b.WriteString(strconv.FormatFloat(*f.MaxPrice, 'f', -1, 64))
	}
	b.WriteString("|q=")
	b.WriteString(strings.ToLower(f.Search))
	b.WriteString("|s=")
	b.WriteString(string(f.SortBy))
	if f.Descending {
		b.WriteString(":desc")
	}
	b.WriteString("|p=")
	b.WriteString(strconv.Itoa(f.Page))
	b.WriteString("|l=")
	b.WriteString(strconv.Itoa(f.Limit))
	return b.String()
}
