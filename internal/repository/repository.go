// Package repository содержит реализации хранилища пользователей, меню и заказов.
package repository

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrMenuItemNotFound возвращается, если позиция меню не найдена.
	ErrMenuItemNotFound = errors.New("menu item not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern строит шаблон ILIKE для поиска подстроки.
func likePattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

// regexPattern строит регулярное выражение для поиска подстроки без учёта регистра.
func regexPattern(search string) string {
	return regexp.QuoteMeta(search)
}
