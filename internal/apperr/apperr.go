// Package apperr определяет классы ошибок, общие для клиента и сервера.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation: некорректные или отсутствующие входные данные.
	ErrValidation = errors.New("validation error")
	// ErrUnauthenticated: вызывающий не аутентифицирован или передал неверные учётные данные.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden: у вызывающего нет нужных прав.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound: запрошенная сущность не существует.
	ErrNotFound = errors.New("not found")
	// ErrConflict: сущность существует, но находится в неподходящем состоянии.
	ErrConflict = errors.New("conflict")
)

// Validationf оборачивает ErrValidation сообщением.
func Validationf(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// Forbiddenf оборачивает ErrForbidden сообщением.
func Forbiddenf(format string, args ...any) error {
	return wrap(ErrForbidden, format, args...)
}

// NotFoundf оборачивает ErrNotFound сообщением.
func NotFoundf(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

// Conflictf оборачивает ErrConflict сообщением.
func Conflictf(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

// Unauthenticatedf оборачивает ErrUnauthenticated сообщением.
func Unauthenticatedf(format string, args ...any) error {
	return wrap(ErrUnauthenticated, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Error связывает класс ошибки с сообщением для пользователя.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string {
	return e.kind.Error() + ": " + e.msg
}

// Unwrap возвращает класс ошибки для errors.Is.
func (e *Error) Unwrap() error {
	return e.kind
}

// Message возвращает сообщение без префикса класса.
func (e *Error) Message() string {
	return e.msg
}

// Message извлекает человекочитаемое сообщение из цепочки ошибок.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message()
	}
	return err.Error()
}
