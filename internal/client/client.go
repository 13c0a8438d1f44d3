// Package client предоставляет HTTP-клиент REST API сервиса заказа еды.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/mmeshcher/food-ordering-system/internal/apperr"
	"github.com/mmeshcher/food-ordering-system/internal/model"
)

// TokenSource отдаёт токен доступа текущей сессии. Пустая строка означает анонимный запрос.
type TokenSource interface {
	Token() string
}

// APIError возвращается, когда сервер ответил кодом вне диапазона 2xx.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}
	return e.Message
}

// Unwrap отображает HTTP-статус в класс ошибки из apperr.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return apperr.ErrValidation
	case http.StatusUnauthorized:
		return apperr.ErrUnauthenticated
	case http.StatusForbidden:
		return apperr.ErrForbidden
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConflict
	}
	return nil
}

type response struct {
	status int
	body   []byte
}

// Client инкапсулирует HTTP-взаимодействие с API сервиса.
// Серверные и сетевые ошибки размыкают автомат; ответы 4xx его не трогают.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	breaker    *gobreaker.CircuitBreaker[response]
}

// NewClient создаёт клиент для API по указанному адресу.
func NewClient(baseURL string, tokens TokenSource) *Client {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		tokens: tokens,
		breaker: gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
			Name:        "food-api",
			MaxRequests: 1,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			IsSuccessful: func(err error) bool {
				var apiErr *APIError
				if errors.As(err, &apiErr) {
					return apiErr.StatusCode < http.StatusInternalServerError
				}
				return err == nil
			},
		}),
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.breaker.Execute(func() (response, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return response{}, fmt.Errorf("do request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return response{}, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return response{}, newAPIError(resp.StatusCode, data)
		}
		return response{status: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		return err
	}

	if out == nil || len(resp.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newAPIError(status int, body []byte) *APIError {
	var msg struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &msg)
	return &APIError{StatusCode: status, Message: msg.Message}
}

type credentials struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     model.Role `json:"role,omitempty"`
}

// Register регистрирует пользователя и возвращает выданный токен.
func (c *Client) Register(ctx context.Context, username, password string, role model.Role) (*model.AuthResult, error) {
	var res model.AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/register", credentials{username, password, role}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Login выполняет вход и возвращает выданный токен.
func (c *Client) Login(ctx context.Context, username, password string) (*model.AuthResult, error) {
	var res model.AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/login", credentials{Username: username, Password: password}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListMenu запрашивает страницу меню с указанными параметрами.
func (c *Client) ListMenu(ctx context.Context, params url.Values) (*model.MenuPage, error) {
	path := "/api/menu"
	if q := params.Encode(); q != "" {
		path += "?" + q
	}

	var page model.MenuPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetMenuItem запрашивает позицию меню.
func (c *Client) GetMenuItem(ctx context.Context, id string) (*model.MenuItem, error) {
	var item model.MenuItem
	if err := c.do(ctx, http.MethodGet, "/api/menu/"+url.PathEscape(id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateOrder отправляет заказ. Цены не передаются.
func (c *Client) CreateOrder(ctx context.Context, items []model.OrderItemRequest) (*model.Order, error) {
	req := struct {
		Items []model.OrderItemRequest `json:"items"`
	}{Items: items}

	var o model.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders запрашивает заказы, доступные текущему пользователю.
func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus меняет статус заказа и возвращает подтверждённый сервером заказ.
func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	req := struct {
		Status model.OrderStatus `json:"status"`
	}{Status: status}

	var o model.Order
	if err := c.do(ctx, http.MethodPut, "/api/orders/"+url.PathEscape(id)+"/status", req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
