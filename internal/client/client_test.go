package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/mmeshcher/food-ordering-system/internal/apperr"
	"github.com/mmeshcher/food-ordering-system/internal/model"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestCreateOrder_SendsItemsWithoutPrice(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/orders" {
			t.Errorf("path = %s, want /api/orders", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tkn" {
			t.Errorf("Authorization = %q", got)
		}

		var raw map[string][]map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(raw["items"]) != 1 || len(raw["items"][0]) != 2 {
			t.Errorf("unexpected items payload: %v", raw)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(model.Order{ID: "o-1", TotalAmount: 300, Status: model.OrderStatusPending})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, staticToken("tkn"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	o, err := c.CreateOrder(ctx, []model.OrderItemRequest{{MenuItem: "m-1", Quantity: 2}})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if o.ID != "o-1" || o.TotalAmount != 300 {
		t.Fatalf("unexpected order: %+v", o)
	}
}

func TestAPIError_MapsStatusToKind(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, apperr.ErrValidation},
		{http.StatusUnauthorized, apperr.ErrUnauthenticated},
		{http.StatusForbidden, apperr.ErrForbidden},
		{http.StatusNotFound, apperr.ErrNotFound},
		{http.StatusConflict, apperr.ErrConflict},
	}

	for _, tt := range tests {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"message":"nope"}`))
		}))

		c := NewClient(ts.URL, nil)
		_, err := c.ListOrders(context.Background())
		ts.Close()

		if !errors.Is(err, tt.want) {
			t.Fatalf("status %d: error = %v, want %v", tt.status, err, tt.want)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "nope" {
			t.Fatalf("status %d: expected APIError with message, got %v", tt.status, err)
		}
	}
}

func TestListMenu_EncodesQuery(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("category"); got != "Main Course" {
			t.Errorf("category = %q", got)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("anonymous request must not carry a token")
		}
		_ = json.NewEncoder(w).Encode(model.MenuPage{
			Items:      []model.MenuItem{{ID: "1", Name: "Dal"}},
			Pagination: model.NewPagination(1, 9, 1),
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, staticToken(""))
	page, err := c.ListMenu(context.Background(), url.Values{"category": {"Main Course"}})
	if err != nil {
		t.Fatalf("ListMenu error: %v", err)
	}
	if len(page.Items) != 1 || page.Pagination.TotalPages != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestBreaker_OpensOnServerErrorsOnly(t *testing.T) {
	var calls atomic.Int32
	status := atomic.Int32{}
	status.Store(http.StatusNotFound)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := c.GetMenuItem(ctx, "x"); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("error = %v, want not found", err)
		}
	}

	status.Store(http.StatusInternalServerError)
	for i := 0; i < 3; i++ {
		_, _ = c.GetMenuItem(ctx, "x")
	}
	before := calls.Load()

	_, err := c.GetMenuItem(ctx, "x")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("error = %v, want open breaker", err)
	}
	if calls.Load() != before {
		t.Fatalf("open breaker must not reach the server")
	}
}

func TestNewClient_AddsScheme(t *testing.T) {
	c := NewClient("localhost:8080/", nil)
	if c.baseURL != "http://localhost:8080" {
		t.Fatalf("baseURL = %q", c.baseURL)
	}
}
