package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/food-ordering-system/internal/apperr"
	"github.com/mmeshcher/food-ordering-system/internal/middleware"
	"github.com/mmeshcher/food-ordering-system/internal/model"
)

type stubService struct {
	registerUser *model.User
	registerErr  error
	registerRole model.Role

	authUser *model.User
	authErr  error

	menuPage   *model.MenuPage
	menuFilter model.MenuFilter

	menuItem    *model.MenuItem
	menuItemErr error
	createdItem model.MenuItem
	deleteErr   error

	order       *model.Order
	orderErr    error
	orderItems  []model.OrderItemRequest
	orderCaller model.Principal

	ordersResp []model.Order
	ordersErr  error

	statusArg model.OrderStatus
	statusErr error
}

func (s *stubService) RegisterUser(ctx context.Context, username, password string, role model.Role) (*model.User, error) {
	s.registerRole = role
	return s.registerUser, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, username, password string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) ListMenu(ctx context.Context, f model.MenuFilter) (*model.MenuPage, error) {
	s.menuFilter = f
	return s.menuPage, nil
}

func (s *stubService) GetMenuItem(ctx context.Context, id string) (*model.MenuItem, error) {
	return s.menuItem, s.menuItemErr
}

func (s *stubService) CreateMenuItem(ctx context.Context, p model.Principal, item model.MenuItem) (*model.MenuItem, error) {
	s.createdItem = item
	if !p.Role.CanAdministerMenu() {
		return nil, apperr.Forbiddenf("access denied")
	}
	item.ID = "new-id"
	return &item, nil
}

func (s *stubService) UpdateMenuItem(ctx context.Context, p model.Principal, id string, patch model.MenuItemPatch) (*model.MenuItem, error) {
	item := *s.menuItem
	patch.Apply(&item)
	return &item, nil
}

func (s *stubService) DeleteMenuItem(ctx context.Context, p model.Principal, id string) error {
	return s.deleteErr
}

func (s *stubService) CreateOrder(ctx context.Context, p model.Principal, items []model.OrderItemRequest) (*model.Order, error) {
	s.orderCaller = p
	s.orderItems = items
	return s.order, s.orderErr
}

func (s *stubService) ListOrders(ctx context.Context, p model.Principal) ([]model.Order, error) {
	return s.ordersResp, s.ordersErr
}

func (s *stubService) UpdateOrderStatus(ctx context.Context, p model.Principal, id string, status model.OrderStatus) (*model.Order, error) {
	s.statusArg = status
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &model.Order{ID: id, Status: status}, nil
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth, []string{"*"})
}

func bearer(t *testing.T, h *Handler, role model.Role) string {
	t.Helper()

	token, err := h.authMiddleware.IssueToken(&model.User{ID: "u-1", Username: "alice", Role: role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func do(t *testing.T, h *Handler, method, target string, body any, auth string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) messageResponse {
	t.Helper()

	var msg messageResponse
	if err := json.NewDecoder(rec.Body).Decode(&msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerUser: &model.User{ID: "u-1", Username: "alice", Role: model.RoleUser},
	}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/api/register", registerRequest{Username: "alice", Password: "secret1"}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	var res model.AuthResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Token == "" || res.User.Username != "alice" || res.User.Role != model.RoleUser {
		t.Fatalf("unexpected auth result: %+v", res)
	}
	if svc.registerRole != "" {
		t.Fatalf("role = %q, want empty to use the default", svc.registerRole)
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{registerErr: apperr.Conflictf("user already exists")}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/api/register", registerRequest{Username: "alice", Password: "secret1"}, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if msg := decodeMessage(t, rec); msg.Message != "user already exists" {
		t.Fatalf("message = %q", msg.Message)
	}
}

func TestLogin_UnauthorizedOnBadCredentials(t *testing.T) {
	svc := &stubService{authErr: apperr.Unauthenticatedf("invalid credentials")}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/api/login", registerRequest{Username: "alice", Password: "wrong"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLogin_InternalErrorCarriesDetails(t *testing.T) {
	svc := &stubService{authErr: context.DeadlineExceeded}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPost, "/api/login", registerRequest{Username: "alice", Password: "pass12"}, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if msg := decodeMessage(t, rec); msg.Error == "" {
		t.Fatalf("500 response must carry error details")
	}
}

func TestRegister_BadBody(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestParseMenuFilter(t *testing.T) {
	q := url.Values{}
	q.Set("category", "Desserts")
	q.Set("availability", "true")
	q.Set("minPrice", "10")
	q.Set("maxPrice", "99.5")
	q.Set("search", " cake ")
	q.Set("sortBy", "price")
	q.Set("order", "desc")
	q.Set("page", "2")
	q.Set("limit", "5")

	f, err := ParseMenuFilter(q)
	if err != nil {
		t.Fatalf("ParseMenuFilter error: %v", err)
	}
	if f.Category != model.CategoryDesserts || f.Search != "cake" || f.SortBy != model.SortByPrice || !f.Descending {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if f.Availability == nil || !*f.Availability {
		t.Fatalf("availability not parsed: %+v", f)
	}
	if f.MinPrice == nil || *f.MinPrice != 10 || f.MaxPrice == nil || *f.MaxPrice != 99.5 {
		t.Fatalf("price range not parsed: %+v", f)
	}
	if f.Page != 2 || f.Limit != 5 {
		t.Fatalf("paging not parsed: %+v", f)
	}
}

func TestParseMenuFilter_Defaults(t *testing.T) {
	f, err := ParseMenuFilter(url.Values{"category": {"all"}, "sortBy": {"calories"}, "page": {"x"}})
	if err != nil {
		t.Fatalf("ParseMenuFilter error: %v", err)
	}
	if f.Category != "" || f.SortBy != model.SortByName || f.Descending || f.Page != 0 {
		t.Fatalf("unexpected filter: %+v", f)
	}
}

func TestParseMenuFilter_Invalid(t *testing.T) {
	tests := []url.Values{
		{"category": {"Snacks"}},
		{"availability": {"maybe"}},
		{"minPrice": {"-1"}},
		{"maxPrice": {"abc"}},
	}

	for _, q := range tests {
		if _, err := ParseMenuFilter(q); err == nil {
			t.Fatalf("ParseMenuFilter(%v) expected error", q)
		}
	}
}

func TestListMenu_IsPublic(t *testing.T) {
	svc := &stubService{
		menuPage: &model.MenuPage{
			Items:      []model.MenuItem{{ID: "1", Name: "Dal", Category: model.CategoryMainCourse, Price: 90, Availability: true}},
			Pagination: model.NewPagination(1, 10, 1),
		},
	}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodGet, "/api/menu?category=Main%20Course&page=1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.menuFilter.Category != model.CategoryMainCourse {
		t.Fatalf("category not forwarded: %+v", svc.menuFilter)
	}

	var page model.MenuPage
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page.Items) != 1 || page.Pagination.TotalPages != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestGetMenuItem_RequiresAuth(t *testing.T) {
	svc := &stubService{menuItem: &model.MenuItem{ID: "1", Name: "Dal"}}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodGet, "/api/menu/1", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}

	rec = do(t, h, http.MethodGet, "/api/menu/1", nil, bearer(t, h, model.RoleUser))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestGetMenuItem_NotFound(t *testing.T) {
	svc := &stubService{menuItemErr: apperr.NotFoundf("menu item not found")}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodGet, "/api/menu/missing", nil, bearer(t, h, model.RoleUser))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCreateMenuItem(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)
	body := map[string]any{"name": "Kheer", "category": "Desserts", "price": 70}

	rec := do(t, h, http.MethodPost, "/api/menu", body, bearer(t, h, model.RoleManager))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("manager: status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = do(t, h, http.MethodPost, "/api/menu", body, bearer(t, h, model.RoleAdmin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin: status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if !svc.createdItem.Availability {
		t.Fatalf("availability must default to true")
	}
}

func TestUpdateMenuItem(t *testing.T) {
	svc := &stubService{menuItem: &model.MenuItem{ID: "1", Name: "Dal", Price: 90, Availability: true}}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPut, "/api/menu/1", map[string]any{"availability": false}, bearer(t, h, model.RoleManager))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var item model.MenuItem
	if err := json.NewDecoder(rec.Body).Decode(&item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Availability || item.Price != 90 {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestDeleteMenuItem(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := do(t, h, http.MethodDelete, "/api/menu/abc", nil, bearer(t, h, model.RoleAdmin))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp deleteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.ID != "abc" {
		t.Fatalf("data.id = %q, want abc", resp.Data.ID)
	}
}

func TestCreateOrder(t *testing.T) {
	svc := &stubService{
		order: &model.Order{ID: "o-1", TotalAmount: 300, Status: model.OrderStatusPending},
	}
	h := newTestHandler(t, svc)

	body := createOrderRequest{Items: []model.OrderItemRequest{{MenuItem: "m-1", Quantity: 2}}}
	rec := do(t, h, http.MethodPost, "/api/orders", body, bearer(t, h, model.RoleUser))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if svc.orderCaller.UserID != "u-1" {
		t.Fatalf("order must be owned by the token subject, got %q", svc.orderCaller.UserID)
	}
	if len(svc.orderItems) != 1 || svc.orderItems[0].Quantity != 2 {
		t.Fatalf("unexpected items: %+v", svc.orderItems)
	}
}

func TestCreateOrder_IgnoresClientPricing(t *testing.T) {
	svc := &stubService{
		order: &model.Order{ID: "o-1", UserID: "u-1", TotalAmount: 300, Status: model.OrderStatusPending},
	}
	h := newTestHandler(t, svc)

	body := map[string]any{
		"items": []map[string]any{
			{"menuItem": "m-1", "quantity": 2, "price": 1},
		},
		"totalAmount": 1,
		"userId":      "someone-else",
		"status":      "Completed",
	}
	rec := do(t, h, http.MethodPost, "/api/orders", body, bearer(t, h, model.RoleUser))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}

	want := []model.OrderItemRequest{{MenuItem: "m-1", Quantity: 2}}
	if len(svc.orderItems) != len(want) || svc.orderItems[0] != want[0] {
		t.Fatalf("service received %+v, want %+v", svc.orderItems, want)
	}
	if svc.orderCaller.UserID != "u-1" {
		t.Fatalf("order caller = %q, want token subject", svc.orderCaller.UserID)
	}

	var got model.Order
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.TotalAmount != 300 || got.Status != model.OrderStatusPending {
		t.Fatalf("response = %+v, want server-computed total and Pending", got)
	}
}

func TestCreateOrder_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: apperr.Validationf("order must contain at least one item"), want: http.StatusBadRequest},
		{name: "not found", err: apperr.NotFoundf("menu item x not found"), want: http.StatusNotFound},
		{name: "conflict", err: apperr.Conflictf("menu item Dal is not available"), want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{orderErr: tt.err})

			rec := do(t, h, http.MethodPost, "/api/orders", createOrderRequest{}, bearer(t, h, model.RoleUser))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestListOrders_EmptyArray(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := do(t, h, http.MethodGet, "/api/orders", nil, bearer(t, h, model.RoleUser))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := bytes.TrimSpace(rec.Body.Bytes()); string(got) != "[]" {
		t.Fatalf("body = %s, want []", got)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	rec := do(t, h, http.MethodPut, "/api/orders/o-1/status", statusRequest{Status: model.OrderStatusCompleted}, bearer(t, h, model.RoleManager))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var o model.Order
	if err := json.NewDecoder(rec.Body).Decode(&o); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if o.ID != "o-1" || o.Status != model.OrderStatusCompleted {
		t.Fatalf("unexpected order: %+v", o)
	}
}

func TestUpdateOrderStatus_Forbidden(t *testing.T) {
	h := newTestHandler(t, &stubService{statusErr: apperr.Forbiddenf("access denied")})

	rec := do(t, h, http.MethodPut, "/api/orders/o-1/status", statusRequest{Status: model.OrderStatusCompleted}, bearer(t, h, model.RoleUser))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec := do(t, h, http.MethodGet, "/api/unknown", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
