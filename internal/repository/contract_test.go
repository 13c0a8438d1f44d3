package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/mmeshcher/food-ordering-system/internal/model"
)

// store объединяет методы, общие для обеих реализаций.
type store interface {
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

func skipWithoutContainers(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

func runStoreContract(t *testing.T, s store) {
	ctx := context.Background()

	alice := &model.User{ID: uuid.NewString(), Username: "alice", PasswordHash: []byte("h1"), Role: model.RoleUser}
	bob := &model.User{ID: uuid.NewString(), Username: "bob", PasswordHash: []byte("h2"), Role: model.RoleAdmin}

	t.Run("users", func(t *testing.T) {
		require.NoError(t, s.CreateUser(ctx, alice))
		require.NoError(t, s.CreateUser(ctx, bob))

		dup := &model.User{ID: uuid.NewString(), Username: "alice", PasswordHash: []byte("x"), Role: model.RoleUser}
		assert.ErrorIs(t, s.CreateUser(ctx, dup), ErrUserExists)

		got, err := s.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)
		assert.Equal(t, model.RoleUser, got.Role)
		assert.Equal(t, []byte("h1"), got.PasswordHash)

		_, err = s.GetUserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	soup := &model.MenuItem{ID: uuid.NewString(), Name: "Tomato Soup", Category: model.CategoryAppetizers, Price: 120, Availability: true}
	curry := &model.MenuItem{ID: uuid.NewString(), Name: "Paneer Curry", Category: model.CategoryMainCourse, Price: 250.5, Availability: true}
	lassi := &model.MenuItem{ID: uuid.NewString(), Name: "Mango Lassi", Category: model.CategoryBeverages, Price: 80, Availability: false}

	t.Run("menu", func(t *testing.T) {
		for _, it := range []*model.MenuItem{soup, curry, lassi} {
			require.NoError(t, s.CreateMenuItem(ctx, it))
		}

		items, total, err := s.ListMenuItems(ctx, model.MenuFilter{SortBy: model.SortByPrice, Page: 1, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, items, 2)
		assert.Equal(t, "Mango Lassi", items[0].Name)
		assert.Equal(t, "Tomato Soup", items[1].Name)

		items, total, err = s.ListMenuItems(ctx, model.MenuFilter{SortBy: model.SortByName, Descending: true, Page: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, items, 1)
		assert.Equal(t, "Mango Lassi", items[0].Name)

		items, total, err = s.ListMenuItems(ctx, model.MenuFilter{Search: "CURRY", Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, items, 1)
		assert.Equal(t, 250.5, items[0].Price)

		available := true
		minPrice := 100.0
		_, total, err = s.ListMenuItems(ctx, model.MenuFilter{Availability: &available, MinPrice: &minPrice, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)

		_, total, err = s.ListMenuItems(ctx, model.MenuFilter{Category: model.CategoryDesserts, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)

		curry.Price = 260
		require.NoError(t, s.UpdateMenuItem(ctx, curry))
		got, err := s.GetMenuItem(ctx, curry.ID)
		require.NoError(t, err)
		assert.Equal(t, 260.0, got.Price)

		assert.ErrorIs(t, s.UpdateMenuItem(ctx, &model.MenuItem{ID: uuid.NewString(), Name: "x", Category: model.CategoryDesserts}), ErrMenuItemNotFound)
		_, err = s.GetMenuItem(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrMenuItemNotFound)
	})

	var aliceOrder model.Order

	t.Run("orders", func(t *testing.T) {
		aliceOrder = model.Order{
			ID:     uuid.NewString(),
			UserID: alice.ID,
			Items: []model.OrderItem{
				{MenuItem: model.OrderMenuItem{ID: soup.ID}, Quantity: 2},
				{MenuItem: model.OrderMenuItem{ID: curry.ID}, Quantity: 1},
			},
			TotalAmount: 500,
			Status:      model.OrderStatusPending,
		}
		require.NoError(t, s.CreateOrder(ctx, &aliceOrder))
		assert.False(t, aliceOrder.CreatedAt.IsZero())

		bobOrder := model.Order{
			ID:          uuid.NewString(),
			UserID:      bob.ID,
			Items:       []model.OrderItem{{MenuItem: model.OrderMenuItem{ID: soup.ID}, Quantity: 1}},
			TotalAmount: 120,
			Status:      model.OrderStatusPending,
		}
		require.NoError(t, s.CreateOrder(ctx, &bobOrder))

		own, err := s.ListOrdersByUser(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, own, 1)
		assert.Nil(t, own[0].User)
		require.Len(t, own[0].Items, 2)
		assert.Equal(t, "Tomato Soup", own[0].Items[0].MenuItem.Name)
		assert.Equal(t, 120.0, own[0].Items[0].MenuItem.Price)
		assert.Equal(t, 2, own[0].Items[0].Quantity)
		assert.Equal(t, 500.0, own[0].TotalAmount)

		all, err := s.ListOrders(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		for _, o := range all {
			require.NotNil(t, o.User)
			assert.NotEmpty(t, o.User.Username)
		}
	})

	t.Run("status", func(t *testing.T) {
		updated, err := s.UpdateOrderStatus(ctx, aliceOrder.ID, model.OrderStatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusCompleted, updated.Status)
		assert.Len(t, updated.Items, 2)

		_, err = s.UpdateOrderStatus(ctx, uuid.NewString(), model.OrderStatusCompleted)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("deleted menu item keeps order history", func(t *testing.T) {
		require.NoError(t, s.DeleteMenuItem(ctx, curry.ID))
		assert.ErrorIs(t, s.DeleteMenuItem(ctx, curry.ID), ErrMenuItemNotFound)

		o, err := s.GetOrder(ctx, aliceOrder.ID)
		require.NoError(t, err)
		require.Len(t, o.Items, 2)
		assert.Equal(t, curry.ID, o.Items[1].MenuItem.ID)
		assert.Empty(t, o.Items[1].MenuItem.Name)
	})
}
