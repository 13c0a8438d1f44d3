package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/food-ordering-system/internal/model"
	"github.com/mmeshcher/food-ordering-system/internal/pricing"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 1 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		u.ID, u.Username, u.PasswordHash, string(u.Role),
	).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Username)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByUsername возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = $1`,
		username,
	)

	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)

	return &u, nil
}

const menuColumns = `id, name, category, price_cents, availability, description, created_at, updated_at`

func scanMenuItem(row pgx.Row) (*model.MenuItem, error) {
	var (
		item       model.MenuItem
		category   string
		priceCents int64
	)
	if err := row.Scan(&item.ID, &item.Name, &category, &priceCents, &item.Availability,
		&item.Description, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Category = model.Category(category)
	item.Price = pricing.FromCents(priceCents)
	return &item, nil
}

// menuWhere строит условие WHERE и аргументы для фильтра меню.
func menuWhere(f model.MenuFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.Availability != nil {
		add("availability = $%d", *f.Availability)
	}
	if f.MinPrice != nil {
		add("price_cents >= $%d", pricing.ToCents(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		add("price_cents <= $%d", pricing.ToCents(*f.MaxPrice))
	}
	if f.Search != "" {
		add("name ILIKE $%d", likePattern(f.Search))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListMenuItems возвращает страницу меню и общее число позиций, подходящих под фильтр.
func (r *PostgresRepository) ListMenuItems(ctx context.Context, f model.MenuFilter) ([]model.MenuItem, int64, error) {
	where, args := menuWhere(f)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM menu_items`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count menu items: %w", err)
	}

	sortColumn := "name"
	if f.SortBy == model.SortByPrice {
		sortColumn = "price_cents"
	}
	direction := "ASC"
	if f.Descending {
		direction = "DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM menu_items%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		menuColumns, where, sortColumn, direction, len(args)+1, len(args)+2)

	rows, err := r.pool.Query(ctx, query, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("select menu items: %w", err)
	}
	defer rows.Close()

	items := make([]model.MenuItem, 0, f.Limit)
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return items, total, nil
}

// GetMenuItem возвращает позицию меню по идентификатору.
func (r *PostgresRepository) GetMenuItem(ctx context.Context, id string) (*model.MenuItem, error) {
	item, err := scanMenuItem(r.pool.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	return item, nil
}

// CreateMenuItem сохраняет новую позицию меню.
func (r *PostgresRepository) CreateMenuItem(ctx context.Context, item *model.MenuItem) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO menu_items (id, name, category, price_cents, availability, description)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		item.ID, item.Name, string(item.Category), pricing.ToCents(item.Price), item.Availability, item.Description,
	).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert menu item: %w", err)
	}
	return nil
}

// UpdateMenuItem перезаписывает изменяемые поля позиции меню.
func (r *PostgresRepository) UpdateMenuItem(ctx context.Context, item *model.MenuItem) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE menu_items
		 SET name = $2, category = $3, price_cents = $4, availability = $5, description = $6, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		item.ID, item.Name, string(item.Category), pricing.ToCents(item.Price), item.Availability, item.Description,
	).Scan(&item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMenuItemNotFound
		}
		return fmt.Errorf("update menu item: %w", err)
	}
	return nil
}

// DeleteMenuItem удаляет позицию меню.
func (r *PostgresRepository) DeleteMenuItem(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMenuItemNotFound
	}
	return nil
}

// CreateOrder сохраняет заказ вместе со строками в одной транзакции.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (id, user_id, total_cents, status) VALUES ($1, $2, $3, $4)
			 RETURNING created_at, updated_at`,
			o.ID, o.UserID, pricing.ToCents(o.TotalAmount), string(o.Status),
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, it := range o.Items {
			batch.Queue(
				`INSERT INTO order_items (order_id, position, menu_item_id, quantity) VALUES ($1, $2, $3, $4)`,
				o.ID, i, it.MenuItem.ID, it.Quantity,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// ListOrders возвращает все заказы вместе с логинами владельцев.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.user_id, u.username, o.total_cents, o.status, o.created_at, o.updated_at
		 FROM orders o
		 LEFT JOIN users u ON u.id = o.user_id
		 ORDER BY o.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	orders, err := scanOrders(rows, true)
	if err != nil {
		return nil, err
	}
	return r.attachItems(ctx, orders)
}

// ListOrdersByUser возвращает заказы пользователя без данных о владельце.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, NULL::text, total_cents, status, created_at, updated_at
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	orders, err := scanOrders(rows, false)
	if err != nil {
		return nil, err
	}
	return r.attachItems(ctx, orders)
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.user_id, u.username, o.total_cents, o.status, o.created_at, o.updated_at
		 FROM orders o
		 LEFT JOIN users u ON u.id = o.user_id
		 WHERE o.id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select order: %w", err)
	}
	orders, err := scanOrders(rows, true)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	orders, err = r.attachItems(ctx, orders)
	if err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// UpdateOrderStatus перезаписывает статус заказа и возвращает сохранённое состояние.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrOrderNotFound
	}
	return r.GetOrder(ctx, id)
}

func scanOrders(rows pgx.Rows, withOwner bool) ([]model.Order, error) {
	defer rows.Close()

	orders := make([]model.Order, 0)
	for rows.Next() {
		var (
			o          model.Order
			username   *string
			totalCents int64
			status     string
		)
		if err := rows.Scan(&o.ID, &o.UserID, &username, &totalCents, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.TotalAmount = pricing.FromCents(totalCents)
		o.Status = model.OrderStatus(status)
		if withOwner && username != nil {
			o.User = &model.OrderOwner{ID: o.UserID, Username: *username}
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}

// attachItems подставляет в заказы строки с текущими названиями и ценами позиций меню.
func (r *PostgresRepository) attachItems(ctx context.Context, orders []model.Order) ([]model.Order, error) {
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		index[o.ID] = i
	}

	rows, err := r.pool.Query(ctx,
		`SELECT oi.order_id, oi.menu_item_id, oi.quantity, mi.name, mi.price_cents
		 FROM order_items oi
		 LEFT JOIN menu_items mi ON mi.id = oi.menu_item_id
		 WHERE oi.order_id = ANY($1)
		 ORDER BY oi.order_id, oi.position`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID    string
			it         model.OrderItem
			name       *string
			priceCents *int64
		)
		if err := rows.Scan(&orderID, &it.MenuItem.ID, &it.Quantity, &name, &priceCents); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if name != nil {
			it.MenuItem.Name = *name
		}
		if priceCents != nil {
			it.MenuItem.Price = pricing.FromCents(*priceCents)
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return orders, nil
}
