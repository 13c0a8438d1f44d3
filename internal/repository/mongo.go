package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mmeshcher/food-ordering-system/internal/model"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	PasswordHash []byte    `bson:"password_hash"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"created_at"`
}

type menuItemDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Category     string    `bson:"category"`
	Price        float64   `bson:"price"`
	Availability bool      `bson:"availability"`
	Description  string    `bson:"description"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d menuItemDoc) model() model.MenuItem {
	return model.MenuItem{
		ID:           d.ID,
		Name:         d.Name,
		Category:     model.Category(d.Category),
		Price:        d.Price,
		Availability: d.Availability,
		Description:  d.Description,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type orderItemDoc struct {
	MenuItem string `bson:"menu_item"`
	Quantity int    `bson:"quantity"`
}

type orderDoc struct {
	ID          string         `bson:"_id"`
	UserID      string         `bson:"user_id"`
	Items       []orderItemDoc `bson:"items"`
	TotalAmount float64        `bson:"total_amount"`
	Status      string         `bson:"status"`
	CreatedAt   time.Time      `bson:"created_at"`
	UpdatedAt   time.Time      `bson:"updated_at"`
}

// ConnectMongoDB подключается к MongoDB и проверяет соединение.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return client.Database(database), nil
}

// MongoRepository хранит пользователей, меню и заказы в коллекциях MongoDB.
type MongoRepository struct {
	db        *mongo.Database
	users     *mongo.Collection
	menuItems *mongo.Collection
	orders    *mongo.Collection
}

// NewMongoRepository создаёт репозиторий поверх базы данных и создаёт индексы.
func NewMongoRepository(ctx context.Context, db *mongo.Database) (*MongoRepository, error) {
	r := &MongoRepository{
		db:        db,
		users:     db.Collection("users"),
		menuItems: db.Collection("menu_items"),
		orders:    db.Collection("orders"),
	}
	if err := r.createIndexes(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *MongoRepository) createIndexes(ctx context.Context) error {
	if _, err := r.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create users index: %w", err)
	}

	if _, err := r.menuItems.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "category", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create menu index: %w", err)
	}

	if _, err := r.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	}); err != nil {
		return fmt.Errorf("create orders index: %w", err)
	}

	return nil
}

// Close отключает клиента MongoDB.
func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.db.Client().Disconnect(ctx)
}

// CreateUser создаёт нового пользователя.
func (r *MongoRepository) CreateUser(ctx context.Context, u *model.User) error {
	u.CreatedAt = time.Now().UTC()
	_, err := r.users.InsertOne(ctx, userDoc{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrUserExists, u.Username)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByUsername возвращает пользователя по логину.
func (r *MongoRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var d userDoc
	if err := r.users.FindOne(ctx, bson.M{"username": username}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &model.User{
		ID:           d.ID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		Role:         model.Role(d.Role),
		CreatedAt:    d.CreatedAt,
	}, nil
}

func menuFilterDoc(f model.MenuFilter) bson.M {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = string(f.Category)
	}
	if f.Availability != nil {
		filter["availability"] = *f.Availability
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		filter["price"] = price
	}
	if f.Search != "" {
		filter["name"] = bson.M{"$regex": regexPattern(f.Search), "$options": "i"}
	}
	return filter
}

// ListMenuItems возвращает страницу меню и общее число позиций, подходящих под фильтр.
func (r *MongoRepository) ListMenuItems(ctx context.Context, f model.MenuFilter) ([]model.MenuItem, int64, error) {
	filter := menuFilterDoc(f)

	total, err := r.menuItems.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count menu items: %w", err)
	}

	direction := 1
	if f.Descending {
		direction = -1
	}
	sortField := string(model.SortByName)
	if f.SortBy == model.SortByPrice {
		sortField = string(model.SortByPrice)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: direction}, {Key: "_id", Value: 1}}).
		SetSkip(int64(f.Offset())).
		SetLimit(int64(f.Limit))

	cur, err := r.menuItems.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find menu items: %w", err)
	}

	var docs []menuItemDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode menu items: %w", err)
	}

	items := make([]model.MenuItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.model())
	}
	return items, total, nil
}

// GetMenuItem возвращает позицию меню по идентификатору.
func (r *MongoRepository) GetMenuItem(ctx context.Context, id string) (*model.MenuItem, error) {
	var d menuItemDoc
	if err := r.menuItems.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	item := d.model()
	return &item, nil
}

// CreateMenuItem сохраняет новую позицию меню.
func (r *MongoRepository) CreateMenuItem(ctx context.Context, item *model.MenuItem) error {
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now

	_, err := r.menuItems.InsertOne(ctx, menuItemDoc{
		ID:           item.ID,
		Name:         item.Name,
		Category:     string(item.Category),
		Price:        item.Price,
		Availability: item.Availability,
		Description:  item.Description,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert menu item: %w", err)
	}
	return nil
}

// UpdateMenuItem перезаписывает изменяемые поля позиции меню.
func (r *MongoRepository) UpdateMenuItem(ctx context.Context, item *model.MenuItem) error {
	item.UpdatedAt = time.Now().UTC()

	res, err := r.menuItems.UpdateOne(ctx, bson.M{"_id": item.ID}, bson.M{
		"$set": bson.M{
			"name":         item.Name,
			"category":     string(item.Category),
			"price":        item.Price,
			"availability": item.Availability,
			"description":  item.Description,
			"updated_at":   item.UpdatedAt,
		},
	})
	if err != nil {
		return fmt.Errorf("update menu item: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrMenuItemNotFound
	}
	return nil
}

// DeleteMenuItem удаляет позицию меню.
func (r *MongoRepository) DeleteMenuItem(ctx context.Context, id string) error {
	res, err := r.menuItems.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete menu item: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrMenuItemNotFound
	}
	return nil
}

// CreateOrder сохраняет заказ одним документом.
func (r *MongoRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now

	items := make([]orderItemDoc, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDoc{MenuItem: it.MenuItem.ID, Quantity: it.Quantity})
	}

	_, err := r.orders.InsertOne(ctx, orderDoc{
		ID:          o.ID,
		UserID:      o.UserID,
		Items:       items,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// ListOrders возвращает все заказы вместе с логинами владельцев.
func (r *MongoRepository) ListOrders(ctx context.Context) ([]model.Order, error) {
	return r.findOrders(ctx, bson.M{}, true)
}

// ListOrdersByUser возвращает заказы пользователя без данных о владельце.
func (r *MongoRepository) ListOrdersByUser(ctx context.Context, userID string) ([]model.Order, error) {
	return r.findOrders(ctx, bson.M{"user_id": userID}, false)
}

// GetOrder возвращает заказ по идентификатору.
func (r *MongoRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	orders, err := r.findOrders(ctx, bson.M{"_id": id}, true)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}
	return &orders[0], nil
}

// UpdateOrderStatus перезаписывает статус заказа и возвращает сохранённое состояние.
func (r *MongoRepository) UpdateOrderStatus(ctx context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	res, err := r.orders.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": string(status), "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrOrderNotFound
	}
	return r.GetOrder(ctx, id)
}

func (r *MongoRepository) findOrders(ctx context.Context, filter bson.M, withOwner bool) ([]model.Order, error) {
	cur, err := r.orders.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}

	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}

	menuIDs := make([]string, 0)
	userIDs := make([]string, 0)
	for _, d := range docs {
		userIDs = append(userIDs, d.UserID)
		for _, it := range d.Items {
			menuIDs = append(menuIDs, it.MenuItem)
		}
	}

	menu, err := r.menuByID(ctx, menuIDs)
	if err != nil {
		return nil, err
	}

	var owners map[string]string
	if withOwner {
		if owners, err = r.usernamesByID(ctx, userIDs); err != nil {
			return nil, err
		}
	}

	orders := make([]model.Order, 0, len(docs))
	for _, d := range docs {
		o := model.Order{
			ID:          d.ID,
			UserID:      d.UserID,
			TotalAmount: d.TotalAmount,
			Status:      model.OrderStatus(d.Status),
			CreatedAt:   d.CreatedAt,
			UpdatedAt:   d.UpdatedAt,
			Items:       make([]model.OrderItem, 0, len(d.Items)),
		}
		if name, ok := owners[d.UserID]; ok {
			o.User = &model.OrderOwner{ID: d.UserID, Username: name}
		}
		for _, it := range d.Items {
			ref := model.OrderMenuItem{ID: it.MenuItem}
			if m, ok := menu[it.MenuItem]; ok {
				ref.Name, ref.Price = m.Name, m.Price
			}
			o.Items = append(o.Items, model.OrderItem{MenuItem: ref, Quantity: it.Quantity})
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *MongoRepository) menuByID(ctx context.Context, ids []string) (map[string]menuItemDoc, error) {
	res := make(map[string]menuItemDoc, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	cur, err := r.menuItems.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find order menu items: %w", err)
	}
	var docs []menuItemDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode order menu items: %w", err)
	}
	for _, d := range docs {
		res[d.ID] = d
	}
	return res, nil
}

func (r *MongoRepository) usernamesByID(ctx context.Context, ids []string) (map[string]string, error) {
	res := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	cur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"username": 1}))
	if err != nil {
		return nil, fmt.Errorf("find order owners: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode order owners: %w", err)
	}
	for _, d := range docs {
		res[d.ID] = d.Username
	}
	return res, nil
}
