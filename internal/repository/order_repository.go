package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoOrderRepository struct {
	orders  *mongo.Collection
	history *mongo.Collection
}

// NewOrderRepository returns the order store. It serves both orders and their
// status history.
func NewOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{
		orders:  db.Collection("orders"),
		history: db.Collection("order_status_history"),
	}
}

func (m *MongoOrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	_, err := m.orders.InsertOne(ctx, order)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (m *MongoOrderRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return m.findOne(ctx, bson.M{"_id": orderID})
}

func (m *MongoOrderRepository) GetOrderByCheckout(ctx context.Context, checkoutID string) (*domain.Order, error) {
	return m.findOne(ctx, bson.M{"checkout_id": checkoutID})
}

func (m *MongoOrderRepository) findOne(ctx context.Context, filter bson.M) (*domain.Order, error) {
	var order domain.Order
	err := m.orders.FindOne(ctx, filter).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (m *MongoOrderRepository) ListOrders(ctx context.Context, f domain.OrderFilter) ([]*domain.Order, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	if f.StoreID != "" {
		filter["store_id"] = f.StoreID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		created := bson.M{}
		if !f.From.IsZero() {
			created["$gte"] = f.From
		}
		if !f.To.IsZero() {
			created["$lte"] = f.To
		}
		filter["created_at"] = created
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := m.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]*domain.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

// orderStateFields is the part of an order a status change or payment update
// owns. Driver, internal notes and rating have their own writers.
func orderStateFields(order *domain.Order) bson.M {
	set := bson.M{
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
		"refund_amount":  order.RefundAmount,
		"updated_at":     order.UpdatedAt,
	}
	if order.PaymentReference != "" {
		set["payment_reference"] = order.PaymentReference
	}
	if order.RefundStatus != "" {
		set["refund_status"] = order.RefundStatus
	}
	if order.EstimatedReadyTime != nil {
		set["estimated_ready_time"] = order.EstimatedReadyTime
	}
	if order.ActualReadyTime != nil {
		set["actual_ready_time"] = order.ActualReadyTime
	}
	if order.PickedUpAt != nil {
		set["picked_up_at"] = order.PickedUpAt
	}
	if order.CancelledAt != nil {
		set["cancelled_at"] = order.CancelledAt
		set["cancelled_by"] = order.CancelledBy
		set["cancellation_reason"] = order.CancellationReason
	}
	return set
}

func (m *MongoOrderRepository) UpdateOrderState(ctx context.Context, order *domain.Order, expected domain.OrderStatus) error {
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now()
	}
	filter := bson.M{"_id": order.ID, "status": expected}
	update := bson.M{"$set": orderStateFields(order)}

	result, err := m.orders.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrStatusConflict
	}
	return nil
}

// SetRating stores the rating once, and only on a completed order.
func (m *MongoOrderRepository) SetRating(ctx context.Context, orderID string, rating domain.Rating) error {
	filter := bson.M{
		"_id":    orderID,
		"status": domain.OrderStatusCompleted,
		"rating": bson.M{"$exists": false},
	}
	update := bson.M{"$set": bson.M{"rating": rating, "updated_at": time.Now()}}

	result, err := m.orders.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to rate order: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (m *MongoOrderRepository) AddInternalNote(ctx context.Context, orderID string, note domain.InternalNote) error {
	update := bson.M{
		"$push": bson.M{"internal_notes": note},
		"$set":  bson.M{"updated_at": time.Now()},
	}
	result, err := m.orders.UpdateOne(ctx, bson.M{"_id": orderID}, update)
	if err != nil {
		return fmt.Errorf("failed to add internal note: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (m *MongoOrderRepository) AssignDriver(ctx context.Context, orderID, driverID string, allowed []domain.OrderStatus) error {
	filter := bson.M{"_id": orderID, "status": bson.M{"$in": allowed}}
	update := bson.M{"$set": bson.M{"driver_id": driverID, "updated_at": time.Now()}}

	result, err := m.orders.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to assign driver: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (m *MongoOrderRepository) AppendHistory(ctx context.Context, entry *domain.OrderStatusHistory) error {
	if _, err := m.history.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to append order history: %w", err)
	}
	return nil
}

func (m *MongoOrderRepository) ListHistory(ctx context.Context, orderID string) ([]domain.OrderStatusHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.history.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list order history: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]domain.OrderStatusHistory, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode order history: %w", err)
	}
	return entries, nil
}

func (m *MongoOrderRepository) CreateIndexes(ctx context.Context) error {
	orderIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "checkout_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "order_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "store_id", Value: 1}, {Key: "status", Value: 1}}},
	}
	if _, err := m.orders.Indexes().CreateMany(ctx, orderIndexes); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}

	historyIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
	}
	if _, err := m.history.Indexes().CreateOne(ctx, historyIndex); err != nil {
		return fmt.Errorf("failed to create order history index: %w", err)
	}
	return nil
}
