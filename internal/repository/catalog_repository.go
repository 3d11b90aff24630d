package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_food/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// mongoCatalogRepository reads catalog collections owned by the catalog service.
type mongoCatalogRepository struct {
	products *mongo.Collection
	addOns   *mongo.Collection
	stores   *mongo.Collection
	coupons  *mongo.Collection
}

func NewCatalogRepository(db *mongo.Database) CatalogRepository {
	return &mongoCatalogRepository{
		products: db.Collection("products"),
		addOns:   db.Collection("add_ons"),
		stores:   db.Collection("stores"),
		coupons:  db.Collection("coupons"),
	}
}

func (m *mongoCatalogRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	if err := findByID(ctx, m.products, productID, &p, ErrProductNotFound); err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *mongoCatalogRepository) GetAddOn(ctx context.Context, addOnID string) (*domain.AddOn, error) {
	var a domain.AddOn
	if err := findByID(ctx, m.addOns, addOnID, &a, ErrAddOnNotFound); err != nil {
		return nil, err
	}
	return &a, nil
}

func (m *mongoCatalogRepository) GetStore(ctx context.Context, storeID string) (*domain.Store, error) {
	var s domain.Store
	if err := findByID(ctx, m.stores, storeID, &s, ErrStoreNotFound); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *mongoCatalogRepository) GetCoupon(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	if err := findByID(ctx, m.coupons, code, &c, ErrCouponNotFound); err != nil {
		return nil, err
	}
	return &c, nil
}

func findByID(ctx context.Context, coll *mongo.Collection, id string, out any, notFound error) error {
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return notFound
		}
		return fmt.Errorf("failed to read %s: %w", coll.Name(), err)
	}
	return nil
}
