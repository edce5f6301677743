package database

import (
	"context"
	"errors"
	"fmt"

	"picfeed/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SubscriptionStore interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) error
	FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.PushSubscription, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

type mongoSubscriptionStore struct {
	coll *mongo.Collection
}

func NewSubscriptionStore(coll *mongo.Collection) SubscriptionStore {
	return &mongoSubscriptionStore{coll: coll}
}

func (s *mongoSubscriptionStore) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	_, err := s.coll.UpdateOne(
		ctx,
		bson.M{"userId": sub.UserID},
		bson.M{"$set": bson.M{"userId": sub.UserID, "sub": sub.Sub}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *mongoSubscriptionStore) FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.PushSubscription, error) {
	var sub models.PushSubscription
	err := s.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&sub)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return &sub, nil
}

func (s *mongoSubscriptionStore) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"userId": userID}); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}
