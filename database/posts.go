package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"picfeed/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	// List returns every post, newest first.
	List(ctx context.Context) ([]models.Post, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	Latest(ctx context.Context) (*models.Post, error)
	// AddLike appends like unless like.UserID already liked the post and
	// returns the post after the update. added reports whether it changed.
	AddLike(ctx context.Context, postID primitive.ObjectID, like models.Like) (post *models.Post, added bool, err error)
	AddComment(ctx context.Context, postID primitive.ObjectID, comment models.Comment) (*models.Post, error)
	// DeleteOrphaned removes posts whose denormalized username is missing.
	DeleteOrphaned(ctx context.Context) (int64, error)
}

type mongoPostStore struct {
	coll *mongo.Collection
}

func NewPostStore(coll *mongo.Collection) PostStore {
	return &mongoPostStore{coll: coll}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

func (s *mongoPostStore) Create(ctx context.Context, post *models.Post) error {
	if err := post.Validate(); err != nil {
		return err
	}
	post.Normalize()
	if _, err := s.coll.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *mongoPostStore) List(ctx context.Context) ([]models.Post, error) {
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("find posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	for i := range posts {
		posts[i].Normalize()
	}
	return posts, nil
}

func (s *mongoPostStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	return s.findOne(ctx, bson.M{"_id": id}, options.FindOne())
}

func (s *mongoPostStore) Latest(ctx context.Context) (*models.Post, error) {
	return s.findOne(ctx, bson.M{}, options.FindOne().SetSort(newestFirst))
}

func (s *mongoPostStore) AddLike(ctx context.Context, postID primitive.ObjectID, like models.Like) (*models.Post, bool, error) {
	// The filter only matches while the user is absent from likes, so the
	// check and the push happen in one document write.
	filter := bson.M{
		"_id":          postID,
		"likes.userId": bson.M{"$ne": like.UserID},
	}
	update := bson.M{
		"$push": bson.M{"likes": like},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}

	var post models.Post
	err := s.coll.FindOneAndUpdate(ctx, filter, update, afterUpdate()).Decode(&post)
	if err == nil {
		post.Normalize()
		return &post, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("like post: %w", err)
	}

	// Either the post is gone or the user already liked it.
	existing, err := s.FindByID(ctx, postID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *mongoPostStore) AddComment(ctx context.Context, postID primitive.ObjectID, comment models.Comment) (*models.Post, error) {
	update := bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}

	var post models.Post
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": postID}, update, afterUpdate()).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("comment on post: %w", err)
	}
	post.Normalize()
	return &post, nil
}

func (s *mongoPostStore) DeleteOrphaned(ctx context.Context) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"$or": []bson.M{
		{"username": bson.M{"$exists": false}},
		{"username": nil},
		{"username": ""},
	}})
	if err != nil {
		return 0, fmt.Errorf("delete orphaned posts: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *mongoPostStore) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*models.Post, error) {
	var post models.Post
	err := s.coll.FindOne(ctx, filter, opts).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find post: %w", err)
	}
	post.Normalize()
	return &post, nil
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}
