package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"picfeed/database"
	"picfeed/middleware"
	"picfeed/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (f *fixture) createPost(token, caption string) models.Post {
	f.t.Helper()

	w := f.json(http.MethodPost, "/api/posts", token, map[string]string{"caption": caption})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())

	var post models.Post
	decode(f.t, w, &post)
	return post
}

func TestCreatePostJSON(t *testing.T) {
	f := newFixture(t)
	token, id := f.signup("alice")

	w := f.json(http.MethodPost, "/api/posts", token, map[string]string{"caption": "  first light  "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Contains(t, w.Body.String(), `"likes":[]`)
	assert.Contains(t, w.Body.String(), `"comments":[]`)

	var post models.Post
	decode(t, w, &post)
	assert.Equal(t, "first light", post.Caption)
	assert.Equal(t, "alice", post.Username)
	assert.Equal(t, id, post.UserID.Hex())
}

func TestCreatePostImageURLOnly(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup("alice")

	w := f.json(http.MethodPost, "/api/posts", token, map[string]string{"imageUrl": "https://cdn.example.com/a.jpg"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var post models.Post
	decode(t, w, &post)
	assert.Empty(t, post.Caption)
	assert.Equal(t, "https://cdn.example.com/a.jpg", post.ImageURL)
}

func TestCreatePostRejectsEmptyPost(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup("alice")

	w := f.json(http.MethodPost, "/api/posts", token, map[string]string{"caption": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Post must include caption or image", errorMessage(t, w))

	w = f.multipart("/api/posts", token, map[string]string{"caption": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Post must include caption or image", errorMessage(t, w))

	posts, _ := f.posts.List(context.Background())
	assert.Empty(t, posts)
}

func TestCreatePostCaptionTooLong(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup("alice")

	w := f.json(http.MethodPost, "/api/posts", token, map[string]string{"caption": strings.Repeat("x", 2201)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrCaptionTooLong.Error(), errorMessage(t, w))
}

func TestCreatePostWithUpload(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup("alice")

	w := f.multipart("/api/posts", token, map[string]string{"caption": "cat"}, &upload{
		filename:    "cat.png",
		contentType: "image/png",
		content:     []byte("\x89PNG fake"),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var post models.Post
	decode(t, w, &post)
	assert.Equal(t, "cat", post.Caption)
	assert.True(t, strings.HasPrefix(post.ImageURL, "http://example.com/uploads/"), post.ImageURL)
	assert.True(t, strings.HasSuffix(post.ImageURL, ".png"), post.ImageURL)
}

func TestCreatePostUploadReplacesImageURL(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup("alice")

	w := f.multipart("/api/posts", token, map[string]string{"imageUrl": "https://elsewhere/x.jpg"}, &upload{
		filename:    "dog.jpg",
		contentType: "image/jpeg",
		content:     []byte("jpeg"),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var post models.Post
	decode(t, w, &post)
	assert.Contains(t, post.ImageURL, "/uploads/")
}

func TestCreatePostRejectsNonImage(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup("alice")

	w := f.multipart("/api/posts", token, map[string]string{"caption": "notes"}, &upload{
		filename:    "notes.txt",
		contentType: "text/plain",
		content:     []byte("hello"),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorMessage(t, w), "only image files are allowed")
}

func TestCreatePostRequiresAuth(t *testing.T) {
	f := newFixture(t)

	w := f.json(http.MethodPost, "/api/posts", "", map[string]string{"caption": "hi"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetPostsNewestFirst(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup("alice")

	first := f.createPost(token, "one")
	time.Sleep(2 * time.Millisecond)
	second := f.createPost(token, "two")
	time.Sleep(2 * time.Millisecond)
	third := f.createPost(token, "three")

	w := f.json(http.MethodGet, "/api/posts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var posts []models.Post
	decode(t, w, &posts)
	require.Len(t, posts, 3)
	assert.Equal(t, third.ID, posts[0].ID)
	assert.Equal(t, second.ID, posts[1].ID)
	assert.Equal(t, first.ID, posts[2].ID)
}

func TestGetPostsEmpty(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup("alice")

	w := f.json(http.MethodGet, "/api/posts", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestLikePostIsIdempotentPerUser(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.signup("alice")
	bob, bobID := f.signup("bob")
	post := f.createPost(alice, "sunset")

	path := "/api/posts/" + post.ID.Hex() + "/like"

	w := f.json(http.MethodPost, path, bob, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = f.json(http.MethodPost, path, bob, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var likes []models.Like
	decode(t, w, &likes)
	require.Len(t, likes, 1)
	assert.Equal(t, bobID, likes[0].UserID.Hex())
	assert.Equal(t, "bob", likes[0].Username)

	w = f.json(http.MethodPost, path, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &likes)
	assert.Len(t, likes, 2)
}

func TestLikePostErrors(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup("alice")

	w := f.json(http.MethodPost, "/api/posts/not-an-id/like", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid post ID", errorMessage(t, w))

	w = f.json(http.MethodPost, "/api/posts/"+primitive.NewObjectID().Hex()+"/like", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Post not found", errorMessage(t, w))
}

func TestAddCommentKeepsOrder(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.signup("alice")
	bob, _ := f.signup("bob")
	post := f.createPost(alice, "sunset")

	path := "/api/posts/" + post.ID.Hex() + "/comment"

	w := f.json(http.MethodPost, path, bob, map[string]string{"text": "  wow "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = f.json(http.MethodPost, path, alice, map[string]string{"text": "thanks"})
	require.Equal(t, http.StatusOK, w.Code)

	var comments []models.Comment
	decode(t, w, &comments)
	require.Len(t, comments, 2)
	assert.Equal(t, "wow", comments[0].Text)
	assert.Equal(t, "bob", comments[0].Username)
	assert.Equal(t, "thanks", comments[1].Text)
	assert.Equal(t, "alice", comments[1].Username)
	assert.False(t, comments[0].CreatedAt.IsZero())
}

func TestAddCommentErrors(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup("alice")
	post := f.createPost(token, "sunset")
	missing := primitive.NewObjectID().Hex()

	w := f.json(http.MethodPost, "/api/posts/"+post.ID.Hex()+"/comment", token, map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Comment text is required", errorMessage(t, w))

	// a missing post is reported before empty text
	w = f.json(http.MethodPost, "/api/posts/"+missing+"/comment", token, map[string]string{"text": ""})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.json(http.MethodPost, "/api/posts/"+missing+"/comment", token, map[string]string{"text": "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.json(http.MethodPost, "/api/posts/bad/comment", token, map[string]string{"text": "hello"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid post ID", errorMessage(t, w))
}

func TestFeedScenario(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.signup("alice")
	bob, _ := f.signup("bob")

	older := f.createPost(alice, "morning")
	time.Sleep(2 * time.Millisecond)
	newer := f.createPost(bob, "evening")

	f.json(http.MethodPost, "/api/posts/"+older.ID.Hex()+"/like", bob, nil)
	f.json(http.MethodPost, "/api/posts/"+older.ID.Hex()+"/like", bob, nil)
	f.json(http.MethodPost, "/api/posts/"+older.ID.Hex()+"/comment", bob, map[string]string{"text": "nice"})

	w := f.json(http.MethodGet, "/api/posts", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var posts []models.Post
	decode(t, w, &posts)
	require.Len(t, posts, 2)
	assert.Equal(t, newer.ID, posts[0].ID)
	assert.Empty(t, posts[0].Likes)
	assert.Equal(t, older.ID, posts[1].ID)
	assert.Len(t, posts[1].Likes, 1)
	require.Len(t, posts[1].Comments, 1)
	assert.Equal(t, "nice", posts[1].Comments[0].Text)
}

type failingFind struct {
	database.PostStore
}

func (failingFind) FindByID(context.Context, primitive.ObjectID) (*models.Post, error) {
	return nil, errors.New("store down")
}

func TestAddCommentEmptyTextReportsStoreFailure(t *testing.T) {
	f := newFixture(t)
	token, _ := f.signup("alice")
	post := f.createPost(token, "sunset")
	database.Posts = failingFind{f.posts}

	w := f.json(http.MethodPost, "/api/posts/"+post.ID.Hex()+"/comment", token, map[string]string{"text": ""})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "store down", errorMessage(t, w))
}

func TestCreatePostWithoutUsername(t *testing.T) {
	f := newFixture(t)

	u, err := models.NewUser("", "nameless@example.com", "secret123")
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), u))
	token, err := middleware.GenerateToken(u.ID.Hex())
	require.NoError(t, err)

	w := f.json(http.MethodPost, "/api/posts", token, map[string]string{"caption": "hello"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, models.ErrMissingUsername.Error(), errorMessage(t, w))

	posts, err := f.posts.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)
}
