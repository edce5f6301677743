package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func author() Identity {
	return Identity{ID: primitive.NewObjectID(), Username: "alice", Email: "alice@example.com"}
}

func TestNewPostTrimsAndStartsEmpty(t *testing.T) {
	a := author()

	post, err := NewPost(a, "  sunset  ", "")
	require.NoError(t, err)

	assert.Equal(t, "sunset", post.Caption)
	assert.Equal(t, a.ID, post.UserID)
	assert.Equal(t, "alice", post.Username)
	assert.Empty(t, post.Likes)
	assert.Empty(t, post.Comments)
	assert.False(t, post.CreatedAt.IsZero())
}

func TestNewPostRequiresCaptionOrImage(t *testing.T) {
	_, err := NewPost(author(), "   ", "  ")
	assert.ErrorIs(t, err, ErrEmptyPost)

	post, err := NewPost(author(), "", "http://host/uploads/a.png")
	require.NoError(t, err)
	assert.Equal(t, "http://host/uploads/a.png", post.ImageURL)
}

func TestNewPostCaptionLimit(t *testing.T) {
	_, err := NewPost(author(), strings.Repeat("a", MaxCaptionLength), "")
	assert.NoError(t, err)

	_, err = NewPost(author(), strings.Repeat("a", MaxCaptionLength+1), "")
	assert.ErrorIs(t, err, ErrCaptionTooLong)

	// counted in characters, not bytes
	_, err = NewPost(author(), strings.Repeat("é", MaxCaptionLength), "")
	assert.NoError(t, err)
}

func TestNewPostMissingUsername(t *testing.T) {
	a := author()
	a.Username = ""

	_, err := NewPost(a, "hello", "")
	assert.ErrorIs(t, err, ErrMissingUsername)
}

func TestNormalizedListsEncodeAsEmptyArrays(t *testing.T) {
	p := Post{ID: primitive.NewObjectID(), Caption: "x"}
	p.Normalize()

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"likes":[]`)
	assert.Contains(t, string(data), `"comments":[]`)
	assert.Contains(t, string(data), `"_id":"`)
}

func TestLikedBy(t *testing.T) {
	a, b := author(), author()
	p := Post{Likes: []Like{NewLike(a)}}

	assert.True(t, p.LikedBy(a.ID))
	assert.False(t, p.LikedBy(b.ID))
}

func TestNewComment(t *testing.T) {
	a := author()

	c, err := NewComment(a, "  nice shot ")
	require.NoError(t, err)
	assert.Equal(t, "nice shot", c.Text)
	assert.Equal(t, a.ID, c.UserID)
	assert.Equal(t, "alice", c.Username)
	assert.False(t, c.ID.IsZero())

	_, err = NewComment(a, " \n\t ")
	assert.ErrorIs(t, err, ErrEmptyComment)
}
