package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const MaxCaptionLength = 2200

var (
	ErrEmptyPost       = errors.New("Post must include caption or image")
	ErrCaptionTooLong  = errors.New("Caption cannot be more than 2200 characters")
	ErrMissingUsername = errors.New("User profile incomplete (missing username)")
	ErrEmptyComment    = errors.New("Comment text is required")
)

type Post struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Caption   string             `bson:"caption,omitempty" json:"caption,omitempty"`
	ImageURL  string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Username  string             `bson:"username" json:"username"`
	Likes     []Like             `bson:"likes" json:"likes"`
	Comments  []Comment          `bson:"comments" json:"comments"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Like is embedded in Post. Username is copied at like time.
type Like struct {
	ID       primitive.ObjectID `bson:"_id" json:"_id"`
	UserID   primitive.ObjectID `bson:"userId" json:"userId"`
	Username string             `bson:"username" json:"username"`
}

// Comment is embedded in Post and append-only.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id" json:"_id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Username  string             `bson:"username" json:"username"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// NewPost builds a post owned by author. The author's username is frozen onto
// the post; later renames do not propagate.
func NewPost(author Identity, caption, imageURL string) (*Post, error) {
	if author.Username == "" {
		return nil, ErrMissingUsername
	}

	now := time.Now().UTC()
	post := &Post{
		ID:        primitive.NewObjectID(),
		Caption:   strings.TrimSpace(caption),
		ImageURL:  strings.TrimSpace(imageURL),
		UserID:    author.ID,
		Username:  author.Username,
		Likes:     []Like{},
		Comments:  []Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}
	return post, nil
}

// Validate runs before every insert.
func (p *Post) Validate() error {
	if p.Caption == "" && p.ImageURL == "" {
		return ErrEmptyPost
	}
	if utf8.RuneCountInString(p.Caption) > MaxCaptionLength {
		return ErrCaptionTooLong
	}
	return nil
}

// Normalize replaces nil embedded lists so they encode as [] rather than null.
func (p *Post) Normalize() {
	if p.Likes == nil {
		p.Likes = []Like{}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
}

func (p *Post) LikedBy(userID primitive.ObjectID) bool {
	for _, l := range p.Likes {
		if l.UserID == userID {
			return true
		}
	}
	return false
}

func NewLike(by Identity) Like {
	return Like{ID: primitive.NewObjectID(), UserID: by.ID, Username: by.Username}
}

func NewComment(by Identity, text string) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, ErrEmptyComment
	}
	return Comment{
		ID:        primitive.NewObjectID(),
		UserID:    by.ID,
		Username:  by.Username,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}, nil
}
