// Package databasetest provides in-memory stores with the same observable
// behavior as the MongoDB stores, for handler and client tests.
package databasetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"picfeed/database"
	"picfeed/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Install swaps the package-level stores for fresh in-memory ones and
// restores the previous stores when the test ends.
func Install(t interface{ Cleanup(func()) }) (*Users, *Posts, *Subscriptions) {
	prevUsers, prevPosts, prevSubs := database.Users, database.Posts, database.PushSubs

	users, posts, subs := NewUsers(), NewPosts(), NewSubscriptions()
	database.Users, database.Posts, database.PushSubs = users, posts, subs

	t.Cleanup(func() {
		database.Users, database.Posts, database.PushSubs = prevUsers, prevPosts, prevSubs
	})
	return users, posts, subs
}

type Users struct {
	mu    sync.Mutex
	users []models.User
}

func NewUsers() *Users { return &Users{} }

func (s *Users) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return database.ErrDuplicate
		}
	}
	s.users = append(s.users, *user)
	return nil
}

func (s *Users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.ID == id })
}

func (s *Users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == email })
}

func (s *Users) FindByEmailOrUsername(_ context.Context, email, username string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == email || u.Username == username })
}

func (s *Users) All(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.User, len(s.users))
	for i, u := range s.users {
		u.Password = ""
		out[i] = u
	}
	return out, nil
}

func (s *Users) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *Users) find(match func(models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, database.ErrNotFound
}

type Posts struct {
	mu    sync.Mutex
	posts []models.Post
}

func NewPosts() *Posts { return &Posts{} }

func (s *Posts) Create(_ context.Context, post *models.Post) error {
	if err := post.Validate(); err != nil {
		return err
	}
	post.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, clonePost(*post))
	return nil
}

func (s *Posts) List(_ context.Context) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = clonePost(p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Posts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.index(id); i >= 0 {
		p := clonePost(s.posts[i])
		return &p, nil
	}
	return nil, database.ErrNotFound
}

func (s *Posts) Latest(ctx context.Context) (*models.Post, error) {
	posts, _ := s.List(ctx)
	if len(posts) == 0 {
		return nil, database.ErrNotFound
	}
	return &posts[0], nil
}

func (s *Posts) AddLike(_ context.Context, postID primitive.ObjectID, like models.Like) (*models.Post, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(postID)
	if i < 0 {
		return nil, false, database.ErrNotFound
	}
	p := &s.posts[i]
	if p.LikedBy(like.UserID) {
		out := clonePost(*p)
		return &out, false, nil
	}
	p.Likes = append(p.Likes, like)
	p.UpdatedAt = time.Now().UTC()
	out := clonePost(*p)
	return &out, true, nil
}

func (s *Posts) AddComment(_ context.Context, postID primitive.ObjectID, comment models.Comment) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(postID)
	if i < 0 {
		return nil, database.ErrNotFound
	}
	p := &s.posts[i]
	p.Comments = append(p.Comments, comment)
	p.UpdatedAt = time.Now().UTC()
	out := clonePost(*p)
	return &out, nil
}

func (s *Posts) DeleteOrphaned(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.posts[:0]
	var deleted int64
	for _, p := range s.posts {
		if p.Username == "" {
			deleted++
			continue
		}
		kept = append(kept, p)
	}
	s.posts = kept
	return deleted, nil
}

// Put stores post as-is, bypassing validation. Used to seed broken data.
func (s *Posts) Put(post models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, clonePost(post))
}

func (s *Posts) index(id primitive.ObjectID) int {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return i
		}
	}
	return -1
}

func clonePost(p models.Post) models.Post {
	p.Likes = append([]models.Like{}, p.Likes...)
	p.Comments = append([]models.Comment{}, p.Comments...)
	return p
}

type Subscriptions struct {
	mu   sync.Mutex
	subs map[primitive.ObjectID]models.PushSubscription
}

func NewSubscriptions() *Subscriptions {
	return &Subscriptions{subs: make(map[primitive.ObjectID]models.PushSubscription)}
}

func (s *Subscriptions) Upsert(_ context.Context, sub *models.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.UserID] = *sub
	return nil
}

func (s *Subscriptions) FindByUser(_ context.Context, userID primitive.ObjectID) (*models.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &sub, nil
}

func (s *Subscriptions) DeleteByUser(_ context.Context, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, userID)
	return nil
}
