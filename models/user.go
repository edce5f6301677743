package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt cost used when a user is first persisted.
const PasswordCost = bcrypt.DefaultCost

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username  string             `bson:"username" json:"username"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password,omitempty" json:"-"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Identity is the public view of a user attached to authenticated requests.
type Identity struct {
	ID       primitive.ObjectID `json:"_id"`
	Username string             `json:"username"`
	Email    string             `json:"email"`
}

// NewUser normalizes the signup fields and hashes the password. The plaintext
// password never leaves this function.
func NewUser(username, email, password string) (*User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return nil, err
	}

	return &User{
		ID:        primitive.NewObjectID(),
		Username:  strings.TrimSpace(username),
		Email:     NormalizeEmail(email),
		Password:  string(hashed),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// MatchPassword reports whether candidate matches the stored hash.
func (u *User) MatchPassword(candidate string) bool {
	if u.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate)) == nil
}

func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, Email: u.Email}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
