package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {
	f := newFixture(t)

	w := f.json(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": " alice ",
		"email":    " Alice@Example.COM ",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.Equal(t, "alice", resp["username"])
	assert.Equal(t, "alice@example.com", resp["email"])
	assert.NotEmpty(t, resp["_id"])
	assert.NotEmpty(t, resp["token"])
	assert.NotContains(t, resp, "password")
	assert.Equal(t, 1, f.users.Count())
}

func TestSignupDuplicates(t *testing.T) {
	f := newFixture(t)
	f.signup("alice")

	w := f.json(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "someone_else",
		"email":    "ALICE@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email is already registered", errorMessage(t, w))

	w = f.json(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": "alice",
		"email":    "new@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username is already taken", errorMessage(t, w))

	assert.Equal(t, 1, f.users.Count())
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{
			name: "all missing",
			body: map[string]string{},
			want: "Username is required, Email is required, Password is required",
		},
		{
			name: "bad email",
			body: map[string]string{"username": "alice", "email": "not-an-email", "password": "secret123"},
			want: "Please provide a valid email",
		},
		{
			name: "short password",
			body: map[string]string{"username": "alice", "email": "a@example.com", "password": "123"},
			want: "Password must be at least 6 characters",
		},
		{
			name: "short username",
			body: map[string]string{"username": "al", "email": "a@example.com", "password": "secret123"},
			want: "Username must be at least 3 characters",
		},
		{
			name: "username characters",
			body: map[string]string{"username": "bad name!", "email": "a@example.com", "password": "secret123"},
			want: "Username may only contain letters, numbers and underscores",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.json(http.MethodPost, "/api/auth/signup", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, errorMessage(t, w))
		})
	}
	assert.Equal(t, 0, f.users.Count())
}

func TestSignupMalformedBody(t *testing.T) {
	f := newFixture(t)

	w := f.json(http.MethodPost, "/api/auth/signup", "", "just a string")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", errorMessage(t, w))
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	_, id := f.signup("alice")

	w := f.json(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "ALICE@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.Equal(t, id, resp["_id"])
	assert.Equal(t, "alice", resp["username"])
	assert.NotEmpty(t, resp["token"])
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	f.signup("alice")

	w := f.json(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", errorMessage(t, w))

	w = f.json(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "nobody@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", errorMessage(t, w))

	w = f.json(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "alice@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Password is required", errorMessage(t, w))
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	token, id := f.signup("alice")

	w := f.json(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.Equal(t, id, resp["_id"])
	assert.Equal(t, "alice", resp["username"])

	w = f.json(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
