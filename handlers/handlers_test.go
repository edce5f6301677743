package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"picfeed/database/databasetest"
	"picfeed/middleware"
	"picfeed/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	t      *testing.T
	router *gin.Engine
	users  *databasetest.Users
	posts  *databasetest.Posts
	subs   *databasetest.Subscriptions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users, posts, subs := databasetest.Install(t)
	middleware.SetJWTSecret("test-secret")

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	SetImageStore(store)
	SetWebSocketManager(nil)
	SetVAPIDKeys("", "", "")
	t.Cleanup(func() {
		SetImageStore(nil)
		SetVAPIDKeys("", "", "")
	})

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/signup", Signup)
	api.POST("/auth/login", Login)
	api.GET("/push/vapid-public-key", GetVapidPublicKey)

	authed := api.Group("", middleware.JWTAuthMiddleware())
	authed.GET("/auth/me", Me)
	authed.GET("/posts", GetPosts)
	authed.POST("/posts", CreatePost)
	authed.POST("/posts/:id/like", LikePost)
	authed.POST("/posts/:id/comment", AddComment)
	authed.POST("/push/subscribe", SubscribePush)

	return &fixture{t: t, router: r, users: users, posts: posts, subs: subs}
}

func (f *fixture) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) json(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return f.serve(req, token)
}

type upload struct {
	filename    string
	contentType string
	content     []byte
}

func (f *fixture) multipart(path, token string, fields map[string]string, file *upload) *httptest.ResponseRecorder {
	f.t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(f.t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreatePart(map[string][]string{
			"Content-Disposition": {`form-data; name="image"; filename="` + file.filename + `"`},
			"Content-Type":        {file.contentType},
		})
		require.NoError(f.t, err)
		_, err = part.Write(file.content)
		require.NoError(f.t, err)
	}
	require.NoError(f.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return f.serve(req, token)
}

// signup registers a user and returns its token and id.
func (f *fixture) signup(username string) (token, id string) {
	f.t.Helper()

	w := f.json(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		ID    string `json:"_id"`
		Token string `json:"token"`
	}
	decode(f.t, w, &resp)
	return resp.Token, resp.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	return body.Error
}
