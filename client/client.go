// Package client talks to the picfeed HTTP API and keeps the CLI's local view
// of the feed.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"picfeed/models"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type Client struct {
	baseURL string
	http    *http.Client
	session Session
}

func New(baseURL string, session Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		session: session,
	}
}

// WithSession returns a copy of c that authenticates as s.
func (c *Client) WithSession(s Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

func (c *Client) Session() Session {
	return c.session
}

type authResponse struct {
	models.Identity
	Token string `json:"token"`
}

func (c *Client) Signup(ctx context.Context, username, email, password string) (Session, error) {
	return c.authenticate(ctx, "/api/auth/signup", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body map[string]string) (Session, error) {
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return Session{}, err
	}
	return Session{Token: resp.Token, User: resp.Identity}, nil
}

// Me checks the session token against the server.
func (c *Client) Me(ctx context.Context) (models.Identity, error) {
	var identity models.Identity
	err := c.doJSON(ctx, http.MethodGet, "/api/auth/me", nil, &identity)
	return identity, err
}

func (c *Client) Posts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := c.doJSON(ctx, http.MethodGet, "/api/posts", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// CreatePost sends a multipart form. imagePath is optional; when set the file
// is uploaded as the post image.
func (c *Client) CreatePost(ctx context.Context, caption, imageURL, imagePath string) (*models.Post, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("caption", caption); err != nil {
		return nil, err
	}
	if imageURL != "" {
		if err := w.WriteField("imageUrl", imageURL); err != nil {
			return nil, err
		}
	}
	if imagePath != "" {
		if err := attachFile(w, "image", imagePath); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/posts", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var post models.Post
	if err := c.do(req, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) Like(ctx context.Context, postID string) ([]models.Like, error) {
	var likes []models.Like
	if err := c.doJSON(ctx, http.MethodPost, "/api/posts/"+postID+"/like", nil, &likes); err != nil {
		return nil, err
	}
	return likes, nil
}

func (c *Client) Comment(ctx context.Context, postID, text string) ([]models.Comment, error) {
	var comments []models.Comment
	body := map[string]string{"text": text}
	if err := c.doJSON(ctx, http.MethodPost, "/api/posts/"+postID+"/comment", body, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	part, err := w.CreatePart(imageHeader(field, filepath.Base(path)))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// imageHeader is multipart.CreateFormFile with a real content type; the server
// refuses application/octet-stream.
func imageHeader(field, filename string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	return h
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
