package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"picfeed/models"

	"github.com/gorilla/websocket"
)

// Event is one message from the server's /ws stream. Payload is decoded
// lazily since its shape depends on Type.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Watch streams feed events until ctx is cancelled or the server closes the
// connection. Each event is passed to handle in arrival order.
func (c *Client) Watch(ctx context.Context, handle func(Event)) error {
	wsURL, err := c.wsURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect to live feed: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-done:
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("live feed: %w", err)
		}
		handle(ev)
	}
}

func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported server URL %q", c.baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {c.session.Token}}.Encode()
	return u.String(), nil
}

var ErrUnknownEvent = errors.New("unknown event")

// Apply updates the feed for a post_created, post_liked or post_commented
// event and returns the post that changed.
func (f *Feed) Apply(ev Event) (*models.Post, error) {
	switch ev.Type {
	case "post_created":
		var post models.Post
		if err := json.Unmarshal(ev.Payload, &post); err != nil {
			return nil, err
		}
		f.Prepend(post)
		return f.find(post.ID.Hex()), nil

	case "post_liked":
		var p struct {
			PostID string        `json:"postId"`
			Likes  []models.Like `json:"likes"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, err
		}
		f.ReplaceLikes(p.PostID, p.Likes)
		return f.find(p.PostID), nil

	case "post_commented":
		var p struct {
			PostID   string           `json:"postId"`
			Comments []models.Comment `json:"comments"`
		}
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, err
		}
		f.ReplaceComments(p.PostID, p.Comments)
		return f.find(p.PostID), nil
	}
	return nil, ErrUnknownEvent
}

func (f *Feed) find(postID string) *models.Post {
	if i := f.index(postID); i >= 0 {
		return &f.posts[i]
	}
	return nil
}
