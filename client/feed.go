package client

import (
	"fmt"
	"io"
	"strings"
	"time"

	"picfeed/models"
)

// Feed is the post list fetched once per session. Like, comment and create
// results are applied to it locally instead of re-fetching.
type Feed struct {
	posts []models.Post
}

func NewFeed(posts []models.Post) *Feed {
	return &Feed{posts: posts}
}

func (f *Feed) Posts() []models.Post {
	return f.posts
}

func (f *Feed) Len() int {
	return len(f.posts)
}

// Prepend puts a new post at the top. A post already in the feed is ignored.
func (f *Feed) Prepend(post models.Post) {
	if f.index(post.ID.Hex()) >= 0 {
		return
	}
	f.posts = append([]models.Post{post}, f.posts...)
}

// ReplaceLikes swaps in the server's like list for one post. It reports
// whether the post was found.
func (f *Feed) ReplaceLikes(postID string, likes []models.Like) bool {
	i := f.index(postID)
	if i < 0 {
		return false
	}
	f.posts[i].Likes = likes
	return true
}

func (f *Feed) ReplaceComments(postID string, comments []models.Comment) bool {
	i := f.index(postID)
	if i < 0 {
		return false
	}
	f.posts[i].Comments = comments
	return true
}

func (f *Feed) index(postID string) int {
	for i := range f.posts {
		if f.posts[i].ID.Hex() == postID {
			return i
		}
	}
	return -1
}

// Render writes the feed newest first, as it was received.
func (f *Feed) Render(w io.Writer) {
	if len(f.posts) == 0 {
		fmt.Fprintln(w, "No posts yet.")
		return
	}
	for _, p := range f.posts {
		RenderPost(w, p)
	}
}

func RenderPost(w io.Writer, p models.Post) {
	fmt.Fprintf(w, "@%s · %s · %s\n", p.Username, p.CreatedAt.Local().Format(time.RFC822), p.ID.Hex())
	if p.Caption != "" {
		fmt.Fprintln(w, p.Caption)
	}
	if p.ImageURL != "" {
		fmt.Fprintf(w, "[image] %s\n", p.ImageURL)
	}

	names := make([]string, 0, len(p.Likes))
	for _, l := range p.Likes {
		names = append(names, l.Username)
	}
	fmt.Fprintf(w, "♥ %d", len(p.Likes))
	if len(names) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(names, ", "))
	}
	fmt.Fprintf(w, " · %d comments\n", len(p.Comments))

	for _, c := range p.Comments {
		fmt.Fprintf(w, "  %s: %s\n", c.Username, c.Text)
	}
	fmt.Fprintln(w)
}
