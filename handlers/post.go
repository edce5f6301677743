package handlers

import (
	"context"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode/utf8"

	"picfeed/database"
	"picfeed/middleware"
	"picfeed/models"
	"picfeed/storage"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CreatePostRequest struct {
	Caption  string `form:"caption" json:"caption"`
	ImageURL string `form:"imageUrl" json:"imageUrl"`
}

type CommentRequest struct {
	Text string `json:"text"`
}

func CreatePost(c *gin.Context) {
	identity, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req CreatePostRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": uploadError(err)})
		return
	}

	file, err := imageFile(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": uploadError(err)})
		return
	}

	caption := strings.TrimSpace(req.Caption)
	imageURL := strings.TrimSpace(req.ImageURL)

	if caption == "" && imageURL == "" && file == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrEmptyPost.Error()})
		return
	}
	if utf8.RuneCountInString(caption) > models.MaxCaptionLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrCaptionTooLong.Error()})
		return
	}
	if identity.Username == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": models.ErrMissingUsername.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	if file != nil {
		if imageStore == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Image uploads are not configured"})
			return
		}
		url, err := imageStore.Save(ctx, file, storage.BaseURL(c.Request))
		if errors.Is(err, storage.ErrInvalidImage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			log.Printf("[CreatePost] Failed to save image: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		imageURL = url
	}

	post, err := models.NewPost(identity, caption, imageURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := database.Posts.Create(ctx, post); err != nil {
		log.Printf("[CreatePost] Insert error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	log.Printf("[CreatePost] %s created post %s", identity.Username, post.ID.Hex())

	if wsManager != nil {
		wsManager.BroadcastPostCreated(*post)
	}

	c.JSON(http.StatusCreated, post)
}

func GetPosts(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	posts, err := database.Posts.List(ctx)
	if err != nil {
		log.Printf("[GetPosts] Find error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, posts)
}

func LikePost(c *gin.Context) {
	identity, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	postID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	post, added, err := database.Posts.AddLike(ctx, postID, models.NewLike(identity))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if err != nil {
		log.Printf("[LikePost] Update error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if added {
		if wsManager != nil {
			wsManager.BroadcastPostLiked(post.ID.Hex(), post.Likes)
		}
		notifyPostOwner(post, identity, "liked your post")
	}

	c.JSON(http.StatusOK, post.Likes)
}

func AddComment(c *gin.Context) {
	identity, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	postID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	// An unreadable body counts as empty text.
	var req CommentRequest
	_ = c.ShouldBindJSON(&req)

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	comment, err := models.NewComment(identity, req.Text)
	if err != nil {
		// A missing post wins over empty text.
		_, findErr := database.Posts.FindByID(ctx, postID)
		if errors.Is(findErr, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		if findErr != nil {
			log.Printf("[AddComment] Find error: %v", findErr)
			c.JSON(http.StatusInternalServerError, gin.H{"error": findErr.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	post, err := database.Posts.AddComment(ctx, postID, comment)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	if err != nil {
		log.Printf("[AddComment] Update error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if wsManager != nil {
		wsManager.BroadcastPostCommented(post.ID.Hex(), post.Comments)
	}
	notifyPostOwner(post, identity, "commented on your post")

	c.JSON(http.StatusOK, post.Comments)
}

// imageFile returns the optional "image" part. Requests without a multipart
// body, or without the part, have no file.
func imageFile(c *gin.Context) (*multipart.FileHeader, error) {
	file, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func uploadError(err error) string {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return "File size exceeds maximum limit of 5 MB"
	}
	return "Invalid request body"
}
