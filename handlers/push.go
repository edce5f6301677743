package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"picfeed/database"
	"picfeed/middleware"
	"picfeed/models"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	vapidPublicKey  string
	vapidPrivateKey string
	vapidSubject    string
)

// sendNotification is swapped out in tests.
var sendNotification = webpush.SendNotification

// SetVAPIDKeys enables push delivery. Empty keys disable it.
func SetVAPIDKeys(publicKey, privateKey, subject string) {
	vapidPublicKey = publicKey
	vapidPrivateKey = privateKey
	vapidSubject = subject
}

func pushEnabled() bool {
	return vapidPublicKey != "" && vapidPrivateKey != ""
}

type SubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

func GetVapidPublicKey(c *gin.Context) {
	if !pushEnabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push notifications are not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": vapidPublicKey})
}

func SubscribePush(c *gin.Context) {
	if !pushEnabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push notifications are not configured"})
		return
	}

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscription"})
		return
	}

	identity, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	sub := &models.PushSubscription{
		UserID: identity.ID,
		Sub: webpush.Subscription{
			Endpoint: req.Endpoint,
			Keys: webpush.Keys{
				P256dh: req.Keys.P256dh,
				Auth:   req.Keys.Auth,
			},
		},
	}
	if err := database.PushSubs.Upsert(ctx, sub); err != nil {
		log.Printf("[SubscribePush] Failed to save subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Push subscription saved"})
}

// notifyPostOwner tells the owner of a post that someone interacted with it.
// Delivery is best-effort and happens off the request goroutine.
func notifyPostOwner(post *models.Post, actor models.Identity, body string) {
	if !pushEnabled() || database.PushSubs == nil || post.UserID == actor.ID {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"title": "picfeed",
		"body":  actor.Username + " " + body,
		"data": map[string]interface{}{
			"postId":    post.ID.Hex(),
			"timestamp": time.Now().Unix(),
		},
	})
	if err != nil {
		log.Printf("[Push] Failed to marshal payload: %v", err)
		return
	}

	go deliverPush(post.UserID, payload)
}

func deliverPush(userID primitive.ObjectID, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Push] panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := database.PushSubs.FindByUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("[Push] Failed to find subscription for user %s: %v", userID.Hex(), err)
		return
	}

	resp, err := sendNotification(payload, &sub.Sub, &webpush.Options{
		Subscriber:      vapidSubject,
		VAPIDPublicKey:  vapidPublicKey,
		VAPIDPrivateKey: vapidPrivateKey,
		TTL:             60,
	})
	if err != nil {
		log.Printf("[Push] Failed to send to user %s: %v", userID.Hex(), err)
		return
	}
	defer resp.Body.Close()

	// The push service reports a dead subscription with 410 Gone.
	if resp.StatusCode == http.StatusGone {
		log.Printf("[Push] Subscription expired for user %s, deleting", userID.Hex())
		if err := database.PushSubs.DeleteByUser(ctx, userID); err != nil {
			log.Printf("[Push] Failed to delete expired subscription: %v", err)
		}
	}
}
