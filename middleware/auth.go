package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"picfeed/database"
	"picfeed/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenTTL is absolute: there is no refresh and no revocation.
const TokenTTL = 30 * 24 * time.Hour

const (
	userKey   = "user"
	userIDKey = "userId"
)

type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

var (
	secretMu  sync.RWMutex
	jwtSecret []byte
)

var (
	ErrNoToken         = errors.New("No authorization token provided")
	ErrMalformedHeader = errors.New("Format should be: Bearer <token>")
)

func SetJWTSecret(secret string) {
	secretMu.Lock()
	defer secretMu.Unlock()
	jwtSecret = []byte(secret)
}

func secret() []byte {
	secretMu.RLock()
	defer secretMu.RUnlock()
	return jwtSecret
}

func GenerateToken(userID string) (string, error) {
	return GenerateTokenWithExpiry(userID, time.Now().Add(TokenTTL))
}

func GenerateTokenWithExpiry(userID string, expiry time.Time) (string, error) {
	key := secret()
	if len(key) == 0 {
		return "", errors.New("jwt secret not configured")
	}

	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

func ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("token is not valid")
	}
	return claims, nil
}

// tokenFromRequest reads the bearer token from the Authorization header, or
// from the token query parameter for WebSocket clients that cannot set headers.
func tokenFromRequest(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", ErrNoToken
	}

	parts := strings.Fields(authHeader)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", ErrMalformedHeader
	}
	return parts[1], nil
}

// JWTAuthMiddleware verifies the token, resolves it to a user and attaches the
// identity to the context. Every failure is a 401.
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// CORS preflight
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		tokenString, err := tokenFromRequest(c)
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		claims, err := ParseToken(tokenString)
		if err != nil {
			log.Printf("[Auth] JWT validation error: %v", err)
			unauthorized(c, "Not authorized, token failed")
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			unauthorized(c, "Not authorized, token failed")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		user, err := database.Users.FindByID(ctx, userID)
		if errors.Is(err, database.ErrNotFound) {
			unauthorized(c, "Not authorized, user not found")
			return
		}
		if err != nil {
			log.Printf("[Auth] user lookup failed: %v", err)
			unauthorized(c, "Not authorized, token failed")
			return
		}

		c.Set(userKey, user.Identity())
		c.Set(userIDKey, user.ID.Hex())
		c.Next()
	}
}

// CurrentUser returns the identity attached by JWTAuthMiddleware.
func CurrentUser(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}

// SetCurrentUser is used by tests and by handlers that authenticate inline.
func SetCurrentUser(c *gin.Context, identity models.Identity) {
	c.Set(userKey, identity)
	c.Set(userIDKey, identity.ID.Hex())
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
