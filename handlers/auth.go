package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"

	"picfeed/database"
	"picfeed/middleware"
	"picfeed/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
	}
}

type SignupRequest struct {
	Username string `json:"username" binding:"required,min=3,max=30,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	models.Identity
	Token string `json:"token"`
}

func Signup(c *gin.Context) {
	// Decode first and validate after normalizing, so " Bob@Mail.com " is
	// accepted the same as "bob@mail.com".
	var req SignupRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = models.NormalizeEmail(req.Email)
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	existing, err := database.Users.FindByEmailOrUsername(ctx, req.Email, req.Username)
	if err == nil {
		message := "Username is already taken"
		if existing.Email == req.Email {
			message = "Email is already registered"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": message})
		return
	}
	if !errors.Is(err, database.ErrNotFound) {
		log.Printf("[Signup] lookup error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server Error: " + err.Error()})
		return
	}

	user, err := models.NewUser(req.Username, req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	if err := database.Users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			// lost a race with a concurrent signup
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email or username already in use"})
			return
		}
		log.Printf("[Signup] insert error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server Error: " + err.Error()})
		return
	}

	token, err := middleware.GenerateToken(user.ID.Hex())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	log.Printf("[Signup] User %s registered", user.Username)
	c.JSON(http.StatusCreated, AuthResponse{Identity: user.Identity(), Token: token})
}

func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), dbTimeout)
	defer cancel()

	user, err := database.Users.FindByEmail(ctx, models.NormalizeEmail(req.Email))
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if err != nil {
		log.Printf("[Login] lookup error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server Error: " + err.Error()})
		return
	}

	if !user.MatchPassword(req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := middleware.GenerateToken(user.ID.Hex())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Identity: user.Identity(), Token: token})
}

// Me returns the identity resolved from the bearer token. Clients call it to
// check that a stored token is still good.
func Me(c *gin.Context) {
	identity, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, identity)
}
