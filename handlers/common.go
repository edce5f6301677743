package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"picfeed/storage"
	"picfeed/websocket"

	"github.com/go-playground/validator/v10"
)

// dbTimeout bounds every store call made by a handler.
const dbTimeout = 10 * time.Second

var wsManager *websocket.Manager
var imageStore storage.ImageStore

// SetWebSocketManager sets the hub that receives feed events. Nil disables
// broadcasting.
func SetWebSocketManager(manager *websocket.Manager) {
	wsManager = manager
}

// SetImageStore sets where uploaded post images go.
func SetImageStore(store storage.ImageStore) {
	imageStore = store
}

var fieldLabels = map[string]string{
	"Username": "Username",
	"Email":    "Email",
	"Password": "Password",
}

// validationMessage turns binding errors into the messages shown to users,
// joined with ", ".
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fieldMessage(fe))
	}
	return strings.Join(messages, ", ")
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please provide a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s cannot be more than %s characters", label, fe.Param())
	case "alphanumunicode", "username":
		return label + " may only contain letters, numbers and underscores"
	default:
		return label + " is invalid"
	}
}
