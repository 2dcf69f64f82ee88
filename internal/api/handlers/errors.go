package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Djiouwairia/RED-Product/internal/services"
)

// respondServiceError translates service-layer errors into HTTP responses.
// Unknown errors are logged via gin's error list and reported as 500.
func respondServiceError(c *gin.Context, err error) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": ve.Fields})
	case errors.Is(err, services.ErrEmailExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": gin.H{"email": "a user with this email already exists"}})
	case errors.Is(err, services.ErrUsernameExists):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": gin.H{"username": "a user with this username already exists"}})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to perform this action"})
	case errors.Is(err, services.ErrSuperuserExists):
		c.JSON(http.StatusConflict, gin.H{"error": "A superuser account already exists"})
	case errors.Is(err, mongo.ErrNoDocuments):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
