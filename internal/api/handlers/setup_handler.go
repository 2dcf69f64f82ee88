package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Djiouwairia/RED-Product/internal/services"
)

// SetupHandler serves the one-shot bootstrap endpoint for creating the
// initial superuser. It is unauthenticated but requires the setup secret and
// refuses to run once any superuser exists.
type SetupHandler struct {
	users services.IUserService
}

// NewSetupHandler creates a new SetupHandler.
func NewSetupHandler(users services.IUserService) *SetupHandler {
	return &SetupHandler{users: users}
}

// CreateSuperuser handles POST /api/setup/superuser
func (h *SetupHandler) CreateSuperuser(c *gin.Context) {
	var input struct {
		Secret string `json:"secret"`
		services.RegisterInput
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.users.CreateSuperuser(c.Request.Context(), input.Secret, input.RegisterInput)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user.Public())
}
