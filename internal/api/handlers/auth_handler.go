package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Djiouwairia/RED-Product/internal/api/middleware"
	"github.com/Djiouwairia/RED-Product/internal/auth"
	"github.com/Djiouwairia/RED-Product/internal/services"
)

// AuthHandler handles account and session endpoints.
type AuthHandler struct {
	users  services.IUserService
	tokens auth.ITokenManager
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users services.IUserService, tokens auth.ITokenManager) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user.Public())
}

// Login handles POST /api/auth/login and returns an access/refresh pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	pair, err := h.tokens.IssuePair(user)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access":  pair.Access,
		"refresh": pair.Refresh,
		"user":    user.Public(),
	})
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var input struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.Refresh == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Refresh token required"})
		return
	}

	access, err := h.tokens.RefreshAccess(c.Request.Context(), input.Refresh)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or revoked refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": access})
}

// Logout handles POST /api/auth/logout. The refresh token is revoked; the
// access token simply runs out its short TTL.
func (h *AuthHandler) Logout(c *gin.Context) {
	var input struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.Refresh == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Refresh token required"})
		return
	}

	if err := h.tokens.RevokeRefresh(c.Request.Context(), input.Refresh); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Logged out"})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	c.JSON(http.StatusOK, actor)
}

// UpdateMe handles PATCH /api/auth/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	var input services.UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), actor.ID, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	var input struct {
		OldPassword  string `json:"old_password"`
		NewPassword  string `json:"new_password"`
		NewPassword2 string `json:"new_password2"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), actor.ID, input.OldPassword, input.NewPassword, input.NewPassword2); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Password changed"})
}

// ForgotPassword handles POST /api/auth/forgot-password. Always responds 200
// so the endpoint cannot be used to probe registered emails.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var input struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email required"})
		return
	}

	if err := h.users.RequestPasswordReset(c.Request.Context(), input.Email); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "If the email is registered, a reset link has been sent"})
}

// ResetPassword handles POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var input struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token and new password required"})
		return
	}

	claims, err := h.tokens.ValidatePasswordResetToken(input.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired reset token"})
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid reset token"})
		return
	}

	if err := h.users.SetPassword(c.Request.Context(), userID, input.NewPassword); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Password has been reset"})
}

// ListUsers handles GET /api/auth/users. Admins see the whole directory;
// everyone else gets a list containing only themselves.
func (h *AuthHandler) ListUsers(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	users, err := h.users.ListUsers(c.Request.Context(), actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users})
}

// DeleteUser handles DELETE /api/auth/users/:id (admin only; cascades to the
// user's hotels and messages).
func (h *AuthHandler) DeleteUser(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	userID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	if err := h.users.DeleteUserCascade(c.Request.Context(), actor, userID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
