package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Djiouwairia/RED-Product/internal/api/middleware"
	"github.com/Djiouwairia/RED-Product/internal/services"
)

// MessageHandler handles the user-to-user message inbox endpoints.
type MessageHandler struct {
	messages services.IMessageService
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(messages services.IMessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

func parseMessageID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID format"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// Send handles POST /api/messages
func (h *MessageHandler) Send(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	var input services.SendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), actor, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// List handles GET /api/messages?scope=all|sent|received
func (h *MessageHandler) List(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	scope := services.MessageScope(c.DefaultQuery("scope", string(services.MessageScopeAll)))

	messages, err := h.messages.List(c.Request.Context(), actor, scope)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages})
}

// Get handles GET /api/messages/:id. When the recipient retrieves an unread
// message, the read receipt fires as part of this request.
func (h *MessageHandler) Get(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	messageID, ok := parseMessageID(c)
	if !ok {
		return
	}

	msg, err := h.messages.Get(c.Request.Context(), actor, messageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// MarkRead handles POST /api/messages/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	messageID, ok := parseMessageID(c)
	if !ok {
		return
	}

	msg, err := h.messages.MarkRead(c.Request.Context(), actor, messageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Archive handles POST /api/messages/:id/archive
func (h *MessageHandler) Archive(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	messageID, ok := parseMessageID(c)
	if !ok {
		return
	}

	msg, err := h.messages.Archive(c.Request.Context(), actor, messageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// Delete handles DELETE /api/messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	messageID, ok := parseMessageID(c)
	if !ok {
		return
	}

	if err := h.messages.Delete(c.Request.Context(), actor, messageID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Unread handles GET /api/messages/unread. Returns the pending messages and
// their count; listing them does not fire read receipts.
func (h *MessageHandler) Unread(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	messages, err := h.messages.Unread(c.Request.Context(), actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages, "unread": len(messages)})
}

// Statistics handles GET /api/messages/statistiques
func (h *MessageHandler) Statistics(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	stats, err := h.messages.Statistics(c.Request.Context(), actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
