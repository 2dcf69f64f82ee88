package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Djiouwairia/RED-Product/internal/api/middleware"
	"github.com/Djiouwairia/RED-Product/internal/services"
)

// HotelHandler handles REST requests for the hotel registry.
type HotelHandler struct {
	hotels services.IHotelService
}

// NewHotelHandler creates a new HotelHandler.
func NewHotelHandler(hotels services.IHotelService) *HotelHandler {
	return &HotelHandler{hotels: hotels}
}

func parseHotelID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid hotel ID format"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// Create handles POST /api/hotels
func (h *HotelHandler) Create(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	var input services.HotelInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	hotel, err := h.hotels.Create(c.Request.Context(), actor, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hotel)
}

// parseHotelFilters reads the search/devise/prix_min/prix_max query filters
// shared by List and Statistics. Writes a 400 response and returns false on a
// malformed price.
func parseHotelFilters(c *gin.Context) (services.HotelListFilters, bool) {
	filters := services.HotelListFilters{
		Search:   c.Query("search"),
		Currency: c.Query("devise"),
	}
	if v := c.Query("prix_min"); v != "" {
		min, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prix_min must be a number"})
			return filters, false
		}
		filters.PriceMin = &min
	}
	if v := c.Query("prix_max"); v != "" {
		max, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "prix_max must be a number"})
			return filters, false
		}
		filters.PriceMax = &max
	}
	return filters, true
}

// List handles GET /api/hotels with optional search/devise/prix_min/prix_max
// query filters. All present filters are ANDed.
func (h *HotelHandler) List(c *gin.Context) {
	filters, ok := parseHotelFilters(c)
	if !ok {
		return
	}

	hotels, err := h.hotels.List(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": hotels})
}

// Mine handles GET /api/hotels/mine
func (h *HotelHandler) Mine(c *gin.Context) {
	actor := middleware.ActorFromContext(c)

	hotels, err := h.hotels.ListMine(c.Request.Context(), actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": hotels})
}

// Get handles GET /api/hotels/:id
func (h *HotelHandler) Get(c *gin.Context) {
	hotelID, ok := parseHotelID(c)
	if !ok {
		return
	}

	hotel, err := h.hotels.Get(c.Request.Context(), hotelID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, hotel)
}

// Update handles PATCH /api/hotels/:id
func (h *HotelHandler) Update(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	hotelID, ok := parseHotelID(c)
	if !ok {
		return
	}

	var input services.HotelInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	hotel, err := h.hotels.Update(c.Request.Context(), actor, hotelID, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, hotel)
}

// Delete handles DELETE /api/hotels/:id
func (h *HotelHandler) Delete(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	hotelID, ok := parseHotelID(c)
	if !ok {
		return
	}

	if err := h.hotels.Delete(c.Request.Context(), actor, hotelID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Statistics handles GET /api/hotels/statistiques. It accepts the same query
// filters as List so the figures describe the filtered set.
func (h *HotelHandler) Statistics(c *gin.Context) {
	filters, ok := parseHotelFilters(c)
	if !ok {
		return
	}

	stats, err := h.hotels.Statistics(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// RequestImageUpload handles POST /api/hotels/:id/image/upload-url
func (h *HotelHandler) RequestImageUpload(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	hotelID, ok := parseHotelID(c)
	if !ok {
		return
	}

	var input struct {
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.Filename == "" || input.ContentType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename and content_type required"})
		return
	}

	uploadURL, s3Key, err := h.hotels.RequestImageUpload(c.Request.Context(), actor, hotelID, input.Filename, input.ContentType)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upload_url": uploadURL, "s3_key": s3Key})
}

// ConfirmImageUpload handles POST /api/hotels/:id/image/confirm
func (h *HotelHandler) ConfirmImageUpload(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	hotelID, ok := parseHotelID(c)
	if !ok {
		return
	}

	var input struct {
		S3Key string `json:"s3_key"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.S3Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "s3_key required"})
		return
	}

	if err := h.hotels.ConfirmImageUpload(c.Request.Context(), actor, hotelID, input.S3Key); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"detail": "Image queued for processing"})
}
