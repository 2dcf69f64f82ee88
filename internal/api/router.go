package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Djiouwairia/RED-Product/internal/api/handlers"
	"github.com/Djiouwairia/RED-Product/internal/api/middleware"
	"github.com/Djiouwairia/RED-Product/internal/auth"
	"github.com/Djiouwairia/RED-Product/internal/authz"
	"github.com/Djiouwairia/RED-Product/internal/config"
	"github.com/Djiouwairia/RED-Product/internal/services"
	"github.com/Djiouwairia/RED-Product/internal/storage"
	"github.com/Djiouwairia/RED-Product/internal/tasks"
)

// SetupRouter configures and returns the main Gin engine. taskClient may be
// nil in test setups that never enqueue background work.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient tasks.IClient) *gin.Engine {
	policy, err := authz.ForVariant(cfg.HotelWritePolicy)
	if err != nil {
		log.Fatalf("CRITICAL: %v", err)
	}

	var s3Storage storage.IS3Storage
	if cfg.AwsS3Bucket != "" {
		s3Storage, err = storage.NewS3Storage(cfg)
		if err != nil {
			log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
		}
	}

	tokenManager := auth.NewTokenManager(cfg.JwtSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.ResetTokenTTL, rdb)
	pwPolicy := auth.NewPasswordPolicy(cfg.PasswordMinLength)

	userService := services.NewUserService(db, policy, pwPolicy, tokenManager, taskClient, cfg.SetupSecretKey)
	hotelService := services.NewHotelService(db, policy, s3Storage, taskClient)
	messageService := services.NewMessageService(db, policy)
	dashboardService := services.NewDashboardService(db, hotelService, messageService)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(userService, tokenManager)
	hotelHandler := handlers.NewHotelHandler(hotelService)
	messageHandler := handlers.NewMessageHandler(messageService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	setupHandler := handlers.NewSetupHandler(userService)

	api := r.Group("/api")
	{
		api.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Public routes
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/refresh", authHandler.Refresh)
		api.POST("/auth/logout", authHandler.Logout)
		api.POST("/auth/forgot-password", authHandler.ForgotPassword)
		api.POST("/auth/reset-password", authHandler.ResetPassword)
		api.POST("/setup/superuser", setupHandler.CreateSuperuser)

		// Authenticated routes
		authed := api.Group("/")
		authed.Use(middleware.RequireAuth(tokenManager, userService))
		{
			authed.GET("/auth/me", authHandler.Me)
			authed.PATCH("/auth/me", authHandler.UpdateMe)
			authed.POST("/auth/change-password", authHandler.ChangePassword)
			authed.GET("/auth/users", authHandler.ListUsers)

			authed.GET("/hotels", hotelHandler.List)
			authed.POST("/hotels", hotelHandler.Create)
			authed.GET("/hotels/mine", hotelHandler.Mine)
			authed.GET("/hotels/statistiques", hotelHandler.Statistics)
			authed.GET("/hotels/:id", hotelHandler.Get)
			authed.PATCH("/hotels/:id", hotelHandler.Update)
			authed.DELETE("/hotels/:id", hotelHandler.Delete)
			authed.POST("/hotels/:id/image/upload-url", hotelHandler.RequestImageUpload)
			authed.POST("/hotels/:id/image/confirm", hotelHandler.ConfirmImageUpload)

			authed.GET("/messages", messageHandler.List)
			authed.POST("/messages", messageHandler.Send)
			authed.GET("/messages/unread", messageHandler.Unread)
			authed.GET("/messages/statistiques", messageHandler.Statistics)
			authed.GET("/messages/:id", messageHandler.Get)
			authed.POST("/messages/:id/read", messageHandler.MarkRead)
			authed.POST("/messages/:id/archive", messageHandler.Archive)
			authed.DELETE("/messages/:id", messageHandler.Delete)

			authed.GET("/dashboard", dashboardHandler.Stats)
		}

		// Admin routes
		admin := api.Group("/")
		admin.Use(middleware.RequireAuth(tokenManager, userService), middleware.RequireAdmin())
		{
			admin.DELETE("/auth/users/:id", authHandler.DeleteUser)
		}
	}

	return r
}
