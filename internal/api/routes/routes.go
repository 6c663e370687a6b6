// internal/api/routes/routes.go
package routes

import (
	"log/slog"
	"time"

	"safe-pickup-api-server/config"
	"safe-pickup-api-server/internal/api/handlers"
	"safe-pickup-api-server/internal/api/middleware"
	"safe-pickup-api-server/internal/auth"
	"safe-pickup-api-server/internal/logging"
	"safe-pickup-api-server/internal/service"
	"safe-pickup-api-server/internal/socket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Dependencies gom các thành phần mà router cần.
type Dependencies struct {
	Config        config.Config
	Hub           *socket.Hub
	Codes         *service.CodeService
	Pickups       *service.PickupService
	Notifications *service.NotificationService
	Logger        *slog.Logger
}

// corsConfig cho phép dashboard và màn hình sảnh chạy trên trình duyệt gọi API.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cfg
}

// SetupRouter nhận vào các thành phần phụ thuộc và thiết lập các route
func SetupRouter(deps Dependencies) *gin.Engine {
	handlers.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.Middleware(deps.Logger))
	router.Use(cors.New(corsConfig(deps.Config.Server.AllowedOrigins)))

	secret := []byte(deps.Config.JWT.Secret)

	codeHandler := &handlers.CodeHandler{Codes: deps.Codes}
	pickupHandler := &handlers.PickupHandler{Pickups: deps.Pickups}
	notificationHandler := &handlers.NotificationHandler{Notifications: deps.Notifications}
	webSocketHandler := &handlers.WebSocketHandler{
		Hub:     deps.Hub,
		Pickups: deps.Pickups,
		Secret:  secret,
		Pump: socket.PumpConfig{
			PingInterval: deps.Config.WebSocket.PingInterval,
			PongWait:     deps.Config.WebSocket.PongWait,
			WriteTimeout: deps.Config.WebSocket.WriteTimeout,
		},
		Logger: deps.Logger,
	}

	apiV1 := router.Group("/api/v1")
	{
		// WebSocket xác thực bằng token trên query string
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		// === CÁC ROUTE YÊU CẦU XÁC THỰC ===
		protected := apiV1.Group("/")
		protected.Use(middleware.Authenticate(secret))

		staffOnly := middleware.Authorize(auth.RoleStaff, auth.RoleAdmin)
		staffOrDisplay := middleware.Authorize(auth.RoleStaff, auth.RoleAdmin, auth.RoleDisplay)
		adminOnly := middleware.Authorize(auth.RoleAdmin)

		codes := protected.Group("/codes")
		{
			codes.GET("", staffOrDisplay, codeHandler.ListActiveCodes)
			codes.POST("", staffOnly, codeHandler.GenerateCode)
			codes.POST("/verify", middleware.Authorize(auth.RoleParent, auth.RoleDriver, auth.RoleStaff, auth.RoleAdmin), codeHandler.VerifyCode)
			codes.GET("/:code", staffOnly, codeHandler.GetCode)
			codes.PATCH("/:code/deactivate", staffOnly, codeHandler.DeactivateCode)
			codes.DELETE("/:code", staffOnly, codeHandler.DeleteCode)
		}

		pickups := protected.Group("/pickups")
		{
			pickups.POST("", middleware.Authorize(auth.RoleParent, auth.RoleDriver, auth.RoleStaff, auth.RoleAdmin), pickupHandler.CreatePickup)
			pickups.GET("", staffOrDisplay, pickupHandler.ListPickups)
			pickups.GET("/mine", middleware.Authorize(auth.RoleParent), pickupHandler.ListMyPickups)
			pickups.GET("/stats", staffOrDisplay, pickupHandler.GetStats)
			pickups.GET("/:id", pickupHandler.GetPickup)
			pickups.PATCH("/:id/status", middleware.Authorize(auth.RoleDriver, auth.RoleStaff, auth.RoleAdmin), pickupHandler.TransitionPickup)
			pickups.DELETE("/:id", adminOnly, pickupHandler.DeletePickup)
			pickups.DELETE("", adminOnly, pickupHandler.DeleteAllPickups)
		}

		notifications := protected.Group("/notifications")
		{
			notifications.GET("", notificationHandler.ListNotifications)
			notifications.POST("", staffOnly, notificationHandler.CreateNotification)
			notifications.DELETE("", staffOnly, notificationHandler.DeleteNotifications)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
		}
	}

	return router
}
