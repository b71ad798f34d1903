package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"assetdeck/api/internal/config"
	"assetdeck/api/internal/middleware"
	"assetdeck/api/internal/models"
	"assetdeck/api/internal/repository"
	"assetdeck/api/internal/service"
	"assetdeck/api/internal/storage"
)

type HandlerSet struct {
	log            zerolog.Logger
	cfg            *config.AppConfig
	authService    *service.AuthService
	uploadService  *service.UploadService
	cleanupService *service.CleanupService
	db             *pgxpool.Pool
	cache          *redis.Client
	users          service.UserStore
	products       service.ProductStore
	attachments    service.AttachmentStore
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	productRepo := repository.NewProductRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)

	auth := service.NewAuthService(userRepo, tokenRepo, cfg, log)
	upload := service.NewUploadService(productRepo, attachmentRepo, store, cfg, log)
	cleanup := service.NewCleanupService(productRepo, attachmentRepo, tokenRepo, store, cache, cfg, log)

	return HandlerSet{
		log:            log,
		cfg:            cfg,
		authService:    auth,
		uploadService:  upload,
		cleanupService: cleanup,
		db:             db,
		cache:          cache,
		users:          userRepo,
		products:       productRepo,
		attachments:    attachmentRepo,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	v1.Use(middleware.Session(h.authService, h.cfg))
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", middleware.RequireAuth(), h.Me)
		auth.POST("/password", middleware.RequireAuth(), h.ChangePassword)

		products := v1.Group("/products")
		// The cleanup beacon authorizes via a body credential, not the
		// session: sendBeacon cannot set headers and may fire after
		// cookies expire.
		products.POST("/:id/cleanup", h.CleanupProduct)

		owned := products.Group("")
		owned.Use(middleware.RequireAuth())
		owned.POST("", h.CreateProduct)
		owned.GET("", h.ListProducts)
		owned.GET("/:id", h.GetProduct)
		owned.PATCH("/:id", h.FinalizeProduct)
		owned.DELETE("/:id", h.DeleteProduct)
		owned.POST("/:id/media", h.UploadMedia)
		owned.POST("/:id/files", h.UploadFile)

		admin := v1.Group("/admin")
		admin.Use(
			middleware.RequireAuth(),
			middleware.RequireRoles(models.UserRoleAdmin),
		)
		admin.GET("/products/abandoned", h.AdminListAbandoned)
		admin.POST("/sweep", h.AdminSweep)
	}
}
