package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techblog/techblog/auth"
	"github.com/techblog/techblog/config"
	"github.com/techblog/techblog/controllers"
	"github.com/techblog/techblog/middleware"
	"github.com/techblog/techblog/store"
	"github.com/techblog/techblog/utils"
)

// Deps are the handles the router hands to controllers.
type Deps struct {
	Config      config.AppConfig
	Credentials *store.CredentialStore
	Content     *store.ContentStore
	Sessions    *auth.Manager
	Logger      *zap.Logger
	// AccessLog receives gin access logs; nil falls back to Logger.
	AccessLog *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	accessLog := d.AccessLog
	if accessLog == nil {
		accessLog = d.Logger
	}

	r := gin.New()
	r.Use(ginzap.Ginzap(accessLog, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(accessLog, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		// credentials cannot be combined with a wildcard origin
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	cookie := middleware.SessionCookie{Name: cfg.SessionCookieName, Secure: cfg.SessionCookieSecure}
	r.Use(middleware.SessionResolver(d.Sessions, cookie))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(d.Credentials, d.Sessions, cookie, d.Logger)
	postController := controllers.NewPostController(d.Content, d.Logger)
	limiter := middleware.NewIPRateLimiter(cfg.RateLimitPerMinute)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/signup", limiter.Middleware(), authController.Signup)
	authGroup.POST("/login", limiter.Middleware(), authController.Login)
	authGroup.POST("/logout", authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/password", middleware.AuthRequired(), limiter.Middleware(), authController.ChangePassword)

	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:id", postController.GetPost)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired())
	protected.GET("/dashboard", postController.Dashboard)
	protected.POST("/posts", postController.CreatePost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/comments", postController.CreateComment)
	protected.PUT("/comments/:commentId", postController.UpdateComment)
	protected.DELETE("/comments/:commentId", postController.DeleteComment)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
