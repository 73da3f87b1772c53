package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pulseblog/pulse/config"
	"github.com/pulseblog/pulse/controllers"
	"github.com/pulseblog/pulse/middleware"
	"github.com/pulseblog/pulse/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Route access logs through zap instead of the default console logger.
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Record views of the public pages after each request.
	r.Use(middleware.PageViewRecorder(db))

	// Uploaded images live wherever UploadDir points; serve them under the
	// URL prefix saveImage embeds in post rows.
	r.Static("/static/uploads", cfg.UploadDir)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db)
	profileController := controllers.NewProfileController(db)
	groupController := controllers.NewGroupController(db)
	statsController := controllers.NewStatsController(db)

	// Public blog pages.
	r.GET("/", postController.Index)
	r.GET("/group/:slug", groupController.GroupPosts)
	r.GET("/profile/:username", middleware.OptionalAuth(), profileController.Profile)
	r.GET("/posts/:id", postController.PostDetail)
	r.GET("/auth/login", authController.LoginPage)

	// Authenticated pages and actions. Anonymous requests bounce to the
	// login path with next set to the original URL.
	authed := r.Group("")
	authed.Use(middleware.LoginRequired())
	authed.GET("/create", postController.NewPostForm)
	authed.POST("/create", postController.PostCreate)
	authed.GET("/posts/:id/edit", postController.EditPostForm)
	authed.POST("/posts/:id/edit", postController.PostEdit)
	authed.POST("/posts/:id/comment", postController.AddComment)
	authed.GET("/follow", profileController.FollowIndex)
	authed.POST("/profile/:username/follow", profileController.ProfileFollow)
	authed.POST("/profile/:username/unfollow", profileController.ProfileUnfollow)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.LoginRequired(), authController.Logout)
	authGroup.GET("/me", middleware.LoginRequired(), authController.Me)

	api.GET("/groups", groupController.ListGroups)
	api.POST("/groups", middleware.LoginRequired(), groupController.CreateGroup)
	api.DELETE("/groups/:slug", middleware.LoginRequired(), groupController.DeleteGroup)

	api.GET("/stats", statsController.GetStats)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "page not found")
	})

	return r
}
