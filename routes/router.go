package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/versevilla/forum/config"
	"github.com/versevilla/forum/controllers"
	"github.com/versevilla/forum/middleware"
	"github.com/versevilla/forum/realtime"
	"github.com/versevilla/forum/services"
	"github.com/versevilla/forum/store"
	"github.com/versevilla/forum/utils"
)

// Deps are the collaborators the router wires into controllers.
type Deps struct {
	Config      config.AppConfig
	Log         *zap.Logger
	Store       *store.GormStore
	Gate        services.Admission
	Broadcaster services.Broadcaster
	Registry    *realtime.Registry
	Cache       *utils.Cache
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
		r.Use(ginzap.CustomRecoveryWithZap(gl, false, utils.PanicResponse))
	} else {
		r.Use(ginzap.CustomRecoveryWithZap(log, false, utils.PanicResponse))
	}
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	postService := services.NewPostService(d.Store, d.Gate, d.Cache, log)
	commentService := services.NewCommentService(d.Store, d.Gate, d.Broadcaster, d.Cache, log)
	groupService := services.NewGroupService(d.Store, d.Cache, log)

	postController := controllers.NewPostController(postService, commentService, log)
	groupController := controllers.NewGroupController(groupService, log)
	statsController := controllers.NewStatsController(d.Store, d.Registry, log)
	socketController := controllers.NewSocketController(d.Registry, cfg.AllowedOrigins, log)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", socketController.Connect)

	api := r.Group("/api/v1")
	api.GET("/stats", statsController.GetStats)
	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:id", postController.GetPost)
	api.GET("/users/:id/posts", postController.ListUserPosts)
	api.GET("/groups", groupController.ListGroups)
	api.GET("/groups/:id", groupController.GetGroup)
	api.GET("/groups/:id/posts", groupController.ListGroupPosts)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(cfg.JWTSecret), middleware.RateLimit(cfg.RateLimitPerMinute))
	protected.POST("/posts", postController.CreatePost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.PATCH("/posts/:id/group", postController.AssignGroup)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/comments", postController.CreateComment)
	protected.PUT("/posts/:id/comment", postController.CreateComment)
	protected.POST("/groups", groupController.CreateGroup)
	protected.POST("/groups/:id/join", groupController.JoinGroup)
	protected.POST("/groups/:id/leave", groupController.LeaveGroup)
	protected.DELETE("/groups/:id", groupController.DeleteGroup)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
