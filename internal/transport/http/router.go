package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsuite/backend/internal/config"
	"mailsuite/backend/internal/middleware"
	"mailsuite/backend/internal/monitoring"
	"mailsuite/backend/internal/service"
	"mailsuite/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config       *config.Config
	EmailService *service.EmailService
	LocalStore   storage.Store
	RemoteStore  storage.Store // 可为 nil
	Metrics      *monitoring.Metrics
	Logger       *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))
	if deps.Metrics != nil {
		router.Use(middleware.HTTPMetrics(deps.Metrics))
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := NewHandler(deps.EmailService)

	// 健康检查与指标
	router.GET("/healthz", healthHandler(deps))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	v1 := router.Group("/v1")
	{
		folders := v1.Group("/folders")
		{
			folders.GET("", handler.ListFolders)
			folders.POST("", handler.CreateFolder)
			folders.DELETE("/:id", handler.DeleteFolder)
			folders.GET("/:id/emails", handler.ListFolderEmails)
		}

		emails := v1.Group("/emails")
		{
			emails.GET("", handler.ListEmails)
			emails.POST("", handler.CreateEmail)
			emails.GET("/search", handler.SearchEmails)

			// 导入接口允许更大的请求体
			emails.POST("/import",
				middleware.BodySizeLimit(middleware.ImportBodyLimit),
				handler.ImportEmails)
			emails.POST("/import/:kind",
				middleware.BodySizeLimit(middleware.ImportBodyLimit),
				handler.ImportArchive)

			emails.GET("/:id", handler.GetEmail)
			emails.PUT("/:id", handler.UpdateEmail)
			emails.DELETE("/:id", handler.DeleteEmail)
			emails.DELETE("/:id/permanent", handler.PermanentDeleteEmail)
			emails.POST("/:id/read", handler.MarkRead)
			emails.POST("/:id/unread", handler.MarkUnread)
			emails.POST("/:id/star", handler.ToggleStar)
			emails.POST("/:id/move", handler.MoveEmail)
			emails.POST("/:id/restore", handler.RestoreEmail)
			emails.POST("/:id/spam", handler.MarkSpam)
			emails.POST("/:id/not-spam", handler.MarkNotSpam)
			emails.POST("/:id/archive", handler.ArchiveEmail)
		}
	}

	return router
}

// healthHandler 报告服务和各存储层的健康状态
func healthHandler(deps RouterDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := gin.H{
			"status": "ok",
			"state":  deps.EmailService.State().String(),
		}

		healthy := true
		if err := deps.LocalStore.Health(); err != nil {
			status["local"] = err.Error()
			healthy = false
		} else if err := deps.EmailService.LocalPersistenceError(); err != nil {
			// 本地层可达但最近的写入失败过：持久性没有保证
			status["local"] = "write failed: " + err.Error()
			healthy = false
		} else {
			status["local"] = "ok"
		}

		if deps.RemoteStore != nil {
			if err := deps.RemoteStore.Health(); err != nil {
				// 远端掉线不拉低整体健康度，服务靠本地层继续工作
				status["remote"] = err.Error()
			} else {
				status["remote"] = "ok"
			}
		} else {
			status["remote"] = "unconfigured"
		}

		if !healthy || deps.EmailService.State() != service.StateReady {
			status["status"] = "degraded"
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}
