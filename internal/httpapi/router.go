// Package httpapi exposes the curriculum pipeline and intent agent over HTTP.
package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"CurriculumSpider/internal/logging"
)

// RouterConfig carries the handlers mounted by NewRouter.
type RouterConfig struct {
	CourseHandler *CourseHandler
	ChatHandler   *ChatHandler
	AllowOrigins  []string
	Logger        *logging.Logger
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), accessLog(logging.OrNop(cfg.Logger).With("component", "http")))
	if len(cfg.AllowOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	router.GET("/healthcheck", HealthCheck)
	if cfg.CourseHandler != nil {
		router.POST("/spider", cfg.CourseHandler.Spider)
	}
	if cfg.ChatHandler != nil {
		router.POST("/chat", cfg.ChatHandler.Chat)
	}
	return router
}

func accessLog(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.Info("request served",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(started))
	}
}
