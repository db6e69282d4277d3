package bootstrap

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	httpHandler "github.com/lachelier/sugoroku/internal/handler/http"
	wsHandler "github.com/lachelier/sugoroku/internal/handler/websocket"
	"github.com/lachelier/sugoroku/internal/middleware"
)

// routeDeps 是路由需要的组件，limiter 为 nil 时不限流。
type routeDeps struct {
	rooms   *httpHandler.RoomHandler
	ws      *wsHandler.WebSocketHandler
	limiter middleware.Limiter
}

// NewRouter 创建 Gin 引擎并注册中间件与路由
func NewRouter(cfg *Config, log *logrus.Logger, deps routeDeps) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(LoggerMiddleware(log))
	router.Use(CORS(cfg.CORSAllowedOrigin))
	if deps.limiter != nil {
		router.Use(middleware.RateLimit(deps.limiter, cfg.RateLimitMax, cfg.RateLimitWindow))
	}

	api := router.Group("/api")
	rooms := api.Group("/rooms")
	rooms.Use(middleware.Auth(cfg.JWTSecret))
	deps.rooms.RegisterRoutes(rooms)

	wsRoutes := router.Group("/ws")
	wsRoutes.Use(middleware.Auth(cfg.JWTSecret))
	wsRoutes.GET("/room/:roomId", deps.ws.HandleConnection)

	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	return router
}

// CORS 允许配置的来源跨域访问
func CORS(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware 记录每个请求的状态码、耗时和 request_id
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		statusCode := c.Writer.Status()
		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  time.Since(startTime).Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
			"request_id":  c.GetString("request_id"),
		})
		if uid, ok := c.Get("user_id"); ok {
			entry = entry.WithField("user_id", uid)
		}

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			entry.Error(errorMessage)
			return
		}
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
