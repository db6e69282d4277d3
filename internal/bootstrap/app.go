package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/lachelier/sugoroku/internal/domain"
	httpHandler "github.com/lachelier/sugoroku/internal/handler/http"
	wsHandler "github.com/lachelier/sugoroku/internal/handler/websocket"
	"github.com/lachelier/sugoroku/internal/hub"
	gormpersistence "github.com/lachelier/sugoroku/internal/infra/persistence/gorm"
	"github.com/lachelier/sugoroku/internal/infra/persistence/memory"
	"github.com/lachelier/sugoroku/internal/infra/setup"
	redisstate "github.com/lachelier/sugoroku/internal/infra/state/redis"
	"github.com/lachelier/sugoroku/internal/middleware"
	"github.com/lachelier/sugoroku/internal/notify"
	"github.com/lachelier/sugoroku/internal/repository"
	"github.com/lachelier/sugoroku/internal/service"
	"github.com/lachelier/sugoroku/internal/tasks"
	"github.com/lachelier/sugoroku/internal/worker"
)

// App 包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB // 内存模式下为 nil
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Engine      *service.Engine
	Hub         *hub.Hub
	HttpServer  *http.Server

	eventBus       *redisstate.EventBus
	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
	cancel         context.CancelFunc
}

func newLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel) // LoadConfig 已校验
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	// 各包使用 logrus 包级 logger，保持同样的格式和级别
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(level)
	return log
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := newLogger(cfg)
	log.Infof("Logger initialized (Level: %s)", log.GetLevel().String())
	app := &App{Config: cfg, Log: log}

	// 3. 存储
	log.WithField("driver", cfg.DB.Driver).Info("Initializing store...")
	var store repository.Store
	if cfg.DB.Driver == DriverMemory {
		mem := memory.NewStore()
		mem.SeedBoard(domain.DefaultBoard())
		store = mem
		log.Warn("Using in-memory store, state is lost on restart")
	} else {
		db, err := setup.InitDB(cfg.DB, cfg.AppEnv != "production")
		if err != nil {
			return nil, fmt.Errorf("failed to init DB: %w", err)
		}
		if err := setup.MigrateDB(db); err != nil {
			return nil, fmt.Errorf("failed to migrate DB: %w", err)
		}
		app.DB = db
		store = gormpersistence.NewGormStore(db)
	}

	// 4. Redis 与实时事件
	var limiter middleware.Limiter
	if cfg.RedisAddr != "" {
		app.RedisClient, err = setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to init Redis: %w", err)
		}
		app.eventBus = redisstate.NewEventBus(app.RedisClient, cfg.KeyPrefix)
		limiter = redisstate.NewRateLimiter(app.RedisClient, cfg.KeyPrefix)
		app.redisClientOpt = asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	// 5. 通知与引擎
	var notifier service.Notifier
	switch cfg.NotifyMode {
	case NotifyAsynq:
		app.AsynqClient = asynq.NewClient(app.redisClientOpt)
		notifier = notify.NewAsynqNotifier(app.AsynqClient)
	case NotifyRedis:
		notifier = notify.NewRedisNotifier(app.eventBus)
	default:
		notifier = notify.Nop{}
	}
	log.WithField("notify_mode", cfg.NotifyMode).Info("Notifier initialized")

	app.Engine = service.NewEngine(store, notifier, cfg.Rules)
	log.Info("Engine initialized")

	// 6. Hub
	if app.eventBus != nil {
		app.Hub = hub.NewHub(app.eventBus, cfg.KeyPrefix)
	} else {
		app.Hub = hub.NewHub(nil, cfg.KeyPrefix)
	}

	// 7. Worker：投递事件并定期清理已解散房间的连接
	if app.eventBus != nil {
		events := worker.NewEventDeliveryHandler(app.eventBus)
		sweeper := worker.NewRoomSweepHandler(app.Hub, app.Engine, app.eventBus)
		app.AsynqServer = worker.NewWorkerServer(app.redisClientOpt, events, sweeper, log)
		log.Info("Worker server initialized")
	}

	// 8. 路由与 HTTP Server
	router := NewRouter(cfg, log, routeDeps{
		rooms:   httpHandler.NewRoomHandler(app.Engine),
		ws:      wsHandler.NewWebSocketHandler(app.Hub, app.Engine, cfg.CORSAllowedOrigin),
		limiter: limiter,
	})
	app.HttpServer = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("Application assembled successfully")
	return app, nil
}

// Start 启动后台 goroutine 和 HTTP 服务器
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	if a.eventBus != nil {
		if err := a.Hub.Subscribe(ctx, a.eventBus); err != nil {
			a.Log.WithError(err).Error("Hub failed to subscribe to room events, realtime delivery disabled")
		}
	}

	if a.AsynqServer != nil {
		go a.AsynqServer.Start()
		a.Log.Info("Asynq worker server routine started")
		a.registerPeriodicTasks()
	}

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	a.scheduler = asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	schedule := a.Config.SweepSchedule
	entryID, err := a.scheduler.Register(schedule, tasks.NewRoomSweepTask(), asynq.Queue("low"))
	if err != nil {
		a.Log.Errorf("Could not register room sweep task: %v", err)
		return
	}
	a.Log.Infof("Room sweep task registered with schedule '%s' (EntryID: %s)", schedule, entryID)

	if err := a.scheduler.Start(); err != nil {
		a.Log.Errorf("Asynq scheduler failed to start: %v", err)
		a.scheduler = nil
		return
	}
	a.Log.Info("Asynq scheduler started")
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止 Hub 的订阅
	if a.cancel != nil {
		a.cancel()
	}
	if a.Hub != nil {
		a.Hub.StopAllSubscriptions()
	}

	// 2. 停止定时任务和 Worker
	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 3. 关闭 HTTP 服务器
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 4. 关闭 Asynq Client 和 Redis
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}

	// 5. 关闭数据库连接
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}
