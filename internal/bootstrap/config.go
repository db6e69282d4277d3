package bootstrap

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/lachelier/sugoroku/internal/infra/setup"
	"github.com/lachelier/sugoroku/internal/service"
)

// 通知模式
const (
	NotifyAsynq = "asynq"
	NotifyRedis = "redis"
	NotifyNone  = "none"
)

// DriverMemory 使用内存存储，仅适合单进程运行
const DriverMemory = "memory"

// Config 存储从 .env 和环境变量加载的配置
type Config struct {
	AppEnv            string
	LogLevel          string
	ServerPort        string
	DB                setup.DBConfig
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	KeyPrefix         string
	JWTSecret         string
	RateLimitMax      int
	RateLimitWindow   time.Duration
	NotifyMode        string
	CORSAllowedOrigin string
	SweepSchedule     string
	Rules             service.Rules
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_NAME", "sugoroku")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "sg:")
	v.SetDefault("RATE_LIMIT_MAX", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "1s")
	v.SetDefault("NOTIFY_MODE", NotifyAsynq)
	v.SetDefault("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	v.SetDefault("ROOM_SWEEP_SCHEDULE", "@every 5m")
	v.SetDefault("VIRUS_USER_ID", 1)
	v.SetDefault("MAX_MEMBER_COUNT", 5)
	v.SetDefault("MAX_ACTIVE_ROOMS", 20)
	v.SetDefault("DEFAULT_BOARD_ID", 1)
}

// LoadConfig 先加载 .env (如果存在)，再从环境变量读取配置。
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // 忽略错误，允许只使用环境变量

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return configFrom(v)
}

func configFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppEnv:     v.GetString("APP_ENV"),
		LogLevel:   v.GetString("LOG_LEVEL"),
		ServerPort: v.GetString("SERVER_PORT"),
		DB: setup.DBConfig{
			Driver:   v.GetString("DB_DRIVER"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
		},
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		KeyPrefix:         v.GetString("REDIS_KEY_PREFIX"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		RateLimitMax:      v.GetInt("RATE_LIMIT_MAX"),
		RateLimitWindow:   v.GetDuration("RATE_LIMIT_WINDOW"),
		NotifyMode:        v.GetString("NOTIFY_MODE"),
		CORSAllowedOrigin: v.GetString("CORS_ALLOWED_ORIGIN"),
		SweepSchedule:     v.GetString("ROOM_SWEEP_SCHEDULE"),
		Rules: service.Rules{
			VirusUserID:    v.GetUint("VIRUS_USER_ID"),
			MaxMemberCount: v.GetInt("MAX_MEMBER_COUNT"),
			MaxActiveRooms: v.GetInt("MAX_ACTIVE_ROOMS"),
			DefaultBoardID: v.GetUint("DEFAULT_BOARD_ID"),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	switch cfg.DB.Driver {
	case "mysql", "postgres", DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	switch cfg.NotifyMode {
	case NotifyAsynq, NotifyRedis, NotifyNone:
	default:
		return nil, fmt.Errorf("unsupported NOTIFY_MODE %q", cfg.NotifyMode)
	}
	// 内存模式可以不带 Redis 单机运行
	if cfg.RedisAddr == "" && cfg.DB.Driver != DriverMemory {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.RedisAddr == "" {
		cfg.NotifyMode = NotifyNone
	}
	if cfg.Rules.VirusUserID == 0 {
		return nil, fmt.Errorf("VIRUS_USER_ID must be positive")
	}
	if cfg.Rules.MaxMemberCount <= 0 || cfg.Rules.MaxActiveRooms <= 0 {
		return nil, fmt.Errorf("MAX_MEMBER_COUNT and MAX_ACTIVE_ROOMS must be positive")
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return cfg, nil
}
