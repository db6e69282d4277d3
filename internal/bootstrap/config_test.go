package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("MAX_MEMBER_COUNT", "3")
	t.Setenv("RATE_LIMIT_WINDOW", "2s")
	t.Setenv("LOG_LEVEL", "loud")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, "sg:", cfg.KeyPrefix)
	assert.Equal(t, NotifyAsynq, cfg.NotifyMode)
	assert.Equal(t, 2*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, uint(1), cfg.Rules.VirusUserID)
	assert.Equal(t, 3, cfg.Rules.MaxMemberCount)
	assert.Equal(t, 20, cfg.Rules.MaxActiveRooms)
	assert.Equal(t, uint(1), cfg.Rules.DefaultBoardID)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
	t.Run("unknown notify mode", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("NOTIFY_MODE", "kafka")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
	t.Run("redis required outside memory mode", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("REDIS_ADDR", "")
		t.Setenv("DB_DRIVER", "postgres")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}

func TestLoadConfig_MemoryWithoutRedis(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("DB_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, NotifyNone, cfg.NotifyMode)
}
