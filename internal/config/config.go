package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port     int   `mapstructure:"port"`
	WorkerID int64 `mapstructure:"worker_id"` // 雪花ID机器号，多实例部署时必须不同
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Purchase string `mapstructure:"purchase"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type BusinessConfig struct {
	MaxRetryCount          int `mapstructure:"max_retry_count"`        // outbox 最大投递次数
	MaxConflictRetries     int `mapstructure:"max_conflict_retries"`   // 乐观锁冲突后事务重试次数
	LockTTLSeconds         int `mapstructure:"lock_ttl_seconds"`       // 分布式锁过期时间
	LockRetryIntervalMs    int `mapstructure:"lock_retry_interval_ms"` // 获取锁的重试间隔
	LockMaxRetries         int `mapstructure:"lock_max_retries"`       // 获取锁的最大重试次数
	LiveSampleSize         int `mapstructure:"live_sample_size"`       // 实时排行榜取最近活跃的用户数
	LeaderboardCacheTTLSec int `mapstructure:"leaderboard_cache_ttl"`  // 排行榜缓存时间（秒），0 表示不缓存
	OutboxRetentionHours   int `mapstructure:"outbox_retention_hours"` // 已发送消息保留时长
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.worker_id", 1)
	v.SetDefault("mysql.host", "127.0.0.1")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.database", "canteen")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.purchase", "canteen.purchase")
	v.SetDefault("log.level", "info")
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.max_conflict_retries", 3)
	v.SetDefault("business.lock_ttl_seconds", 30)
	v.SetDefault("business.lock_retry_interval_ms", 100)
	v.SetDefault("business.lock_max_retries", 30)
	v.SetDefault("business.live_sample_size", 10)
	v.SetDefault("business.leaderboard_cache_ttl", 60)
	v.SetDefault("business.outbox_retention_hours", 72)
}

// Load 加载配置文件，环境变量 CANTEEN_<SECTION>_<KEY> 优先于文件
// configPath 为空时只使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("canteen")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port 必须大于0")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers 不能为空")
	}
	if c.Business.LiveSampleSize <= 0 {
		return fmt.Errorf("business.live_sample_size 必须大于0")
	}
	if c.Business.MaxConflictRetries < 0 {
		return fmt.Errorf("business.max_conflict_retries 不能为负数")
	}
	return nil
}
