package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀，例如 RELAY_SERVER_PORT
const EnvPrefix = "RELAY"

// Config 应用配置
type Config struct {
	Server struct {
		Port           int      `yaml:"port" envconfig:"PORT"`
		AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
		DebugRoutes    bool     `yaml:"debug_routes" envconfig:"DEBUG_ROUTES"`
		TLS            struct {
			Enabled  bool   `yaml:"enabled" envconfig:"ENABLED"`
			CertFile string `yaml:"cert_file" envconfig:"CERT_FILE"`
			KeyFile  string `yaml:"key_file" envconfig:"KEY_FILE"`
		} `yaml:"tls" envconfig:"TLS"`
	} `yaml:"server" envconfig:"SERVER"`

	Database struct {
		Driver string `yaml:"driver" envconfig:"DRIVER"` // mysql, postgres, sqlite
		DSN    string `yaml:"dsn" envconfig:"DSN"`       // Data Source Name
	} `yaml:"database" envconfig:"DATABASE"`

	JWT struct {
		Secret   string `yaml:"secret" envconfig:"SECRET"`
		Expire   int    `yaml:"expire" envconfig:"EXPIRE"` // 过期时间（小时）
		Required bool   `yaml:"required" envconfig:"REQUIRED"`
	} `yaml:"jwt" envconfig:"JWT"`

	Redis struct {
		Enabled  bool   `yaml:"enabled" envconfig:"ENABLED"`
		Host     string `yaml:"host" envconfig:"HOST"`
		Port     int    `yaml:"port" envconfig:"PORT"`
		Password string `yaml:"password" envconfig:"PASSWORD"`
		DB       int    `yaml:"db" envconfig:"DB"`
	} `yaml:"redis" envconfig:"REDIS"`

	Gateway struct {
		SendBuffer     int           `yaml:"send_buffer" envconfig:"SEND_BUFFER"`
		MaxMessageSize int64         `yaml:"max_message_size" envconfig:"MAX_MESSAGE_SIZE"`
		WriteWait      time.Duration `yaml:"write_wait" envconfig:"WRITE_WAIT"`
		PongWait       time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
		EventTimeout   time.Duration `yaml:"event_timeout" envconfig:"EVENT_TIMEOUT"`
	} `yaml:"gateway" envconfig:"GATEWAY"`
}

// GlobalConfig 全局配置
var GlobalConfig = Default()

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = 3001
	cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	cfg.Server.TLS.CertFile = "./certs/server.crt"
	cfg.Server.TLS.KeyFile = "./certs/server.key"

	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "chatrelay.db"

	cfg.JWT.Secret = "default_secret_key_for_development"
	cfg.JWT.Expire = 24

	cfg.Redis.Host = "127.0.0.1"
	cfg.Redis.Port = 6379

	cfg.Gateway.SendBuffer = 256
	cfg.Gateway.MaxMessageSize = 64 * 1024
	cfg.Gateway.WriteWait = 10 * time.Second
	cfg.Gateway.PongWait = 60 * time.Second
	cfg.Gateway.EventTimeout = 5 * time.Second
	return cfg
}

// Load 依次合并默认值、YAML 文件、.env 和环境变量
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Printf("配置文件 %s 不存在，使用默认配置", path)
	case err != nil:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("加载 .env 失败: %v", err)
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init 初始化全局配置
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	GlobalConfig = cfg

	log.Printf("配置加载成功: port=%d, driver=%s, redis=%v",
		cfg.Server.Port, cfg.Database.Driver, cfg.Redis.Enabled)
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn 不能为空")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("无效的端口: %d", c.Server.Port)
	}
	if c.Gateway.SendBuffer <= 0 {
		return fmt.Errorf("无效的发送缓冲区大小: %d", c.Gateway.SendBuffer)
	}

	// 确保 JWT 配置有值
	if c.JWT.Secret == "" {
		c.JWT.Secret = "default_secret_key_for_development"
	}
	if c.JWT.Expire <= 0 {
		c.JWT.Expire = 24
	}
	return nil
}

// RedisAddr 返回 Redis 地址
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
