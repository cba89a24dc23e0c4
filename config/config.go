package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	TTS      TTSConfig      `mapstructure:"tts"`
	Document DocumentConfig `mapstructure:"document"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`                          // 服务器主机
	Port int    `mapstructure:"port" validate:"min=1,max=65535"` // 服务器端口
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type" validate:"oneof=local minio"` // 存储类型：local 或 minio
	Path      string `mapstructure:"path"`     // 本地存储路径
	Bucket    string `mapstructure:"bucket"`   // MinIO桶名称
	Endpoint  string `mapstructure:"endpoint"` // MinIO端点
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"` // 是否使用SSL
}

// TTSConfig 语音合成配置
type TTSConfig struct {
	Provider   string  `mapstructure:"provider"`    // 提供商：openai
	Model      string  `mapstructure:"model" validate:"oneof=tts-1 tts-1-hd"` // 合成模型
	Voice      string  `mapstructure:"voice" validate:"oneof=alloy echo fable onyx nova shimmer"` // 默认音色
	Speed      float64 `mapstructure:"speed" validate:"gte=0.25,lte=4.0"` // 默认语速倍率
	APIKey     string  `mapstructure:"api_key"`     // 服务端兜底API密钥，可为空
	Endpoint   string  `mapstructure:"endpoint"`    // API端点
	MaxWorkers int     `mapstructure:"max_workers"` // 并行合成工作者数量
	Timeout    int     `mapstructure:"timeout"`     // 单次合成超时（秒）
}

// DocumentConfig 文档处理配置
type DocumentConfig struct {
	MaxChunkSize int    `mapstructure:"max_chunk_size"` // 文本分块大小上限（字节）
	WorkDir      string `mapstructure:"work_dir"`       // 音频拼接临时目录
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`                              // 是否启用音频分块缓存
	Type     string `mapstructure:"type" validate:"oneof=memory redis"` // 缓存类型
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // 是否启用异步任务队列
	Type          string `mapstructure:"type"`           // 队列类型：redis
	RedisAddr     string `mapstructure:"redis_addr"`     // Redis地址
	RedisPassword string `mapstructure:"redis_password"` // Redis密码
	RedisDB       int    `mapstructure:"redis_db"`       // Redis数据库编号
	Concurrency   int    `mapstructure:"concurrency"`    // 任务处理并发数
	RetryLimit    int    `mapstructure:"retry_limit"`    // 任务最大重试次数
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level string `mapstructure:"level"` // 日志级别
	File  string `mapstructure:"file"`  // 日志文件路径，为空时只输出到标准输出
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	// 设置默认配置路径
	if configPath == "" {
		configPath = "config.yaml" // 默认在当前目录寻找config.yaml
	}

	// 初始化viper
	v := viper.New()

	// 设置配置文件路径和类型
	v.SetConfigFile(configPath)

	// 尝试读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果找不到配置文件，创建一个默认配置文件。
		// SetConfigFile指定具体路径时，文件缺失报的是*os.PathError，
		// ConfigFileNotFoundError只在viper按搜索路径查找时出现，两种都要兜底
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			setDefaults(v)
			// 创建默认配置文件
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	// 设置默认值
	setDefaults(v)

	// 支持环境变量覆盖
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 解析配置到结构体
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	// 处理配置项中的环境变量引用
	resConfig := processEnvironmentVariables(&config)

	// 校验配置取值
	if err := validator.New().Struct(resConfig); err != nil {
		return nil, fmt.Errorf("invalid config: %v", err)
	}

	return resConfig, nil
}

// processEnvironmentVariables 处理配置项中的 ${ENV_VAR} 形式引用
func processEnvironmentVariables(cfg *Config) *Config {
	// 处理TTS API密钥
	if strings.HasPrefix(cfg.TTS.APIKey, "${") && strings.HasSuffix(cfg.TTS.APIKey, "}") {
		envVar := cfg.TTS.APIKey[2 : len(cfg.TTS.APIKey)-1]
		if envVal := os.Getenv(envVar); envVal != "" {
			cfg.TTS.APIKey = envVal
		} else {
			cfg.TTS.APIKey = ""
		}
	}

	return cfg
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// 存储默认配置
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.bucket", "pdf2audio")
	v.SetDefault("storage.use_ssl", false)

	// TTS默认配置
	v.SetDefault("tts.provider", "openai")
	v.SetDefault("tts.model", "tts-1")
	v.SetDefault("tts.voice", "alloy")
	v.SetDefault("tts.speed", 1.0)
	v.SetDefault("tts.endpoint", "")
	v.SetDefault("tts.max_workers", 4)
	v.SetDefault("tts.timeout", 60)

	// 文档处理默认配置
	v.SetDefault("document.max_chunk_size", 4096)
	v.SetDefault("document.work_dir", "")

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 86400) // 24小时

	// 队列默认配置
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 0) // 合成失败不自动重试

	// 日志默认配置
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
}
