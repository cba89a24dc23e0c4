package tts

import (
	"context"
	"time"
)

// Client 语音合成客户端接口
// 负责将一段文本合成为音频数据
type Client interface {
	// Synthesize 合成单段文本，返回MP3编码的音频数据
	Synthesize(ctx context.Context, text string) ([]byte, error)

	// Name 返回客户端名称
	Name() string
}

// 支持的声音名称
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceOnyx    = "onyx"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// 支持的合成模型
const (
	ModelStandard = "tts-1"    // 标准音质，低延迟
	ModelHD       = "tts-1-hd" // 高音质
)

// Voices 返回全部可用的声音名称
func Voices() []string {
	return []string{
		VoiceAlloy,
		VoiceEcho,
		VoiceFable,
		VoiceOnyx,
		VoiceNova,
		VoiceShimmer,
	}
}

// Models 返回全部可用的合成模型
func Models() []string {
	return []string{ModelStandard, ModelHD}
}

// IsValidVoice 判断声音名称是否有效
func IsValidVoice(voice string) bool {
	for _, v := range Voices() {
		if v == voice {
			return true
		}
	}
	return false
}

// IsValidModel 判断模型名称是否有效
func IsValidModel(model string) bool {
	for _, m := range Models() {
		if m == model {
			return true
		}
	}
	return false
}

// Config 语音合成客户端配置
type Config struct {
	APIKey         string        // API密钥
	BaseURL        string        // API基础URL，留空使用服务商默认地址
	Model          string        // 合成模型
	Voice          string        // 声音名称
	Speed          float64       // 语速，1.0为正常语速
	Timeout        time.Duration // 单次请求超时时间
	MaxInputLength int           // 单次合成的输入长度上限
}

// Option 客户端配置选项函数类型
type Option func(*Config)

// WithAPIKey 设置API密钥
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithBaseURL 设置API基础URL
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel 设置合成模型
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithVoice 设置声音名称
func WithVoice(voice string) Option {
	return func(c *Config) {
		c.Voice = voice
	}
}

// WithSpeed 设置语速
func WithSpeed(speed float64) Option {
	return func(c *Config) {
		c.Speed = speed
	}
}

// WithTimeout 设置单次请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxInputLength 设置单次合成的输入长度上限
func WithMaxInputLength(length int) Option {
	return func(c *Config) {
		c.MaxInputLength = length
	}
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Model:          ModelStandard,
		Voice:          VoiceAlloy,
		Speed:          1.0,
		Timeout:        60 * time.Second,
		MaxInputLength: 4096, // OpenAI TTS接口的输入长度上限
	}
}

// NewConfig 创建一个新的配置并应用选项
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Factory 语音合成客户端工厂函数类型
type Factory func(opts ...Option) (Client, error)

// 全局注册的语音合成客户端工厂函数
var clientFactories = make(map[string]Factory)

// RegisterClient 注册语音合成客户端工厂函数
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient 根据名称创建语音合成客户端
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewTTSError(
			ErrCodeInvalidRequest,
			"tts client type not registered: "+name)
	}
	return factory(opts...)
}
