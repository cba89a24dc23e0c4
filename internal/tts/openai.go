package tts

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient 实现基于OpenAI接口的语音合成客户端
type OpenAIClient struct {
	client         *openai.Client
	model          openai.SpeechModel
	voice          openai.SpeechVoice
	speed          float64
	maxInputLength int
}

// 初始化时注册OpenAI客户端工厂
func init() {
	RegisterClient("openai", NewOpenAIClient)
}

// NewOpenAIClient 创建新的OpenAI语音合成客户端
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	// 验证API密钥
	if cfg.APIKey == "" {
		return nil, NewTTSError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	// 验证声音和模型名称
	if !IsValidVoice(cfg.Voice) {
		return nil, NewTTSError(ErrCodeInvalidRequest, "invalid voice: "+cfg.Voice)
	}
	if !IsValidModel(cfg.Model) {
		return nil, NewTTSError(ErrCodeInvalidRequest, "invalid model: "+cfg.Model)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientConfig),
		model:          openai.SpeechModel(cfg.Model),
		voice:          openai.SpeechVoice(cfg.Voice),
		speed:          cfg.Speed,
		maxInputLength: cfg.MaxInputLength,
	}, nil
}

// Name 返回客户端名称
func (c *OpenAIClient) Name() string {
	return "openai:" + string(c.model)
}

// Synthesize 合成单段文本，返回MP3编码的音频数据
func (c *OpenAIClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewTTSError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}
	if c.maxInputLength > 0 && len(text) > c.maxInputLength {
		return nil, NewTTSError(ErrCodeTextTooLong, ErrMsgTextTooLong)
	}

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          c.model,
		Voice:          c.voice,
		Speed:          c.speed,
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Input:          text,
	})
	if err != nil {
		return nil, classifyError(ctx, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, NewTTSError(ErrCodeNetworkError, "failed to read audio response: "+err.Error())
	}
	if len(audio) == 0 {
		return nil, NewTTSError(ErrCodeServerError, "empty audio response")
	}

	return audio, nil
}

// classifyError 把底层API错误映射为统一的错误码
func classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return NewTTSError(ErrCodeTimeout, ErrMsgTimeout)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return NewTTSError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
		case http.StatusBadRequest:
			return NewTTSError(ErrCodeInvalidRequest, apiErr.Message)
		case http.StatusTooManyRequests:
			return NewTTSError(ErrCodeRateLimited, ErrMsgRateLimited)
		default:
			if apiErr.HTTPStatusCode >= 500 {
				return NewTTSError(ErrCodeServerError, ErrMsgServerError)
			}
			return NewTTSError(ErrCodeServerError, apiErr.Message)
		}
	}

	return NewTTSError(ErrCodeNetworkError, ErrMsgNetworkError+": "+err.Error())
}
