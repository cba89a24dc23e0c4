package tts

import "fmt"

// TTSError 语音合成错误类型
type TTSError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e TTSError) Error() string {
	return fmt.Sprintf("tts error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey  = 2001 // 无效的API密钥
	ErrCodeInvalidRequest = 2002 // 无效的请求
	ErrCodeTextTooLong    = 2003 // 输入文本超长
	ErrCodeNetworkError   = 2004 // 网络连接错误
	ErrCodeRateLimited    = 2005 // 请求频率超限
	ErrCodeServerError    = 2006 // 服务器错误
	ErrCodeTimeout        = 2007 // 请求超时
	ErrCodeEmptyInput     = 2008 // 输入为空
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgTextTooLong    = "input text exceeds maximum length"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyInput     = "input text cannot be empty"
	ErrMsgNetworkError   = "network connection error"
)

// NewTTSError 创建新的语音合成错误
func NewTTSError(code int, message string) TTSError {
	return TTSError{
		Code:    code,
		Message: message,
	}
}
