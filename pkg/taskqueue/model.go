package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskConvert 文档转语音完整流程任务
	TaskConvert TaskType = "pdf_convert"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID           string          `json:"id"`            // 任务唯一标识符
	Type         TaskType        `json:"type"`          // 任务类型
	ConversionID string          `json:"conversion_id"` // 关联的转换任务ID
	Status       TaskStatus      `json:"status"`        // 任务状态
	Payload      json.RawMessage `json:"payload"`       // 任务载荷数据
	Result       json.RawMessage `json:"result"`        // 任务结果数据
	Error        string          `json:"error"`         // 错误信息（如果处理失败）
	CreatedAt    time.Time       `json:"created_at"`    // 创建时间
	UpdatedAt    time.Time       `json:"updated_at"`    // 更新时间
	StartedAt    *time.Time      `json:"started_at"`    // 开始处理时间
	CompletedAt  *time.Time      `json:"completed_at"`  // 完成时间
	Attempts     int             `json:"attempts"`      // 尝试次数
	MaxRetries   int             `json:"max_retries"`   // 最大重试次数
}

// ConvertPayload 文档转语音任务载荷
// API密钥随任务传递，不落入转换记录
type ConvertPayload struct {
	ConversionID string  `json:"conversion_id"` // 转换任务ID
	FilePath     string  `json:"file_path"`     // 上传文件的存储路径
	FileName     string  `json:"file_name"`     // 原始文件名
	APIKey       string  `json:"api_key"`       // 合成服务API密钥
	Voice        string  `json:"voice"`         // 合成声音
	Model        string  `json:"model"`         // 合成模型
	Speed        float64 `json:"speed"`         // 语速
}

// ConvertResult 文档转语音任务结果
type ConvertResult struct {
	ConversionID string `json:"conversion_id"` // 转换任务ID
	AudioID      string `json:"audio_id"`      // 合成音频的文件ID
	TextID       string `json:"text_id"`       // 提取文本的文件ID
	ChunkCount   int    `json:"chunk_count"`   // 分块数量
	AudioBytes   int    `json:"audio_bytes"`   // 音频大小（字节）
	Error        string `json:"error"`         // 错误信息（如果有）
}
