package model

import (
	"time"

	"github.com/CallumBoase/PDF2Audio/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// ConversionResponse 转换任务信息
type ConversionResponse struct {
	ID          string     `json:"id"`                     // 转换ID
	FileName    string     `json:"filename"`               // 原始文件名
	Status      string     `json:"status"`                 // 状态：uploaded、processing、completed、failed
	Stage       string     `json:"stage,omitempty"`        // 当前处理阶段
	Progress    int        `json:"progress"`               // 进度百分比
	Voice       string     `json:"voice"`                  // 朗读音色
	Model       string     `json:"model"`                  // 合成模型
	Speed       float64    `json:"speed"`                  // 语速倍率
	ChunkCount  int        `json:"chunk_count,omitempty"`  // 文本分块数量
	Error       string     `json:"error,omitempty"`        // 错误信息（如果有）
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	UpdatedAt   time.Time  `json:"updated_at"`             // 更新时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间
}

// NewConversionResponse 从转换记录构建响应
func NewConversionResponse(conv *models.Conversion) ConversionResponse {
	return ConversionResponse{
		ID:          conv.ID,
		FileName:    conv.FileName,
		Status:      string(conv.Status),
		Stage:       string(conv.Stage),
		Progress:    conv.Progress,
		Voice:       conv.Voice,
		Model:       conv.Model,
		Speed:       conv.Speed,
		ChunkCount:  conv.ChunkCount,
		Error:       conv.Error,
		CreatedAt:   conv.CreatedAt,
		UpdatedAt:   conv.UpdatedAt,
		CompletedAt: conv.CompletedAt,
	}
}

// ConversionListResponse 转换列表响应
type ConversionListResponse struct {
	Total       int                  `json:"total"`       // 总数量
	Page        int                  `json:"page"`        // 当前页码
	PageSize    int                  `json:"page_size"`   // 每页大小
	Conversions []ConversionResponse `json:"conversions"` // 转换列表
}

// ConversionDeleteResponse 转换删除响应
type ConversionDeleteResponse struct {
	Success bool   `json:"success"` // 是否成功
	ID      string `json:"id"`      // 转换ID
}

// VoicesResponse 可用音色和模型列表
type VoicesResponse struct {
	Voices []string `json:"voices"` // 支持的音色
	Models []string `json:"models"` // 支持的模型
}
