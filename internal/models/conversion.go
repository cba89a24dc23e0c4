package models

import "time"

// ConversionStatus 转换任务状态类型
type ConversionStatus string

const (
	// ConversionUploaded 文档已上传，等待转换
	ConversionUploaded ConversionStatus = "uploaded"
	// ConversionProcessing 转换中
	ConversionProcessing ConversionStatus = "processing"
	// ConversionCompleted 转换完成
	ConversionCompleted ConversionStatus = "completed"
	// ConversionFailed 转换失败
	ConversionFailed ConversionStatus = "failed"
)

// ConversionStage 转换处理阶段
type ConversionStage string

const (
	// StageParsing 文本提取阶段
	StageParsing ConversionStage = "parsing"
	// StageChunking 分块阶段
	StageChunking ConversionStage = "chunking"
	// StageSynthesizing 语音合成阶段
	StageSynthesizing ConversionStage = "synthesizing"
	// StageAssembling 音频拼接阶段
	StageAssembling ConversionStage = "assembling"
	// StageCompleted 处理完成
	StageCompleted ConversionStage = "completed"
)

// Conversion 转换任务数据模型
// 只保存在内存中，服务重启后任务记录不保留
type Conversion struct {
	ID          string           // 任务ID
	FileName    string           // 原始文件名
	FileType    string           // 文件类型
	FilePath    string           // 上传文件的存储路径
	FileSize    int64            // 文件大小（字节）
	Voice       string           // 合成声音
	Model       string           // 合成模型
	Speed       float64          // 语速
	Status      ConversionStatus // 任务状态
	Stage       ConversionStage  // 当前处理阶段
	Progress    int              // 处理进度（0-100）
	Error       string           // 错误信息
	ChunkCount  int              // 文本分块数量
	TextID      string           // 提取文本在存储中的文件ID
	AudioID     string           // 合成音频在存储中的文件ID
	CreatedAt   time.Time        // 创建时间
	UpdatedAt   time.Time        // 更新时间
	CompletedAt *time.Time       // 完成时间
}
