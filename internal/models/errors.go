package models

import "errors"

var (
	// ErrConversionNotFound 转换任务不存在错误
	ErrConversionNotFound = errors.New("conversion not found")

	// ErrInvalidConversionStatus 无效的任务状态错误
	ErrInvalidConversionStatus = errors.New("invalid conversion status")

	// ErrAPIKeyRequired 缺少API密钥错误
	// 没有密钥时不允许开始任何解析或合成工作
	ErrAPIKeyRequired = errors.New("api key is required")
)
