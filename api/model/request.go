package model

import (
	"mime/multipart"
)

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// ConversionCreateRequest 创建转换请求
// 文件和TTS参数通过multipart表单提交，密钥只在请求中出现
type ConversionCreateRequest struct {
	File   *multipart.FileHeader `form:"file" binding:"required"`                                                      // 待转换的文件
	APIKey string                `form:"api_key" json:"api_key" binding:"omitempty"`                                   // TTS服务密钥，缺省时使用服务端配置
	Voice  string                `form:"voice" json:"voice" binding:"omitempty,oneof=alloy echo fable onyx nova shimmer"` // 朗读音色
	Model  string                `form:"model" json:"model" binding:"omitempty,oneof=tts-1 tts-1-hd"`                  // 合成模型
	Speed  float64               `form:"speed" json:"speed" binding:"omitempty,gte=0.25,lte=4.0"`                      // 语速倍率
}

// ConversionStatusRequest 转换状态查询请求
type ConversionStatusRequest struct {
	ID string `uri:"id" binding:"required"` // 转换ID
}

// ConversionListRequest 转换列表请求
type ConversionListRequest struct {
	PaginationRequest
}

// ConversionDeleteRequest 转换删除请求
type ConversionDeleteRequest struct {
	ID string `uri:"id" binding:"required"` // 转换ID
}
