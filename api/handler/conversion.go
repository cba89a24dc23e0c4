package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/CallumBoase/PDF2Audio/api/middleware"
	"github.com/CallumBoase/PDF2Audio/api/model"
	"github.com/CallumBoase/PDF2Audio/internal/models"
	"github.com/CallumBoase/PDF2Audio/internal/services"
	"github.com/CallumBoase/PDF2Audio/internal/tts"
)

// ConversionHandler 处理转换相关的API请求
type ConversionHandler struct {
	conversionService *services.ConversionService // 转换服务
	logger            *logrus.Logger              // 日志记录器
}

// NewConversionHandler 创建新的转换处理器
func NewConversionHandler(conversionService *services.ConversionService) *ConversionHandler {
	return &ConversionHandler{
		conversionService: conversionService,
		logger:            middleware.GetLogger(),
	}
}

// CreateConversion 处理文件上传并创建转换任务
// POST /api/conversions
func (h *ConversionHandler) CreateConversion(c *gin.Context) {
	// 绑定请求参数
	var req model.ConversionCreateRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Invalid conversion create request")

		middleware.HandleError(c, middleware.NewValidationError("无效的请求参数", err.Error()))
		return
	}

	// 检查文件
	if req.File == nil {
		middleware.HandleError(c, middleware.NewValidationError("未提供文件"))
		return
	}

	// 检查文件类型
	filename := req.File.Filename
	if !isValidFileType(filepath.Ext(filename)) {
		middleware.HandleError(c, middleware.NewValidationError(
			"不支持的文件类型，仅支持 .pdf, .md, .markdown, .txt",
		))
		return
	}

	// 打开上传的文件
	file, err := req.File.Open()
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to open uploaded file")

		middleware.HandleError(c, middleware.NewInternalError("无法打开上传的文件", err.Error()))
		return
	}
	defer file.Close()

	// 创建转换任务
	conv, err := h.conversionService.CreateConversion(c.Request.Context(), file, services.ConvertRequest{
		FileName: filename,
		APIKey:   strings.TrimSpace(req.APIKey),
		Voice:    req.Voice,
		Model:    req.Model,
		Speed:    req.Speed,
	})
	if err != nil {
		h.handleConversionError(c, conv, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"conversion_id": conv.ID,
		"filename":      conv.FileName,
		"status":        conv.Status,
	}).Info("Conversion created via API")

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewConversionResponse(conv)))
}

// GetConversion 获取转换任务状态
// GET /api/conversions/:id
func (h *ConversionHandler) GetConversion(c *gin.Context) {
	var req model.ConversionStatusRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的转换ID"))
		return
	}

	conv, err := h.conversionService.GetConversion(c.Request.Context(), req.ID)
	if err != nil {
		middleware.HandleError(c, middleware.NewNotFoundError("未找到转换任务"))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewConversionResponse(conv)))
}

// ListConversions 获取转换任务列表
// GET /api/conversions
func (h *ConversionHandler) ListConversions(c *gin.Context) {
	var req model.ConversionListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的查询参数"))
		return
	}

	page := req.GetPage()
	pageSize := req.GetPageSize()
	offset := (page - 1) * pageSize

	conversions, total, err := h.conversionService.ListConversions(c.Request.Context(), offset, pageSize)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("获取转换列表失败", err.Error()))
		return
	}

	items := make([]model.ConversionResponse, 0, len(conversions))
	for _, conv := range conversions {
		items = append(items, model.NewConversionResponse(conv))
	}

	resp := model.ConversionListResponse{
		Total:       int(total),
		Page:        page,
		PageSize:    pageSize,
		Conversions: items,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetAudio 下载合成的音频
// GET /api/conversions/:id/audio
func (h *ConversionHandler) GetAudio(c *gin.Context) {
	var req model.ConversionStatusRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的转换ID"))
		return
	}

	reader, err := h.conversionService.GetAudio(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrConversionNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("未找到转换任务"))
			return
		}

		middleware.HandleError(c, middleware.NewConflictError("音频尚未生成"))
		return
	}
	defer reader.Close()

	audio, err := io.ReadAll(reader)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":         err.Error(),
			"conversion_id": req.ID,
		}).Error("Failed to read audio artifact")

		middleware.HandleError(c, middleware.NewInternalError("读取音频失败", err.Error()))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+req.ID+`.mp3"`)
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

// GetText 获取清理后的提取文本
// GET /api/conversions/:id/text
func (h *ConversionHandler) GetText(c *gin.Context) {
	var req model.ConversionStatusRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的转换ID"))
		return
	}

	text, err := h.conversionService.GetText(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrConversionNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("未找到转换任务"))
			return
		}

		middleware.HandleError(c, middleware.NewConflictError("文本尚未提取"))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{
		"id":   req.ID,
		"text": text,
	}))
}

// DeleteConversion 删除转换任务及其产物
// DELETE /api/conversions/:id
func (h *ConversionHandler) DeleteConversion(c *gin.Context) {
	var req model.ConversionDeleteRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的转换ID"))
		return
	}

	if err := h.conversionService.DeleteConversion(c.Request.Context(), req.ID); err != nil {
		if errors.Is(err, models.ErrConversionNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("未找到转换任务"))
			return
		}

		middleware.HandleError(c, middleware.NewInternalError("删除转换任务失败", err.Error()))
		return
	}

	h.logger.WithField("conversion_id", req.ID).Info("Conversion deleted")

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ConversionDeleteResponse{
		Success: true,
		ID:      req.ID,
	}))
}

// ListVoices 获取支持的音色和模型
// GET /api/voices
func (h *ConversionHandler) ListVoices(c *gin.Context) {
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.VoicesResponse{
		Voices: tts.Voices(),
		Models: tts.Models(),
	}))
}

// handleConversionError 将服务层错误映射为HTTP响应
func (h *ConversionHandler) handleConversionError(c *gin.Context, conv *models.Conversion, err error) {
	h.logger.WithFields(logrus.Fields{
		"error": err.Error(),
	}).Warn("Conversion request failed")

	if errors.Is(err, models.ErrAPIKeyRequired) {
		middleware.HandleError(c, middleware.NewUnauthorizedError("缺少TTS服务密钥"))
		return
	}

	// 合成服务的错误码按语义映射到HTTP状态码，限流和上游故障不是客户端错误
	var ttsErr tts.TTSError
	if errors.As(err, &ttsErr) {
		status := http.StatusBadRequest
		switch ttsErr.Code {
		case tts.ErrCodeInvalidAPIKey:
			status = http.StatusUnauthorized
		case tts.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		case tts.ErrCodeServerError, tts.ErrCodeTimeout:
			status = http.StatusBadGateway
		}
		c.JSON(status, model.NewErrorResponse(status, ttsErr.Message))
		return
	}

	// 同步转换失败时依然返回任务记录，方便客户端查看失败详情
	if conv != nil {
		c.JSON(http.StatusInternalServerError, &model.Response{
			Code:    http.StatusInternalServerError,
			Message: err.Error(),
			Data:    model.NewConversionResponse(conv),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
		http.StatusInternalServerError,
		"转换失败: "+err.Error(),
	))
}

// isValidFileType 检查文件类型是否有效
func isValidFileType(ext string) bool {
	validTypes := map[string]bool{
		".pdf":      true,
		".md":       true,
		".markdown": true,
		".txt":      true,
	}
	return validTypes[strings.ToLower(ext)]
}
