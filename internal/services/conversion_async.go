package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/CallumBoase/PDF2Audio/pkg/taskqueue"
)

// ConvertTaskHandler 转换任务处理器
// 从队列任务载荷还原转换参数并执行完整转换流程
type ConvertTaskHandler struct {
	service *ConversionService // 转换服务
	logger  *logrus.Logger     // 日志记录器
}

// NewConvertTaskHandler 创建转换任务处理器
func NewConvertTaskHandler(service *ConversionService, logger *logrus.Logger) *ConvertTaskHandler {
	if logger == nil {
		logger = logrus.New()
	}

	return &ConvertTaskHandler{
		service: service,
		logger:  logger,
	}
}

// ProcessTask 处理转换任务
func (h *ConvertTaskHandler) ProcessTask(ctx context.Context, task *taskqueue.Task) error {
	var payload taskqueue.ConvertPayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", taskqueue.ErrInvalidPayload, err)
	}
	if payload.ConversionID == "" {
		return taskqueue.ErrInvalidPayload
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":       task.ID,
		"conversion_id": payload.ConversionID,
	}).Info("Processing conversion task")

	if err := h.service.ProcessConversion(ctx, payload.ConversionID, payload.APIKey); err != nil {
		return err
	}

	// 把转换产物写进队列任务结果，供轮询方直接读取
	if queue := h.service.GetTaskQueue(); queue != nil {
		conv, err := h.service.GetConversion(ctx, payload.ConversionID)
		if err == nil {
			result := &taskqueue.ConvertResult{
				ConversionID: conv.ID,
				AudioID:      conv.AudioID,
				TextID:       conv.TextID,
				ChunkCount:   conv.ChunkCount,
			}
			if err := queue.UpdateTaskStatus(ctx, task.ID, taskqueue.StatusCompleted, result, ""); err != nil {
				h.logger.WithError(err).Warn("Failed to record task result")
			}
		}
	}

	return nil
}

// GetTaskTypes 返回此处理器支持的任务类型
func (h *ConvertTaskHandler) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{taskqueue.TaskConvert}
}

// RegisterTaskHandlers 把转换服务的任务处理器注册到工作者
func RegisterTaskHandlers(worker taskqueue.Worker, service *ConversionService, logger *logrus.Logger) {
	handler := NewConvertTaskHandler(service, logger)
	for _, taskType := range handler.GetTaskTypes() {
		worker.RegisterHandler(taskType, handler)
	}
}
