package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CallumBoase/PDF2Audio/internal/models"
)

// ConversionStatusManager 转换任务状态管理器
// 负责管理转换任务的生命周期状态
// 任务记录只保存在内存中，服务重启后不保留
type ConversionStatusManager struct {
	conversions map[string]*models.Conversion // 任务记录表
	logger      *logrus.Logger                // 日志记录器
	mu          sync.RWMutex                  // 读写锁，保证状态转换的原子性
}

// NewConversionStatusManager 创建转换任务状态管理器
func NewConversionStatusManager(logger *logrus.Logger) *ConversionStatusManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	return &ConversionStatusManager{
		conversions: make(map[string]*models.Conversion),
		logger:      logger,
	}
}

// MarkAsUploaded 创建任务记录并标记为已上传状态
func (m *ConversionStatusManager) MarkAsUploaded(ctx context.Context, conv *models.Conversion) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conv.ID == "" {
		return errors.New("conversion ID cannot be empty")
	}
	if _, exists := m.conversions[conv.ID]; exists {
		return fmt.Errorf("conversion %s already exists", conv.ID)
	}

	m.logger.WithFields(logrus.Fields{
		"conversion_id": conv.ID,
		"filename":      conv.FileName,
	}).Info("Marking conversion as uploaded")

	now := time.Now()
	conv.Status = models.ConversionUploaded
	conv.CreatedAt = now
	conv.UpdatedAt = now
	conv.Progress = 0

	m.conversions[conv.ID] = conv
	return nil
}

// MarkAsProcessing 将任务标记为处理中状态
func (m *ConversionStatusManager) MarkAsProcessing(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, err := m.get(id)
	if err != nil {
		return err
	}

	// 检查状态转换的有效性，失败的任务允许重新处理
	if conv.Status != models.ConversionUploaded && conv.Status != models.ConversionFailed {
		return fmt.Errorf("invalid state transition: conversion %s is in %s state, expected %s",
			id, conv.Status, models.ConversionUploaded)
	}

	m.logger.WithField("conversion_id", id).Info("Marking conversion as processing")

	conv.Status = models.ConversionProcessing
	conv.Stage = models.StageParsing
	conv.Error = ""
	conv.UpdatedAt = time.Now()
	return nil
}

// MarkAsCompleted 将任务标记为完成状态并记录产物路径
func (m *ConversionStatusManager) MarkAsCompleted(ctx context.Context, id string, audioID string, textID string, chunkCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, err := m.get(id)
	if err != nil {
		return err
	}

	if conv.Status != models.ConversionProcessing && conv.Status != models.ConversionUploaded {
		return fmt.Errorf("invalid state transition: conversion %s is in %s state, expected %s or %s",
			id, conv.Status, models.ConversionProcessing, models.ConversionUploaded)
	}

	m.logger.WithFields(logrus.Fields{
		"conversion_id": id,
		"chunk_count":   chunkCount,
	}).Info("Marking conversion as completed")

	now := time.Now()
	conv.Status = models.ConversionCompleted
	conv.Stage = models.StageCompleted
	conv.Progress = 100
	conv.AudioID = audioID
	conv.TextID = textID
	conv.ChunkCount = chunkCount
	conv.UpdatedAt = now
	conv.CompletedAt = &now
	return nil
}

// MarkAsFailed 将任务标记为失败状态
func (m *ConversionStatusManager) MarkAsFailed(ctx context.Context, id string, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, err := m.get(id)
	if err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"conversion_id": id,
		"error":         errorMsg,
	}).Error("Marking conversion as failed")

	conv.Status = models.ConversionFailed
	conv.Error = errorMsg
	conv.UpdatedAt = time.Now()
	return nil
}

// UpdateStage 更新任务的处理阶段和进度
func (m *ConversionStatusManager) UpdateStage(ctx context.Context, id string, stage models.ConversionStage, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, err := m.get(id)
	if err != nil {
		return err
	}

	// 只有处理中的任务才能更新阶段
	if conv.Status != models.ConversionProcessing {
		return fmt.Errorf("cannot update stage: conversion %s is not in processing state", id)
	}

	m.logger.WithFields(logrus.Fields{
		"conversion_id": id,
		"stage":         stage,
		"progress":      progress,
	}).Debug("Updating conversion stage")

	conv.Stage = stage
	conv.Progress = progress
	conv.UpdatedAt = time.Now()
	return nil
}

// GetStatus 获取任务当前状态
func (m *ConversionStatusManager) GetStatus(ctx context.Context, id string) (models.ConversionStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, err := m.get(id)
	if err != nil {
		return "", err
	}
	return conv.Status, nil
}

// GetConversion 获取完整的任务对象副本
func (m *ConversionStatusManager) GetConversion(ctx context.Context, id string) (*models.Conversion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, err := m.get(id)
	if err != nil {
		return nil, err
	}

	// 返回副本，避免调用方绕过锁修改内部状态
	clone := *conv
	return &clone, nil
}

// ListConversions 获取任务列表，按创建时间倒序排列
func (m *ConversionStatusManager) ListConversions(ctx context.Context, offset, limit int) ([]*models.Conversion, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*models.Conversion, 0, len(m.conversions))
	for _, conv := range m.conversions {
		clone := *conv
		all = append(all, &clone)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []*models.Conversion{}, total, nil
	}

	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

// DeleteConversion 删除任务记录
func (m *ConversionStatusManager) DeleteConversion(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.get(id); err != nil {
		return err
	}

	m.logger.WithField("conversion_id", id).Info("Deleting conversion record")
	delete(m.conversions, id)
	return nil
}

// get 按ID查找任务记录，调用方必须已持有锁
func (m *ConversionStatusManager) get(id string) (*models.Conversion, error) {
	conv, exists := m.conversions[id]
	if !exists {
		return nil, models.ErrConversionNotFound
	}
	return conv, nil
}
