package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CallumBoase/PDF2Audio/internal/audio"
	"github.com/CallumBoase/PDF2Audio/internal/cache"
	"github.com/CallumBoase/PDF2Audio/internal/document"
	"github.com/CallumBoase/PDF2Audio/internal/models"
	"github.com/CallumBoase/PDF2Audio/internal/tts"
	"github.com/CallumBoase/PDF2Audio/pkg/storage"
	"github.com/CallumBoase/PDF2Audio/pkg/taskqueue"
)

// TTSClientFactory 语音合成客户端工厂函数类型
// 服务在每次处理任务时按任务参数创建客户端
type TTSClientFactory func(opts ...tts.Option) (tts.Client, error)

// ConversionService 文档转语音服务
// 负责协调文本提取、清理、分块、并行合成和音频拼接
type ConversionService struct {
	storage       storage.Storage          // 文件存储服务
	normalizer    document.Normalizer      // 文本规范化器
	splitter      document.Splitter        // 文本分块器
	audioCache    cache.Cache              // 分块音频缓存
	statusManager *ConversionStatusManager // 任务状态管理器
	taskQueue     taskqueue.Queue          // 任务队列
	asyncEnabled  bool                     // 是否启用异步处理
	newTTSClient  TTSClientFactory         // 合成客户端工厂
	defaultAPIKey string                   // 服务端兜底API密钥
	maxWorkers    int                      // 并行合成的工作线程数
	timeout       time.Duration            // 单个任务的处理超时时间
	workDir       string                   // 音频拼接的临时目录，空则使用系统默认
	cacheTTL      time.Duration            // 分块音频的缓存时间
	logger        *logrus.Logger           // 日志记录器
}

// ConversionOption 转换服务配置选项
type ConversionOption func(*ConversionService)

// NewConversionService 创建一个新的文档转语音服务
func NewConversionService(
	storage storage.Storage,
	normalizer document.Normalizer,
	splitter document.Splitter,
	opts ...ConversionOption,
) *ConversionService {
	srv := &ConversionService{
		storage:      storage,
		normalizer:   normalizer,
		splitter:     splitter,
		newTTSClient: tts.NewOpenAIClient, // 默认使用OpenAI合成客户端
		maxWorkers:   4,                   // 默认并行度
		timeout:      time.Minute * 10,    // 默认超时时间
		cacheTTL:     time.Hour * 24,      // 默认缓存一天
		logger:       logrus.New(),        // 默认日志记录器
		asyncEnabled: false,               // 默认同步处理
	}

	for _, opt := range opts {
		opt(srv)
	}

	if srv.statusManager == nil {
		srv.statusManager = NewConversionStatusManager(srv.logger)
	}

	return srv
}

// WithMaxWorkers 设置并行合成的工作线程数
func WithMaxWorkers(workers int) ConversionOption {
	return func(s *ConversionService) {
		if workers > 0 {
			s.maxWorkers = workers
		}
	}
}

// WithTimeout 设置单个任务的处理超时时间
func WithTimeout(timeout time.Duration) ConversionOption {
	return func(s *ConversionService) {
		s.timeout = timeout
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) ConversionOption {
	return func(s *ConversionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStatusManager 设置状态管理器
func WithStatusManager(manager *ConversionStatusManager) ConversionOption {
	return func(s *ConversionService) {
		s.statusManager = manager
	}
}

// WithAudioCache 设置分块音频缓存
func WithAudioCache(c cache.Cache) ConversionOption {
	return func(s *ConversionService) {
		s.audioCache = c
	}
}

// WithAudioCacheTTL 设置分块音频的缓存时间
func WithAudioCacheTTL(ttl time.Duration) ConversionOption {
	return func(s *ConversionService) {
		s.cacheTTL = ttl
	}
}

// WithTaskQueue 设置任务队列
func WithTaskQueue(queue taskqueue.Queue) ConversionOption {
	return func(s *ConversionService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithAsyncProcessing 设置是否启用异步处理
func WithAsyncProcessing(enabled bool) ConversionOption {
	return func(s *ConversionService) {
		s.asyncEnabled = enabled
	}
}

// WithTTSClientFactory 设置合成客户端工厂
func WithTTSClientFactory(factory TTSClientFactory) ConversionOption {
	return func(s *ConversionService) {
		if factory != nil {
			s.newTTSClient = factory
		}
	}
}

// WithDefaultAPIKey 设置服务端兜底API密钥
// 请求未携带密钥时使用
func WithDefaultAPIKey(key string) ConversionOption {
	return func(s *ConversionService) {
		s.defaultAPIKey = key
	}
}

// WithWorkDir 设置音频拼接的临时目录
func WithWorkDir(dir string) ConversionOption {
	return func(s *ConversionService) {
		s.workDir = dir
	}
}

// ConvertRequest 转换请求参数
type ConvertRequest struct {
	FileName string  // 原始文件名
	APIKey   string  // 请求携带的API密钥，可为空
	Voice    string  // 合成声音
	Model    string  // 合成模型
	Speed    float64 // 语速
}

// CreateConversion 接收上传文件并创建转换任务
// 同步模式下当场完成转换，异步模式下入队后立即返回
func (s *ConversionService) CreateConversion(ctx context.Context, reader io.Reader, req ConvertRequest) (*models.Conversion, error) {
	// 密钥前置检查：没有可用密钥时拒绝开始任何工作
	apiKey := s.resolveAPIKey(req.APIKey)
	if apiKey == "" {
		return nil, models.ErrAPIKeyRequired
	}

	if req.Voice == "" {
		req.Voice = tts.VoiceAlloy
	}
	if req.Model == "" {
		req.Model = tts.ModelStandard
	}
	if req.Speed == 0 {
		req.Speed = 1.0
	}

	if !tts.IsValidVoice(req.Voice) {
		return nil, tts.NewTTSError(tts.ErrCodeInvalidRequest, "invalid voice: "+req.Voice)
	}
	if !tts.IsValidModel(req.Model) {
		return nil, tts.NewTTSError(tts.ErrCodeInvalidRequest, "invalid model: "+req.Model)
	}

	// 保存上传文件
	fileInfo, err := s.storage.Save(reader, req.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to save uploaded file: %w", err)
	}

	conv := &models.Conversion{
		ID:       fileInfo.ID,
		FileName: req.FileName,
		FileType: strings.TrimPrefix(filepath.Ext(req.FileName), "."),
		FilePath: fileInfo.Path,
		FileSize: fileInfo.Size,
		Voice:    req.Voice,
		Model:    req.Model,
		Speed:    req.Speed,
	}

	if err := s.statusManager.MarkAsUploaded(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to register conversion: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"conversion_id": conv.ID,
		"filename":      conv.FileName,
		"voice":         conv.Voice,
		"model":         conv.Model,
	}).Info("Conversion created")

	// 异步模式：入队后立即返回
	if s.asyncEnabled && s.taskQueue != nil {
		if err := s.enqueueConversion(ctx, conv, apiKey); err != nil {
			s.failConversion(ctx, conv.ID, fmt.Sprintf("failed to enqueue conversion: %v", err))
			return nil, err
		}
		return s.statusManager.GetConversion(ctx, conv.ID)
	}

	// 同步模式：当场处理
	if err := s.ProcessConversion(ctx, conv.ID, apiKey); err != nil {
		// 状态已在ProcessConversion内标记为失败，这里返回最新记录和错误
		latest, getErr := s.statusManager.GetConversion(ctx, conv.ID)
		if getErr != nil {
			return nil, err
		}
		return latest, err
	}

	return s.statusManager.GetConversion(ctx, conv.ID)
}

// ProcessConversion 执行一次完整的转换流程
// 提取文本、清理、分块、并行合成并拼接为单个MP3文件
func (s *ConversionService) ProcessConversion(ctx context.Context, id string, apiKey string) error {
	// 密钥前置检查先于一切解析和合成工作
	apiKey = s.resolveAPIKey(apiKey)
	if apiKey == "" {
		s.failConversion(ctx, id, models.ErrAPIKeyRequired.Error())
		return models.ErrAPIKeyRequired
	}

	conv, err := s.statusManager.GetConversion(ctx, id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.statusManager.MarkAsProcessing(ctx, id); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"conversion_id": id,
		"filename":      conv.FileName,
	}).Info("Starting conversion processing")

	// 提取文本
	text, err := s.extractText(conv)
	if err != nil {
		s.failConversion(ctx, id, fmt.Sprintf("failed to extract text: %v", err))
		return fmt.Errorf("failed to extract text: %w", err)
	}

	// 清理提取结果
	text = s.normalizer.Normalize(text)
	if strings.TrimSpace(text) == "" {
		s.failConversion(ctx, id, "document contains no readable text")
		return errors.New("document contains no readable text")
	}

	// 保存提取文本，供用户核对朗读内容
	textInfo, err := s.storage.Save(strings.NewReader(text), conv.ID+".txt")
	if err != nil {
		s.failConversion(ctx, id, fmt.Sprintf("failed to save extracted text: %v", err))
		return fmt.Errorf("failed to save extracted text: %w", err)
	}

	if err := s.statusManager.UpdateStage(ctx, id, models.StageChunking, 20); err != nil {
		s.logger.WithError(err).Warn("Failed to update conversion stage")
	}

	// 文本分块
	chunks, err := s.splitter.Split(text)
	if err != nil {
		s.failConversion(ctx, id, fmt.Sprintf("failed to split text: %v", err))
		return fmt.Errorf("failed to split text: %w", err)
	}
	if len(chunks) == 0 {
		s.failConversion(ctx, id, "document contains no readable text")
		return errors.New("document contains no readable text")
	}

	s.logger.WithFields(logrus.Fields{
		"conversion_id": id,
		"chunk_count":   len(chunks),
	}).Info("Text split into chunks")

	if err := s.statusManager.UpdateStage(ctx, id, models.StageSynthesizing, 30); err != nil {
		s.logger.WithError(err).Warn("Failed to update conversion stage")
	}

	// 并行合成全部分块
	payloads, err := s.synthesizeChunks(ctx, conv, apiKey, chunks)
	if err != nil {
		s.failConversion(ctx, id, fmt.Sprintf("failed to synthesize audio: %v", err))
		return fmt.Errorf("failed to synthesize audio: %w", err)
	}

	if err := s.statusManager.UpdateStage(ctx, id, models.StageAssembling, 80); err != nil {
		s.logger.WithError(err).Warn("Failed to update conversion stage")
	}

	// 按分块顺序拼接音频
	combined, err := s.assembleAudio(payloads)
	if err != nil {
		s.failConversion(ctx, id, fmt.Sprintf("failed to assemble audio: %v", err))
		return fmt.Errorf("failed to assemble audio: %w", err)
	}

	// 保存最终音频
	audioInfo, err := s.storage.Save(bytes.NewReader(combined), conv.ID+".mp3")
	if err != nil {
		s.failConversion(ctx, id, fmt.Sprintf("failed to save audio: %v", err))
		return fmt.Errorf("failed to save audio: %w", err)
	}

	if err := s.statusManager.MarkAsCompleted(ctx, id, audioInfo.ID, textInfo.ID, len(chunks)); err != nil {
		s.logger.WithError(err).Error("Failed to mark conversion as completed")
		// 转换本身已成功，状态更新失败不作为处理错误返回
	}

	s.logger.WithFields(logrus.Fields{
		"conversion_id": id,
		"chunk_count":   len(chunks),
		"audio_bytes":   len(combined),
	}).Info("Conversion completed successfully")

	return nil
}

// extractText 从存储中读取文件并提取纯文本
func (s *ConversionService) extractText(conv *models.Conversion) (string, error) {
	reader, err := s.storage.Get(conv.ID)
	if err != nil {
		return "", fmt.Errorf("failed to get file from storage: %w", err)
	}
	defer reader.Close()

	parser, err := document.ParserFactory(conv.FileName)
	if err != nil {
		return "", fmt.Errorf("failed to create parser: %w", err)
	}

	text, err := parser.ParseReader(reader, conv.FileName)
	if err != nil {
		return "", fmt.Errorf("failed to parse document: %w", err)
	}

	return text, nil
}

// synthesizeChunks 并行合成全部分块，返回与分块一一对应的音频数据
// 命中缓存的分块不再请求合成服务
func (s *ConversionService) synthesizeChunks(ctx context.Context, conv *models.Conversion, apiKey string, chunks []document.Chunk) ([][]byte, error) {
	payloads := make([][]byte, len(chunks))

	// 先查缓存，收集未命中的分块
	var missing []document.Chunk
	var missingPos []int
	for i, chunk := range chunks {
		if s.audioCache != nil {
			key := cache.AudioKey(conv.Voice, conv.Model, conv.Speed, chunk.Text)
			if data, found, err := s.audioCache.Get(key); err == nil && found {
				payloads[i] = data
				continue
			}
		}
		missing = append(missing, chunk)
		missingPos = append(missingPos, i)
	}

	if len(missing) < len(chunks) {
		s.logger.WithFields(logrus.Fields{
			"conversion_id": conv.ID,
			"cached":        len(chunks) - len(missing),
			"total":         len(chunks),
		}).Info("Reusing cached chunk audio")
	}

	if len(missing) == 0 {
		return payloads, nil
	}

	client, err := s.newTTSClient(
		tts.WithAPIKey(apiKey),
		tts.WithModel(conv.Model),
		tts.WithVoice(conv.Voice),
		tts.WithSpeed(conv.Speed),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tts client: %w", err)
	}

	dispatcher := tts.NewDispatcher(client, s.maxWorkers)
	results, err := dispatcher.Dispatch(ctx, missing)
	if err != nil {
		return nil, err
	}

	// 把合成结果放回原始位置并写入缓存
	for j, data := range results {
		payloads[missingPos[j]] = data
		if s.audioCache != nil {
			key := cache.AudioKey(conv.Voice, conv.Model, conv.Speed, missing[j].Text)
			if err := s.audioCache.Set(key, data, s.cacheTTL); err != nil {
				s.logger.WithError(err).Warn("Failed to cache chunk audio")
			}
		}
	}

	return payloads, nil
}

// assembleAudio 把分块音频按顺序拼接成完整的MP3数据
// 拼接使用临时目录落盘，无论成败都会清理
func (s *ConversionService) assembleAudio(payloads [][]byte) ([]byte, error) {
	assembler, err := audio.NewAssembler(s.workDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := assembler.Cleanup(); err != nil {
			s.logger.WithError(err).Warn("Failed to clean up audio work directory")
		}
	}()

	return assembler.Assemble(payloads)
}

// enqueueConversion 创建异步转换任务
func (s *ConversionService) enqueueConversion(ctx context.Context, conv *models.Conversion, apiKey string) error {
	payload := taskqueue.ConvertPayload{
		ConversionID: conv.ID,
		FilePath:     conv.FilePath,
		FileName:     conv.FileName,
		APIKey:       apiKey,
		Voice:        conv.Voice,
		Model:        conv.Model,
		Speed:        conv.Speed,
	}

	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskConvert, conv.ID, payload)
	if err != nil {
		return fmt.Errorf("failed to enqueue conversion task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"conversion_id": conv.ID,
		"task_id":       taskID,
	}).Info("Conversion task enqueued")

	return nil
}

// GetConversion 获取任务信息
func (s *ConversionService) GetConversion(ctx context.Context, id string) (*models.Conversion, error) {
	return s.statusManager.GetConversion(ctx, id)
}

// ListConversions 获取任务列表
func (s *ConversionService) ListConversions(ctx context.Context, offset, limit int) ([]*models.Conversion, int64, error) {
	return s.statusManager.ListConversions(ctx, offset, limit)
}

// GetAudio 获取任务的合成音频
func (s *ConversionService) GetAudio(ctx context.Context, id string) (io.ReadCloser, error) {
	conv, err := s.statusManager.GetConversion(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.Status != models.ConversionCompleted || conv.AudioID == "" {
		return nil, fmt.Errorf("conversion %s has no audio: status is %s", id, conv.Status)
	}
	return s.storage.Get(conv.AudioID)
}

// GetText 获取任务提取出的文本
func (s *ConversionService) GetText(ctx context.Context, id string) (string, error) {
	conv, err := s.statusManager.GetConversion(ctx, id)
	if err != nil {
		return "", err
	}
	if conv.TextID == "" {
		return "", fmt.Errorf("conversion %s has no extracted text", id)
	}

	reader, err := s.storage.Get(conv.TextID)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read extracted text: %w", err)
	}
	return string(data), nil
}

// DeleteConversion 删除任务及其全部产物
func (s *ConversionService) DeleteConversion(ctx context.Context, id string) error {
	conv, err := s.statusManager.GetConversion(ctx, id)
	if err != nil {
		return err
	}

	s.logger.WithField("conversion_id", id).Info("Deleting conversion")

	// 删除上传文件，文件可能已不存在，记录错误但不中断流程
	if err := s.storage.Delete(conv.ID); err != nil {
		s.logger.WithError(err).Warn("Failed to delete uploaded file")
	}
	if conv.TextID != "" {
		if err := s.storage.Delete(conv.TextID); err != nil {
			s.logger.WithError(err).Warn("Failed to delete extracted text")
		}
	}
	if conv.AudioID != "" {
		if err := s.storage.Delete(conv.AudioID); err != nil {
			s.logger.WithError(err).Warn("Failed to delete audio file")
		}
	}

	return s.statusManager.DeleteConversion(ctx, id)
}

// GetStatusManager 返回任务状态管理器实例
func (s *ConversionService) GetStatusManager() *ConversionStatusManager {
	return s.statusManager
}

// GetTaskQueue 返回任务队列实例
func (s *ConversionService) GetTaskQueue() taskqueue.Queue {
	return s.taskQueue
}

// resolveAPIKey 确定本次处理使用的API密钥
// 请求携带的密钥优先，其次是服务端配置的兜底密钥
func (s *ConversionService) resolveAPIKey(requestKey string) string {
	if strings.TrimSpace(requestKey) != "" {
		return strings.TrimSpace(requestKey)
	}
	return s.defaultAPIKey
}

// failConversion 将任务标记为失败状态
func (s *ConversionService) failConversion(ctx context.Context, id string, errorMsg string) {
	if s.statusManager == nil {
		s.logger.Error("Cannot mark conversion as failed: status manager not initialized")
		return
	}

	if err := s.statusManager.MarkAsFailed(ctx, id, errorMsg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"conversion_id": id,
			"error":         err,
		}).Error("Failed to mark conversion as failed")
	}
}
