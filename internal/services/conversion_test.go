package services

import (
	"context"
	"io"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CallumBoase/PDF2Audio/internal/cache"
	"github.com/CallumBoase/PDF2Audio/internal/document"
	"github.com/CallumBoase/PDF2Audio/internal/models"
	"github.com/CallumBoase/PDF2Audio/internal/tts"
	"github.com/CallumBoase/PDF2Audio/pkg/storage"
)

// testTTSClient 实现tts.Client接口的测试客户端
// 记录合成调用次数，音频内容编码自输入文本
type testTTSClient struct {
	synthCount *int32
	failOn     string
	maxDelay   time.Duration
}

func (c *testTTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	atomic.AddInt32(c.synthCount, 1)

	if c.maxDelay > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(c.maxDelay))))
	}

	if c.failOn != "" && strings.Contains(text, c.failOn) {
		return nil, tts.NewTTSError(tts.ErrCodeServerError, tts.ErrMsgServerError)
	}
	return []byte("[" + text + "]"), nil
}

func (c *testTTSClient) Name() string {
	return "test"
}

// testEnv 转换服务测试环境
type testEnv struct {
	service     *ConversionService
	synthCount  *int32
	clientCalls *int32 // 工厂被调用的次数
}

// setupConversionTestEnv 设置转换服务的测试环境
func setupConversionTestEnv(t *testing.T, opts ...ConversionOption) *testEnv {
	storageService, err := storage.NewLocalStorage(storage.LocalConfig{
		Path: t.TempDir(),
	})
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	splitterConfig := document.DefaultSplitterConfig()
	splitterConfig.MaxChunkSize = 60
	splitter := document.NewTextSplitter(splitterConfig)

	synthCount := new(int32)
	clientCalls := new(int32)
	factory := func(factoryOpts ...tts.Option) (tts.Client, error) {
		atomic.AddInt32(clientCalls, 1)
		cfg := tts.NewConfig(factoryOpts...)
		if cfg.APIKey == "" {
			return nil, tts.NewTTSError(tts.ErrCodeInvalidAPIKey, tts.ErrMsgInvalidAPIKey)
		}
		return &testTTSClient{
			synthCount: synthCount,
			maxDelay:   5 * time.Millisecond,
		}, nil
	}

	allOpts := append([]ConversionOption{
		WithLogger(logger),
		WithMaxWorkers(4),
		WithTimeout(10 * time.Second),
		WithTTSClientFactory(factory),
		WithWorkDir(t.TempDir()),
	}, opts...)

	service := NewConversionService(
		storageService,
		document.NewTextNormalizer(),
		splitter,
		allOpts...,
	)

	return &testEnv{
		service:     service,
		synthCount:  synthCount,
		clientCalls: clientCalls,
	}
}

// TestCreateConversionSync 测试同步模式下的完整转换流程
func TestCreateConversionSync(t *testing.T) {
	env := setupConversionTestEnv(t)
	ctx := context.Background()

	content := "This is the first paragraph of the test document.\n\n" +
		"This is the second paragraph with more content in it.\n\n" +
		"And a third paragraph closes the document."

	conv, err := env.service.CreateConversion(ctx, strings.NewReader(content), ConvertRequest{
		FileName: "test.txt",
		APIKey:   "sk-test",
		Voice:    tts.VoiceNova,
		Model:    tts.ModelStandard,
		Speed:    1.0,
	})
	require.NoError(t, err, "Sync conversion should succeed")
	require.NotNil(t, conv)

	assert.Equal(t, models.ConversionCompleted, conv.Status, "Conversion should be completed")
	assert.Equal(t, 100, conv.Progress)
	assert.NotEmpty(t, conv.AudioID, "Audio artifact should be recorded")
	assert.NotEmpty(t, conv.TextID, "Text artifact should be recorded")
	assert.Greater(t, conv.ChunkCount, 1, "Content should be split into multiple chunks")
	assert.NotNil(t, conv.CompletedAt)

	// 每个分块恰好合成一次
	assert.EqualValues(t, conv.ChunkCount, atomic.LoadInt32(env.synthCount),
		"Each chunk should be synthesized exactly once")

	// 音频内容应该按分块顺序拼接
	audioReader, err := env.service.GetAudio(ctx, conv.ID)
	require.NoError(t, err)
	defer audioReader.Close()

	text, err := env.service.GetText(ctx, conv.ID)
	require.NoError(t, err)
	assert.Contains(t, text, "first paragraph")
}

// TestConversionAudioOrder 测试合成结果的顺序与文本顺序一致
func TestConversionAudioOrder(t *testing.T) {
	env := setupConversionTestEnv(t)
	ctx := context.Background()

	// 多个段落，完成顺序被随机延迟打乱
	var parts []string
	for i := 0; i < 8; i++ {
		parts = append(parts, "Paragraph number "+string(rune('A'+i))+" is right here.")
	}
	content := strings.Join(parts, "\n\n")

	conv, err := env.service.CreateConversion(ctx, strings.NewReader(content), ConvertRequest{
		FileName: "ordered.txt",
		APIKey:   "sk-test",
	})
	require.NoError(t, err)
	require.Equal(t, models.ConversionCompleted, conv.Status)

	audio, err := env.service.GetAudio(ctx, conv.ID)
	require.NoError(t, err)
	defer audio.Close()

	data, err := io.ReadAll(audio)
	require.NoError(t, err)
	combined := string(data)

	// 每个段落在音频流中出现，且位置严格递增
	lastPos := -1
	for _, part := range parts {
		pos := strings.Index(combined, part)
		require.GreaterOrEqual(t, pos, 0, "Audio should contain paragraph %q", part)
		assert.Greater(t, pos, lastPos, "Audio chunks must follow text order")
		lastPos = pos
	}
}

// TestConversionMissingAPIKey 测试缺少API密钥时的前置检查
// 检查必须发生在任何解析和合成工作之前
func TestConversionMissingAPIKey(t *testing.T) {
	env := setupConversionTestEnv(t)
	ctx := context.Background()

	_, err := env.service.CreateConversion(ctx, strings.NewReader("some text"), ConvertRequest{
		FileName: "test.txt",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrAPIKeyRequired)

	// 既没有创建合成客户端，也没有合成任何分块
	assert.EqualValues(t, 0, atomic.LoadInt32(env.clientCalls),
		"No TTS client should be created without an API key")
	assert.EqualValues(t, 0, atomic.LoadInt32(env.synthCount),
		"Nothing should be synthesized without an API key")
}

// TestConversionDefaultAPIKey 测试服务端兜底密钥
func TestConversionDefaultAPIKey(t *testing.T) {
	env := setupConversionTestEnv(t, WithDefaultAPIKey("sk-server"))
	ctx := context.Background()

	conv, err := env.service.CreateConversion(ctx, strings.NewReader("hello world"), ConvertRequest{
		FileName: "test.txt",
	})
	require.NoError(t, err, "Server-side key should be used as fallback")
	assert.Equal(t, models.ConversionCompleted, conv.Status)
}

// TestConversionSynthesisFailure 测试合成失败时不产生部分结果
func TestConversionSynthesisFailure(t *testing.T) {
	synthCount := new(int32)
	factory := func(factoryOpts ...tts.Option) (tts.Client, error) {
		return &testTTSClient{
			synthCount: synthCount,
			failOn:     "poison",
		}, nil
	}

	env := setupConversionTestEnv(t, WithTTSClientFactory(factory))
	ctx := context.Background()

	content := "A good paragraph comes first.\n\n" +
		"The poison paragraph breaks synthesis.\n\n" +
		"Another good paragraph comes last."

	conv, err := env.service.CreateConversion(ctx, strings.NewReader(content), ConvertRequest{
		FileName: "failing.txt",
		APIKey:   "sk-test",
	})
	require.Error(t, err, "Conversion should fail when any chunk fails")
	require.NotNil(t, conv, "Failed conversion record should still be returned")

	assert.Equal(t, models.ConversionFailed, conv.Status)
	assert.NotEmpty(t, conv.Error)
	assert.Empty(t, conv.AudioID, "No audio artifact should be recorded on failure")

	_, err = env.service.GetAudio(ctx, conv.ID)
	assert.Error(t, err, "No audio should be retrievable after failure")
}

// TestConversionInvalidVoice 测试无效声音参数
func TestConversionInvalidVoice(t *testing.T) {
	env := setupConversionTestEnv(t)
	ctx := context.Background()

	_, err := env.service.CreateConversion(ctx, strings.NewReader("text"), ConvertRequest{
		FileName: "test.txt",
		APIKey:   "sk-test",
		Voice:    "robot",
	})
	require.Error(t, err)

	var ttsErr tts.TTSError
	require.ErrorAs(t, err, &ttsErr)
	assert.Equal(t, tts.ErrCodeInvalidRequest, ttsErr.Code)
}

// TestConversionEmptyDocument 测试没有可读文本的文档
func TestConversionEmptyDocument(t *testing.T) {
	env := setupConversionTestEnv(t)
	ctx := context.Background()

	// 规范化会删除独立页码行，只剩空白
	conv, err := env.service.CreateConversion(ctx, strings.NewReader("1\n2\n3\n"), ConvertRequest{
		FileName: "empty.txt",
		APIKey:   "sk-test",
	})
	require.Error(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, models.ConversionFailed, conv.Status)
	assert.EqualValues(t, 0, atomic.LoadInt32(env.synthCount))
}

// TestConversionChunkCache 测试分块音频缓存
func TestConversionChunkCache(t *testing.T) {
	audioCache, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	env := setupConversionTestEnv(t, WithAudioCache(audioCache))
	ctx := context.Background()

	content := "The same document converted twice should reuse cached chunk audio."

	conv1, err := env.service.CreateConversion(ctx, strings.NewReader(content), ConvertRequest{
		FileName: "first.txt",
		APIKey:   "sk-test",
	})
	require.NoError(t, err)
	firstCount := atomic.LoadInt32(env.synthCount)
	assert.EqualValues(t, conv1.ChunkCount, firstCount)

	// 第二次转换相同内容，全部命中缓存
	conv2, err := env.service.CreateConversion(ctx, strings.NewReader(content), ConvertRequest{
		FileName: "second.txt",
		APIKey:   "sk-test",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ConversionCompleted, conv2.Status)
	assert.EqualValues(t, firstCount, atomic.LoadInt32(env.synthCount),
		"Cached chunks should not be synthesized again")
}

// TestDeleteConversion 测试删除任务及其产物
func TestDeleteConversion(t *testing.T) {
	env := setupConversionTestEnv(t)
	ctx := context.Background()

	conv, err := env.service.CreateConversion(ctx, strings.NewReader("document to delete"), ConvertRequest{
		FileName: "doomed.txt",
		APIKey:   "sk-test",
	})
	require.NoError(t, err)

	require.NoError(t, env.service.DeleteConversion(ctx, conv.ID))

	_, err = env.service.GetConversion(ctx, conv.ID)
	assert.ErrorIs(t, err, models.ErrConversionNotFound)
}

// TestListConversions 测试任务列表
func TestListConversions(t *testing.T) {
	env := setupConversionTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := env.service.CreateConversion(ctx, strings.NewReader("list test document"), ConvertRequest{
			FileName: "doc.txt",
			APIKey:   "sk-test",
		})
		require.NoError(t, err)
	}

	list, total, err := env.service.ListConversions(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, list, 3)

	page, total, err := env.service.ListConversions(ctx, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 1)
}
