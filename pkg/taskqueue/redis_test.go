package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedisTest 设置一个miniredis实例用于测试
// 返回Redis地址和一个清理函数
func setupRedisTest(t *testing.T) (string, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	return mr.Addr(), func() {
		mr.Close()
	}
}

func testConfig(addr string) *Config {
	return &Config{
		RedisAddr:   addr,
		Concurrency: 2,
		RetryLimit:  0,
		RetryDelay:  time.Second,
		Queues:      map[string]int{"default": 1},
	}
}

func testPayload() *ConvertPayload {
	return &ConvertPayload{
		ConversionID: "conv-123",
		FilePath:     "2026/01/01/conv-123.pdf",
		FileName:     "document.pdf",
		APIKey:       "sk-test",
		Voice:        "alloy",
		Model:        "tts-1",
		Speed:        1.0,
	}
}

// TestNewRedisQueue 测试创建Redis队列实例
func TestNewRedisQueue(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue, err := NewRedisQueue(testConfig(redisAddr))
	assert.NoError(t, err)
	assert.NotNil(t, queue)

	err = queue.Close()
	assert.NoError(t, err)
}

// TestRedisQueue_Enqueue 测试队列入队功能
func TestRedisQueue_Enqueue(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue, err := NewRedisQueue(testConfig(redisAddr))
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()

	// 测试基本入队
	taskID, err := queue.Enqueue(ctx, TaskConvert, "conv-123", testPayload())
	assert.NoError(t, err)
	assert.NotEmpty(t, taskID)

	// 验证任务已入队
	task, err := queue.GetTask(ctx, taskID)
	assert.NoError(t, err)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, TaskConvert, task.Type)
	assert.Equal(t, "conv-123", task.ConversionID)
	assert.Equal(t, StatusPending, task.Status)
	assert.NotNil(t, task.Payload)

	// 载荷应该能还原出转换参数
	var payload ConvertPayload
	require.NoError(t, UnmarshalPayload(task.Payload, &payload))
	assert.Equal(t, "conv-123", payload.ConversionID)
	assert.Equal(t, "alloy", payload.Voice)
	assert.Equal(t, "sk-test", payload.APIKey)
}

// TestRedisQueue_GetTasksByConversion 测试按转换任务查询
func TestRedisQueue_GetTasksByConversion(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue, err := NewRedisQueue(testConfig(redisAddr))
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()

	taskID1, err := queue.Enqueue(ctx, TaskConvert, "conv-a", testPayload())
	require.NoError(t, err)
	_, err = queue.Enqueue(ctx, TaskConvert, "conv-b", testPayload())
	require.NoError(t, err)

	tasks, err := queue.GetTasksByConversion(ctx, "conv-a")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, taskID1, tasks[0].ID)

	// 没有任务的转换返回空列表
	tasks, err = queue.GetTasksByConversion(ctx, "conv-none")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestRedisQueue_UpdateTaskStatus 测试任务状态更新
func TestRedisQueue_UpdateTaskStatus(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue, err := NewRedisQueue(testConfig(redisAddr))
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskConvert, "conv-123", testPayload())
	require.NoError(t, err)

	// 标记为处理中
	err = queue.UpdateTaskStatus(ctx, taskID, StatusProcessing, nil, "")
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, task.Status)
	assert.NotNil(t, task.StartedAt)

	// 标记为完成并附带结果
	result := &ConvertResult{
		ConversionID: "conv-123",
		AudioID:      "audio-1",
		ChunkCount:   3,
	}
	err = queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, result, "")
	require.NoError(t, err)

	task, err = queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)

	var got ConvertResult
	require.NoError(t, UnmarshalPayload(task.Result, &got))
	assert.Equal(t, "audio-1", got.AudioID)
	assert.Equal(t, 3, got.ChunkCount)
}

// TestRedisQueue_UpdateTaskStatusFailed 测试任务失败状态
func TestRedisQueue_UpdateTaskStatusFailed(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue, err := NewRedisQueue(testConfig(redisAddr))
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskConvert, "conv-123", testPayload())
	require.NoError(t, err)

	err = queue.UpdateTaskStatus(ctx, taskID, StatusFailed, nil, "synthesis failed")
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, task.Status)
	assert.Equal(t, "synthesis failed", task.Error)
}

// TestRedisQueue_WaitForTask 测试等待任务完成
func TestRedisQueue_WaitForTask(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue, err := NewRedisQueue(testConfig(redisAddr))
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskConvert, "conv-123", testPayload())
	require.NoError(t, err)

	// 已完成的任务立即返回
	err = queue.UpdateTaskStatus(ctx, taskID, StatusCompleted, nil, "")
	require.NoError(t, err)

	task, err := queue.WaitForTask(ctx, taskID, time.Second*5)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, task.Status)

	// 不存在的任务返回错误
	_, err = queue.WaitForTask(ctx, "missing-task", time.Second)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// TestRedisQueue_DeleteTask 测试删除任务
func TestRedisQueue_DeleteTask(t *testing.T) {
	redisAddr, cleanup := setupRedisTest(t)
	defer cleanup()

	queue, err := NewRedisQueue(testConfig(redisAddr))
	require.NoError(t, err)
	defer queue.Close()

	ctx := context.Background()

	taskID, err := queue.Enqueue(ctx, TaskConvert, "conv-123", testPayload())
	require.NoError(t, err)

	err = queue.DeleteTask(ctx, taskID)
	require.NoError(t, err)

	_, err = queue.GetTask(ctx, taskID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	// 转换任务集合中也不再包含该任务
	tasks, err := queue.GetTasksByConversion(ctx, "conv-123")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

// TestMarshalPayload 测试载荷序列化
func TestMarshalPayload(t *testing.T) {
	data, err := MarshalPayload(nil)
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(data))

	data, err = MarshalPayload(testPayload())
	require.NoError(t, err)

	var payload ConvertPayload
	require.NoError(t, UnmarshalPayload(data, &payload))
	assert.Equal(t, "document.pdf", payload.FileName)
}
