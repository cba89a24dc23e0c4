package tts

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"

	"github.com/CallumBoase/PDF2Audio/internal/document"
)

// Dispatcher 并行合成调度器
// 将有序的文本分块并发提交给合成客户端，并按原始顺序收集音频结果
// 任何一个分块失败都会使整次调度失败，不做部分成功
type Dispatcher struct {
	client     Client // 语音合成客户端
	maxWorkers int    // 最大并行工作线程数
}

// NewDispatcher 创建新的并行合成调度器
func NewDispatcher(client Client, maxWorkers int) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 4 // 默认工作线程数
	}

	return &Dispatcher{
		client:     client,
		maxWorkers: maxWorkers,
	}
}

// Dispatch 并发合成全部分块
// 返回的切片与输入分块一一对应：results[i]是chunks[i]的音频数据
// 结果顺序由分块索引决定，与各任务的完成先后无关
func (d *Dispatcher) Dispatch(ctx context.Context, chunks []document.Chunk) ([][]byte, error) {
	if len(chunks) == 0 {
		return [][]byte{}, nil
	}

	wp := workerpool.New(d.maxWorkers)
	resultsMu := sync.Mutex{}
	results := make([][]byte, len(chunks))
	var dispatchErr error
	var errOnce sync.Once

	for i, chunk := range chunks {
		i, chunk := i, chunk // 捕获循环变量
		wp.Submit(func() {
			// 检查上下文是否已取消
			select {
			case <-ctx.Done():
				errOnce.Do(func() {
					dispatchErr = ctx.Err()
				})
				return
			default:
				// 继续处理
			}

			audio, err := d.client.Synthesize(ctx, chunk.Text)

			resultsMu.Lock()
			defer resultsMu.Unlock()

			if err != nil {
				errOnce.Do(func() {
					dispatchErr = fmt.Errorf("chunk %d synthesis error: %w", chunk.Index, err)
				})
				return
			}

			results[i] = audio
		})
	}

	// 等待所有任务完成
	wp.StopWait()

	// 任何分块失败都放弃全部结果
	if dispatchErr != nil {
		return nil, dispatchErr
	}

	// 上下文取消可能让部分任务提前退出而没有记录错误
	for i, audio := range results {
		if audio == nil {
			return nil, fmt.Errorf("chunk %d produced no audio", chunks[i].Index)
		}
	}

	return results, nil
}
