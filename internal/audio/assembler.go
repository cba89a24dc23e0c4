package audio

import (
	"fmt"
	"os"
	"path/filepath"
)

// Assembler 音频拼接器
// 把按索引排列的MP3分块音频落盘到临时目录，再按顺序拼接成单个文件
// MP3帧流支持直接字节级拼接，不需要重新编码
type Assembler struct {
	workDir string // 分块音频的临时落盘目录
}

// NewAssembler 创建新的音频拼接器
// baseDir为空时使用系统临时目录
func NewAssembler(baseDir string) (*Assembler, error) {
	workDir, err := os.MkdirTemp(baseDir, "pdf2audio_chunks_")
	if err != nil {
		return nil, fmt.Errorf("failed to create audio work directory: %w", err)
	}

	return &Assembler{workDir: workDir}, nil
}

// WorkDir 返回分块音频的临时目录路径
func (a *Assembler) WorkDir() string {
	return a.workDir
}

// Assemble 按顺序拼接全部分块音频，返回完整的MP3数据
// payloads[i]必须是第i个分块的音频，任何空缺都视为错误
func (a *Assembler) Assemble(payloads [][]byte) ([]byte, error) {
	if len(payloads) == 0 {
		return nil, fmt.Errorf("no audio chunks to assemble")
	}

	// 先全部落盘，分块文件名带零填充序号，保证目录序即拼接序
	total := 0
	for i, payload := range payloads {
		if len(payload) == 0 {
			return nil, fmt.Errorf("audio chunk %d is missing", i)
		}

		path := a.chunkPath(i)
		if err := os.WriteFile(path, payload, 0644); err != nil {
			return nil, fmt.Errorf("failed to write audio chunk %d: %w", i, err)
		}
		total += len(payload)
	}

	// 按序号顺序读回并拼接
	combined := make([]byte, 0, total)
	for i := range payloads {
		data, err := os.ReadFile(a.chunkPath(i))
		if err != nil {
			return nil, fmt.Errorf("failed to read audio chunk %d: %w", i, err)
		}
		combined = append(combined, data...)
	}

	return combined, nil
}

// Cleanup 删除临时目录及全部分块文件
// 无论拼接成功与否都应该调用
func (a *Assembler) Cleanup() error {
	if a.workDir == "" {
		return nil
	}
	return os.RemoveAll(a.workDir)
}

// chunkPath 返回第i个分块的落盘路径
func (a *Assembler) chunkPath(i int) string {
	return filepath.Join(a.workDir, fmt.Sprintf("chunk_%06d.mp3", i))
}
