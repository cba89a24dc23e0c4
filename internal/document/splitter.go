package document

import (
	"fmt"
	"strings"
)

// SplitterConfig 分块器配置
type SplitterConfig struct {
	// MaxChunkSize 单个分块的长度上限（字符数）
	// 与下游TTS服务接受的最大输入长度对应
	MaxChunkSize int
}

// DefaultSplitterConfig 返回默认分块器配置
// 4096是OpenAI TTS接口的输入长度上限
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		MaxChunkSize: 4096,
	}
}

// TextSplitter 文本分块器
// 贪心地把文本切成不超过上限的有序分块，按粒度逐层回退：
// 段落 -> 句子 -> 单词；超长的单词原样作为独立分块
type TextSplitter struct {
	config SplitterConfig
}

// NewTextSplitter 创建新的文本分块器
func NewTextSplitter(config SplitterConfig) *TextSplitter {
	return &TextSplitter{
		config: config,
	}
}

// Split 将文本分割成有序分块
// 保证每个分块长度不超过MaxChunkSize，且除分块边界处的空白修剪外
// 不丢失、不重复任何内容
func (s *TextSplitter) Split(text string) ([]Chunk, error) {
	bound := s.config.MaxChunkSize
	if bound <= 0 {
		return nil, fmt.Errorf("invalid max chunk size: %d", bound)
	}

	// 规范化换行符
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return []Chunk{}, nil
	}

	// 整体不超过上限时直接返回单个分块
	if len(text) <= bound {
		return []Chunk{{Text: text, Index: 0}}, nil
	}

	acc := newChunkAccumulator(bound)

	// 按空行分段，段落是首选的分割边界
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) <= bound {
			acc.add(para, "\n\n")
			continue
		}

		// 段落超长，回退到句子边界
		s.foldSentences(acc, para)
	}

	pieces := acc.finish()

	chunks := make([]Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = Chunk{Text: piece, Index: i}
	}

	return chunks, nil
}

// foldSentences 把超长段落按句子折叠进累加器
// 句子边界是"句号后跟空白"，在句号之后分割，即句号保留在前一个片段末尾
// 注意：这个启发式会把缩写和小数点误判为句子结束，行为保持原样
func (s *TextSplitter) foldSentences(acc *chunkAccumulator, para string) {
	for _, sentence := range splitSentences(para) {
		if len(sentence) <= acc.bound {
			acc.add(sentence, " ")
			continue
		}

		// 句子仍然超长，回退到单词边界
		s.foldWords(acc, sentence)
	}
}

// foldWords 把超长句子按空白分割的单词折叠进累加器
// 单个超过上限的单词无法再分，原样作为独立分块输出
func (s *TextSplitter) foldWords(acc *chunkAccumulator, sentence string) {
	for _, word := range strings.Fields(sentence) {
		if len(word) > acc.bound {
			acc.flush()
			acc.emit(word)
			continue
		}
		acc.add(word, " ")
	}
}

// splitSentences 按"句号后跟空白"分割文本
// 每个片段以句号结尾（最后一个片段除外）
func splitSentences(text string) []string {
	var sentences []string

	start := 0
	i := 0
	for i < len(text)-1 {
		if text[i] == '.' && isWhitespace(text[i+1]) {
			fragment := strings.TrimSpace(text[start : i+1])
			if fragment != "" {
				sentences = append(sentences, fragment)
			}
			// 跳过句号之后的空白
			j := i + 1
			for j < len(text) && isWhitespace(text[j]) {
				j++
			}
			start = j
			i = j
			continue
		}
		i++
	}

	if start < len(text) {
		tail := strings.TrimSpace(text[start:])
		if tail != "" {
			sentences = append(sentences, tail)
		}
	}

	return sentences
}

// isWhitespace 判断字节是否为空白字符
func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// chunkAccumulator 分块累加器
// 实现"累加直到即将越界就先冲刷"的贪心策略
type chunkAccumulator struct {
	bound  int
	buf    strings.Builder
	pieces []string
}

func newChunkAccumulator(bound int) *chunkAccumulator {
	return &chunkAccumulator{bound: bound}
}

// add 追加一个不超过上限的单元
// 如果连同分隔符一起追加会超过上限，先冲刷当前缓冲
func (a *chunkAccumulator) add(unit, sep string) {
	if a.buf.Len() > 0 && a.buf.Len()+len(sep)+len(unit) > a.bound {
		a.flush()
	}
	if a.buf.Len() > 0 {
		a.buf.WriteString(sep)
	}
	a.buf.WriteString(unit)
}

// flush 把当前缓冲作为一个分块输出并清空
func (a *chunkAccumulator) flush() {
	piece := strings.TrimSpace(a.buf.String())
	if piece != "" {
		a.pieces = append(a.pieces, piece)
	}
	a.buf.Reset()
}

// emit 直接输出一个完整分块，绕过缓冲
func (a *chunkAccumulator) emit(piece string) {
	piece = strings.TrimSpace(piece)
	if piece != "" {
		a.pieces = append(a.pieces, piece)
	}
}

// finish 冲刷剩余缓冲并返回全部分块
func (a *chunkAccumulator) finish() []string {
	a.flush()
	return a.pieces
}
