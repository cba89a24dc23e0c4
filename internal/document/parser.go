package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// Parser 文档解析器接口
// 负责将不同格式的文档提取为纯文本
type Parser interface {
	// Parse 解析文档，返回文本内容
	Parse(filePath string) (string, error)

	// ParseReader 从Reader解析文档，返回文本内容
	// filename用于确定文档类型
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ParserFactory 解析器工厂函数，根据文件类型创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	contentType := detectContentType(filePath)

	switch contentType {
	case PDF:
		return NewPDFParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, errors.New("unsupported document type")
	}
}

// detectContentType 根据文件扩展名检测内容类型
func detectContentType(filePath string) ContentType {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// Chunk 文本分块
// 表示规范化文本中一段有界的连续切片，Index是它在原始序列中的位置
// 索引仅用于并发合成后恢复顺序，与内容本身无关
type Chunk struct {
	Text  string // 分块文本内容
	Index int    // 分块索引（从0开始）
}

// Splitter 文本分块器接口
// 负责将长文本分割成不超过TTS服务输入上限的小段
type Splitter interface {
	// Split 将文本分割成有序分块
	Split(text string) ([]Chunk, error)
}

// Normalizer 文本规范化器接口
// 在分块之前对提取出的原始文本做一次性清理
type Normalizer interface {
	// Normalize 清理文本，总是成功
	Normalize(raw string) string
}
