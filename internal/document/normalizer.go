package document

import (
	"regexp"
	"strings"
)

// 清理规则，按固定顺序应用
// 页码删除可能产生连续空行，所以空行折叠必须放在最后
var (
	// 只包含一个整数的行（疑似页码）
	pageNumberRe = regexp.MustCompile(`(?m)^[ \t]*\d+[ \t]*$\n?`)

	// "token | token" 形式的行（疑似页眉/页脚）
	headerFooterRe = regexp.MustCompile(`(?m)^[ \t]*[A-Za-z0-9_\-.]+[ \t]*\|[ \t]*[A-Za-z0-9_\-.]+[ \t]*$\n?`)

	// 三个及以上的连续换行
	excessNewlinesRe = regexp.MustCompile(`\n{3,}`)
)

// TextNormalizer 文本规范化器
// 对PDF提取出的原始文本做最小限度的清理，不改变正文内容
type TextNormalizer struct{}

// NewTextNormalizer 创建新的文本规范化器
func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{}
}

// Normalize 清理文本
// 依次删除页码行、页眉/页脚行，并把多余空行折叠为段落分隔
// 对已清理过的文本再次调用是无操作（幂等）
func (n *TextNormalizer) Normalize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")

	text = pageNumberRe.ReplaceAllString(text, "")
	text = headerFooterRe.ReplaceAllString(text, "")
	text = excessNewlinesRe.ReplaceAllString(text, "\n\n")

	return text
}
