package chat

import "regexp"

// ===== 内容净化 =====

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script[^>]*>`)
	jsSchemeRe    = regexp.MustCompile(`(?i)javascript:`)
	onAttrRe      = regexp.MustCompile(`(?i)\s*\bon\w+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)
)

// Sanitize 去掉消息里的 <script> 块、javascript: 协议和内联 on* 事件属性。
// 只做删除，不做转义，其余文本原样保留。
func Sanitize(content string) string {
	content = scriptBlockRe.ReplaceAllString(content, "")
	content = jsSchemeRe.ReplaceAllString(content, "")
	content = onAttrRe.ReplaceAllString(content, "")
	return content
}
