package fetch

import (
	"bytes"
	"regexp"
)

// "未找到"页面标记：警示徽章 + 提示文案同时出现才算
var (
	notFoundBadgePattern = regexp.MustCompile(`(?i)cw-badge\s+cw-bg-warning`)
	notFoundTextPattern  = regexp.MustCompile(`(?i)tournament\s+not\s+found`)
)

// IsNotFoundPage 检测上游"Tournament not found"页面（大小写与空白宽容）
func IsNotFoundPage(body []byte) bool {
	return notFoundBadgePattern.Match(body) && notFoundTextPattern.Match(body)
}

// normalizeBody 正文归一化后再做内容哈希：统一换行并去首尾空白，
// 避免上游无意义的空白抖动触发假版本推进
func normalizeBody(body []byte) []byte {
	normalized := bytes.ReplaceAll(body, []byte("\r\n"), []byte("\n"))
	return bytes.TrimSpace(normalized)
}
