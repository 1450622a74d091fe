// Package sanitize 从带有传输编码残留的邮件正文中恢复人类可读内容。
//
// 这里刻意采用文本模式匹配而不是结构化 MIME 解析（完整 MIME 解析
// 不在范围内）。调用方只依赖 Sanitize 这一个入口，之后换成更严格的
// 解析器也不影响上层。
package sanitize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// 问候语到免责声明之间的"干净内容"区段
	greetingRe      = regexp.MustCompile(`Dear:?\s+[A-Z][A-Za-z]*`)
	disclaimerRe    = regexp.MustCompile(`(?i)disclaimer`)
	looseGreetingRe = regexp.MustCompile(`(?i)dear:?\s+\S+`)

	doctypeRe = regexp.MustCompile(`(?i)<!DOCTYPE html`)
	htmlEndRe = regexp.MustCompile(`(?i)</body>\s*</html>`)

	// 兜底路径使用的残留物清理规则
	mimeBoundaryRe   = regexp.MustCompile(`(?m)^--[=_A-Za-z0-9.\-]+-{0,2}\s*$`)
	contentHeaderRe  = regexp.MustCompile(`(?mi)^content-[a-z\-]+:[^\n]*$`)
	softLineBreakRe  = regexp.MustCompile(`=\r?\n`)
	base64RunRe      = regexp.MustCompile(`[A-Za-z0-9+/]{48,}={0,2}`)
	hexRunRe         = regexp.MustCompile(`\b[0-9a-fA-F]{32,}\b`)
	digitRunRe       = regexp.MustCompile(`\b[0-9]{20,}\b`)
	unsafeSchemeRe   = regexp.MustCompile(`(?i)(?:javascript|data|vbscript|cid):[^\s"'<>]*`)
	invisibleRuneRe  = regexp.MustCompile("[\u200b\u200c\u200d\ufeff]")
	horizontalWSRe   = regexp.MustCompile(`[ \t]+`)
	blankLinesRe     = regexp.MustCompile(`\n{3,}`)
	trailingSpaceRe  = regexp.MustCompile(`(?m)[ \t]+$`)
)

// Sanitize 提取正文中人类撰写的部分。
//
// 依次尝试：问候语区段提取、DOCTYPE HTML 区段提取、宽松问候语区段，
// 最后对整个正文做一轮残留物清理。任何内部 panic 都被吸收，
// 此时原样返回输入（调用方看到的是降级，不是失败）。
func Sanitize(raw string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = raw
		}
	}()

	if raw == "" {
		return ""
	}

	if span, ok := extractGreetingSpan(raw, greetingRe); ok {
		return normalizeWhitespace(span)
	}
	if span, ok := extractDoctypeSpan(raw); ok {
		return normalizeWhitespace(span)
	}
	if span, ok := extractGreetingSpan(raw, looseGreetingRe); ok {
		return normalizeWhitespace(span)
	}

	return normalizeWhitespace(stripArtifacts(raw))
}

// extractGreetingSpan 提取问候语到免责声明标记之间的区段，
// 免责声明尾部被整体丢弃。
func extractGreetingSpan(body string, greeting *regexp.Regexp) (string, bool) {
	loc := greeting.FindStringIndex(body)
	if loc == nil {
		return "", false
	}

	rest := body[loc[0]:]
	disc := disclaimerRe.FindStringIndex(rest)
	if disc == nil || disc[0] == 0 {
		return "", false
	}

	return rest[:disc[0]], true
}

// extractDoctypeSpan 提取 <!DOCTYPE html 到 </body></html> 的完整文档。
func extractDoctypeSpan(body string) (string, bool) {
	start := doctypeRe.FindStringIndex(body)
	if start == nil {
		return "", false
	}
	end := htmlEndRe.FindStringIndex(body[start[0]:])
	if end == nil {
		return "", false
	}
	return body[start[0] : start[0]+end[1]], true
}

// stripArtifacts 对整个正文执行固定顺序的残留物清理。
func stripArtifacts(body string) string {
	out := body

	// MIME 分段边界和 Content-* 头
	out = mimeBoundaryRe.ReplaceAllString(out, "")
	out = contentHeaderRe.ReplaceAllString(out, "")

	// quoted-printable 软换行和 =XX 转义
	out = softLineBreakRe.ReplaceAllString(out, "")
	out = decodeQPEscapes(out)

	// 超长的 base64 / 十六进制 / 数字串基本不可能是正文
	out = base64RunRe.ReplaceAllString(out, "")
	out = hexRunRe.ReplaceAllString(out, "")
	out = digitRunRe.ReplaceAllString(out, "")

	// 不安全的 URI scheme
	out = unsafeSchemeRe.ReplaceAllString(out, "")

	// 零宽字符、BOM、不换行空格
	out = invisibleRuneRe.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, " ", " ")

	return out
}

// decodeQPEscapes 按字节解码所有 =XX 转义。
// 必须在字节层面拼接，多字节 UTF-8 序列（如 =C3=A9）才能正确还原；
// 解码出的控制字符直接丢弃，避免解码产物污染正文。
func decodeQPEscapes(body string) string {
	if !strings.Contains(body, "=") {
		return body
	}

	var buf strings.Builder
	buf.Grow(len(body))

	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '=' || i+3 > len(body) {
			buf.WriteByte(c)
			continue
		}
		n, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
		if err != nil {
			buf.WriteByte(c)
			continue
		}
		b := byte(n)
		if b == '\n' || b == '\t' || (b >= 0x20 && b != 0x7f) {
			buf.WriteByte(b)
		}
		i += 2
	}

	return buf.String()
}

// normalizeWhitespace 两条提取路径共用的收尾步骤。
func normalizeWhitespace(body string) string {
	out := strings.ReplaceAll(body, "\r\n", "\n")
	out = horizontalWSRe.ReplaceAllString(out, " ")
	out = trailingSpaceRe.ReplaceAllString(out, "")
	out = blankLinesRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
