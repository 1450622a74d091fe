package normalize

import (
	"regexp"
	"strings"
)

// genericTagRe 任意 HTML 标签的宽松匹配。
var genericTagRe = regexp.MustCompile(`<[^>]+>`)

// commonHTMLTags 常见块级/行内标签，覆盖标签被截断或残缺的正文。
var commonHTMLTags = []string{
	"<html", "<body", "<div", "<span", "<p>", "<p ", "<br", "<table", "<tr", "<td",
	"<a ", "<img", "<ul", "<ol", "<li", "<h1", "<h2", "<h3", "<strong", "<em",
	"<b>", "<i>", "<blockquote", "<!doctype",
}

// DetermineIsHTML 判定正文是否为 HTML。
// 正文命中通用标签模式或常见标签名，或原始对象带显式 html/contentType
// 提示时为真。必须在清理之前调用，清理会剥掉标签外壳。
func DetermineIsHTML(body string, raw map[string]interface{}) bool {
	if body != "" {
		if genericTagRe.MatchString(body) {
			return true
		}
		lower := strings.ToLower(body)
		for _, tag := range commonHTMLTags {
			if strings.Contains(lower, tag) {
				return true
			}
		}
	}

	if raw != nil {
		if truthy(raw["isHtml"]) || truthy(raw["is_html"]) || truthy(raw["html"]) {
			return true
		}
		ct := strings.ToLower(asString(raw["contentType"]) + asString(raw["content_type"]))
		if strings.Contains(ct, "html") {
			return true
		}
	}

	return false
}
