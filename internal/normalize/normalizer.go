// Package normalize 把来源不受控的原始邮件对象转换为规范化的 Email 记录。
//
// 输入可能来自多个历史导出格式：字段名大小写不一、地址有三种形态、
// 日期既有字符串也有时间戳。每个逻辑字段对应一组按优先级排列的
// 提取函数，第一个取到非空值的生效。
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailsuite/backend/internal/domain"
	"mailsuite/backend/internal/sanitize"
)

// extractor 从原始对象中按某一种历史写法取值。
type extractor func(raw map[string]interface{}) (interface{}, bool)

// key 直接按键名取值。
func key(name string) extractor {
	return func(raw map[string]interface{}) (interface{}, bool) {
		v, ok := raw[name]
		return v, ok && v != nil
	}
}

// nested 从嵌套对象（如 headers.subject）取值。
func nested(outer, inner string) extractor {
	return func(raw map[string]interface{}) (interface{}, bool) {
		m, ok := raw[outer].(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[inner]
		return v, ok && v != nil
	}
}

// firstValue 按顺序尝试提取函数，返回第一个命中的值。
func firstValue(raw map[string]interface{}, extractors ...extractor) (interface{}, bool) {
	for _, ex := range extractors {
		if v, ok := ex(raw); ok {
			return v, true
		}
	}
	return nil, false
}

// 每个逻辑字段的历史键名候选，按优先级排列。
var (
	subjectExtractors = []extractor{key("subject"), key("Subject"), nested("headers", "subject")}
	fromExtractors    = []extractor{key("from"), key("From"), nested("headers", "from"), key("sender")}
	toExtractors      = []extractor{key("to"), key("To"), nested("headers", "to"), key("recipients")}
	ccExtractors      = []extractor{key("cc"), key("Cc"), key("CC"), nested("headers", "cc")}
	bccExtractors     = []extractor{key("bcc"), key("Bcc"), key("BCC"), nested("headers", "bcc")}
	bodyExtractors    = []extractor{key("body"), key("Body"), key("content"), key("text"), key("html")}
	dateExtractors    = []extractor{key("date"), key("Date"), nested("headers", "date"), key("timestamp"), key("receivedAt"), key("received_at")}
	folderExtractors  = []extractor{key("folder"), key("folderId"), key("folder_id"), key("mailbox")}
	threadExtractors  = []extractor{key("threadId"), key("thread_id"), key("conversationId")}
	labelExtractors   = []extractor{key("labels"), key("Labels"), key("tags")}
)

// 独立布尔标记集合；每个标记依次探测 <flag>、is_<flag>、flags.<flag>。
var flagNames = []string{"read", "starred", "important", "pinned", "draft", "sent", "deleted", "spam"}

// Normalizer 把任意键形的原始记录规范化为 Email。
type Normalizer struct {
	log *zap.Logger
}

// NewNormalizer 创建规范器。logger 为 nil 时静默。
func NewNormalizer(log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Normalizer{log: log}
}

// Normalize 把一条原始记录转换为规范化 Email。
//
// 主题、发件人和非空收件人列表是硬性要求，缺一返回错误（绝不 panic）；
// 其余字段全部走安全默认值。校验失败只影响本条记录，由调用方继续批次。
func (n *Normalizer) Normalize(raw map[string]interface{}) (*domain.Email, error) {
	if raw == nil {
		return nil, fmt.Errorf("normalize: %w", domain.ErrMissingSubject)
	}

	email := &domain.Email{
		Subject:  "(No Subject)",
		Priority: domain.PriorityNormal,
		FolderID: string(domain.FolderInbox),
	}

	if v, ok := firstValue(raw, subjectExtractors...); ok {
		if s := strings.TrimSpace(asString(v)); s != "" {
			email.Subject = s
		}
	} else {
		return nil, fmt.Errorf("normalize: %w", domain.ErrMissingSubject)
	}

	fromVal, ok := firstValue(raw, fromExtractors...)
	if !ok {
		return nil, fmt.Errorf("normalize: %w", domain.ErrMissingFrom)
	}
	fromList := ParseAddressList(fromVal)
	if len(fromList) == 0 {
		return nil, fmt.Errorf("normalize: %w", domain.ErrMissingFrom)
	}
	email.From = fromList[0]

	toVal, ok := firstValue(raw, toExtractors...)
	if !ok {
		return nil, fmt.Errorf("normalize: %w", domain.ErrMissingRecipients)
	}
	email.To = ParseAddressList(toVal)
	if len(email.To) == 0 {
		return nil, fmt.Errorf("normalize: %w", domain.ErrMissingRecipients)
	}

	if v, ok := firstValue(raw, ccExtractors...); ok {
		email.CC = ParseAddressList(v)
	}
	if v, ok := firstValue(raw, bccExtractors...); ok {
		email.BCC = ParseAddressList(v)
	}

	// 先在原始正文上判定 HTML，再做清理：清理可能剥掉标签外壳
	rawBody := ""
	if v, ok := firstValue(raw, bodyExtractors...); ok {
		rawBody = asString(v)
	}
	email.IsHTML = DetermineIsHTML(rawBody, raw)
	email.Body = sanitize.Sanitize(rawBody)

	if v, ok := firstValue(raw, dateExtractors...); ok {
		email.Date = parseDate(v)
	} else {
		email.Date = time.Now()
	}

	email.IsRead = resolveFlag(raw, "read")
	email.IsStarred = resolveFlag(raw, "starred")
	email.IsImportant = resolveFlag(raw, "important")
	email.IsPinned = resolveFlag(raw, "pinned")
	email.IsDraft = resolveFlag(raw, "draft")
	email.IsSent = resolveFlag(raw, "sent")
	email.IsDeleted = resolveFlag(raw, "deleted")
	email.IsSpam = resolveFlag(raw, "spam")

	email.Attachments = parseAttachments(raw)
	email.HasAttachments = len(email.Attachments) > 0
	if !email.HasAttachments {
		email.HasAttachments = truthy(raw["hasAttachments"]) || truthy(raw["has_attachments"])
	}

	if v, ok := firstValue(raw, labelExtractors...); ok {
		email.Labels = asStringSlice(v)
	}

	email.Priority = parsePriority(raw["priority"])

	if v, ok := firstValue(raw, folderExtractors...); ok {
		if s := strings.TrimSpace(asString(v)); s != "" {
			email.FolderID = s
		}
	}
	if v, ok := firstValue(raw, threadExtractors...); ok {
		email.ThreadID = asString(v)
	}

	// 已有 ID 保留，缺失时生成抗碰撞的合成 ID
	if v, ok := firstValue(raw, key("id"), key("Id"), key("ID"), key("messageId"), key("message_id")); ok {
		email.ID = asString(v)
	}
	if email.ID == "" {
		email.ID = domain.NewEmailID()
	}

	return email, nil
}

// resolveFlag 依次探测 <flag>、is_<flag>、驼峰 is<Flag>、flags.<flag>，
// 任一位置出现真值即置位。
func resolveFlag(raw map[string]interface{}, flag string) bool {
	if truthy(raw[flag]) {
		return true
	}
	if truthy(raw["is_"+flag]) {
		return true
	}
	if truthy(raw["is"+strings.ToUpper(flag[:1])+flag[1:]]) {
		return true
	}
	if flags, ok := raw["flags"].(map[string]interface{}); ok && truthy(flags[flag]) {
		return true
	}
	return false
}

// truthy 判定多种历史真值表示。
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "1" || s == "yes" || s == "y"
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return false
	}
}

// parsePriority 大小写不敏感地归一优先级。
func parsePriority(v interface{}) domain.Priority {
	switch strings.ToLower(strings.TrimSpace(asString(v))) {
	case "high", "urgent", "important":
		return domain.PriorityHigh
	case "low", "low-priority":
		return domain.PriorityLow
	default:
		return domain.PriorityNormal
	}
}

// parseAttachments 防御式地映射附件列表，键名覆盖多个历史格式。
func parseAttachments(raw map[string]interface{}) []domain.Attachment {
	v, ok := firstValue(raw, key("attachments"), key("Attachments"), key("files"))
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}

	out := make([]domain.Attachment, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		att := domain.Attachment{
			ID:          pickString(m, "id", "Id", "attachmentId"),
			Filename:    pickString(m, "filename", "name", "fileName"),
			ContentType: pickString(m, "contentType", "type", "mimeType"),
			Size:        pickInt64(m, "size", "fileSize", "sizeBytes"),
		}
		if att.ID == "" {
			att.ID = uuid.NewString()
		}
		if att.Filename == "" {
			att.Filename = "unnamed"
		}
		if att.ContentType == "" {
			att.ContentType = "application/octet-stream"
		}
		out = append(out, att)
	}
	return out
}

// pickString 返回第一个非空字符串候选。
func pickString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(asString(m[k])); s != "" {
			return s
		}
	}
	return ""
}

// pickInt64 返回第一个可解释为整数的候选。
func pickInt64(m map[string]interface{}, keys ...string) int64 {
	for _, k := range keys {
		switch t := m[k].(type) {
		case float64:
			return int64(t)
		case int:
			return int64(t)
		case int64:
			return t
		}
	}
	return 0
}

// asString 宽容的字符串转换；数字也接受（历史格式里 ID 有时是数字）。
func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case int:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	case fmt.Stringer:
		return t.String()
	default:
		return ""
	}
}

// asStringSlice 把数组或逗号分隔的字符串转换为字符串切片。
func asStringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
