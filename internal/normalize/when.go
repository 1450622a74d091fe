package normalize

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts 按常见程度排列的历史日期格式。
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"Jan 2, 2006 3:04:05 PM",
	"Jan 2, 2006",
	"2 Jan 2006 15:04:05 -0700",
}

// parseDate 接受原生时间、字符串和秒/毫秒时间戳。
// 解析失败一律退回当前时间，这是降级而不是错误。
func parseDate(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		if !t.IsZero() {
			return t
		}
	case *time.Time:
		if t != nil && !t.IsZero() {
			return *t
		}
	case float64:
		return fromEpoch(int64(t))
	case int:
		return fromEpoch(int64(t))
	case int64:
		return fromEpoch(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			break
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed
			}
		}
		// 时间戳的字符串写法
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromEpoch(n)
		}
	}
	return time.Now()
}

// fromEpoch 区分秒级和毫秒级时间戳（1e12 约等于 2001 年的毫秒数）。
func fromEpoch(n int64) time.Time {
	if n <= 0 {
		return time.Now()
	}
	if n >= 1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}
