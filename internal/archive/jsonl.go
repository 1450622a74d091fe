package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// JSONLines 解析每行一个 JSON 对象的导出文件。
type JSONLines struct {
	// MaxLineBytes 单行上限，防止超长行占满内存。零值用默认 1MB。
	MaxLineBytes int
}

// Kind 实现 Extractor。
func (JSONLines) Kind() string { return "jsonl" }

// Extract 实现 Extractor。
//
// 无法解析的行不会丢弃，而是包成 {"_raw": 原文} 继续向下游传递，
// 由导入管道按失败记录计数；整个流都读不出来才算档案损坏。
func (j JSONLines) Extract(ctx context.Context, r io.Reader) ([]map[string]interface{}, error) {
	maxLine := j.MaxLineBytes
	if maxLine <= 0 {
		maxLine = 1 << 20
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var records []map[string]interface{}
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record map[string]interface{}
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			records = append(records, map[string]interface{}{"_raw": line})
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, ErrCorruptArchive
	}

	return records, nil
}
