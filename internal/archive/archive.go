// Package archive 定义邮件档案文件的抽取边界。
//
// 具体格式（mbox、EML 压缩包等）的解析器实现这里的接口，
// 把文件内容还原成待导入的原始记录；导入本身走 service 层。
package archive

import (
	"context"
	"errors"
	"io"
)

var (
	ErrPasswordRequired = errors.New("archive is password protected")
	ErrCorruptArchive   = errors.New("archive is corrupt or unreadable")
	ErrUnsupportedKind  = errors.New("unsupported archive kind")
)

// Result 一次档案抽取的汇总。
type Result struct {
	Processed int `json:"processed"`
	Imported  int `json:"imported"`
	Failed    int `json:"failed"`
}

// Extractor 把档案内容还原为待导入的原始记录。
type Extractor interface {
	// Kind 返回该抽取器支持的档案类型标识（如 "mbox"）。
	Kind() string

	// Extract 读取档案并返回原始记录序列。
	// 受保护的档案返回 ErrPasswordRequired，损坏的返回 ErrCorruptArchive。
	Extract(ctx context.Context, r io.Reader) ([]map[string]interface{}, error)
}
