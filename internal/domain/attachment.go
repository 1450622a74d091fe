package domain

// Attachment 表示邮件附件的元数据。
// 附件内容本身不经过本引擎，只记录描述信息。
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}
