package domain

// EmailSearchCriteria 定义邮件搜索条件。
// Query 针对主题、正文和收发件人做大小写不敏感的子串匹配；
// FolderID 非空时先按文件夹过滤。
type EmailSearchCriteria struct {
	Query         string `json:"query"`
	FolderID      string `json:"folderId,omitempty"`
	IsRead        *bool  `json:"isRead,omitempty"`
	IsStarred     *bool  `json:"isStarred,omitempty"`
	HasAttachment *bool  `json:"hasAttachment,omitempty"`
}
