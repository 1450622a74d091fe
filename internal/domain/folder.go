package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrSystemFolderImmutable = errors.New("system folder cannot be modified or deleted")

// FolderType 表示文件夹类型。系统集合之外的都是 custom。
type FolderType string

const (
	FolderInbox   FolderType = "inbox"
	FolderSent    FolderType = "sent"
	FolderDrafts  FolderType = "drafts"
	FolderStarred FolderType = "starred"
	FolderArchive FolderType = "archive"
	FolderSpam    FolderType = "spam"
	FolderTrash   FolderType = "trash"
	FolderCustom  FolderType = "custom"
)

// FolderPermissions 文件夹读写删权限。
type FolderPermissions struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Delete bool `json:"delete"`
}

// Folder 表示邮件的一个命名分区。
//
// UnreadCount 和 TotalCount 是派生值：每次变更后都基于当前邮件集合
// 全量重算（见 RecountFolders），持久化只是为了加速冷启动展示。
type Folder struct {
	ID          string            `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name        string            `json:"name" gorm:"type:varchar(255)"`
	Type        FolderType        `json:"type" gorm:"type:varchar(20)"`
	Path        string            `json:"path" gorm:"type:varchar(500)"`
	Color       string            `json:"color,omitempty" gorm:"type:varchar(20)"`
	IsSystem    bool              `json:"isSystem" gorm:"default:false"`
	SyncEnabled bool              `json:"syncEnabled" gorm:"default:true"`
	Permissions FolderPermissions `json:"permissions" gorm:"embedded;embeddedPrefix:perm_"`
	UnreadCount int               `json:"unreadCount"`
	TotalCount  int               `json:"totalCount"`
}

// Clone 返回一份拷贝，与 Email.Clone 同样的交付约定。
func (f *Folder) Clone() *Folder {
	clone := *f
	return &clone
}

// TableName 远端存储的表名约定。
func (Folder) TableName() string {
	return "email_folders"
}

// NewFolderID 生成自定义文件夹 ID。
func NewFolderID() string {
	return fmt.Sprintf("folder-%d", time.Now().UnixNano())
}

// systemFolderNames 系统文件夹的展示名。
var systemFolderNames = map[FolderType]string{
	FolderInbox:   "Inbox",
	FolderSent:    "Sent",
	FolderDrafts:  "Drafts",
	FolderStarred: "Starred",
	FolderArchive: "Archive",
	FolderSpam:    "Spam",
	FolderTrash:   "Trash",
}

// systemFolderOrder 系统文件夹的固定顺序。
var systemFolderOrder = []FolderType{
	FolderInbox, FolderSent, FolderDrafts, FolderStarred,
	FolderArchive, FolderSpam, FolderTrash,
}

// DefaultFolders 生成七个系统文件夹，计数清零。
// 服务初始化时在空存储上播种。
func DefaultFolders() []*Folder {
	folders := make([]*Folder, 0, len(systemFolderOrder))
	for _, t := range systemFolderOrder {
		folders = append(folders, &Folder{
			ID:          string(t),
			Name:        systemFolderNames[t],
			Type:        t,
			Path:        "/" + string(t),
			IsSystem:    true,
			SyncEnabled: true,
			Permissions: FolderPermissions{Read: true, Write: true, Delete: t == FolderTrash},
		})
	}
	return folders
}
