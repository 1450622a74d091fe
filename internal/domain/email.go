package domain

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var (
	ErrMissingSubject    = errors.New("email subject is required")
	ErrMissingFrom       = errors.New("email from address is required")
	ErrMissingRecipients = errors.New("email requires at least one recipient")
)

// Priority 表示邮件优先级。
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// EmailAddress 表示一个地址身份（显示名 + 邮箱地址）。
// 解析失败的输入退化为 UnknownAddress，而不是报错。
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// UnknownAddress 返回无法解析时使用的哨兵地址。
func UnknownAddress() EmailAddress {
	return EmailAddress{Name: "Unknown", Address: "unknown@example.com"}
}

// AddressList 收件人列表，整体以 JSON 形式入库。
type AddressList []EmailAddress

// Email 表示一封规范化后的邮件记录，是存储层和服务层共用的业务实体。
// gorm 默认的 NamingStrategy 会把字段映射为 snake_case 列名，
// 与远端存储的列命名约定保持一致。
type Email struct {
	ID      string       `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Subject string       `json:"subject" gorm:"type:varchar(500)"`
	From    EmailAddress `json:"from" gorm:"embedded;embeddedPrefix:from_"`
	To      AddressList  `json:"to" gorm:"type:text;serializer:json"`
	CC      AddressList  `json:"cc,omitempty" gorm:"type:text;serializer:json"`
	BCC     AddressList  `json:"bcc,omitempty" gorm:"type:text;serializer:json"`

	Body   string    `json:"body" gorm:"type:text"`
	IsHTML bool      `json:"isHtml"`
	Date   time.Time `json:"date" gorm:"index"`

	// 分类标记，彼此独立
	IsRead      bool `json:"isRead" gorm:"default:false;index"`
	IsStarred   bool `json:"isStarred" gorm:"default:false"`
	IsImportant bool `json:"isImportant" gorm:"default:false"`
	IsPinned    bool `json:"isPinned" gorm:"default:false"`
	IsDraft     bool `json:"isDraft" gorm:"default:false"`
	IsSent      bool `json:"isSent" gorm:"default:false"`
	IsDeleted   bool `json:"isDeleted" gorm:"default:false"`
	IsSpam      bool `json:"isSpam" gorm:"default:false"`

	HasAttachments bool         `json:"hasAttachments"`
	Attachments    []Attachment `json:"attachments,omitempty" gorm:"type:text;serializer:json"`

	Labels   []string `json:"labels,omitempty" gorm:"type:text;serializer:json"`
	Priority Priority `json:"priority" gorm:"type:varchar(10);default:normal"`

	FolderID string `json:"folderId" gorm:"type:varchar(64);index"`
	ThreadID string `json:"threadId,omitempty" gorm:"type:varchar(64);index"`
}

// Clone 返回一份深拷贝。服务层对外只交付拷贝，内存中的
// 活跃记录不跨越接口边界。
func (e *Email) Clone() *Email {
	clone := *e
	clone.To = append(AddressList(nil), e.To...)
	clone.CC = append(AddressList(nil), e.CC...)
	clone.BCC = append(AddressList(nil), e.BCC...)
	clone.Attachments = append([]Attachment(nil), e.Attachments...)
	clone.Labels = append([]string(nil), e.Labels...)
	return &clone
}

// Validate 检查记录是否满足最低要求：主题、发件人和至少一个收件人。
// 其余字段缺省时都有安全默认值。
func (e *Email) Validate() error {
	if e.Subject == "" {
		return ErrMissingSubject
	}
	if e.From.Address == "" {
		return ErrMissingFrom
	}
	if len(e.To) == 0 {
		return ErrMissingRecipients
	}
	return nil
}

// NewEmailID 生成一个抗碰撞的合成邮件 ID（时间戳 + 随机后缀）。
// 导入带有原 ID 的记录时保留原 ID，不走这里。
func NewEmailID() string {
	return fmt.Sprintf("email-%d-%06d", time.Now().UnixNano(), rand.Intn(1000000))
}
