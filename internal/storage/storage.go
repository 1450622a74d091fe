package storage

import (
	"errors"

	"mailsuite/backend/internal/domain"
)

var (
	// ErrEmailNotFound 邮件未找到错误
	ErrEmailNotFound = errors.New("email not found")
	// ErrFolderNotFound 文件夹未找到错误
	ErrFolderNotFound = errors.New("folder not found")
)

// EmailRepository 定义邮件数据存取操作。
//
// 读取只在服务启动装载时发生（ListEmails），之后两个持久层都是
// 服务内存状态的镜像，只接受写入。
type EmailRepository interface {
	SaveEmail(email *domain.Email) error
	SaveEmails(emails []*domain.Email) error
	DeleteEmail(id string) error
	ListEmails() ([]*domain.Email, error)
	ReplaceAllEmails(emails []*domain.Email) error
}

// FolderRepository 定义文件夹数据存取操作。
type FolderRepository interface {
	SaveFolder(folder *domain.Folder) error
	DeleteFolder(id string) error
	ListFolders() ([]*domain.Folder, error)
	ReplaceAllFolders(folders []*domain.Folder) error
}

// Store 定义一个完整的持久层（远端关系库或本地缓存）。
//
// 空库必须返回空结果而不是错误：本地缓存首次运行时就是空的。
type Store interface {
	EmailRepository
	FolderRepository

	Close() error
	Health() error
}
