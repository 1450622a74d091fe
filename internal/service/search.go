package service

import (
	"sort"
	"strings"

	"mailsuite/backend/internal/domain"
)

// GetEmail 按 ID 取单封邮件
func (s *EmailService) GetEmail(id string) (*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	email, ok := s.emails[id]
	if !ok {
		return nil, ErrEmailNotFound
	}
	return email.Clone(), nil
}

// GetEmails 返回全部邮件，按日期倒序
func (s *EmailService) GetEmails() ([]*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return s.collect(func(*domain.Email) bool { return true }), nil
}

// GetEmailsForFolder 返回指定文件夹的邮件，按日期倒序
func (s *EmailService) GetEmailsForFolder(folderID string) ([]*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	if _, ok := s.folders[folderID]; !ok {
		return nil, ErrFolderNotFound
	}
	return s.collect(func(e *domain.Email) bool { return e.FolderID == folderID }), nil
}

// GetFolders 返回全部文件夹（系统文件夹优先，按固定顺序）
func (s *EmailService) GetFolders() ([]*domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	folders := make([]*domain.Folder, 0, len(s.folders))
	for _, f := range s.folders {
		folders = append(folders, f.Clone())
	}
	sort.Slice(folders, func(i, j int) bool {
		if folders[i].IsSystem != folders[j].IsSystem {
			return folders[i].IsSystem
		}
		return folders[i].ID < folders[j].ID
	})
	return folders, nil
}

// GetFolder 按 ID 取单个文件夹
func (s *EmailService) GetFolder(id string) (*domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	folder, ok := s.folders[id]
	if !ok {
		return nil, ErrFolderNotFound
	}
	return folder.Clone(), nil
}

// Search 按条件搜索邮件。
//
// Query 对主题、正文、发件人和收件人（显示名与地址）做大小写
// 不敏感的子串匹配；FolderID 非空时先按文件夹过滤；三个可选
// 布尔条件逐项收窄。结果按日期倒序。
func (s *EmailService) Search(criteria domain.EmailSearchCriteria) ([]*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(criteria.Query))
	return s.collect(func(e *domain.Email) bool {
		if criteria.FolderID != "" && e.FolderID != criteria.FolderID {
			return false
		}
		if criteria.IsRead != nil && e.IsRead != *criteria.IsRead {
			return false
		}
		if criteria.IsStarred != nil && e.IsStarred != *criteria.IsStarred {
			return false
		}
		if criteria.HasAttachment != nil && hasAttachments(e) != *criteria.HasAttachment {
			return false
		}
		if query == "" {
			return true
		}
		return matchesQuery(e, query)
	}), nil
}

// StarredEmails 返回全部星标邮件
func (s *EmailService) StarredEmails() ([]*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return s.collect(func(e *domain.Email) bool { return e.IsStarred }), nil
}

// UnreadEmails 返回全部未读邮件
func (s *EmailService) UnreadEmails() ([]*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return s.collect(func(e *domain.Email) bool { return !e.IsRead }), nil
}

// EmailsWithAttachments 返回带附件的邮件
func (s *EmailService) EmailsWithAttachments() ([]*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	return s.collect(func(e *domain.Email) bool { return hasAttachments(e) }), nil
}

// collect 过滤、拷贝并按日期倒序排序
func (s *EmailService) collect(match func(*domain.Email) bool) []*domain.Email {
	emails := make([]*domain.Email, 0)
	for _, e := range s.emails {
		if match(e) {
			emails = append(emails, e.Clone())
		}
	}
	sort.Slice(emails, func(i, j int) bool {
		return emails[i].Date.After(emails[j].Date)
	})
	return emails
}

func hasAttachments(e *domain.Email) bool {
	return e.HasAttachments || len(e.Attachments) > 0
}

// matchesQuery 大小写不敏感的全文子串匹配
func matchesQuery(e *domain.Email, query string) bool {
	if strings.Contains(strings.ToLower(e.Subject), query) {
		return true
	}
	if strings.Contains(strings.ToLower(e.Body), query) {
		return true
	}
	if strings.Contains(strings.ToLower(e.From.Name), query) ||
		strings.Contains(strings.ToLower(e.From.Address), query) {
		return true
	}
	for _, addr := range e.To {
		if strings.Contains(strings.ToLower(addr.Name), query) ||
			strings.Contains(strings.ToLower(addr.Address), query) {
			return true
		}
	}
	return false
}
