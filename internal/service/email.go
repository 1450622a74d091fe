// Package service 实现邮件业务的聚合层。
//
// 服务持有内存态的权威副本（邮件 + 文件夹），每次变更先改内存、
// 全量重算文件夹计数，再同步写本地缓存；远端存储配置了的话
// 通过协程池异步镜像，远端失败不影响调用方看到的结果。
package service

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"mailsuite/backend/internal/domain"
	"mailsuite/backend/internal/monitoring"
	"mailsuite/backend/internal/pool"
	"mailsuite/backend/internal/storage"
)

var (
	ErrEmailNotFound      = errors.New("email not found")
	ErrFolderNotFound     = errors.New("folder not found")
	ErrFolderExists       = errors.New("folder already exists")
	ErrServiceNotReady    = errors.New("service not initialized")
	ErrLocalStoreRequired = errors.New("local store is required")
)

// InitState 服务初始化状态机
type InitState int

const (
	StateUninitialized InitState = iota
	StateLoadingRemote
	StateLoadingLocal
	StateReady
)

// String 状态名，用于日志
func (s InitState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoadingRemote:
		return "loading_remote"
	case StateLoadingLocal:
		return "loading_local"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// EmailService 邮件业务服务。
//
// local 是必须的持久层；remote 为 nil 表示远端层未配置。
type EmailService struct {
	mu      sync.RWMutex
	emails  map[string]*domain.Email
	folders map[string]*domain.Folder
	state   InitState

	local   storage.Store
	remote  storage.Store
	workers *pool.WorkerPool
	log     *zap.Logger
	metrics *monitoring.Metrics

	// 最近一次本地写入失败，下一次成功写入时清除
	localErr error
}

// NewEmailService 创建邮件服务。
func NewEmailService(local, remote storage.Store, workers *pool.WorkerPool, log *zap.Logger, metrics *monitoring.Metrics) (*EmailService, error) {
	if local == nil {
		return nil, ErrLocalStoreRequired
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EmailService{
		emails:  make(map[string]*domain.Email),
		folders: make(map[string]*domain.Folder),
		state:   StateUninitialized,
		local:   local,
		remote:  remote,
		workers: workers,
		log:     log,
		metrics: metrics,
	}, nil
}

// ========== 初始化 ==========

// Init 装载数据并使服务就绪。
//
// 优先从远端装载，成功则用远端数据刷新本地缓存；远端未配置
// 或装载失败时退回本地缓存。任一层装载成功（含空数据集）服务
// 都会进入 Ready，真正的失败只有本地层也读不出来。
func (s *EmailService) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remote != nil {
		s.state = StateLoadingRemote
		if err := s.loadFrom(s.remote); err == nil {
			s.seedDefaultsLocked()
			s.state = StateReady
			s.log.Info("service initialized from remote store",
				zap.Int("emails", len(s.emails)),
				zap.Int("folders", len(s.folders)))
			// 远端是权威数据，刷新本地缓存
			s.refreshLocalLocked()
			s.updateGaugesLocked()
			return nil
		} else {
			s.log.Warn("remote store load failed, falling back to local cache",
				zap.Error(err))
		}
	}

	s.state = StateLoadingLocal
	if err := s.loadFrom(s.local); err != nil {
		s.state = StateUninitialized
		return err
	}
	s.seedDefaultsLocked()
	s.state = StateReady
	s.log.Info("service initialized from local cache",
		zap.Int("emails", len(s.emails)),
		zap.Int("folders", len(s.folders)))
	s.updateGaugesLocked()
	return nil
}

// State 返回当前初始化状态
func (s *EmailService) State() InitState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// loadFrom 从指定存储层装载全部数据到内存
func (s *EmailService) loadFrom(store storage.Store) error {
	emails, err := store.ListEmails()
	if err != nil {
		return err
	}
	folders, err := store.ListFolders()
	if err != nil {
		return err
	}

	s.emails = make(map[string]*domain.Email, len(emails))
	for _, e := range emails {
		s.emails[e.ID] = e
	}
	s.folders = make(map[string]*domain.Folder, len(folders))
	for _, f := range folders {
		s.folders[f.ID] = f
	}
	return nil
}

// seedDefaultsLocked 空数据集时播种系统文件夹
func (s *EmailService) seedDefaultsLocked() {
	if len(s.folders) > 0 {
		return
	}
	for _, f := range domain.DefaultFolders() {
		s.folders[f.ID] = f
	}
	s.recountLocked()
	s.persistFoldersLocked()
}

// ========== 状态变更 ==========

// CreateEmail 直接创建一封已规整的邮件
func (s *EmailService) CreateEmail(email *domain.Email) (*domain.Email, error) {
	if err := email.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	if email.ID == "" {
		email.ID = domain.NewEmailID()
	}
	if email.FolderID == "" {
		email.FolderID = string(domain.FolderInbox)
	}
	s.emails[email.ID] = email.Clone()
	s.afterMutationLocked("create", s.emails[email.ID])
	return email, nil
}

// UpdateEmail 整体替换一封邮件的内容
func (s *EmailService) UpdateEmail(email *domain.Email) (*domain.Email, error) {
	if err := email.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	if _, ok := s.emails[email.ID]; !ok {
		return nil, ErrEmailNotFound
	}
	s.emails[email.ID] = email.Clone()
	s.afterMutationLocked("update", s.emails[email.ID])
	return email, nil
}

// MarkRead 标记为已读
func (s *EmailService) MarkRead(id string) (*domain.Email, error) {
	return s.mutate(id, "mark_read", func(e *domain.Email) {
		e.IsRead = true
	})
}

// MarkUnread 标记为未读
func (s *EmailService) MarkUnread(id string) (*domain.Email, error) {
	return s.mutate(id, "mark_unread", func(e *domain.Email) {
		e.IsRead = false
	})
}

// ToggleStar 切换星标状态
func (s *EmailService) ToggleStar(id string) (*domain.Email, error) {
	return s.mutate(id, "toggle_star", func(e *domain.Email) {
		e.IsStarred = !e.IsStarred
	})
}

// MoveToFolder 移动到指定文件夹
func (s *EmailService) MoveToFolder(id, folderID string) (*domain.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	if _, ok := s.folders[folderID]; !ok {
		return nil, ErrFolderNotFound
	}
	email, ok := s.emails[id]
	if !ok {
		return nil, ErrEmailNotFound
	}

	email.FolderID = folderID
	s.afterMutationLocked("move", email)
	return email.Clone(), nil
}

// DeleteEmail 软删除：移入回收站并打删除标记
func (s *EmailService) DeleteEmail(id string) (*domain.Email, error) {
	return s.mutate(id, "delete", func(e *domain.Email) {
		e.FolderID = string(domain.FolderTrash)
		e.IsDeleted = true
	})
}

// RestoreEmail 从回收站恢复到收件箱
func (s *EmailService) RestoreEmail(id string) (*domain.Email, error) {
	return s.mutate(id, "restore", func(e *domain.Email) {
		e.FolderID = string(domain.FolderInbox)
		e.IsDeleted = false
	})
}

// PermanentDeleteEmail 彻底删除邮件
func (s *EmailService) PermanentDeleteEmail(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return err
	}

	if _, ok := s.emails[id]; !ok {
		return ErrEmailNotFound
	}
	delete(s.emails, id)
	s.recountLocked()

	s.persistLocalLocked("delete_email", func() error {
		return s.local.DeleteEmail(id)
	})
	s.persistFoldersLocked()
	s.mirrorRemote(func(r storage.Store) error {
		return r.DeleteEmail(id)
	})
	s.mirrorFoldersLocked()
	if s.metrics != nil {
		s.metrics.RecordMutation("permanent_delete")
	}
	s.updateGaugesLocked()
	return nil
}

// MarkSpam 移入垃圾邮件
func (s *EmailService) MarkSpam(id string) (*domain.Email, error) {
	return s.mutate(id, "mark_spam", func(e *domain.Email) {
		e.FolderID = string(domain.FolderSpam)
		e.IsSpam = true
	})
}

// MarkNotSpam 移回收件箱并清除垃圾标记
func (s *EmailService) MarkNotSpam(id string) (*domain.Email, error) {
	return s.mutate(id, "mark_not_spam", func(e *domain.Email) {
		e.FolderID = string(domain.FolderInbox)
		e.IsSpam = false
	})
}

// ArchiveEmail 归档邮件
func (s *EmailService) ArchiveEmail(id string) (*domain.Email, error) {
	return s.mutate(id, "archive", func(e *domain.Email) {
		e.FolderID = string(domain.FolderArchive)
	})
}

// mutate 单封邮件变更的通用路径：改内存、重算计数、持久化
func (s *EmailService) mutate(id, operation string, fn func(*domain.Email)) (*domain.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	email, ok := s.emails[id]
	if !ok {
		return nil, ErrEmailNotFound
	}

	fn(email)
	s.afterMutationLocked(operation, email)
	return email.Clone(), nil
}

// afterMutationLocked 变更后的固定尾部：计数、落盘、镜像、指标
func (s *EmailService) afterMutationLocked(operation string, email *domain.Email) {
	s.recountLocked()

	s.persistLocalLocked("save_email", func() error {
		return s.local.SaveEmail(email)
	})
	s.persistFoldersLocked()

	mirror := email.Clone()
	s.mirrorRemote(func(r storage.Store) error {
		return r.SaveEmail(mirror)
	})
	s.mirrorFoldersLocked()

	if s.metrics != nil {
		s.metrics.RecordMutation(operation)
	}
	s.updateGaugesLocked()
}

// ========== 文件夹操作 ==========

// CreateFolder 创建自定义文件夹
func (s *EmailService) CreateFolder(folder *domain.Folder) (*domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}

	if folder.ID == "" {
		folder.ID = domain.NewFolderID()
	}
	if _, ok := s.folders[folder.ID]; ok {
		return nil, ErrFolderExists
	}
	folder.Type = domain.FolderCustom
	folder.Permissions = domain.FolderPermissions{Read: true, Write: true, Delete: true}

	s.folders[folder.ID] = folder.Clone()
	s.recountLocked()
	s.persistFoldersLocked()
	s.mirrorFoldersLocked()
	if s.metrics != nil {
		s.metrics.RecordMutation("create_folder")
	}
	return folder, nil
}

// DeleteFolder 删除自定义文件夹，其中的邮件移回收件箱。
// 系统文件夹不可删除。
func (s *EmailService) DeleteFolder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return err
	}

	folder, ok := s.folders[id]
	if !ok {
		return ErrFolderNotFound
	}
	if folder.IsSystem || folder.Type != domain.FolderCustom {
		return domain.ErrSystemFolderImmutable
	}

	var orphaned []*domain.Email
	for _, e := range s.emails {
		if e.FolderID == id {
			e.FolderID = string(domain.FolderInbox)
			orphaned = append(orphaned, e)
		}
	}
	delete(s.folders, id)
	s.recountLocked()

	if len(orphaned) > 0 {
		s.persistLocalLocked("save_emails", func() error {
			return s.local.SaveEmails(orphaned)
		})
	}
	s.persistLocalLocked("delete_folder", func() error {
		return s.local.DeleteFolder(id)
	})
	s.persistFoldersLocked()

	mirror := make([]*domain.Email, 0, len(orphaned))
	for _, e := range orphaned {
		mirror = append(mirror, e.Clone())
	}
	s.mirrorRemote(func(r storage.Store) error {
		if err := r.DeleteFolder(id); err != nil {
			return err
		}
		return r.SaveEmails(mirror)
	})
	s.mirrorFoldersLocked()
	if s.metrics != nil {
		s.metrics.RecordMutation("delete_folder")
	}
	return nil
}

// ========== 持久化辅助 ==========

// recountLocked 全量重算所有文件夹的计数
func (s *EmailService) recountLocked() {
	folders := make([]*domain.Folder, 0, len(s.folders))
	for _, f := range s.folders {
		folders = append(folders, f)
	}
	emails := make([]*domain.Email, 0, len(s.emails))
	for _, e := range s.emails {
		emails = append(emails, e)
	}
	domain.RecountFolders(folders, emails)
}

// persistFoldersLocked 把全部文件夹（含计数）写入本地缓存
func (s *EmailService) persistFoldersLocked() {
	s.persistLocalLocked("replace_folders", func() error {
		return s.local.ReplaceAllFolders(s.folderSliceLocked())
	})
}

// refreshLocalLocked 用内存态整体刷新本地缓存
func (s *EmailService) refreshLocalLocked() {
	emails := make([]*domain.Email, 0, len(s.emails))
	for _, e := range s.emails {
		emails = append(emails, e)
	}
	s.persistLocalLocked("replace_emails", func() error {
		return s.local.ReplaceAllEmails(emails)
	})
	s.persistFoldersLocked()
}

// mirrorFoldersLocked 把文件夹集合异步镜像到远端
func (s *EmailService) mirrorFoldersLocked() {
	folders := s.folderSliceLocked()
	mirror := make([]*domain.Folder, 0, len(folders))
	for _, f := range folders {
		mirror = append(mirror, f.Clone())
	}
	s.mirrorRemote(func(r storage.Store) error {
		return r.ReplaceAllFolders(mirror)
	})
}

// mirrorRemote 提交一个远端写入任务；远端未配置时静默跳过
func (s *EmailService) mirrorRemote(fn func(storage.Store) error) {
	if s.remote == nil {
		return
	}
	remote := s.remote
	task := func() {
		if err := fn(remote); err != nil {
			s.log.Warn("remote mirror write failed", zap.Error(err))
			if s.metrics != nil {
				s.metrics.RecordRemoteMirrorFailure()
			}
		}
	}
	if s.workers != nil {
		if !s.workers.TrySubmit(task) {
			s.log.Warn("remote mirror queue full, dropping write")
			if s.metrics != nil {
				s.metrics.RecordRemoteMirrorFailure()
			}
		}
		return
	}
	task()
}

func (s *EmailService) folderSliceLocked() []*domain.Folder {
	folders := make([]*domain.Folder, 0, len(s.folders))
	for _, f := range s.folders {
		folders = append(folders, f)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].ID < folders[j].ID })
	return folders
}

func (s *EmailService) readyLocked() error {
	if s.state != StateReady {
		return ErrServiceNotReady
	}
	return nil
}

// persistLocalLocked 执行一次本地写入并维护持久化健康状态
func (s *EmailService) persistLocalLocked(operation string, fn func() error) {
	if err := fn(); err != nil {
		s.recordLocalFailure(operation, err)
		return
	}
	s.localErr = nil
}

func (s *EmailService) recordLocalFailure(operation string, err error) {
	s.localErr = err
	s.log.Error("local cache write failed",
		zap.String("operation", operation), zap.Error(err))
	if s.metrics != nil {
		s.metrics.RecordLocalWriteFailure()
	}
}

// LocalPersistenceError 返回最近一次未被后续成功写入覆盖的本地
// 持久化失败。变更本身尽力完成，失败通过这里向上报告。
func (s *EmailService) LocalPersistenceError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localErr
}

func (s *EmailService) updateGaugesLocked() {
	if s.metrics == nil {
		return
	}
	unread := 0
	for _, e := range s.emails {
		if !e.IsRead {
			unread++
		}
	}
	s.metrics.UpdateEmailCounts(len(s.emails), unread)
}
