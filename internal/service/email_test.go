package service

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsuite/backend/internal/domain"
	"mailsuite/backend/internal/storage"
	"mailsuite/backend/internal/storage/localcache"
)

// brokenStore 模拟不可达的远端存储
type brokenStore struct{}

var errUnreachable = errors.New("connection refused")

func (brokenStore) SaveEmail(*domain.Email) error                    { return errUnreachable }
func (brokenStore) SaveEmails([]*domain.Email) error                 { return errUnreachable }
func (brokenStore) DeleteEmail(string) error                         { return errUnreachable }
func (brokenStore) ListEmails() ([]*domain.Email, error)             { return nil, errUnreachable }
func (brokenStore) ReplaceAllEmails([]*domain.Email) error           { return errUnreachable }
func (brokenStore) SaveFolder(*domain.Folder) error                  { return errUnreachable }
func (brokenStore) DeleteFolder(string) error                        { return errUnreachable }
func (brokenStore) ListFolders() ([]*domain.Folder, error)           { return nil, errUnreachable }
func (brokenStore) ReplaceAllFolders([]*domain.Folder) error         { return errUnreachable }
func (brokenStore) Close() error                                     { return nil }
func (brokenStore) Health() error                                    { return errUnreachable }

func newTestService(t *testing.T, remote storage.Store) *EmailService {
	t.Helper()
	local, err := localcache.NewStore(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	// workers 传 nil，远端镜像同步执行，测试结果可确定
	svc, err := NewEmailService(local, remote, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Init())
	return svc
}

func testEmail(id string) *domain.Email {
	return &domain.Email{
		ID:       id,
		Subject:  "Quarterly report",
		From:     domain.EmailAddress{Name: "Alice", Address: "alice@example.com"},
		To:       domain.AddressList{{Name: "Bob", Address: "bob@example.com"}},
		Body:     "Please find the report attached.",
		Date:     time.Now().UTC(),
		FolderID: "inbox",
	}
}

func TestEmailService_InitFallsBackToLocal(t *testing.T) {
	// 远端不可达时退回空的本地缓存，服务仍然就绪
	svc := newTestService(t, brokenStore{})
	assert.Equal(t, StateReady, svc.State())

	emails, err := svc.GetEmails()
	require.NoError(t, err)
	assert.Empty(t, emails)

	folders, err := svc.GetFolders()
	require.NoError(t, err)
	assert.Len(t, folders, 7, "系统文件夹应被播种")
}

func TestEmailService_RequiresLocalStore(t *testing.T) {
	_, err := NewEmailService(nil, nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrLocalStoreRequired)
}

func TestEmailService_NotReadyBeforeInit(t *testing.T) {
	local, err := localcache.NewStore(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	defer local.Close()

	svc, err := NewEmailService(local, nil, nil, nil, nil)
	require.NoError(t, err)

	_, err = svc.GetEmails()
	assert.ErrorIs(t, err, ErrServiceNotReady)
}

func TestEmailService_CreateAndGet(t *testing.T) {
	svc := newTestService(t, nil)

	created, err := svc.CreateEmail(testEmail("email-1"))
	require.NoError(t, err)

	got, err := svc.GetEmail(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quarterly report", got.Subject)

	_, err = svc.GetEmail("missing")
	assert.ErrorIs(t, err, ErrEmailNotFound)
}

func TestEmailService_CreateRejectsInvalid(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CreateEmail(&domain.Email{Subject: "no sender"})
	assert.ErrorIs(t, err, domain.ErrMissingFrom)
}

func TestEmailService_MarkReadUpdatesCounters(t *testing.T) {
	svc := newTestService(t, nil)

	email, err := svc.CreateEmail(testEmail("email-1"))
	require.NoError(t, err)

	inbox, err := svc.GetFolder("inbox")
	require.NoError(t, err)
	assert.Equal(t, 1, inbox.TotalCount)
	assert.Equal(t, 1, inbox.UnreadCount)

	_, err = svc.MarkRead(email.ID)
	require.NoError(t, err)

	inbox, err = svc.GetFolder("inbox")
	require.NoError(t, err)
	assert.Equal(t, 1, inbox.TotalCount)
	assert.Equal(t, 0, inbox.UnreadCount, "已读后未读计数归零")

	_, err = svc.MarkUnread(email.ID)
	require.NoError(t, err)
	inbox, _ = svc.GetFolder("inbox")
	assert.Equal(t, 1, inbox.UnreadCount)
}

func TestEmailService_DeleteMovesToTrash(t *testing.T) {
	svc := newTestService(t, nil)

	email, err := svc.CreateEmail(testEmail("email-1"))
	require.NoError(t, err)

	deleted, err := svc.DeleteEmail(email.ID)
	require.NoError(t, err)
	assert.Equal(t, "trash", deleted.FolderID)
	assert.True(t, deleted.IsDeleted)

	inbox, _ := svc.GetFolder("inbox")
	trash, _ := svc.GetFolder("trash")
	assert.Equal(t, 0, inbox.TotalCount)
	assert.Equal(t, 1, trash.TotalCount)

	restored, err := svc.RestoreEmail(email.ID)
	require.NoError(t, err)
	assert.Equal(t, "inbox", restored.FolderID)
	assert.False(t, restored.IsDeleted)
}

func TestEmailService_PermanentDelete(t *testing.T) {
	svc := newTestService(t, nil)

	email, err := svc.CreateEmail(testEmail("email-1"))
	require.NoError(t, err)

	require.NoError(t, svc.PermanentDeleteEmail(email.ID))

	_, err = svc.GetEmail(email.ID)
	assert.ErrorIs(t, err, ErrEmailNotFound)
	assert.ErrorIs(t, svc.PermanentDeleteEmail(email.ID), ErrEmailNotFound)
}

func TestEmailService_SpamRoundTrip(t *testing.T) {
	svc := newTestService(t, nil)

	email, err := svc.CreateEmail(testEmail("email-1"))
	require.NoError(t, err)

	spammed, err := svc.MarkSpam(email.ID)
	require.NoError(t, err)
	assert.Equal(t, "spam", spammed.FolderID)
	assert.True(t, spammed.IsSpam)

	cleared, err := svc.MarkNotSpam(email.ID)
	require.NoError(t, err)
	assert.Equal(t, "inbox", cleared.FolderID)
	assert.False(t, cleared.IsSpam)
}

func TestEmailService_ToggleStar(t *testing.T) {
	svc := newTestService(t, nil)

	email, err := svc.CreateEmail(testEmail("email-1"))
	require.NoError(t, err)

	starred, err := svc.ToggleStar(email.ID)
	require.NoError(t, err)
	assert.True(t, starred.IsStarred)

	unstarred, err := svc.ToggleStar(email.ID)
	require.NoError(t, err)
	assert.False(t, unstarred.IsStarred)
}

func TestEmailService_MoveToFolder(t *testing.T) {
	svc := newTestService(t, nil)

	email, err := svc.CreateEmail(testEmail("email-1"))
	require.NoError(t, err)

	moved, err := svc.MoveToFolder(email.ID, "archive")
	require.NoError(t, err)
	assert.Equal(t, "archive", moved.FolderID)

	_, err = svc.MoveToFolder(email.ID, "nonexistent")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestEmailService_CustomFolderLifecycle(t *testing.T) {
	svc := newTestService(t, nil)

	folder, err := svc.CreateFolder(&domain.Folder{Name: "Work"})
	require.NoError(t, err)
	assert.Equal(t, domain.FolderCustom, folder.Type)
	assert.NotEmpty(t, folder.ID)

	email, err := svc.CreateEmail(testEmail("email-1"))
	require.NoError(t, err)
	_, err = svc.MoveToFolder(email.ID, folder.ID)
	require.NoError(t, err)

	// 删除文件夹后邮件回到收件箱
	require.NoError(t, svc.DeleteFolder(folder.ID))

	got, err := svc.GetEmail(email.ID)
	require.NoError(t, err)
	assert.Equal(t, "inbox", got.FolderID)

	_, err = svc.GetFolder(folder.ID)
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestEmailService_SystemFolderImmutable(t *testing.T) {
	svc := newTestService(t, nil)

	err := svc.DeleteFolder("inbox")
	assert.ErrorIs(t, err, domain.ErrSystemFolderImmutable)
}

func TestEmailService_MutationsSurviveRestart(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	local, err := localcache.NewStore(dbPath, nil)
	require.NoError(t, err)
	svc, err := NewEmailService(local, nil, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Init())

	email, err := svc.CreateEmail(testEmail("email-1"))
	require.NoError(t, err)
	_, err = svc.MarkRead(email.ID)
	require.NoError(t, err)
	require.NoError(t, local.Close())

	// 重启：新服务实例从同一个缓存装载
	reopened, err := localcache.NewStore(dbPath, nil)
	require.NoError(t, err)
	defer reopened.Close()

	svc2, err := NewEmailService(reopened, nil, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, svc2.Init())

	got, err := svc2.GetEmail("email-1")
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	inbox, err := svc2.GetFolder("inbox")
	require.NoError(t, err)
	assert.Equal(t, 1, inbox.TotalCount)
	assert.Equal(t, 0, inbox.UnreadCount)
}

func TestEmailService_Search(t *testing.T) {
	svc := newTestService(t, nil)

	first := testEmail("email-1")
	first.Subject = "Project kickoff"
	first.Date = time.Now().Add(-time.Hour)
	second := testEmail("email-2")
	second.Subject = "Lunch plans"
	second.From = domain.EmailAddress{Name: "Carol", Address: "carol@example.com"}
	second.Date = time.Now()

	_, err := svc.CreateEmail(first)
	require.NoError(t, err)
	_, err = svc.CreateEmail(second)
	require.NoError(t, err)

	t.Run("按主题匹配", func(t *testing.T) {
		results, err := svc.Search(domain.EmailSearchCriteria{Query: "kickoff"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "email-1", results[0].ID)
	})

	t.Run("大小写不敏感", func(t *testing.T) {
		results, err := svc.Search(domain.EmailSearchCriteria{Query: "LUNCH"})
		require.NoError(t, err)
		require.Len(t, results, 1)
	})

	t.Run("按发件人匹配", func(t *testing.T) {
		results, err := svc.Search(domain.EmailSearchCriteria{Query: "carol"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "email-2", results[0].ID)
	})

	t.Run("空查询返回全部并按日期倒序", func(t *testing.T) {
		results, err := svc.Search(domain.EmailSearchCriteria{})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "email-2", results[0].ID, "较新的在前")
	})

	t.Run("按文件夹过滤", func(t *testing.T) {
		_, err := svc.MoveToFolder("email-1", "archive")
		require.NoError(t, err)
		results, err := svc.Search(domain.EmailSearchCriteria{FolderID: "inbox"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "email-2", results[0].ID)
	})

	t.Run("按未读过滤", func(t *testing.T) {
		read := true
		_, err := svc.MarkRead("email-2")
		require.NoError(t, err)
		results, err := svc.Search(domain.EmailSearchCriteria{IsRead: &read})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "email-2", results[0].ID)
	})
}

func TestEmailService_RemoteFailureDoesNotBlockMutation(t *testing.T) {
	// 远端每次写入都失败，调用方仍然得到成功结果
	svc := newTestService(t, brokenStore{})

	email, err := svc.CreateEmail(testEmail("email-1"))
	require.NoError(t, err)

	_, err = svc.MarkRead(email.ID)
	require.NoError(t, err)

	got, err := svc.GetEmail(email.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)
}

func TestEmailService_ReadsReturnSnapshots(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.CreateEmail(testEmail("snap-1"))
	require.NoError(t, err)

	before, err := svc.GetEmail("snap-1")
	require.NoError(t, err)
	assert.False(t, before.IsRead)

	_, err = svc.MarkRead("snap-1")
	require.NoError(t, err)

	// 之前拿到的快照不随后续变更改变
	assert.False(t, before.IsRead)

	after, err := svc.GetEmail("snap-1")
	require.NoError(t, err)
	assert.True(t, after.IsRead)

	// 调用方改写返回值不影响服务内存
	after.Subject = "scribbled"
	again, err := svc.GetEmail("snap-1")
	require.NoError(t, err)
	assert.NotEqual(t, "scribbled", again.Subject)
}

func TestEmailService_ConcurrentReadersAndWriters(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.CreateEmail(testEmail("race-1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			e, err := svc.GetEmail("race-1")
			assert.NoError(t, err)
			_ = e.IsRead
			_, _ = svc.Search(domain.EmailSearchCriteria{Query: "race"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				_, err := svc.MarkRead("race-1")
				assert.NoError(t, err)
			} else {
				_, err := svc.MarkUnread("race-1")
				assert.NoError(t, err)
			}
		}
	}()
	wg.Wait()
}

// flakyLocal 包装真实本地缓存，可开关写入失败
type flakyLocal struct {
	storage.Store
	failWrites bool
}

var errDiskFull = errors.New("database or disk is full")

func (f *flakyLocal) SaveEmail(e *domain.Email) error {
	if f.failWrites {
		return errDiskFull
	}
	return f.Store.SaveEmail(e)
}

func TestEmailService_LocalWriteFailureSurfacedAsWarning(t *testing.T) {
	local, err := localcache.NewStore(filepath.Join(t.TempDir(), "cache.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = local.Close() })

	flaky := &flakyLocal{Store: local}
	svc, err := NewEmailService(flaky, nil, nil, nil, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Init())

	_, err = svc.CreateEmail(testEmail("email-1"))
	require.NoError(t, err)
	assert.NoError(t, svc.LocalPersistenceError())

	// 本地写入失败不阻断变更本身，但要能被健康检查看到
	flaky.failWrites = true
	marked, err := svc.MarkRead("email-1")
	require.NoError(t, err)
	assert.True(t, marked.IsRead)
	assert.ErrorIs(t, svc.LocalPersistenceError(), errDiskFull)

	// 恢复后下一次成功写入清除告警
	flaky.failWrites = false
	_, err = svc.MarkUnread("email-1")
	require.NoError(t, err)
	assert.NoError(t, svc.LocalPersistenceError())
}
