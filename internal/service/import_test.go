package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailsuite/backend/internal/domain"
)

func validRaw(id, subject string) map[string]interface{} {
	return map[string]interface{}{
		"id":      id,
		"subject": subject,
		"from":    "Alice <alice@example.com>",
		"to":      "bob@example.com",
		"body":    "plain text body",
	}
}

func TestImportEmails_BatchIsolation(t *testing.T) {
	svc := newTestService(t, nil)

	raws := []map[string]interface{}{
		validRaw("import-1", "First"),
		validRaw("import-2", "Second"),
		{"body": "no subject key at all"}, // 缺主题键，应被拒绝
		validRaw("import-3", "Third"),
		{"subject": "orphan", "body": "no sender"}, // 缺发件人
	}

	result, err := svc.ImportEmails(context.Background(), raws, "")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 2, result.Failed)

	emails, err := svc.GetEmails()
	require.NoError(t, err)
	assert.Len(t, emails, 3)
}

func TestImportEmails_NormalizesMessyRecord(t *testing.T) {
	svc := newTestService(t, nil)

	raws := []map[string]interface{}{
		{
			"Subject": "Meeting notes",
			"headers": map[string]interface{}{
				"from": "John Smith <john@corp.example>",
			},
			"recipients": []interface{}{"team@corp.example"},
			"body":       "<p>Dear John, here are the notes.\nDisclaimer: internal distribution only.</p>",
			"isRead":     "yes",
		},
	}

	result, err := svc.ImportEmails(context.Background(), raws, "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Zero(t, result.Failed)

	emails, err := svc.GetEmails()
	require.NoError(t, err)
	require.Len(t, emails, 1)

	email := emails[0]
	assert.Equal(t, "Meeting notes", email.Subject)
	assert.Equal(t, "john@corp.example", email.From.Address)
	assert.True(t, email.IsRead)
	assert.True(t, email.IsHTML, "HTML 判定基于清理前的原始正文")
	assert.True(t, strings.HasPrefix(email.Body, "Dear John"), "got %q", email.Body)
	assert.NotContains(t, email.Body, "Disclaimer", "免责声明尾部应被丢弃")
	assert.Equal(t, "inbox", email.FolderID)
}

func TestImportEmails_ReimportIsIdempotent(t *testing.T) {
	svc := newTestService(t, nil)

	raws := []map[string]interface{}{
		validRaw("import-1", "First"),
		validRaw("import-2", "Second"),
	}

	result, err := svc.ImportEmails(context.Background(), raws, "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	// 同一批再导一次：按 ID upsert，不产生重复
	result, err = svc.ImportEmails(context.Background(), raws, "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	emails, err := svc.GetEmails()
	require.NoError(t, err)
	assert.Len(t, emails, 2)

	inbox, err := svc.GetFolder("inbox")
	require.NoError(t, err)
	assert.Equal(t, 2, inbox.TotalCount)
}

func TestImportEmails_CountersRecomputedOnce(t *testing.T) {
	svc := newTestService(t, nil)

	raws := make([]map[string]interface{}, 0, 10)
	for i := 0; i < 10; i++ {
		raws = append(raws, validRaw("", "Bulk"))
	}
	// 没有 ID 的记录各自生成合成 ID
	for i := range raws {
		delete(raws[i], "id")
	}

	result, err := svc.ImportEmails(context.Background(), raws, "")
	require.NoError(t, err)
	assert.Equal(t, 10, result.Imported)

	inbox, err := svc.GetFolder("inbox")
	require.NoError(t, err)
	assert.Equal(t, 10, inbox.TotalCount)
	assert.Equal(t, 10, inbox.UnreadCount)
}

func TestImportEmails_EmptyBatch(t *testing.T) {
	svc := newTestService(t, nil)

	result, err := svc.ImportEmails(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Zero(t, result.Imported)
	assert.Zero(t, result.Failed)
}

func TestImportEmails_NotReady(t *testing.T) {
	svc := &EmailService{state: StateUninitialized}
	_, err := svc.ImportEmails(context.Background(), []map[string]interface{}{validRaw("x", "y")}, "")
	assert.ErrorIs(t, err, ErrServiceNotReady)
}

func TestImportEmails_GeneratedIDsUnique(t *testing.T) {
	svc := newTestService(t, nil)

	raws := []map[string]interface{}{
		{"subject": "A", "from": "a@x.com", "to": "b@x.com"},
		{"subject": "B", "from": "a@x.com", "to": "b@x.com"},
	}
	result, err := svc.ImportEmails(context.Background(), raws, "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	emails, err := svc.GetEmails()
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.NotEqual(t, emails[0].ID, emails[1].ID)
	for _, e := range emails {
		assert.Equal(t, domain.PriorityNormal, e.Priority)
	}
}

func TestImportEmails_TargetFolderOverride(t *testing.T) {
	svc := newTestService(t, nil)

	raws := []map[string]interface{}{
		validRaw("imp-f1", "进归档一"),
		validRaw("imp-f2", "进归档二"),
	}
	result, err := svc.ImportEmails(context.Background(), raws, string(domain.FolderArchive))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)

	emails, err := svc.GetEmailsForFolder(string(domain.FolderArchive))
	require.NoError(t, err)
	assert.Len(t, emails, 2)
}

func TestImportEmails_UnknownTargetFolder(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.ImportEmails(context.Background(), []map[string]interface{}{validRaw("x", "y")}, "no-such-folder")
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

// flakyCtx 在若干次 Err 调用之后才报告取消。
type flakyCtx struct {
	context.Context
	calls     int
	failAfter int
}

func (c *flakyCtx) Err() error {
	c.calls++
	if c.calls > c.failAfter {
		return context.Canceled
	}
	return nil
}

func TestImportEmails_CancelledBeforeStart(t *testing.T) {
	svc := newTestService(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.ImportEmails(ctx, []map[string]interface{}{validRaw("c1", "取消")}, "")
	assert.ErrorIs(t, err, context.Canceled)

	emails, err := svc.GetEmails()
	require.NoError(t, err)
	assert.Empty(t, emails)
}

func TestImportEmails_MidBatchCancelDoesNotSplitCounters(t *testing.T) {
	svc := newTestService(t, nil)

	raws := []map[string]interface{}{
		validRaw("mc1", "一"),
		validRaw("mc2", "二"),
		validRaw("mc3", "三"),
	}
	ctx := &flakyCtx{Context: context.Background(), failAfter: 1}

	// 批次开始后取消不生效：三条全部落地，计数器与内存一致
	result, err := svc.ImportEmails(ctx, raws, "")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)

	inbox, err := svc.GetFolder("inbox")
	require.NoError(t, err)
	assert.Equal(t, 3, inbox.TotalCount)
}
