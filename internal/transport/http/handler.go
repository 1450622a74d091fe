package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"mailsuite/backend/internal/archive"
	"mailsuite/backend/internal/domain"
	"mailsuite/backend/internal/service"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	emails     *service.EmailService
	extractors map[string]archive.Extractor
}

// NewHandler 创建处理器。
func NewHandler(emails *service.EmailService) *Handler {
	extractors := make(map[string]archive.Extractor)
	for _, e := range []archive.Extractor{archive.JSONLines{}} {
		extractors[e.Kind()] = e
	}
	return &Handler{emails: emails, extractors: extractors}
}

// ========== 文件夹 ==========

// ListFolders GET /v1/folders
func (h *Handler) ListFolders(c *gin.Context) {
	folders, err := h.emails.GetFolders()
	if err != nil {
		h.renderError(c, err)
		return
	}
	Success(c, folders)
}

// CreateFolder POST /v1/folders
func (h *Handler) CreateFolder(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Color string `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "文件夹名称不能为空")
		return
	}

	folder, err := h.emails.CreateFolder(&domain.Folder{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		h.renderError(c, err)
		return
	}
	Created(c, folder)
}

// DeleteFolder DELETE /v1/folders/:id
func (h *Handler) DeleteFolder(c *gin.Context) {
	if err := h.emails.DeleteFolder(c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	NoContent(c)
}

// ListFolderEmails GET /v1/folders/:id/emails
func (h *Handler) ListFolderEmails(c *gin.Context) {
	emails, err := h.emails.GetEmailsForFolder(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	Success(c, emails)
}

// ========== 邮件 ==========

// ListEmails GET /v1/emails
func (h *Handler) ListEmails(c *gin.Context) {
	emails, err := h.emails.GetEmails()
	if err != nil {
		h.renderError(c, err)
		return
	}
	Success(c, emails)
}

// GetEmail GET /v1/emails/:id
func (h *Handler) GetEmail(c *gin.Context) {
	email, err := h.emails.GetEmail(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	Success(c, email)
}

// CreateEmail POST /v1/emails
func (h *Handler) CreateEmail(c *gin.Context) {
	var email domain.Email
	if err := c.ShouldBindJSON(&email); err != nil {
		BadRequest(c, "请求体格式错误")
		return
	}

	created, err := h.emails.CreateEmail(&email)
	if err != nil {
		h.renderError(c, err)
		return
	}
	Created(c, created)
}

// UpdateEmail PUT /v1/emails/:id
func (h *Handler) UpdateEmail(c *gin.Context) {
	var email domain.Email
	if err := c.ShouldBindJSON(&email); err != nil {
		BadRequest(c, "请求体格式错误")
		return
	}
	email.ID = c.Param("id")

	updated, err := h.emails.UpdateEmail(&email)
	if err != nil {
		h.renderError(c, err)
		return
	}
	Success(c, updated)
}

// DeleteEmail DELETE /v1/emails/:id （软删除，移入回收站）
func (h *Handler) DeleteEmail(c *gin.Context) {
	email, err := h.emails.DeleteEmail(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	Success(c, email)
}

// PermanentDeleteEmail DELETE /v1/emails/:id/permanent
func (h *Handler) PermanentDeleteEmail(c *gin.Context) {
	if err := h.emails.PermanentDeleteEmail(c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	NoContent(c)
}

// MarkRead POST /v1/emails/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	h.mutation(c, h.emails.MarkRead)
}

// MarkUnread POST /v1/emails/:id/unread
func (h *Handler) MarkUnread(c *gin.Context) {
	h.mutation(c, h.emails.MarkUnread)
}

// ToggleStar POST /v1/emails/:id/star
func (h *Handler) ToggleStar(c *gin.Context) {
	h.mutation(c, h.emails.ToggleStar)
}

// RestoreEmail POST /v1/emails/:id/restore
func (h *Handler) RestoreEmail(c *gin.Context) {
	h.mutation(c, h.emails.RestoreEmail)
}

// MarkSpam POST /v1/emails/:id/spam
func (h *Handler) MarkSpam(c *gin.Context) {
	h.mutation(c, h.emails.MarkSpam)
}

// MarkNotSpam POST /v1/emails/:id/not-spam
func (h *Handler) MarkNotSpam(c *gin.Context) {
	h.mutation(c, h.emails.MarkNotSpam)
}

// ArchiveEmail POST /v1/emails/:id/archive
func (h *Handler) ArchiveEmail(c *gin.Context) {
	h.mutation(c, h.emails.ArchiveEmail)
}

// MoveEmail POST /v1/emails/:id/move
func (h *Handler) MoveEmail(c *gin.Context) {
	var req struct {
		FolderID string `json:"folderId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "目标文件夹不能为空")
		return
	}

	email, err := h.emails.MoveToFolder(c.Param("id"), req.FolderID)
	if err != nil {
		h.renderError(c, err)
		return
	}
	Success(c, email)
}

// mutation 单封邮件变更的统一处理
func (h *Handler) mutation(c *gin.Context, fn func(string) (*domain.Email, error)) {
	email, err := fn(c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	Success(c, email)
}

// ========== 搜索与导入 ==========

// SearchEmails GET /v1/emails/search
func (h *Handler) SearchEmails(c *gin.Context) {
	criteria := domain.EmailSearchCriteria{
		Query:    c.Query("q"),
		FolderID: c.Query("folderId"),
	}
	if v, ok := parseBoolQuery(c, "isRead"); ok {
		criteria.IsRead = &v
	}
	if v, ok := parseBoolQuery(c, "isStarred"); ok {
		criteria.IsStarred = &v
	}
	if v, ok := parseBoolQuery(c, "hasAttachment"); ok {
		criteria.HasAttachment = &v
	}

	emails, err := h.emails.Search(criteria)
	if err != nil {
		h.renderError(c, err)
		return
	}
	Success(c, emails)
}

// ImportEmails POST /v1/emails/import
//
// 可选的 folderId 查询参数把整批导入指定文件夹。
func (h *Handler) ImportEmails(c *gin.Context) {
	var raws []map[string]interface{}
	if err := c.ShouldBindJSON(&raws); err != nil {
		BadRequest(c, "导入数据必须是记录数组")
		return
	}

	result, err := h.emails.ImportEmails(c.Request.Context(), raws, c.Query("folderId"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	Success(c, result)
}

// ImportArchive POST /v1/emails/import/:kind
//
// 从档案文件流导入。kind 选择抽取器（当前支持 jsonl），
// 抽取出的原始记录走和 JSON 数组导入相同的管道。
func (h *Handler) ImportArchive(c *gin.Context) {
	kind := c.Param("kind")
	extractor, ok := h.extractors[kind]
	if !ok {
		BadRequest(c, "不支持的档案类型: "+kind)
		return
	}

	raws, err := extractor.Extract(c.Request.Context(), c.Request.Body)
	if err != nil {
		switch {
		case errors.Is(err, archive.ErrPasswordRequired):
			BadRequest(c, "档案受密码保护")
		case errors.Is(err, archive.ErrCorruptArchive):
			BadRequest(c, "档案损坏或不可读")
		default:
			h.renderError(c, err)
		}
		return
	}

	result, err := h.emails.ImportEmails(c.Request.Context(), raws, c.Query("folderId"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	Success(c, result)
}

// ========== 错误映射 ==========

// renderError 把服务层错误映射为 HTTP 响应
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmailNotFound):
		NotFound(c, "邮件不存在")
	case errors.Is(err, service.ErrFolderNotFound):
		NotFound(c, "文件夹不存在")
	case errors.Is(err, service.ErrFolderExists):
		Conflict(c, "文件夹已存在")
	case errors.Is(err, domain.ErrSystemFolderImmutable):
		Conflict(c, "系统文件夹不可修改")
	case errors.Is(err, service.ErrServiceNotReady):
		ServiceUnavailable(c, "服务尚未就绪")
	case errors.Is(err, domain.ErrMissingSubject),
		errors.Is(err, domain.ErrMissingFrom),
		errors.Is(err, domain.ErrMissingRecipients):
		BadRequest(c, err.Error())
	default:
		InternalError(c, "服务器内部错误")
	}
}

func parseBoolQuery(c *gin.Context, key string) (bool, bool) {
	switch c.Query(key) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}
