package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailsuite/backend/internal/domain"
	"mailsuite/backend/internal/normalize"
	"mailsuite/backend/internal/storage"
)

// ImportResult 一次批量导入的汇总。
type ImportResult struct {
	Imported int `json:"imported"`
	Failed   int `json:"failed"`
}

// ImportEmails 批量导入任意形状的原始记录。
//
// 每条记录独立规整和落库：单条失败只计入 Failed，不中断批次。
// 已存在的 ID 按 upsert 处理，重复导入同一批数据是幂等的。
// folderID 非空时导入的邮件落入该文件夹，否则保留记录自带的归属。
func (s *EmailService) ImportEmails(ctx context.Context, raws []map[string]interface{}, folderID string) (*ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyLocked(); err != nil {
		return nil, err
	}
	if folderID != "" {
		if _, ok := s.folders[folderID]; !ok {
			return nil, ErrFolderNotFound
		}
	}
	// 取消只在写入内存前生效，批次一旦开始就整体跑完，
	// 避免计数器和已写入的邮件脱节。
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	normalizer := normalize.NewNormalizer(s.log)
	result := &ImportResult{}
	var accepted []*domain.Email

	for i, raw := range raws {
		email, err := s.importOne(normalizer, raw)
		if err != nil {
			result.Failed++
			s.log.Warn("skipping unimportable record",
				zap.Int("index", i),
				zap.Int("keys", len(raw)),
				zap.Error(err))
			continue
		}
		if folderID != "" {
			email.FolderID = folderID
		}
		s.emails[email.ID] = email
		accepted = append(accepted, email)
		result.Imported++
	}

	if len(accepted) > 0 {
		s.recountLocked()

		s.persistLocalLocked("save_emails", func() error {
			return s.local.SaveEmails(accepted)
		})
		s.persistFoldersLocked()

		mirror := make([]*domain.Email, 0, len(accepted))
		for _, e := range accepted {
			mirror = append(mirror, e.Clone())
		}
		s.mirrorRemote(func(r storage.Store) error {
			return r.SaveEmails(mirror)
		})
		s.mirrorFoldersLocked()
	}

	if s.metrics != nil {
		s.metrics.RecordImportBatch(result.Imported, result.Failed, time.Since(start))
	}
	s.updateGaugesLocked()

	s.log.Info("import batch finished",
		zap.Int("imported", result.Imported),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// importOne 规整单条记录，拦截规整过程中的 panic。
func (s *EmailService) importOne(n *normalize.Normalizer, raw map[string]interface{}) (email *domain.Email, err error) {
	defer func() {
		if r := recover(); r != nil {
			email = nil
			err = fmt.Errorf("normalization panicked: %v", r)
			if s.metrics != nil {
				s.metrics.RecordPanic()
			}
		}
	}()
	return n.Normalize(raw)
}
