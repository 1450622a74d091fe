// Package localcache 实现按键索引的本地持久缓存。
//
// 这是持久性的兜底层：不依赖网络、跨进程重启存活、首次运行时为空。
// 记录整体 JSON 编码后按 ID 入库，SQLite（纯 Go 的 modernc 驱动）
// 提供崩溃安全和 upsert 语义。
package localcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"mailsuite/backend/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS emails (
	id        TEXT PRIMARY KEY,
	folder_id TEXT NOT NULL DEFAULT '',
	record    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_emails_folder ON emails(folder_id);

CREATE TABLE IF NOT EXISTS folders (
	id        TEXT PRIMARY KEY,
	record    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store 本地 SQLite 缓存存储实现。
type Store struct {
	db  *sqlx.DB
	log *zap.Logger
}

// NewStore 打开（或创建）dbPath 处的缓存库，启用 WAL 并建表。
// 查询一个从未写入过的库返回空结果，不是错误。
func NewStore(dbPath string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// WAL 模式提升并发读性能，也让写入崩溃安全
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// ========== Email Repository ==========

// SaveEmail 按 ID upsert 单封邮件
func (s *Store) SaveEmail(email *domain.Email) error {
	record, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to encode email %s: %w", email.ID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO emails (id, folder_id, record, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			folder_id = excluded.folder_id,
			record = excluded.record,
			updated_at = CURRENT_TIMESTAMP`,
		email.ID, email.FolderID, string(record))
	if err != nil {
		return fmt.Errorf("failed to upsert email %s: %w", email.ID, err)
	}
	return nil
}

// SaveEmails 在单个事务内批量 upsert
func (s *Store) SaveEmails(emails []*domain.Email) error {
	if len(emails) == 0 {
		return nil
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, email := range emails {
		record, err := json.Marshal(email)
		if err != nil {
			return fmt.Errorf("failed to encode email %s: %w", email.ID, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO emails (id, folder_id, record, updated_at)
			VALUES (?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE SET
				folder_id = excluded.folder_id,
				record = excluded.record,
				updated_at = CURRENT_TIMESTAMP`,
			email.ID, email.FolderID, string(record)); err != nil {
			return fmt.Errorf("failed to upsert email %s: %w", email.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteEmail 删除单封邮件；不存在时静默成功
func (s *Store) DeleteEmail(id string) error {
	if _, err := s.db.Exec("DELETE FROM emails WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete email %s: %w", id, err)
	}
	return nil
}

// ListEmails 返回全部缓存的邮件。
// 解码失败的行跳过并记日志，一条坏记录不能挡住整个装载。
func (s *Store) ListEmails() ([]*domain.Email, error) {
	rows, err := s.db.Query("SELECT id, record FROM emails")
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	var emails []*domain.Email
	for rows.Next() {
		var id, record string
		if err := rows.Scan(&id, &record); err != nil {
			return nil, fmt.Errorf("failed to scan email row: %w", err)
		}
		var email domain.Email
		if err := json.Unmarshal([]byte(record), &email); err != nil {
			s.log.Warn("skipping undecodable cached email",
				zap.String("id", id), zap.Error(err))
			continue
		}
		emails = append(emails, &email)
	}
	return emails, rows.Err()
}

// ReplaceAllEmails 整体替换缓存的邮件集合
func (s *Store) ReplaceAllEmails(emails []*domain.Email) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM emails"); err != nil {
		return fmt.Errorf("failed to clear emails: %w", err)
	}

	for _, email := range emails {
		record, err := json.Marshal(email)
		if err != nil {
			return fmt.Errorf("failed to encode email %s: %w", email.ID, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO emails (id, folder_id, record) VALUES (?, ?, ?)",
			email.ID, email.FolderID, string(record)); err != nil {
			return fmt.Errorf("failed to insert email %s: %w", email.ID, err)
		}
	}

	return tx.Commit()
}

// ========== Folder Repository ==========

// SaveFolder 按 ID upsert 单个文件夹
func (s *Store) SaveFolder(folder *domain.Folder) error {
	record, err := json.Marshal(folder)
	if err != nil {
		return fmt.Errorf("failed to encode folder %s: %w", folder.ID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO folders (id, record, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			record = excluded.record,
			updated_at = CURRENT_TIMESTAMP`,
		folder.ID, string(record))
	if err != nil {
		return fmt.Errorf("failed to upsert folder %s: %w", folder.ID, err)
	}
	return nil
}

// DeleteFolder 删除单个文件夹
func (s *Store) DeleteFolder(id string) error {
	if _, err := s.db.Exec("DELETE FROM folders WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete folder %s: %w", id, err)
	}
	return nil
}

// ListFolders 返回全部缓存的文件夹
func (s *Store) ListFolders() ([]*domain.Folder, error) {
	rows, err := s.db.Query("SELECT id, record FROM folders")
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*domain.Folder
	for rows.Next() {
		var id, record string
		if err := rows.Scan(&id, &record); err != nil {
			return nil, fmt.Errorf("failed to scan folder row: %w", err)
		}
		var folder domain.Folder
		if err := json.Unmarshal([]byte(record), &folder); err != nil {
			s.log.Warn("skipping undecodable cached folder",
				zap.String("id", id), zap.Error(err))
			continue
		}
		folders = append(folders, &folder)
	}
	return folders, rows.Err()
}

// ReplaceAllFolders 整体替换缓存的文件夹集合
func (s *Store) ReplaceAllFolders(folders []*domain.Folder) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM folders"); err != nil {
		return fmt.Errorf("failed to clear folders: %w", err)
	}

	for _, folder := range folders {
		record, err := json.Marshal(folder)
		if err != nil {
			return fmt.Errorf("failed to encode folder %s: %w", folder.ID, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO folders (id, record) VALUES (?, ?)",
			folder.ID, string(record)); err != nil {
			return fmt.Errorf("failed to insert folder %s: %w", folder.ID, err)
		}
	}

	return tx.Commit()
}

// ========== 工具方法 ==========

// Close 关闭缓存数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// Health 连通性检查
func (s *Store) Health() error {
	return s.db.Ping()
}
