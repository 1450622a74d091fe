// Package remote 实现权威的远端关系库持久层。
//
// 远端只有在配置了 DSN 且可达时才参与；未配置按"层不可用"处理，
// 由服务层回退到本地缓存。所有调用都带有限定超时，远端变慢或失联
// 不能拖住本地缓存的写入路径。
package remote

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mailsuite/backend/internal/domain"
)

// createBatchSize 批量插入的分批大小
const createBatchSize = 200

// Options 远端存储的连接参数。
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// Store 远端关系库存储实现（PostgreSQL / MySQL，经由 GORM）。
type Store struct {
	db           *gorm.DB
	queryTimeout time.Duration
}

// NewStore 创建 PostgreSQL 存储实例
func NewStore(dsn string, opts Options) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn), opts)
}

// NewMySQLStore 创建 MySQL 存储实例
func NewMySQLStore(dsn string, opts Options) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn), opts)
}

// NewStoreForType 根据数据库类型创建存储实例
func NewStoreForType(dbType, dsn string, opts Options) (*Store, error) {
	switch dbType {
	case "mysql":
		return NewMySQLStore(dsn, opts)
	case "postgres", "postgresql":
		return NewStore(dsn, opts)
	default:
		return nil, fmt.Errorf("unsupported database type: %s (supported: mysql, postgres)", dbType)
	}
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, opts Options) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 静默模式
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 25
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 10 * time.Second
	}

	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	store := &Store{db: db, queryTimeout: opts.QueryTimeout}

	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移 emails 和 email_folders 表。
// GORM 默认的 NamingStrategy 生成 snake_case 列名，
// 规范字段到远端列名的映射由此完成。
func (s *Store) migrate() error {
	ctx, cancel := s.opCtx()
	defer cancel()
	return s.db.WithContext(ctx).AutoMigrate(&domain.Email{}, &domain.Folder{})
}

// opCtx 为单次远端调用生成限定超时的上下文。
func (s *Store) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.queryTimeout)
}

// ========== Email Repository ==========

// SaveEmail 按主键 upsert 单封邮件
func (s *Store) SaveEmail(email *domain.Email) error {
	ctx, cancel := s.opCtx()
	defer cancel()
	return s.db.WithContext(ctx).Save(email).Error
}

// SaveEmails 批量 upsert 邮件
func (s *Store) SaveEmails(emails []*domain.Email) error {
	if len(emails) == 0 {
		return nil
	}
	ctx, cancel := s.opCtx()
	defer cancel()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range emails {
			if err := tx.Save(e).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteEmail 物理删除单封邮件
func (s *Store) DeleteEmail(id string) error {
	ctx, cancel := s.opCtx()
	defer cancel()
	return s.db.WithContext(ctx).Delete(&domain.Email{}, "id = ?", id).Error
}

// ListEmails 返回全部邮件，服务启动装载时调用
func (s *Store) ListEmails() ([]*domain.Email, error) {
	ctx, cancel := s.opCtx()
	defer cancel()

	var emails []*domain.Email
	if err := s.db.WithContext(ctx).Order("date DESC").Find(&emails).Error; err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	return emails, nil
}

// ReplaceAllEmails 整体替换邮件集合（事务内先清空再分批写入）
func (s *Store) ReplaceAllEmails(emails []*domain.Email) error {
	ctx, cancel := s.opCtx()
	defer cancel()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.Email{}).Error; err != nil {
			return err
		}
		if len(emails) == 0 {
			return nil
		}
		return tx.CreateInBatches(emails, createBatchSize).Error
	})
}

// ========== Folder Repository ==========

// SaveFolder 按主键 upsert 单个文件夹
func (s *Store) SaveFolder(folder *domain.Folder) error {
	ctx, cancel := s.opCtx()
	defer cancel()
	return s.db.WithContext(ctx).Save(folder).Error
}

// DeleteFolder 删除单个文件夹
func (s *Store) DeleteFolder(id string) error {
	ctx, cancel := s.opCtx()
	defer cancel()
	return s.db.WithContext(ctx).Delete(&domain.Folder{}, "id = ?", id).Error
}

// ListFolders 返回全部文件夹
func (s *Store) ListFolders() ([]*domain.Folder, error) {
	ctx, cancel := s.opCtx()
	defer cancel()

	var folders []*domain.Folder
	if err := s.db.WithContext(ctx).Find(&folders).Error; err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	return folders, nil
}

// ReplaceAllFolders 整体替换文件夹集合
func (s *Store) ReplaceAllFolders(folders []*domain.Folder) error {
	ctx, cancel := s.opCtx()
	defer cancel()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&domain.Folder{}).Error; err != nil {
			return err
		}
		if len(folders) == 0 {
			return nil
		}
		return tx.Create(folders).Error
	})
}

// ========== 工具方法 ==========

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 连通性检查
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx()
	defer cancel()
	return sqlDB.PingContext(ctx)
}
