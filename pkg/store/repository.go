// 文件: pkg/store/repository.go
// 账本持久化 - 仓库接口
//
// 查询端依赖这个接口，不关心底下是 MySQL 还是带 Redis 缓存的装饰器

package store

import "context"

// PoolRepository 池配置/仓位快照仓库
type PoolRepository interface {
	// SavePool 保存池配置快照 (Upsert)
	SavePool(ctx context.Context, record *PoolRecord) error

	// GetPool 按池 ID 查询；不存在返回 (nil, nil)
	GetPool(ctx context.Context, poolID int64) (*PoolRecord, error)

	// GetPoolByAsset 按质押资产查询；不存在返回 (nil, nil)
	GetPoolByAsset(ctx context.Context, asset string) (*PoolRecord, error)

	// ListPools 所有池，按 ID 升序
	ListPools(ctx context.Context) ([]*PoolRecord, error)

	// SavePosition 保存仓位快照 (Upsert)
	SavePosition(ctx context.Context, record *PositionRecord) error

	// GetPosition 按 (池, 用户) 查询；不存在返回 (nil, nil)
	GetPosition(ctx context.Context, poolID, userID int64) (*PositionRecord, error)
}

// JournalRepository 事件流水仓库
type JournalRepository interface {
	// BatchInsert 批量插入流水 (EventID 冲突静默跳过)
	BatchInsert(ctx context.Context, records []*JournalRecord) error

	// ListByPool 按池查询流水，账本时间升序
	ListByPool(ctx context.Context, poolID int64, limit, offset int) ([]*JournalRecord, error)

	// ListByUser 按用户查询流水，账本时间升序
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*JournalRecord, error)
}
