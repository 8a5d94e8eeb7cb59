// 文件: pkg/store/mysql_repo.go
// 账本持久化 - MySQL 实现 (GORM)

package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 确保实现了接口
var (
	_ PoolRepository    = (*MySQLRepo)(nil)
	_ JournalRepository = (*MySQLRepo)(nil)
)

// MySQLRepo MySQL 仓库
type MySQLRepo struct {
	db *gorm.DB
}

// NewMySQLRepo 创建 MySQL 仓库
func NewMySQLRepo(db *gorm.DB) *MySQLRepo {
	return &MySQLRepo{db: db}
}

// AutoMigrate 建表 (开发/测试用)
func (r *MySQLRepo) AutoMigrate() error {
	return r.db.AutoMigrate(&PoolRecord{}, &PositionRecord{}, &JournalRecord{})
}

// =============================================================================
// 池配置
// =============================================================================

// SavePool 保存池配置快照 (Upsert)
func (r *MySQLRepo) SavePool(ctx context.Context, record *PoolRecord) error {
	record.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"stake_asset", "weight", "last_settled_time", "acc_reward_per_unit", "updated_at",
			}),
		}).
		Create(record).Error
}

// GetPool 按池 ID 查询
func (r *MySQLRepo) GetPool(ctx context.Context, poolID int64) (*PoolRecord, error) {
	var record PoolRecord
	err := r.db.WithContext(ctx).
		Where("id = ?", poolID).
		First(&record).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetPoolByAsset 按质押资产查询
func (r *MySQLRepo) GetPoolByAsset(ctx context.Context, asset string) (*PoolRecord, error) {
	var record PoolRecord
	err := r.db.WithContext(ctx).
		Where("stake_asset = ?", asset).
		First(&record).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListPools 所有池
func (r *MySQLRepo) ListPools(ctx context.Context) ([]*PoolRecord, error) {
	var records []*PoolRecord
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&records).Error
	return records, err
}

// =============================================================================
// 仓位快照
// =============================================================================

// SavePosition 保存仓位快照 (Upsert)
func (r *MySQLRepo) SavePosition(ctx context.Context, record *PositionRecord) error {
	record.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "pool_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"principal", "locked_rewards", "stake_duration",
				"last_settlement_time", "reward_baseline", "stake_time_integral", "updated_at",
			}),
		}).
		Create(record).Error
}

// GetPosition 按 (池, 用户) 查询
func (r *MySQLRepo) GetPosition(ctx context.Context, poolID, userID int64) (*PositionRecord, error) {
	var record PositionRecord
	err := r.db.WithContext(ctx).
		Where("pool_id = ? AND user_id = ?", poolID, userID).
		First(&record).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// =============================================================================
// 流水
// =============================================================================

// BatchInsert 批量插入流水 (INSERT IGNORE 幂等)
func (r *MySQLRepo) BatchInsert(ctx context.Context, records []*JournalRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.Insert{Modifier: "IGNORE"}).
		CreateInBatches(records, 100).
		Error
}

// ListByPool 按池查询流水
func (r *MySQLRepo) ListByPool(ctx context.Context, poolID int64, limit, offset int) ([]*JournalRecord, error) {
	var records []*JournalRecord
	err := r.db.WithContext(ctx).
		Where("pool_id = ?", poolID).
		Order("ledger_time ASC, event_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	return records, err
}

// ListByUser 按用户查询流水
func (r *MySQLRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*JournalRecord, error) {
	var records []*JournalRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("ledger_time ASC, event_id ASC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	return records, err
}
