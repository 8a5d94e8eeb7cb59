// 文件: pkg/store/model.go
// 账本持久化 - 数据模型
//
// 账本的权威状态在内存 (pkg/farm)，这里是异步落盘的影子:
// - pool_specs:     池配置快照 (管理端/查询端读)
// - farm_positions: 仓位快照 (对账用)
// - farm_journal:   事件流水 (只追加，EventID 幂等)
//
// big.Int 字段存十进制字符串，避免精度丢失。

package store

import (
	"time"

	"farm.com/pkg/farm"
)

// PoolRecord 池配置快照
type PoolRecord struct {
	ID               int64     `gorm:"column:id;primaryKey"` // 池 ID (账本分配，非自增)
	StakeAsset       string    `gorm:"column:stake_asset;uniqueIndex;size:32"`
	Weight           int64     `gorm:"column:weight"`
	LastSettledTime  int64     `gorm:"column:last_settled_time"`
	AccRewardPerUnit string    `gorm:"column:acc_reward_per_unit;size:64"` // big.Int 十进制
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (PoolRecord) TableName() string { return "pool_specs" }

// PositionRecord 仓位快照
type PositionRecord struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PoolID             int64     `gorm:"column:pool_id;uniqueIndex:uk_pool_user"`
	UserID             int64     `gorm:"column:user_id;uniqueIndex:uk_pool_user"`
	Principal          int64     `gorm:"column:principal"`
	LockedRewards      int64     `gorm:"column:locked_rewards"`
	StakeDuration      int64     `gorm:"column:stake_duration"`
	LastSettlementTime int64     `gorm:"column:last_settlement_time"`
	RewardBaseline     string    `gorm:"column:reward_baseline;size:64"`
	StakeTimeIntegral  string    `gorm:"column:stake_time_integral;size:64"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (PositionRecord) TableName() string { return "farm_positions" }

// JournalRecord 事件流水表记录
type JournalRecord struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	EventID   int64          `gorm:"column:event_id;uniqueIndex"` // 幂等键 (雪花 ID)
	Type      farm.EventType `gorm:"column:type;size:32"`
	PoolID    int64          `gorm:"column:pool_id;index"`
	UserID    int64          `gorm:"column:user_id;index"`
	Asset     string         `gorm:"column:asset;size:32"`
	Amount    int64          `gorm:"column:amount"`
	Weight    int64          `gorm:"column:weight"`
	Time      int64          `gorm:"column:ledger_time"`
	CreatedAt time.Time      `gorm:"column:created_at"`
}

func (JournalRecord) TableName() string { return "farm_journal" }
