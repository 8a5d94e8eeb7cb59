// 文件: pkg/vault/model.go
// 资产托管 - 数据模型
//
// 托管账户的权威余额在这里，账本 (pkg/farm) 只记比例分配。
// 金额统一为 int64 最小精度单位。

package vault

import (
	"errors"
	"time"
)

var (
	ErrInsufficientFunds = errors.New("insufficient available balance")
	ErrInsufficientStake = errors.New("insufficient staked balance")
)

// AccountRecord MySQL 托管账户表记录
// available: 用户自由余额; staked: 已进入池托管的部分
type AccountRecord struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64     `gorm:"column:user_id;uniqueIndex:uk_user_asset"`
	Asset     string    `gorm:"column:asset;uniqueIndex:uk_user_asset;size:32"`
	Available int64     `gorm:"column:available"`
	Staked    int64     `gorm:"column:staked"`
	Version   int       `gorm:"column:version"` // 乐观锁
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (AccountRecord) TableName() string { return "vault_accounts" }

// AwardRecord 奖励账户表记录 (AwardSink 的落盘形态)
type AwardRecord struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64     `gorm:"column:user_id;uniqueIndex"`
	Amount    int64     `gorm:"column:amount"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (AwardRecord) TableName() string { return "vault_awards" }

// BurnRecord 罚没销毁流水
// 只追加，审计用
type BurnRecord struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Amount    int64     `gorm:"column:amount"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (BurnRecord) TableName() string { return "vault_burns" }
