// 文件: pkg/farm/collaborators.go
// 质押挖矿账本 - 外部协作方接口
//
// 账本核心不持有代币、不铸造奖励、不看墙上的钟:
// 这些能力全部通过注入的接口提供，失败会中止整个操作。
// 具体实现见 pkg/vault (托管) 与 cmd/simulation (mock)。

package farm

import "context"

// =============================================================================
// Clock - 时间源
// =============================================================================

// Clock 单调不减的整数时间源 (区块高度、秒数都可以)
// 每次操作开始时取一次 now，整个操作内用同一个值
type Clock interface {
	Now() int64
}

// =============================================================================
// StakeVault - 质押资产托管
// =============================================================================

// StakeVault 质押资产的托管方
//
// 【约定】
// - TransferIn/TransferOut 必须精确移动 amount，短款要报错
// - 任何错误都会导致账本操作整体失败，不留半截状态
type StakeVault interface {
	// TransferIn 用户 -> 池托管
	TransferIn(ctx context.Context, userID int64, asset string, amount int64) error

	// TransferOut 池托管 -> 用户
	TransferOut(ctx context.Context, userID int64, asset string, amount int64) error

	// TotalStaked 某资产当前托管总量
	TotalStaked(ctx context.Context, asset string) (int64, error)
}

// =============================================================================
// AwardSink - 奖励铸造/销毁权限
// =============================================================================

// AwardSink 奖励的外部铸造与销毁方，权威余额在账本之外
type AwardSink interface {
	// AddAward 给用户记入奖励
	AddAward(ctx context.Context, userID int64, amount int64) error

	// Destroy 销毁 (罚没) 一笔奖励
	Destroy(ctx context.Context, amount int64) error
}

// =============================================================================
// Migrator - 托管迁移
// =============================================================================

// Migrator 池托管迁移器
// 把 asset 的全部托管余额迁到新载体，返回新的资产标识。
// 账本随后核对新旧托管量必须完全相等。
type Migrator interface {
	Migrate(ctx context.Context, asset string, amount int64) (newAsset string, err error)
}

// =============================================================================
// 事件
// =============================================================================

// EventType 账本事件类型
type EventType string

const (
	EventPoolAdded         EventType = "POOL_ADDED"
	EventWeightSet         EventType = "WEIGHT_SET"
	EventMigratorSet       EventType = "MIGRATOR_SET"
	EventPoolMigrated      EventType = "POOL_MIGRATED"
	EventDeposit           EventType = "DEPOSIT"
	EventWithdraw          EventType = "WITHDRAW"
	EventEmergencyWithdraw EventType = "EMERGENCY_WITHDRAW"
	EventPoolRefreshed     EventType = "POOL_REFRESHED"
)

// Event 账本事件 (供观测/回放)
// 只在操作成功提交后发布；失败的操作不产生事件
type Event struct {
	Type   EventType `json:"type"`
	PoolID int64     `json:"pool_id"` // 全局事件 (如 MIGRATOR_SET) 为 -1
	UserID int64     `json:"user_id,omitempty"`
	Asset  string    `json:"asset,omitempty"`
	Amount int64     `json:"amount,omitempty"`
	Weight int64     `json:"weight,omitempty"`
	Time   int64     `json:"time"` // 操作使用的账本时间 (Clock.Now)
}

// EventPublisher 事件出口
// 发布失败只记日志，不回滚已提交的账本状态
type EventPublisher interface {
	Publish(ev *Event) error
}

// nopPublisher 丢弃所有事件 (未配置发布器时使用)
type nopPublisher struct{}

func (nopPublisher) Publish(*Event) error { return nil }
