// 文件: pkg/farm/ledger.go
// 质押挖矿账本 - 编排层 (LedgerController)
//
// 【核心职责】
// 1. 管理池列表与全局权重，路由用户操作
// 2. 入金/出金前强制结算 (紧急出金除外)
// 3. 管理员操作 (加池/调权/迁移) 的权限门禁
// 4. 成功提交后对外发布事件
//
// 【并发模型】
// - 读多写少: pools 列表与全局标量由 RWMutex 保护
// - 同池串行: 每个池自带互斥锁，入金/出金/结算在锁内跑完
// - 跨池操作互相独立，可以并发
//
//	外部调用 (用户/管理员)
//	       │
//	       ▼
//	┌──────────────┐
//	│    Ledger    │ 权限/路由/事件
//	└──────────────┘
//	   │        │
//	   ▼        ▼
//	Settler  Accumulator
//	   │        │
//	   ▼        ▼
//	AwardSink  StakeVault (外部协作方)

package farm

import (
	"context"
	"log"
	"math/big"
	"sync"
	"sync/atomic"
)

// =============================================================================
// 配置
// =============================================================================

// Config 账本配置
type Config struct {
	// Owner 管理员用户 ID，只有它能做池配置/迁移类操作
	Owner int64

	// RatePerUnit 每个时间单位的全局产出量
	RatePerUnit int64

	// StartTime / EndTime 产出窗口 (start 必须小于 end)
	StartTime int64
	EndTime   int64
}

// =============================================================================
// Ledger - 账本控制器
// =============================================================================

// Ledger 质押挖矿账本控制器
//
// 使用示例:
//
//	ledger, err := farm.NewLedger(cfg, clock, vault, sink, publisher)
//	poolID, _ := ledger.AddPool(ctx, owner, 100, "LP-BTC", false)
//	err = ledger.Deposit(ctx, userID, poolID, 1000*1e8)
type Ledger struct {
	clock  Clock
	vault  StakeVault
	sink   AwardSink
	events EventPublisher

	owner    int64
	migrator Migrator

	mu          sync.RWMutex
	pools       []*Pool
	byAsset     map[string]int64 // stakeAsset -> poolID
	totalWeight int64

	// migrated 一次性开关: false -> true，翻转后所有结算走兑付/罚没路径
	migrated atomic.Bool

	acc     *Accumulator
	settler *Settler
}

// NewLedger 创建账本
// events 传 nil 表示不发布事件
func NewLedger(cfg Config, clock Clock, vault StakeVault, sink AwardSink, events EventPublisher) (*Ledger, error) {
	schedule, err := NewEmissionSchedule(cfg.RatePerUnit, cfg.StartTime, cfg.EndTime)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = nopPublisher{}
	}

	l := &Ledger{
		clock:   clock,
		vault:   vault,
		sink:    sink,
		events:  events,
		owner:   cfg.Owner,
		byAsset: make(map[string]int64),
	}
	l.acc = NewAccumulator(schedule, vault)
	l.settler = NewSettler(l.acc, sink, &l.migrated)
	return l, nil
}

// publish 发布事件，失败只记日志 (账本状态已提交，不回滚)
func (l *Ledger) publish(ev *Event) {
	if err := l.events.Publish(ev); err != nil {
		log.Printf("[Farm] publish event failed: type=%s pool=%d err=%v", ev.Type, ev.PoolID, err)
	}
}

// poolLocked 按 ID 取池，调用者必须已持有 l.mu (读或写)
func (l *Ledger) poolLocked(poolID int64) (*Pool, error) {
	if poolID < 0 || poolID >= int64(len(l.pools)) {
		return nil, ErrPoolNotFound
	}
	return l.pools[poolID], nil
}

// =============================================================================
// 查询接口
// =============================================================================

// PoolCount 池数量
func (l *Ledger) PoolCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.pools)
}

// TotalWeight 全局权重合计
func (l *Ledger) TotalWeight() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalWeight
}

// Migrated 迁移开关是否已翻转
func (l *Ledger) Migrated() bool {
	return l.migrated.Load()
}

// Schedule 产出计划
func (l *Ledger) Schedule() EmissionSchedule {
	return l.acc.Schedule()
}

// PendingReward 只读查询用户待结奖励
func (l *Ledger) PendingReward(ctx context.Context, poolID, userID int64) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pool, err := l.poolLocked(poolID)
	if err != nil {
		return 0, err
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()
	return l.settler.Pending(ctx, pool, pool.positions[userID], l.totalWeight, l.clock.Now())
}

// PositionView 仓位快照 (副本，供查询/对账)
type PositionView struct {
	Principal          int64
	LockedRewards      int64
	StakeDuration      int64
	LastSettlementTime int64
	RewardBaseline     string // 十进制字符串 (big.Int)
	StakeTimeIntegral  string
}

// Position 查询仓位快照；仓位不存在时返回全零快照
func (l *Ledger) Position(poolID, userID int64) (PositionView, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pool, err := l.poolLocked(poolID)
	if err != nil {
		return PositionView{}, err
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	pos, ok := pool.positions[userID]
	if !ok {
		return PositionView{RewardBaseline: "0", StakeTimeIntegral: "0"}, nil
	}
	return PositionView{
		Principal:          pos.Principal,
		LockedRewards:      pos.LockedRewards,
		StakeDuration:      pos.StakeDuration,
		LastSettlementTime: pos.LastSettlementTime,
		RewardBaseline:     pos.RewardBaseline.String(),
		StakeTimeIntegral:  pos.StakeTimeIntegral.String(),
	}, nil
}

// =============================================================================
// 用户操作
// =============================================================================

// Deposit 入金
//
// 先结算再动本金: 结算把历史奖励按旧本金记完账，
// 新本金只影响之后的奖励。amount 为 0 等价于纯结算。
func (l *Ledger) Deposit(ctx context.Context, userID, poolID, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	pool, err := l.poolLocked(poolID)
	if err != nil {
		return err
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	now := l.clock.Now()
	user := pool.position(userID)

	// 转账/兑付全部成功之后才落盘: 中途失败时池和仓位保持原样
	st, err := l.settler.Stage(ctx, pool, user, userID, l.totalWeight, now)
	if err != nil {
		return err
	}
	if err := l.vault.TransferIn(ctx, userID, pool.StakeAsset, amount); err != nil {
		return err
	}
	if err := l.settler.Disburse(ctx, userID, st); err != nil {
		return err
	}

	l.settler.Commit(pool, user, st)
	user.Principal += amount
	user.RewardBaseline = baselineFor(user.Principal, pool.AccRewardPerUnit)

	l.publish(&Event{
		Type: EventDeposit, PoolID: poolID, UserID: userID,
		Asset: pool.StakeAsset, Amount: amount, Time: now,
	})
	return nil
}

// Withdraw 出金
// amount 超过本金返回 ErrInsufficientBalance
func (l *Ledger) Withdraw(ctx context.Context, userID, poolID, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	pool, err := l.poolLocked(poolID)
	if err != nil {
		return err
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	user := pool.position(userID)
	if amount > user.Principal {
		return ErrInsufficientBalance
	}

	now := l.clock.Now()

	st, err := l.settler.Stage(ctx, pool, user, userID, l.totalWeight, now)
	if err != nil {
		return err
	}
	if err := l.vault.TransferOut(ctx, userID, pool.StakeAsset, amount); err != nil {
		return err
	}
	if err := l.settler.Disburse(ctx, userID, st); err != nil {
		return err
	}

	l.settler.Commit(pool, user, st)
	user.Principal -= amount
	user.RewardBaseline = baselineFor(user.Principal, pool.AccRewardPerUnit)

	l.publish(&Event{
		Type: EventWithdraw, PoolID: poolID, UserID: userID,
		Asset: pool.StakeAsset, Amount: amount, Time: now,
	})
	return nil
}

// EmergencyWithdraw 紧急出金
//
// 完全绕过结算: 本金全额退回，待结 + 锁定奖励全部放弃。
// 这是奖励记账或 AwardSink 出故障时的逃生通道。
// 质押时间计数保持原样 (已放弃，不再有意义)。
func (l *Ledger) EmergencyWithdraw(ctx context.Context, userID, poolID int64) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pool, err := l.poolLocked(poolID)
	if err != nil {
		return err
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	user := pool.position(userID)
	amount := user.Principal

	if err := l.vault.TransferOut(ctx, userID, pool.StakeAsset, amount); err != nil {
		return err
	}

	user.Principal = 0
	user.RewardBaseline = new(big.Int)

	l.publish(&Event{
		Type: EventEmergencyWithdraw, PoolID: poolID, UserID: userID,
		Asset: pool.StakeAsset, Amount: amount, Time: l.clock.Now(),
	})
	return nil
}

// =============================================================================
// 刷新
// =============================================================================

// RefreshPool 刷新单个池的累计器
func (l *Ledger) RefreshPool(ctx context.Context, poolID int64) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pool, err := l.poolLocked(poolID)
	if err != nil {
		return err
	}

	now := l.clock.Now()

	pool.mu.Lock()
	err = l.acc.Refresh(ctx, pool, l.totalWeight, now)
	pool.mu.Unlock()
	if err != nil {
		return err
	}

	l.publish(&Event{Type: EventPoolRefreshed, PoolID: poolID, Asset: pool.StakeAsset, Time: now})
	return nil
}

// RefreshAllPools 刷新所有池
// O(池数量)，管理员在调权前按需调用
func (l *Ledger) RefreshAllPools(ctx context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.refreshAllLocked(ctx, l.clock.Now())
}

// refreshAllLocked 刷新所有池，调用者必须已持有 l.mu (读或写)
func (l *Ledger) refreshAllLocked(ctx context.Context, now int64) error {
	for _, pool := range l.pools {
		pool.mu.Lock()
		err := l.acc.Refresh(ctx, pool, l.totalWeight, now)
		pool.mu.Unlock()
		if err != nil {
			return err
		}
		l.publish(&Event{Type: EventPoolRefreshed, PoolID: pool.ID, Asset: pool.StakeAsset, Time: now})
	}
	return nil
}

// =============================================================================
// 管理员操作
// =============================================================================

// AddPool 注册新池
//
// 同一质押资产只能注册一次 (ErrDuplicateAsset)。
// refreshAll 为 true 时先把存量池刷到当前时间，再改全局权重，
// 否则旧权重下未刷新的时段会按新权重计酬。
func (l *Ledger) AddPool(ctx context.Context, caller, weight int64, stakeAsset string, refreshAll bool) (int64, error) {
	if caller != l.owner {
		return 0, ErrUnauthorized
	}
	if weight < 0 {
		return 0, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byAsset[stakeAsset]; ok {
		return 0, ErrDuplicateAsset
	}

	now := l.clock.Now()
	if refreshAll {
		if err := l.refreshAllLocked(ctx, now); err != nil {
			return 0, err
		}
	}

	// 产出还没开始时，从窗口起点开始计
	last := now
	if start := l.acc.Schedule().StartTime; last < start {
		last = start
	}

	pool := &Pool{
		ID:               int64(len(l.pools)),
		StakeAsset:       stakeAsset,
		Weight:           weight,
		LastSettledTime:  last,
		AccRewardPerUnit: new(big.Int),
		positions:        make(map[int64]*UserPosition),
	}
	l.pools = append(l.pools, pool)
	l.byAsset[stakeAsset] = pool.ID
	l.totalWeight += weight

	l.publish(&Event{
		Type: EventPoolAdded, PoolID: pool.ID,
		Asset: stakeAsset, Weight: weight, Time: now,
	})
	return pool.ID, nil
}

// SetWeight 调整池权重
func (l *Ledger) SetWeight(ctx context.Context, caller, poolID, weight int64, refreshAll bool) error {
	if caller != l.owner {
		return ErrUnauthorized
	}
	if weight < 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pool, err := l.poolLocked(poolID)
	if err != nil {
		return err
	}

	now := l.clock.Now()
	if refreshAll {
		// 旧权重结清存量时段，新权重只作用于未来
		if err := l.refreshAllLocked(ctx, now); err != nil {
			return err
		}
	}

	l.totalWeight += weight - pool.Weight
	pool.Weight = weight

	l.publish(&Event{
		Type: EventWeightSet, PoolID: poolID,
		Asset: pool.StakeAsset, Weight: weight, Time: now,
	})
	return nil
}

// SetMigrator 配置托管迁移器
func (l *Ledger) SetMigrator(caller int64, m Migrator) error {
	if caller != l.owner {
		return ErrUnauthorized
	}

	l.mu.Lock()
	l.migrator = m
	l.mu.Unlock()

	l.publish(&Event{Type: EventMigratorSet, PoolID: -1, Time: l.clock.Now()})
	return nil
}

// MigratePool 把池的托管迁到新资产载体
//
// 迁移后核对新托管量必须与旧托管量完全相等，
// 不相等视为迁移器作恶/故障，整个操作失败。
func (l *Ledger) MigratePool(ctx context.Context, caller, poolID int64) error {
	if caller != l.owner {
		return ErrUnauthorized
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pool, err := l.poolLocked(poolID)
	if err != nil {
		return err
	}
	if l.migrator == nil {
		return ErrMigratorNotConfigured
	}

	pool.mu.Lock()
	defer pool.mu.Unlock()

	balance, err := l.vault.TotalStaked(ctx, pool.StakeAsset)
	if err != nil {
		return err
	}

	newAsset, err := l.migrator.Migrate(ctx, pool.StakeAsset, balance)
	if err != nil {
		return err
	}
	if _, ok := l.byAsset[newAsset]; ok && newAsset != pool.StakeAsset {
		return ErrDuplicateAsset
	}

	newBalance, err := l.vault.TotalStaked(ctx, newAsset)
	if err != nil {
		return err
	}
	if newBalance != balance {
		return ErrMigrationIntegrity
	}

	delete(l.byAsset, pool.StakeAsset)
	oldAsset := pool.StakeAsset
	pool.StakeAsset = newAsset
	l.byAsset[newAsset] = poolID

	log.Printf("[Farm] pool %d migrated: %s -> %s, balance=%d", poolID, oldAsset, newAsset, balance)
	l.publish(&Event{
		Type: EventPoolMigrated, PoolID: poolID,
		Asset: newAsset, Amount: balance, Time: l.clock.Now(),
	})
	return nil
}

// FinalizeMigration 翻转迁移开关 (单向，幂等)
//
// 翻转之后，每个用户的下一次结算都会把锁定奖励一次性兑付
// (可能先按审计比例罚没)。重复调用是 no-op，不报错。
func (l *Ledger) FinalizeMigration(caller int64) error {
	if caller != l.owner {
		return ErrUnauthorized
	}
	if l.migrated.Swap(true) {
		return nil // 已经翻转过
	}
	log.Printf("[Farm] migration finalized: locked rewards settle on next touch")
	return nil
}
