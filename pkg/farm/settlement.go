// 文件: pkg/farm/settlement.go
// 质押挖矿账本 - 结算引擎
//
// 【核心流程】结算分三步，全有或全无:
// 1. Stage    刷新池累计器、计算待结奖励与质押时间积分，只算不写
// 2. Disburse 迁移后对外兑付/销毁 (迁移前是 no-op)
// 3. Commit   把结果写回 pool 和 user
// 调用方 (Ledger) 把托管转账插在 Stage 和 Disburse 之间:
// 转账或兑付任何一步失败，池和仓位保持原样，重试不会重复记账。
//
// 【审计口径】
// audit = 累计质押时间积分 × 当前本金。
// 积分 > audit 说明用户的历史平均持仓低于"当前本金 × 时长"的口径，
// 锁定奖励按 audit / 积分 等比例缩水，缩掉的部分销毁。
// 整数除法向下取整，宁可少付不可多付。

package farm

import (
	"context"
	"fmt"
	"math/big"
	"sync/atomic"
)

// =============================================================================
// Settler - 用户结算引擎
// =============================================================================

// Settler 用户结算引擎
type Settler struct {
	acc      *Accumulator
	sink     AwardSink
	migrated *atomic.Bool // 一次性迁移开关 (账本持有，只读)
}

// NewSettler 创建结算引擎
func NewSettler(acc *Accumulator, sink AwardSink, migrated *atomic.Bool) *Settler {
	return &Settler{acc: acc, sink: sink, migrated: migrated}
}

// staged 一次结算的全部计算结果 (未兑付、未提交)
type staged struct {
	view        accView
	now         int64
	newLocked   int64
	newIntegral *big.Int
	newDuration int64

	// 迁移后拆分出的兑付/罚没金额，迁移前恒为 0
	payout int64
	burn   int64
}

// Stage 计算结算结果，不修改任何状态，不做外部调用
// 调用者必须已持有 pool.mu
func (s *Settler) Stage(ctx context.Context, pool *Pool, user *UserPosition, userID, totalWeight, now int64) (*staged, error) {
	view, err := s.acc.refreshed(ctx, pool, totalWeight, now)
	if err != nil {
		return nil, err
	}

	// 时间回退是致命的状态损坏，绝不静默钳位
	dt := now - user.LastSettlementTime
	if dt < 0 {
		return nil, fmt.Errorf("%w: now=%d last=%d", ErrTimeRegression, now, user.LastSettlementTime)
	}

	var pending int64
	newIntegral := new(big.Int).Set(user.StakeTimeIntegral)
	newDuration := user.StakeDuration

	if user.Principal > 0 {
		p := pendingFor(user.Principal, view.acc, user.RewardBaseline)
		if p.Sign() < 0 {
			return nil, fmt.Errorf("%w: user=%d pool=%d", ErrNegativePending, userID, pool.ID)
		}
		if !p.IsInt64() {
			return nil, fmt.Errorf("%w: pending user=%d pool=%d", ErrRewardOverflow, userID, pool.ID)
		}
		pending = p.Int64()

		// 积分记录的是"本金 × 经过时间"的曝险，迁移后用于审计
		step := new(big.Int).Mul(big.NewInt(user.Principal), big.NewInt(dt))
		newIntegral.Add(newIntegral, step)
		newDuration += dt
	}

	st := &staged{
		view:        view,
		now:         now,
		newIntegral: newIntegral,
		newDuration: newDuration,
	}

	// locked 与 pending 均非负，和变负即溢出
	st.newLocked = user.LockedRewards + pending
	if st.newLocked < 0 {
		return nil, fmt.Errorf("%w: locked=%d pending=%d", ErrRewardOverflow, user.LockedRewards, pending)
	}

	if s.migrated.Load() {
		st.payout, st.burn = splitLocked(st.newLocked, newIntegral, user.Principal)
		st.newLocked = 0
	}
	return st, nil
}

// Disburse 执行外部兑付/销毁
// 失败时调用方不得 Commit，重试从 Stage 重来
func (s *Settler) Disburse(ctx context.Context, userID int64, st *staged) error {
	if st.burn > 0 {
		if err := s.sink.Destroy(ctx, st.burn); err != nil {
			return fmt.Errorf("destroy slashed reward: %w", err)
		}
	}
	if st.payout > 0 {
		if err := s.sink.AddAward(ctx, userID, st.payout); err != nil {
			return fmt.Errorf("add award: %w", err)
		}
	}
	return nil
}

// Commit 把结算结果写回 pool 和 user
// 调用者必须已持有 pool.mu
func (s *Settler) Commit(pool *Pool, user *UserPosition, st *staged) {
	pool.AccRewardPerUnit = st.view.acc
	pool.LastSettledTime = st.view.last
	user.LockedRewards = st.newLocked
	user.StakeTimeIntegral = st.newIntegral
	user.StakeDuration = st.newDuration
	user.LastSettlementTime = st.now
}

// Settle 完整结算 (Stage + Disburse + Commit)
// 没有托管转账参与时的便捷入口。调用者必须已持有 pool.mu。
func (s *Settler) Settle(ctx context.Context, pool *Pool, user *UserPosition, userID, totalWeight, now int64) error {
	st, err := s.Stage(ctx, pool, user, userID, totalWeight, now)
	if err != nil {
		return err
	}
	if err := s.Disburse(ctx, userID, st); err != nil {
		return err
	}
	s.Commit(pool, user, st)
	return nil
}

// splitLocked 计算迁移后兑付/罚没的拆分
//
// audit = integral × principal。仅当 integral > audit 时削减:
//
//	payout = locked × audit / integral (向下取整)
//	burn   = locked - payout
func splitLocked(locked int64, integral *big.Int, principal int64) (payout, burn int64) {
	if locked <= 0 {
		return 0, 0
	}
	audit := new(big.Int).Mul(integral, big.NewInt(principal))
	if integral.Cmp(audit) <= 0 {
		return locked, 0
	}
	adjusted := new(big.Int).Mul(big.NewInt(locked), audit)
	adjusted.Quo(adjusted, integral)
	payout = adjusted.Int64()
	return payout, locked - payout
}

// Pending 只读查询待结奖励
//
// 与 Stage 在同一 now 下算出的 pending 完全一致 (不含锁定/迁移部分)，
// 不修改任何状态。调用者必须已持有 pool.mu。
func (s *Settler) Pending(ctx context.Context, pool *Pool, user *UserPosition, totalWeight, now int64) (int64, error) {
	if user == nil || user.Principal == 0 {
		return 0, nil
	}
	view, err := s.acc.refreshed(ctx, pool, totalWeight, now)
	if err != nil {
		return 0, err
	}
	p := pendingFor(user.Principal, view.acc, user.RewardBaseline)
	if p.Sign() < 0 {
		return 0, ErrNegativePending
	}
	if !p.IsInt64() {
		return 0, ErrRewardOverflow
	}
	return p.Int64(), nil
}
