// 文件: pkg/farm/accumulator.go
// 质押挖矿账本 - 奖励累计器
//
// 【核心思想】惰性累计 (lazy accumulator)
// 不逐时间单位给每个用户发奖励，而是维护一个池级累计值:
//
//	accRewardPerUnit += 本次产出 × RewardScale / 当前托管总量
//
// 用户奖励 = 本金 × accRewardPerUnit / RewardScale - 基线。
// 这样每次结算都是 O(1)，与经过的时间和用户数量无关。
// 这是整个账本的算法核心，任何改动都不能退化成按时间迭代。

package farm

import (
	"context"
	"fmt"
	"math/big"
)

// =============================================================================
// Accumulator - 池级奖励累计器
// =============================================================================

// Accumulator 池级奖励累计器
type Accumulator struct {
	schedule EmissionSchedule
	vault    StakeVault
}

// NewAccumulator 创建累计器
func NewAccumulator(schedule EmissionSchedule, vault StakeVault) *Accumulator {
	return &Accumulator{schedule: schedule, vault: vault}
}

// Schedule 返回产出计划
func (a *Accumulator) Schedule() EmissionSchedule {
	return a.schedule
}

// accView 一次 refresh 的计算结果 (未提交)
//
// refresh 先算后提交: 结算路径要在外部铸币成功之后才落盘，
// 所以这里把"算"和"写"拆开，失败时池状态保持原样。
type accView struct {
	acc  *big.Int // 刷新后的 AccRewardPerUnit
	last int64    // 刷新后的 LastSettledTime
}

// refreshed 计算 pool 刷新到 now 之后的状态，不修改 pool
// 调用者必须已持有 pool.mu
func (a *Accumulator) refreshed(ctx context.Context, pool *Pool, totalWeight, now int64) (accView, error) {
	// now 未前进: 原样返回 (no-op)
	if now <= pool.LastSettledTime {
		return accView{acc: pool.AccRewardPerUnit, last: pool.LastSettledTime}, nil
	}

	elapsed := a.schedule.Multiplier(pool.LastSettledTime, now)
	if elapsed == 0 || pool.Weight == 0 || totalWeight == 0 {
		// 窗口外或无权重: 只推进时间，不产生奖励
		return accView{acc: pool.AccRewardPerUnit, last: now}, nil
	}

	total, err := a.vault.TotalStaked(ctx, pool.StakeAsset)
	if err != nil {
		return accView{}, fmt.Errorf("total staked of %s: %w", pool.StakeAsset, err)
	}
	if total <= 0 {
		// 托管量为零: 推进时间但不累计。
		// 这段时间的产出直接作废，避免除零，也避免恢复质押后被一次性补发。
		return accView{acc: pool.AccRewardPerUnit, last: now}, nil
	}

	// reward = elapsed × rate × weight / totalWeight (向下取整)
	reward := big.NewInt(elapsed)
	reward.Mul(reward, big.NewInt(a.schedule.RatePerUnit))
	reward.Mul(reward, big.NewInt(pool.Weight))
	reward.Quo(reward, big.NewInt(totalWeight))

	// delta = reward × RewardScale / total
	delta := reward.Mul(reward, rewardScale)
	delta.Quo(delta, big.NewInt(total))

	return accView{
		acc:  new(big.Int).Add(pool.AccRewardPerUnit, delta),
		last: now,
	}, nil
}

// Refresh 把 pool 刷新到 now (就地提交)
// 调用者必须已持有 pool.mu。纯状态推进，零值场景不报错。
func (a *Accumulator) Refresh(ctx context.Context, pool *Pool, totalWeight, now int64) error {
	view, err := a.refreshed(ctx, pool, totalWeight, now)
	if err != nil {
		return err
	}
	pool.AccRewardPerUnit = view.acc
	pool.LastSettledTime = view.last
	return nil
}
