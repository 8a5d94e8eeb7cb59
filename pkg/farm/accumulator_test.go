// 文件: pkg/farm/accumulator_test.go
// 奖励累计器测试
//
// 测试策略:
// 1. 窗口乘数的边界 (起点前/终点后/跨窗口)
// 2. 零托管/零权重的安全性
// 3. 累计值单调性

package farm

import (
	"context"
	"math/big"
	"testing"
)

func newTestPool(asset string, weight int64) *Pool {
	return &Pool{
		ID:               0,
		StakeAsset:       asset,
		Weight:           weight,
		AccRewardPerUnit: new(big.Int),
		positions:        make(map[int64]*UserPosition),
	}
}

// TestEmissionSchedule_InvalidRange 起点必须早于终点
func TestEmissionSchedule_InvalidRange(t *testing.T) {
	if _, err := NewEmissionSchedule(10, 1000, 1000); err != ErrInvalidRange {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := NewEmissionSchedule(10, 2000, 1000); err != ErrInvalidRange {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
	if _, err := NewEmissionSchedule(10, 0, 1000); err != nil {
		t.Errorf("valid range rejected: %v", err)
	}
}

// TestEmissionSchedule_Multiplier 窗口乘数边界
func TestEmissionSchedule_Multiplier(t *testing.T) {
	s, _ := NewEmissionSchedule(10, 100, 1000)

	cases := []struct {
		name     string
		from, to int64
		want     int64
	}{
		{"跨整个窗口", 50, 1200, 900},
		{"完全在窗口内", 200, 800, 600},
		{"从终点开始", 1000, 1200, 0},
		{"终点之后", 1100, 1500, 0},
		{"起点之前结束", 50, 80, 0},
		{"正好整个窗口", 100, 1000, 900},
		{"最后一个时间单位", 999, 1000, 1},
		{"区间为空", 500, 500, 0},
	}

	for _, tc := range cases {
		if got := s.Multiplier(tc.from, tc.to); got != tc.want {
			t.Errorf("%s: Multiplier(%d,%d)=%d, want %d", tc.name, tc.from, tc.to, got, tc.want)
		}
	}
}

// TestAccumulator_Refresh 基本刷新
// rate=10, 窗口 [0,1000], 权重=totalWeight=10, 托管 100
// 0 -> 500: 产出 5000, acc += 5000×1e12/100 = 5e13
func TestAccumulator_Refresh(t *testing.T) {
	vault := newMemVault()
	vault.staked["LP"] = 100
	schedule, _ := NewEmissionSchedule(10, 0, 1000)
	acc := NewAccumulator(schedule, vault)

	pool := newTestPool("LP", 10)
	ctx := context.Background()

	if err := acc.Refresh(ctx, pool, 10, 500); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	want := "50000000000000" // 5e13
	if pool.AccRewardPerUnit.String() != want {
		t.Errorf("acc = %s, want %s", pool.AccRewardPerUnit.String(), want)
	}
	if pool.LastSettledTime != 500 {
		t.Errorf("lastSettledTime = %d, want 500", pool.LastSettledTime)
	}
}

// TestAccumulator_ZeroSupply 零托管只推进时间，不改累计值，不除零
func TestAccumulator_ZeroSupply(t *testing.T) {
	vault := newMemVault()
	schedule, _ := NewEmissionSchedule(10, 0, 1000)
	acc := NewAccumulator(schedule, vault)

	pool := newTestPool("LP", 10)
	ctx := context.Background()

	if err := acc.Refresh(ctx, pool, 10, 500); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if pool.AccRewardPerUnit.Sign() != 0 {
		t.Errorf("acc changed on zero supply: %s", pool.AccRewardPerUnit.String())
	}
	if pool.LastSettledTime != 500 {
		t.Errorf("lastSettledTime = %d, want 500", pool.LastSettledTime)
	}

	// 恢复质押后，空窗期的产出不能被补发
	vault.staked["LP"] = 100
	acc.Refresh(ctx, pool, 10, 600)
	want := "10000000000000" // 只有 500->600 的 1000 × 1e12 / 100
	if pool.AccRewardPerUnit.String() != want {
		t.Errorf("acc = %s, want %s", pool.AccRewardPerUnit.String(), want)
	}
}

// TestAccumulator_ZeroWeight 零权重池不产出
func TestAccumulator_ZeroWeight(t *testing.T) {
	vault := newMemVault()
	vault.staked["LP"] = 100
	schedule, _ := NewEmissionSchedule(10, 0, 1000)
	acc := NewAccumulator(schedule, vault)

	pool := newTestPool("LP", 0)
	if err := acc.Refresh(context.Background(), pool, 10, 500); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if pool.AccRewardPerUnit.Sign() != 0 {
		t.Errorf("zero-weight pool accrued reward: %s", pool.AccRewardPerUnit.String())
	}
}

// TestAccumulator_Monotonic 乱序调用下累计值单调不减
func TestAccumulator_Monotonic(t *testing.T) {
	vault := newMemVault()
	vault.staked["LP"] = 100
	schedule, _ := NewEmissionSchedule(10, 0, 1000)
	acc := NewAccumulator(schedule, vault)

	pool := newTestPool("LP", 10)
	ctx := context.Background()

	prev := new(big.Int)
	for _, now := range []int64{100, 500, 300, 500, 800, 800, 2000, 3000} {
		if err := acc.Refresh(ctx, pool, 10, now); err != nil {
			t.Fatalf("refresh at %d failed: %v", now, err)
		}
		if pool.AccRewardPerUnit.Cmp(prev) < 0 {
			t.Fatalf("acc decreased at now=%d: %s < %s", now, pool.AccRewardPerUnit, prev)
		}
		prev.Set(pool.AccRewardPerUnit)
	}

	// 窗口总产出 10000, 封顶后不再增长
	want := "100000000000000" // 10000 × 1e12 / 100
	if pool.AccRewardPerUnit.String() != want {
		t.Errorf("acc = %s, want %s (capped at window end)", pool.AccRewardPerUnit.String(), want)
	}
}

// TestAccumulator_NoTimeProgress now 不前进时是 no-op
func TestAccumulator_NoTimeProgress(t *testing.T) {
	vault := newMemVault()
	vault.staked["LP"] = 100
	schedule, _ := NewEmissionSchedule(10, 0, 1000)
	acc := NewAccumulator(schedule, vault)

	pool := newTestPool("LP", 10)
	ctx := context.Background()

	acc.Refresh(ctx, pool, 10, 500)
	before := pool.AccRewardPerUnit.String()

	acc.Refresh(ctx, pool, 10, 400) // 回退: no-op，不报错
	acc.Refresh(ctx, pool, 10, 500) // 原地: no-op

	if pool.AccRewardPerUnit.String() != before {
		t.Errorf("acc changed without time progress")
	}
	if pool.LastSettledTime != 500 {
		t.Errorf("lastSettledTime regressed: %d", pool.LastSettledTime)
	}
}
