// 文件: pkg/vault/memory_test.go
// 内存托管测试

package vault

import (
	"context"
	"errors"
	"testing"
)

// TestMemoryVault_TransferRoundTrip 入托管再退回，余额守恒
func TestMemoryVault_TransferRoundTrip(t *testing.T) {
	v := NewMemoryVault()
	ctx := context.Background()

	v.Credit(1, "LP", 1000)

	if err := v.TransferIn(ctx, 1, "LP", 600); err != nil {
		t.Fatalf("transfer in failed: %v", err)
	}
	if got := v.Available(1, "LP"); got != 400 {
		t.Errorf("available = %d, want 400", got)
	}
	total, _ := v.TotalStaked(ctx, "LP")
	if total != 600 {
		t.Errorf("staked = %d, want 600", total)
	}

	if err := v.TransferOut(ctx, 1, "LP", 600); err != nil {
		t.Fatalf("transfer out failed: %v", err)
	}
	if got := v.Available(1, "LP"); got != 1000 {
		t.Errorf("available = %d, want 1000", got)
	}
}

// TestMemoryVault_InsufficientFunds 短款必须报错且余额不变
func TestMemoryVault_InsufficientFunds(t *testing.T) {
	v := NewMemoryVault()
	ctx := context.Background()

	v.Credit(1, "LP", 100)

	if err := v.TransferIn(ctx, 1, "LP", 101); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
	if got := v.Available(1, "LP"); got != 100 {
		t.Errorf("available changed on failed transfer: %d", got)
	}

	if err := v.TransferOut(ctx, 1, "LP", 1); !errors.Is(err, ErrInsufficientStake) {
		t.Errorf("expected ErrInsufficientStake, got %v", err)
	}
}

// TestMemoryVault_AwardAndBurn 奖励与销毁计数
func TestMemoryVault_AwardAndBurn(t *testing.T) {
	v := NewMemoryVault()
	ctx := context.Background()

	v.AddAward(ctx, 1, 5000)
	v.AddAward(ctx, 1, 1000)
	v.Destroy(ctx, 300)

	if got := v.AwardOf(1); got != 6000 {
		t.Errorf("award = %d, want 6000", got)
	}
	if got := v.Burned(); got != 300 {
		t.Errorf("burned = %d, want 300", got)
	}
}

// TestMemoryVault_MoveStake 迁移搬运托管总量
func TestMemoryVault_MoveStake(t *testing.T) {
	v := NewMemoryVault()
	ctx := context.Background()

	v.Credit(1, "LP-V1", 500)
	v.TransferIn(ctx, 1, "LP-V1", 500)

	moved := v.MoveStake("LP-V1", "LP-V2")
	if moved != 500 {
		t.Errorf("moved = %d, want 500", moved)
	}

	oldTotal, _ := v.TotalStaked(ctx, "LP-V1")
	newTotal, _ := v.TotalStaked(ctx, "LP-V2")
	if oldTotal != 0 || newTotal != 500 {
		t.Errorf("staked after move: old=%d new=%d", oldTotal, newTotal)
	}
}
