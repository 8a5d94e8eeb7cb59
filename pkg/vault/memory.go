// 文件: pkg/vault/memory.go
// 资产托管 - 内存实现
//
// 单机/仿真场景用: 满足 farm.StakeVault + farm.AwardSink 的全部约定，
// 行为与 MySQL 实现一致 (短款报错、精确移账)。

package vault

import (
	"context"
	"fmt"
	"sync"
)

// MemoryVault 内存托管账户
type MemoryVault struct {
	mu        sync.Mutex
	available map[string]int64 // "userID/asset" -> 自由余额
	staked    map[string]int64 // asset -> 托管总量
	awards    map[int64]int64  // userID -> 累计奖励
	burned    int64
}

// NewMemoryVault 创建空的内存托管
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		available: make(map[string]int64),
		staked:    make(map[string]int64),
		awards:    make(map[int64]int64),
	}
}

func balanceKey(userID int64, asset string) string {
	return fmt.Sprintf("%d/%s", userID, asset)
}

// Credit 给用户充入自由余额 (仿真/测试的入金入口)
func (v *MemoryVault) Credit(userID int64, asset string, amount int64) {
	v.mu.Lock()
	v.available[balanceKey(userID, asset)] += amount
	v.mu.Unlock()
}

// Available 用户自由余额
func (v *MemoryVault) Available(userID int64, asset string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.available[balanceKey(userID, asset)]
}

// TransferIn 自由余额 -> 池托管
func (v *MemoryVault) TransferIn(_ context.Context, userID int64, asset string, amount int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := balanceKey(userID, asset)
	if v.available[key] < amount {
		return fmt.Errorf("%w: user=%d asset=%s need=%d have=%d",
			ErrInsufficientFunds, userID, asset, amount, v.available[key])
	}
	v.available[key] -= amount
	v.staked[asset] += amount
	return nil
}

// TransferOut 池托管 -> 自由余额
func (v *MemoryVault) TransferOut(_ context.Context, userID int64, asset string, amount int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.staked[asset] < amount {
		return fmt.Errorf("%w: asset=%s need=%d have=%d",
			ErrInsufficientStake, asset, amount, v.staked[asset])
	}
	v.staked[asset] -= amount
	v.available[balanceKey(userID, asset)] += amount
	return nil
}

// TotalStaked 某资产的托管总量
func (v *MemoryVault) TotalStaked(_ context.Context, asset string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.staked[asset], nil
}

// AddAward 记入奖励
func (v *MemoryVault) AddAward(_ context.Context, userID int64, amount int64) error {
	v.mu.Lock()
	v.awards[userID] += amount
	v.mu.Unlock()
	return nil
}

// Destroy 销毁罚没的奖励
func (v *MemoryVault) Destroy(_ context.Context, amount int64) error {
	v.mu.Lock()
	v.burned += amount
	v.mu.Unlock()
	return nil
}

// AwardOf 用户累计奖励
func (v *MemoryVault) AwardOf(userID int64) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.awards[userID]
}

// Burned 累计销毁量
func (v *MemoryVault) Burned() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.burned
}

// MoveStake 把 asset 的托管总量整体搬到 newAsset (迁移器用)
func (v *MemoryVault) MoveStake(asset, newAsset string) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	amount := v.staked[asset]
	v.staked[asset] = 0
	v.staked[newAsset] += amount
	return amount
}
