package main

import (
	"context"
	"log"

	"farm.com/pkg/farm"
	"farm.com/pkg/vault"
)

// =============================================================================
// Mock 组件实现
// =============================================================================

// ManualClock 手动拨动的账本时钟 (一个 tick 当一个出块/一秒都行)
type ManualClock struct {
	t int64
}

func (c *ManualClock) Now() int64 { return c.t }

func (c *ManualClock) Advance(dt int64) {
	c.t += dt
	log.Printf("[Clock] ⏩ t=%d", c.t)
}

// LogPublisher 把账本事件直接打到日志 (生产环境换 events.KafkaPublisher)
type LogPublisher struct{}

func (LogPublisher) Publish(ev *farm.Event) error {
	log.Printf("[Event] %s pool=%d user=%d asset=%s amount=%d weight=%d t=%d",
		ev.Type, ev.PoolID, ev.UserID, ev.Asset, ev.Amount, ev.Weight, ev.Time)
	return nil
}

// VaultMigrator 把托管整体搬到新资产载体
type VaultMigrator struct {
	vault  *vault.MemoryVault
	target string
}

func (m *VaultMigrator) Migrate(_ context.Context, asset string, amount int64) (string, error) {
	moved := m.vault.MoveStake(asset, m.target)
	log.Printf("[Migrator] 🔄 %s -> %s, moved=%d (expected %d)", asset, m.target, moved, amount)
	return m.target, nil
}

// =============================================================================
// 主程序
// =============================================================================

const owner = int64(1)

func main() {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Println("🚀 Starting Farm Ledger Simulation...")

	clock := &ManualClock{}
	custody := vault.NewMemoryVault()
	ctx := context.Background()

	// 1. 初始化账本: rate=100/tick, 产出窗口 [0, 10000)
	// -------------------------------------------------------------------------
	ledger, err := farm.NewLedger(farm.Config{
		Owner:       owner,
		RatePerUnit: 100,
		StartTime:   0,
		EndTime:     10000,
	}, clock, custody, custody, LogPublisher{})
	if err != nil {
		log.Fatalf("Failed to create ledger: %v", err)
	}
	log.Println("✅ Ledger Created")

	// 2. 注册两个池: 权重 10 / 30
	// -------------------------------------------------------------------------
	btcPool, _ := ledger.AddPool(ctx, owner, 10, "LP-BTC", false)
	ethPool, _ := ledger.AddPool(ctx, owner, 30, "LP-ETH", false)
	log.Printf("✅ Pools Registered: count=%d totalWeight=%d", ledger.PoolCount(), ledger.TotalWeight())

	// 3. 给用户充值并入金
	// -------------------------------------------------------------------------
	alice, bob := int64(101), int64(102)
	custody.Credit(alice, "LP-BTC", 1_000)
	custody.Credit(bob, "LP-BTC", 3_000)
	custody.Credit(bob, "LP-ETH", 2_000)

	mustDo := func(op string, err error) {
		if err != nil {
			log.Fatalf("❌ %s failed: %v", op, err)
		}
	}

	mustDo("deposit", ledger.Deposit(ctx, alice, btcPool, 1_000))
	mustDo("deposit", ledger.Deposit(ctx, bob, btcPool, 3_000))
	mustDo("deposit", ledger.Deposit(ctx, bob, ethPool, 2_000))

	// 4. 时间前进，观察按比例累计
	// -------------------------------------------------------------------------
	clock.Advance(100)

	printPending := func(tag string) {
		pa, _ := ledger.PendingReward(ctx, btcPool, alice)
		pb, _ := ledger.PendingReward(ctx, btcPool, bob)
		pe, _ := ledger.PendingReward(ctx, ethPool, bob)
		log.Printf("[Pending] %s | BTC: alice=%d bob=%d | ETH: bob=%d", tag, pa, pb, pe)
	}
	printPending("after 100 ticks")

	// alice 部分出金: 触发结算，奖励进入锁定
	mustDo("withdraw", ledger.Withdraw(ctx, alice, btcPool, 500))

	clock.Advance(100)
	printPending("after 200 ticks")

	// 5. 调权: BTC 池 10 -> 30 (先按旧权重结清存量时段)
	// -------------------------------------------------------------------------
	mustDo("setWeight", ledger.SetWeight(ctx, owner, btcPool, 30, true))
	clock.Advance(100)
	printPending("after reweight")

	// 6. 托管迁移 + 翻转迁移开关
	// -------------------------------------------------------------------------
	mustDo("setMigrator", ledger.SetMigrator(owner, &VaultMigrator{vault: custody, target: "LP-BTC-V2"}))
	mustDo("migratePool", ledger.MigratePool(ctx, owner, btcPool))
	mustDo("finalize", ledger.FinalizeMigration(owner))
	log.Printf("✅ Migration Finalized: migrated=%v", ledger.Migrated())

	// 7. 迁移后触碰每个仓位: 锁定奖励一次性兑付
	// -------------------------------------------------------------------------
	clock.Advance(50)
	mustDo("settle alice", ledger.Deposit(ctx, alice, btcPool, 0))
	mustDo("settle bob/btc", ledger.Deposit(ctx, bob, btcPool, 0))
	mustDo("settle bob/eth", ledger.Deposit(ctx, bob, ethPool, 0))

	// 8. 结果汇总
	// -------------------------------------------------------------------------
	log.Println("========== Final Report ==========")
	for _, u := range []struct {
		name string
		id   int64
	}{{"alice", alice}, {"bob", bob}} {
		log.Printf("  %s: award=%d", u.name, custody.AwardOf(u.id))
		for _, p := range []int64{btcPool, ethPool} {
			pos, _ := ledger.Position(p, u.id)
			if pos.Principal == 0 && pos.StakeDuration == 0 {
				continue
			}
			log.Printf("    pool %d: principal=%d locked=%d duration=%d integral=%s",
				p, pos.Principal, pos.LockedRewards, pos.StakeDuration, pos.StakeTimeIntegral)
		}
	}
	log.Printf("  burned=%d", custody.Burned())
	log.Println("🛑 Simulation complete")
}
