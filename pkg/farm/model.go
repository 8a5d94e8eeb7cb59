// 文件: pkg/farm/model.go
// 质押挖矿账本 - 核心数据模型
//
// 设计目标:
// 1. 精确按比例分配: 只用累计计数器 (accRewardPerUnit)，不按时间逐格迭代
// 2. 金额统一为 int64 最小精度单位，放大运算走 math/big 中间量防溢出
// 3. 单池串行: 每个池一把锁，跨池操作互不阻塞

package farm

import (
	"errors"
	"math/big"
	"sync"
)

// =============================================================================
// 精度常量
// =============================================================================

const (
	// RewardScale 累计奖励放大因子
	// accRewardPerUnit 表示"每单位本金累计赚到的奖励 × RewardScale"
	// 放大 1e12 倍，保证小额本金也能分到非零奖励
	RewardScale = 1_000_000_000_000
)

// rewardScale math/big 版本，避免每次运算重新分配
var rewardScale = big.NewInt(RewardScale)

// =============================================================================
// 错误定义
// =============================================================================

var (
	ErrUnauthorized          = errors.New("caller is not the ledger owner")
	ErrInvalidRange          = errors.New("emission window start must be before end")
	ErrDuplicateAsset        = errors.New("stake asset already registered")
	ErrPoolNotFound          = errors.New("pool not found")
	ErrMigratorNotConfigured = errors.New("migrator not configured")
	ErrMigrationIntegrity    = errors.New("post-migration balance mismatch")
	ErrInsufficientBalance   = errors.New("withdraw amount exceeds principal")
	ErrTimeRegression        = errors.New("settlement time regressed")
	ErrInvalidAmount         = errors.New("amount must be non-negative")
	ErrNegativePending       = errors.New("pending reward became negative")
	ErrRewardOverflow        = errors.New("reward amount overflows int64")
)

// =============================================================================
// EmissionSchedule - 全局产出计划
// =============================================================================

// EmissionSchedule 奖励产出计划
//
// 产出是一个固定速率，只在 [StartTime, EndTime] 窗口内生效。
// 窗口外的时间段乘数为 0，保证总产出被窗口精确封顶，
// 不管 refresh 什么时候被调用 (包括窗口关闭很久之后)。
type EmissionSchedule struct {
	RatePerUnit int64 // 每个时间单位产出的奖励总量 (所有池按权重瓜分)
	StartTime   int64 // 产出开始时间 (含)
	EndTime     int64 // 产出结束时间
}

// NewEmissionSchedule 创建产出计划
// start >= end 视为配置错误
func NewEmissionSchedule(ratePerUnit, startTime, endTime int64) (EmissionSchedule, error) {
	if startTime >= endTime {
		return EmissionSchedule{}, ErrInvalidRange
	}
	return EmissionSchedule{
		RatePerUnit: ratePerUnit,
		StartTime:   startTime,
		EndTime:     endTime,
	}, nil
}

// Multiplier 计算区间 [from, to] 在产出窗口内的有效时长
//
// 【规则】
// - from 先被抬到窗口起点
// - from >= EndTime: 返回 0 (窗口已关闭，幂等)
// - to > EndTime: 截断到 EndTime
// - 其余情况: to - from
func (s EmissionSchedule) Multiplier(from, to int64) int64 {
	if from < s.StartTime {
		from = s.StartTime
	}
	if from >= s.EndTime {
		return 0
	}
	if to > s.EndTime {
		to = s.EndTime
	}
	if to <= from {
		return 0
	}
	return to - from
}

// =============================================================================
// Pool - 质押池
// =============================================================================

// Pool 一个质押池: 一种质押资产，按权重分享全局产出
//
// 【不变量】
// - AccRewardPerUnit 单调不减
// - LastSettledTime 单调不减，且 <= Clock.Now()
//
// 池在注册时创建，之后只被 refresh 和权重调整修改，永不销毁。
type Pool struct {
	ID              int64
	StakeAsset      string // 质押资产标识 (在 StakeVault 中的托管键)
	Weight          int64  // 产出权重 (相对份额)
	LastSettledTime int64

	// AccRewardPerUnit 每单位本金累计奖励 (放大 RewardScale 倍)
	// 用 big.Int: reward × RewardScale 轻松越过 int64 上限
	AccRewardPerUnit *big.Int

	mu        sync.Mutex
	positions map[int64]*UserPosition
}

// position 获取用户仓位 (不存在则零值懒初始化)
// 调用者必须已持有 pool.mu
func (p *Pool) position(userID int64) *UserPosition {
	if pos, ok := p.positions[userID]; ok {
		return pos
	}
	pos := &UserPosition{
		RewardBaseline:    new(big.Int),
		StakeTimeIntegral: new(big.Int),
	}
	p.positions[userID] = pos
	return pos
}

// =============================================================================
// UserPosition - 用户仓位 (池 × 用户)
// =============================================================================

// UserPosition 用户在某个池中的仓位
//
// 【不变量】
// pending = Principal × AccRewardPerUnit / RewardScale - RewardBaseline >= 0
// 只要基线维护正确且累计器单调，该值不可能为负；为负说明账本有 bug。
//
// 仓位在首次入金时隐式创建 (全零)，之后永不销毁 (余额可以归零)。
type UserPosition struct {
	Principal int64 // 质押本金 (>= 0)

	// RewardBaseline 上次结算时的 Principal × AccRewardPerUnit / RewardScale
	// 存成 big.Int: 历史累计值没有天然上界
	RewardBaseline *big.Int

	LockedRewards int64 // 已记账未兑付的奖励 (迁移前持续累加)

	StakeDuration      int64 // 本金 > 0 期间的累计时长
	LastSettlementTime int64

	// StakeTimeIntegral 本金对时间的积分: ∑ Principal × Δt
	// 迁移后的审计比例用它来判定是否削减锁定奖励
	StakeTimeIntegral *big.Int
}

// =============================================================================
// 放大运算辅助
// =============================================================================

// baselineFor 计算奖励基线: principal × acc / RewardScale (向下取整)
func baselineFor(principal int64, acc *big.Int) *big.Int {
	b := new(big.Int).Mul(big.NewInt(principal), acc)
	return b.Quo(b, rewardScale)
}

// pendingFor 计算待结奖励: principal × acc / RewardScale - baseline
// 返回 big.Int，调用方负责非负检查
func pendingFor(principal int64, acc, baseline *big.Int) *big.Int {
	p := new(big.Int).Mul(big.NewInt(principal), acc)
	p.Quo(p, rewardScale)
	return p.Sub(p, baseline)
}
