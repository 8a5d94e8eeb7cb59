// 文件: pkg/events/model.go
// 账本事件流水 - 事件定义
//
// pkg/farm 的内存事件在这里包装成带全局 ID 的流水事件，
// 通过 Kafka/NATS 传输，由 pkg/store 的 JournalWriter 消费落盘。

package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"farm.com/pkg/farm"
)

// Kafka Topic / NATS Subject
const (
	TopicLedgerEvents   = "farm_ledger_events"
	SubjectLedgerEvents = "farm.ledger.events"
)

// =============================================================================
// 雪花 ID
// =============================================================================

var (
	node     *snowflake.Node
	initOnce sync.Once
)

// InitSnowflake 初始化雪花算法
// nodeID: 节点 ID (0-1023)
func InitSnowflake(nodeID int64) error {
	var err error
	initOnce.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// nextEventID 生成全局事件 ID
func nextEventID() int64 {
	if node == nil {
		InitSnowflake(0)
	}
	return node.Generate().Int64()
}

// =============================================================================
// LedgerEvent - 带全局 ID 的流水事件
// =============================================================================

// LedgerEvent 账本流水事件 (传输/落盘形态)
type LedgerEvent struct {
	EventID int64          `json:"event_id"` // 雪花 ID，落盘幂等键
	Type    farm.EventType `json:"type"`
	PoolID  int64          `json:"pool_id"`
	UserID  int64          `json:"user_id,omitempty"`
	Asset   string         `json:"asset,omitempty"`
	Amount  int64          `json:"amount,omitempty"`
	Weight  int64          `json:"weight,omitempty"`
	Time    int64          `json:"time"`    // 账本时间
	WallAt  time.Time      `json:"wall_at"` // 发布时的墙上时间
}

// Wrap 把账本事件包装成流水事件
func Wrap(ev *farm.Event) *LedgerEvent {
	return &LedgerEvent{
		EventID: nextEventID(),
		Type:    ev.Type,
		PoolID:  ev.PoolID,
		UserID:  ev.UserID,
		Asset:   ev.Asset,
		Amount:  ev.Amount,
		Weight:  ev.Weight,
		Time:    ev.Time,
		WallAt:  time.Now(),
	}
}

// =============================================================================
// kafka.Message 接口实现
// =============================================================================

// Topic 目标 topic
func (e *LedgerEvent) Topic() string {
	return TopicLedgerEvents
}

// Key 分区 key (按池分区: 同池事件保序)
func (e *LedgerEvent) Key() string {
	return fmt.Sprintf("%d", e.PoolID)
}

// Value 序列化消息体
func (e *LedgerEvent) Value() ([]byte, error) {
	return json.Marshal(e)
}
