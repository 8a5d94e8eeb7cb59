// 文件: pkg/store/journal_writer.go
// 账本持久化 - 流水写入器
//
// 消费 Kafka 上的账本事件，批量写入 MySQL:
// - 批量写入提高吞吐
// - EventID 幂等，重复消费无副作用
// - 同步更新池配置快照 (加池/调权/迁移事件)

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"farm.com/pkg/events"
	"farm.com/pkg/farm"
	"farm.com/pkg/kafka"
)

// =============================================================================
// JournalWriter
// =============================================================================

// JournalWriterConfig 配置
type JournalWriterConfig struct {
	Brokers       []string
	GroupID       string
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultJournalWriterConfig 默认配置
func DefaultJournalWriterConfig(brokers []string) JournalWriterConfig {
	return JournalWriterConfig{
		Brokers:       brokers,
		GroupID:       "farm_journal_writer",
		BatchSize:     100,
		FlushInterval: 500 * time.Millisecond,
	}
}

// JournalWriterStats 写入统计
type JournalWriterStats struct {
	ReceivedCount int64
	WrittenCount  int64
	ErrorCount    int64
	BatchCount    int64
}

// JournalWriter 流水写入器
type JournalWriter struct {
	journals JournalRepository
	pools    PoolRepository
	consumer *kafka.Consumer

	buffer    []*events.LedgerEvent
	bufferMu  sync.Mutex
	batchSize int
	flushCh   chan struct{}

	// 计数器被消费 goroutine 和 flush goroutine 同时写
	receivedCount atomic.Int64
	writtenCount  atomic.Int64
	errorCount    atomic.Int64
	batchCount    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJournalWriter 创建流水写入器
// pools 传 nil 表示不维护池配置快照
func NewJournalWriter(cfg JournalWriterConfig, journals JournalRepository, pools PoolRepository) (*JournalWriter, error) {
	ctx, cancel := context.WithCancel(context.Background())

	w := &JournalWriter{
		journals:  journals,
		pools:     pools,
		buffer:    make([]*events.LedgerEvent, 0, cfg.BatchSize),
		batchSize: cfg.BatchSize,
		flushCh:   make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	consumerCfg := kafka.DefaultConsumerConfig(
		cfg.Brokers,
		cfg.GroupID,
		[]string{events.TopicLedgerEvents},
	)

	consumer, err := kafka.NewConsumer(consumerCfg, w.handleMessage)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	w.consumer = consumer

	return w, nil
}

// =============================================================================
// 消息处理
// =============================================================================

// handleMessage 处理单条消息: 只进缓冲，落盘由 flush 批量做
func (w *JournalWriter) handleMessage(topic string, partition int32, offset int64, key, value []byte) error {
	var ev events.LedgerEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		w.errorCount.Add(1)
		return fmt.Errorf("unmarshal ledger event: %w", err)
	}

	w.receivedCount.Add(1)

	w.bufferMu.Lock()
	w.buffer = append(w.buffer, &ev)
	shouldFlush := len(w.buffer) >= w.batchSize
	w.bufferMu.Unlock()

	if shouldFlush {
		select {
		case w.flushCh <- struct{}{}:
		default:
		}
	}

	return nil
}

// =============================================================================
// 批量落盘
// =============================================================================

// flush 刷新缓冲写入数据库
func (w *JournalWriter) flush() {
	w.bufferMu.Lock()
	batch := w.buffer
	w.buffer = make([]*events.LedgerEvent, 0, w.batchSize)
	w.bufferMu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records := make([]*JournalRecord, 0, len(batch))
	for _, ev := range batch {
		records = append(records, &JournalRecord{
			EventID:   ev.EventID,
			Type:      ev.Type,
			PoolID:    ev.PoolID,
			UserID:    ev.UserID,
			Asset:     ev.Asset,
			Amount:    ev.Amount,
			Weight:    ev.Weight,
			Time:      ev.Time,
			CreatedAt: ev.WallAt,
		})
	}

	if err := w.journals.BatchInsert(ctx, records); err != nil {
		w.errorCount.Add(1)
		log.Printf("[JournalWriter] batch insert error: %v", err)
		return
	}

	// 池配置/仓位事件顺带刷新快照表
	if w.pools != nil {
		for _, ev := range batch {
			if err := w.applyPoolEvent(ctx, ev); err != nil {
				w.errorCount.Add(1)
				log.Printf("[JournalWriter] apply pool event error: pool=%d err=%v", ev.PoolID, err)
			}
			if err := w.applyPositionEvent(ctx, ev); err != nil {
				w.errorCount.Add(1)
				log.Printf("[JournalWriter] apply position event error: pool=%d user=%d err=%v", ev.PoolID, ev.UserID, err)
			}
		}
	}

	w.writtenCount.Add(int64(len(batch)))
	w.batchCount.Add(1)
}

// applyPoolEvent 把池配置类事件落到 pool_specs 快照
func (w *JournalWriter) applyPoolEvent(ctx context.Context, ev *events.LedgerEvent) error {
	switch ev.Type {
	case farm.EventPoolAdded:
		return w.pools.SavePool(ctx, &PoolRecord{
			ID:               ev.PoolID,
			StakeAsset:       ev.Asset,
			Weight:           ev.Weight,
			LastSettledTime:  ev.Time,
			AccRewardPerUnit: "0",
		})

	case farm.EventWeightSet, farm.EventPoolMigrated:
		record, err := w.pools.GetPool(ctx, ev.PoolID)
		if err != nil || record == nil {
			return err
		}
		if ev.Type == farm.EventWeightSet {
			record.Weight = ev.Weight
		} else {
			record.StakeAsset = ev.Asset
		}
		return w.pools.SavePool(ctx, record)
	}
	return nil
}

// applyPositionEvent 把余额类事件镜像到 farm_positions
//
// 镜像只跟踪本金 (事件携带的金额增量)；基线/积分等结算内生状态
// 以账本内存为准，这里保持默认值，对账时从账本快照补齐。
func (w *JournalWriter) applyPositionEvent(ctx context.Context, ev *events.LedgerEvent) error {
	switch ev.Type {
	case farm.EventDeposit, farm.EventWithdraw, farm.EventEmergencyWithdraw:
	default:
		return nil
	}

	record, err := w.pools.GetPosition(ctx, ev.PoolID, ev.UserID)
	if err != nil {
		return err
	}
	if record == nil {
		record = &PositionRecord{
			PoolID:            ev.PoolID,
			UserID:            ev.UserID,
			RewardBaseline:    "0",
			StakeTimeIntegral: "0",
		}
	}

	switch ev.Type {
	case farm.EventDeposit:
		record.Principal += ev.Amount
	case farm.EventWithdraw:
		record.Principal -= ev.Amount
	case farm.EventEmergencyWithdraw:
		record.Principal = 0
	}
	record.LastSettlementTime = ev.Time

	return w.pools.SavePosition(ctx, record)
}

// =============================================================================
// 生命周期
// =============================================================================

// Start 启动写入器
func (w *JournalWriter) Start(flushInterval time.Duration) {
	w.consumer.Start()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				w.flush() // 最后刷新一次
				return
			case <-ticker.C:
				w.flush()
			case <-w.flushCh:
				w.flush()
			}
		}
	}()
}

// Stop 停止写入器
func (w *JournalWriter) Stop() error {
	w.cancel()
	w.wg.Wait()
	return w.consumer.Stop()
}

// Stats 获取统计快照
func (w *JournalWriter) Stats() JournalWriterStats {
	return JournalWriterStats{
		ReceivedCount: w.receivedCount.Load(),
		WrittenCount:  w.writtenCount.Load(),
		ErrorCount:    w.errorCount.Load(),
		BatchCount:    w.batchCount.Load(),
	}
}
