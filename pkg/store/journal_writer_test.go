// 文件: pkg/store/journal_writer_test.go
// 流水写入器测试
//
// 不依赖 Kafka: 直接构造 JournalWriter 喂消息，验证缓冲/落盘/镜像逻辑

package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farm.com/pkg/events"
	"farm.com/pkg/farm"
)

// =============================================================================
// 内存仓库 mock
// =============================================================================

type memRepo struct {
	journals  []*JournalRecord
	pools     map[int64]*PoolRecord
	positions map[[2]int64]*PositionRecord
}

func newMemRepo() *memRepo {
	return &memRepo{
		pools:     make(map[int64]*PoolRecord),
		positions: make(map[[2]int64]*PositionRecord),
	}
}

func (r *memRepo) BatchInsert(_ context.Context, records []*JournalRecord) error {
	// EventID 幂等
	seen := make(map[int64]bool, len(r.journals))
	for _, rec := range r.journals {
		seen[rec.EventID] = true
	}
	for _, rec := range records {
		if !seen[rec.EventID] {
			r.journals = append(r.journals, rec)
			seen[rec.EventID] = true
		}
	}
	return nil
}

func (r *memRepo) ListByPool(_ context.Context, poolID int64, _, _ int) ([]*JournalRecord, error) {
	var out []*JournalRecord
	for _, rec := range r.journals {
		if rec.PoolID == poolID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memRepo) ListByUser(_ context.Context, userID int64, _, _ int) ([]*JournalRecord, error) {
	var out []*JournalRecord
	for _, rec := range r.journals {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memRepo) SavePool(_ context.Context, record *PoolRecord) error {
	cp := *record
	r.pools[record.ID] = &cp
	return nil
}

func (r *memRepo) GetPool(_ context.Context, poolID int64) (*PoolRecord, error) {
	return r.pools[poolID], nil
}

func (r *memRepo) GetPoolByAsset(_ context.Context, asset string) (*PoolRecord, error) {
	for _, p := range r.pools {
		if p.StakeAsset == asset {
			return p, nil
		}
	}
	return nil, nil
}

func (r *memRepo) ListPools(_ context.Context) ([]*PoolRecord, error) {
	var out []*PoolRecord
	for _, p := range r.pools {
		out = append(out, p)
	}
	return out, nil
}

func (r *memRepo) SavePosition(_ context.Context, record *PositionRecord) error {
	cp := *record
	r.positions[[2]int64{record.PoolID, record.UserID}] = &cp
	return nil
}

func (r *memRepo) GetPosition(_ context.Context, poolID, userID int64) (*PositionRecord, error) {
	return r.positions[[2]int64{poolID, userID}], nil
}

// =============================================================================
// 测试脚手架
// =============================================================================

func newTestWriter(repo *memRepo) *JournalWriter {
	return &JournalWriter{
		journals:  repo,
		pools:     repo,
		buffer:    make([]*events.LedgerEvent, 0, 16),
		batchSize: 16,
		flushCh:   make(chan struct{}, 1),
	}
}

func feed(t *testing.T, w *JournalWriter, ev *farm.Event) {
	t.Helper()
	wrapped := events.Wrap(ev)
	data, err := wrapped.Value()
	require.NoError(t, err)
	require.NoError(t, w.handleMessage(events.TopicLedgerEvents, 0, 0, []byte(wrapped.Key()), data))
}

// =============================================================================
// 测试
// =============================================================================

// TestJournalWriter_FlushWritesJournal 事件进缓冲，flush 后落盘
func TestJournalWriter_FlushWritesJournal(t *testing.T) {
	repo := newMemRepo()
	w := newTestWriter(repo)

	feed(t, w, &farm.Event{Type: farm.EventDeposit, PoolID: 0, UserID: 1, Asset: "LP", Amount: 100, Time: 10})
	feed(t, w, &farm.Event{Type: farm.EventWithdraw, PoolID: 0, UserID: 1, Asset: "LP", Amount: 40, Time: 20})

	assert.Empty(t, repo.journals, "flush 之前不落盘")

	w.flush()

	require.Len(t, repo.journals, 2)
	assert.Equal(t, farm.EventDeposit, repo.journals[0].Type)
	assert.Equal(t, int64(100), repo.journals[0].Amount)

	stats := w.Stats()
	assert.Equal(t, int64(2), stats.ReceivedCount)
	assert.Equal(t, int64(2), stats.WrittenCount)
	assert.Equal(t, int64(1), stats.BatchCount)
}

// TestJournalWriter_PoolMirror 池配置事件刷新 pool_specs 镜像
func TestJournalWriter_PoolMirror(t *testing.T) {
	repo := newMemRepo()
	w := newTestWriter(repo)
	ctx := context.Background()

	feed(t, w, &farm.Event{Type: farm.EventPoolAdded, PoolID: 0, Asset: "LP-V1", Weight: 10, Time: 0})
	w.flush()

	pool, err := repo.GetPool(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, pool)
	assert.Equal(t, "LP-V1", pool.StakeAsset)
	assert.Equal(t, int64(10), pool.Weight)

	feed(t, w, &farm.Event{Type: farm.EventWeightSet, PoolID: 0, Asset: "LP-V1", Weight: 30, Time: 100})
	feed(t, w, &farm.Event{Type: farm.EventPoolMigrated, PoolID: 0, Asset: "LP-V2", Amount: 500, Time: 200})
	w.flush()

	pool, _ = repo.GetPool(ctx, 0)
	assert.Equal(t, int64(30), pool.Weight)
	assert.Equal(t, "LP-V2", pool.StakeAsset)
}

// TestJournalWriter_PositionMirror 余额事件镜像本金增量
func TestJournalWriter_PositionMirror(t *testing.T) {
	repo := newMemRepo()
	w := newTestWriter(repo)
	ctx := context.Background()

	feed(t, w, &farm.Event{Type: farm.EventDeposit, PoolID: 0, UserID: 1, Asset: "LP", Amount: 100, Time: 10})
	feed(t, w, &farm.Event{Type: farm.EventWithdraw, PoolID: 0, UserID: 1, Asset: "LP", Amount: 30, Time: 20})
	w.flush()

	pos, err := repo.GetPosition(ctx, 0, 1)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, int64(70), pos.Principal)
	assert.Equal(t, int64(20), pos.LastSettlementTime)

	feed(t, w, &farm.Event{Type: farm.EventEmergencyWithdraw, PoolID: 0, UserID: 1, Asset: "LP", Amount: 70, Time: 30})
	w.flush()

	pos, _ = repo.GetPosition(ctx, 0, 1)
	assert.Zero(t, pos.Principal)
}

// TestJournalWriter_ConcurrentCounters 多 goroutine 喂消息时计数不丢
func TestJournalWriter_ConcurrentCounters(t *testing.T) {
	repo := newMemRepo()
	w := newTestWriter(repo)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				wrapped := events.Wrap(&farm.Event{
					Type: farm.EventPoolRefreshed, PoolID: int64(g), Asset: "LP", Time: int64(i),
				})
				data, err := wrapped.Value()
				if err != nil {
					t.Errorf("serialize: %v", err)
					return
				}
				if err := w.handleMessage(events.TopicLedgerEvents, 0, 0, nil, data); err != nil {
					t.Errorf("handle: %v", err)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	w.flush()

	stats := w.Stats()
	assert.Equal(t, int64(100), stats.ReceivedCount)
	assert.Equal(t, int64(100), stats.WrittenCount)
	assert.Zero(t, stats.ErrorCount)
	assert.Len(t, repo.journals, 100)
}

// TestJournalWriter_BadPayload 坏消息计入错误，不阻塞后续
func TestJournalWriter_BadPayload(t *testing.T) {
	repo := newMemRepo()
	w := newTestWriter(repo)

	err := w.handleMessage(events.TopicLedgerEvents, 0, 0, nil, []byte("not json"))
	assert.Error(t, err)

	feed(t, w, &farm.Event{Type: farm.EventDeposit, PoolID: 0, UserID: 1, Asset: "LP", Amount: 100, Time: 10})
	w.flush()

	assert.Len(t, repo.journals, 1)
	assert.Equal(t, int64(1), w.Stats().ErrorCount)
}
