// 文件: pkg/store/cache_repo.go
// 池配置 Redis 缓存层
//
// 【设计模式】装饰器: 包装底层 PoolRepository，调用方无感知。
//
// 【缓存策略】
// - 读: 先查 Redis，miss 则查 DB 并回填
// - 写: 先写 DB，成功后删除缓存 (Cache Aside)
// 池配置只被管理员操作修改，读多写极少，非常适合缓存。

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 确保实现了接口
var _ PoolRepository = (*CachedPoolRepository)(nil)

const (
	cacheKeyPrefix = "farm:pool:"

	// 单个池: farm:pool:id:{poolID}
	cacheKeyPool = cacheKeyPrefix + "id:%d"

	// 资产索引: farm:pool:asset:{asset}
	cacheKeyAsset = cacheKeyPrefix + "asset:%s"

	// 池列表: farm:pool:all
	cacheKeyAllList = cacheKeyPrefix + "all"

	cacheTTL = 24 * time.Hour

	// 列表缓存较短 (加池/调权后变化)
	listCacheTTL = 5 * time.Minute
)

// CachedPoolRepository Redis 缓存装饰器
type CachedPoolRepository struct {
	repo  PoolRepository
	redis *redis.Client
}

// NewCachedPoolRepository 创建带缓存的仓库
//
// 用法:
//
//	mysqlRepo := store.NewMySQLRepo(db)
//	cached := store.NewCachedPoolRepository(mysqlRepo, redisClient)
func NewCachedPoolRepository(repo PoolRepository, rds *redis.Client) *CachedPoolRepository {
	return &CachedPoolRepository{
		repo:  repo,
		redis: rds,
	}
}

// =============================================================================
// 读操作 (带缓存)
// =============================================================================

// GetPool 按池 ID 查询 (带缓存)
func (r *CachedPoolRepository) GetPool(ctx context.Context, poolID int64) (*PoolRecord, error) {
	cacheKey := fmt.Sprintf(cacheKeyPool, poolID)

	data, err := r.redis.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var record PoolRecord
		if json.Unmarshal(data, &record) == nil {
			return &record, nil // cache hit
		}
	}

	record, err := r.repo.GetPool(ctx, poolID)
	if err != nil || record == nil {
		return record, err
	}

	// 回填不阻塞主流程
	go r.setCache(context.Background(), cacheKey, record, cacheTTL)

	return record, nil
}

// GetPoolByAsset 按资产查询 (带缓存)
func (r *CachedPoolRepository) GetPoolByAsset(ctx context.Context, asset string) (*PoolRecord, error) {
	cacheKey := fmt.Sprintf(cacheKeyAsset, asset)

	data, err := r.redis.Get(ctx, cacheKey).Bytes()
	if err == nil {
		var record PoolRecord
		if json.Unmarshal(data, &record) == nil {
			return &record, nil
		}
	}

	record, err := r.repo.GetPoolByAsset(ctx, asset)
	if err != nil || record == nil {
		return record, err
	}

	go r.setCache(context.Background(), cacheKey, record, cacheTTL)

	return record, nil
}

// ListPools 所有池 (带缓存)
func (r *CachedPoolRepository) ListPools(ctx context.Context) ([]*PoolRecord, error) {
	data, err := r.redis.Get(ctx, cacheKeyAllList).Bytes()
	if err == nil {
		var records []*PoolRecord
		if json.Unmarshal(data, &records) == nil {
			return records, nil
		}
	}

	records, err := r.repo.ListPools(ctx)
	if err != nil {
		return nil, err
	}

	go r.setCache(context.Background(), cacheKeyAllList, records, listCacheTTL)

	return records, nil
}

// GetPosition 仓位查询不走缓存 (结算后频繁变化，缓存命中率低)
func (r *CachedPoolRepository) GetPosition(ctx context.Context, poolID, userID int64) (*PositionRecord, error) {
	return r.repo.GetPosition(ctx, poolID, userID)
}

// =============================================================================
// 写操作 (写 DB 后删缓存)
// =============================================================================

// SavePool 保存池配置并失效缓存
func (r *CachedPoolRepository) SavePool(ctx context.Context, record *PoolRecord) error {
	if err := r.repo.SavePool(ctx, record); err != nil {
		return err
	}

	r.redis.Del(ctx,
		fmt.Sprintf(cacheKeyPool, record.ID),
		fmt.Sprintf(cacheKeyAsset, record.StakeAsset),
		cacheKeyAllList,
	)
	return nil
}

// SavePosition 仓位不缓存，直通底层
func (r *CachedPoolRepository) SavePosition(ctx context.Context, record *PositionRecord) error {
	return r.repo.SavePosition(ctx, record)
}

// =============================================================================
// 辅助
// =============================================================================

func (r *CachedPoolRepository) setCache(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	r.redis.Set(ctx, key, data, ttl)
}
