// 文件: pkg/vault/mysql_test.go
// MySQL 托管集成测试
//
// 需要本地 MySQL，连不上时自动跳过

package vault

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testDSN = "root:123456@tcp(127.0.0.1:3307)/my_farm?charset=utf8mb4&parseTime=True&loc=Local"

func setupVault(t *testing.T) *MySQLVault {
	db, err := gorm.Open(mysql.Open(testDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("mysql unavailable: %v", err)
	}

	v := NewMySQLVault(db)
	require.NoError(t, v.AutoMigrate())

	db.Exec("DELETE FROM vault_accounts")
	db.Exec("DELETE FROM vault_awards")
	db.Exec("DELETE FROM vault_burns")

	return v
}

// TestMySQLVault_TransferConditional 条件更新: 余额不足时 0 行生效
func TestMySQLVault_TransferConditional(t *testing.T) {
	v := setupVault(t)
	ctx := context.Background()

	require.NoError(t, v.Credit(ctx, 1, "LP", 1000))

	require.NoError(t, v.TransferIn(ctx, 1, "LP", 600))

	total, err := v.TotalStaked(ctx, "LP")
	require.NoError(t, err)
	assert.Equal(t, int64(600), total)

	// 自由余额只剩 400，再转 500 必须失败
	err = v.TransferIn(ctx, 1, "LP", 500)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))

	require.NoError(t, v.TransferOut(ctx, 1, "LP", 600))
	total, _ = v.TotalStaked(ctx, "LP")
	assert.Zero(t, total)
}

// TestMySQLVault_AwardUpsert 奖励累加
func TestMySQLVault_AwardUpsert(t *testing.T) {
	v := setupVault(t)
	ctx := context.Background()

	require.NoError(t, v.AddAward(ctx, 7, 5000))
	require.NoError(t, v.AddAward(ctx, 7, 1000))

	amount, err := v.AwardOf(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), amount)

	require.NoError(t, v.Destroy(ctx, 300))
}
