// 文件: pkg/vault/mysql.go
// 资产托管 - MySQL 实现 (GORM)
//
// 所有余额变动都是条件更新: WHERE 带余额下限，RowsAffected 为 0 视为短款。
// 不做先读后写，并发下单行 UPDATE 本身就是原子的。

package vault

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MySQLVault MySQL 托管账户
type MySQLVault struct {
	db *gorm.DB
}

// NewMySQLVault 创建 MySQL 托管
func NewMySQLVault(db *gorm.DB) *MySQLVault {
	return &MySQLVault{db: db}
}

// AutoMigrate 建表 (开发/测试用)
func (v *MySQLVault) AutoMigrate() error {
	return v.db.AutoMigrate(&AccountRecord{}, &AwardRecord{}, &BurnRecord{})
}

// Credit 给用户充入自由余额
func (v *MySQLVault) Credit(ctx context.Context, userID int64, asset string, amount int64) error {
	record := &AccountRecord{
		UserID:    userID,
		Asset:     asset,
		Available: amount,
		UpdatedAt: time.Now(),
	}
	return v.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "asset"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"available":  gorm.Expr("available + ?", amount),
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now(),
			}),
		}).
		Create(record).Error
}

// TransferIn 自由余额 -> 池托管
// available -= amount, staked += amount
func (v *MySQLVault) TransferIn(ctx context.Context, userID int64, asset string, amount int64) error {
	result := v.db.WithContext(ctx).
		Model(&AccountRecord{}).
		Where("user_id = ? AND asset = ? AND available >= ?", userID, asset, amount).
		Updates(map[string]interface{}{
			"available":  gorm.Expr("available - ?", amount),
			"staked":     gorm.Expr("staked + ?", amount),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// TransferOut 池托管 -> 自由余额
// staked -= amount, available += amount
func (v *MySQLVault) TransferOut(ctx context.Context, userID int64, asset string, amount int64) error {
	result := v.db.WithContext(ctx).
		Model(&AccountRecord{}).
		Where("user_id = ? AND asset = ? AND staked >= ?", userID, asset, amount).
		Updates(map[string]interface{}{
			"available":  gorm.Expr("available + ?", amount),
			"staked":     gorm.Expr("staked - ?", amount),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientStake
	}
	return nil
}

// TotalStaked 某资产的托管总量
func (v *MySQLVault) TotalStaked(ctx context.Context, asset string) (int64, error) {
	var total int64
	err := v.db.WithContext(ctx).
		Model(&AccountRecord{}).
		Where("asset = ?", asset).
		Select("COALESCE(SUM(staked), 0)").
		Scan(&total).Error
	return total, err
}

// AddAward 记入奖励 (Upsert)
func (v *MySQLVault) AddAward(ctx context.Context, userID int64, amount int64) error {
	record := &AwardRecord{
		UserID:    userID,
		Amount:    amount,
		UpdatedAt: time.Now(),
	}
	return v.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"amount":     gorm.Expr("amount + ?", amount),
				"updated_at": time.Now(),
			}),
		}).
		Create(record).Error
}

// Destroy 销毁罚没的奖励 (追加销毁流水)
func (v *MySQLVault) Destroy(ctx context.Context, amount int64) error {
	return v.db.WithContext(ctx).
		Create(&BurnRecord{Amount: amount, CreatedAt: time.Now()}).Error
}

// AwardOf 用户累计奖励
func (v *MySQLVault) AwardOf(ctx context.Context, userID int64) (int64, error) {
	var record AwardRecord
	err := v.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&record).Error

	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return record.Amount, nil
}
