package database

import (
	"fmt"

	"github.com/wfunc/rally-scorer/internal/logger"
	"github.com/wfunc/rally-scorer/internal/models"
	"go.uber.org/zap"
)

// Models 需要迁移的模型
func Models() []interface{} {
	return []interface{}{
		&models.Match{},
		&models.MatchState{},
		&models.MatchEvent{},
		&models.MatchResult{},
	}
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	CleanupStaleLocks()

	if lock != nil {
		lockFile, err := lock.acquire()
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer lock.release(lockFile)
	}

	logger.Info("开始数据库迁移...")

	for _, model := range Models() {
		if err := DB.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
		logger.Debug("迁移成功", zap.String("table", getTableName(model)))
	}

	if err := createIndexes(); err != nil {
		return err
	}

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建模型标签之外的查询索引
func createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_matches_status_updated ON matches(status, updated_at)",
		"CREATE INDEX IF NOT EXISTS idx_match_events_type ON match_events(match_id, type)",
		"CREATE INDEX IF NOT EXISTS idx_match_results_completed_at ON match_results(completed_at)",
	}

	for _, idx := range indexes {
		if err := DB.Exec(idx).Error; err != nil {
			logger.Warn("创建索引失败", zap.String("sql", idx), zap.Error(err))
			return err
		}
	}
	return nil
}

// getTableName 获取模型表名
func getTableName(model interface{}) string {
	if tabler, ok := model.(interface{ TableName() string }); ok {
		return tabler.TableName()
	}
	return fmt.Sprintf("%T", model)
}

// DropAllTables 删除所有表（仅用于测试与重置）
func DropAllTables() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	all := Models()
	for i := len(all) - 1; i >= 0; i-- {
		table := getTableName(all[i])
		if err := DB.Migrator().DropTable(all[i]); err != nil {
			return fmt.Errorf("删除表 %s 失败: %w", table, err)
		}
		logger.Info("删除表", zap.String("table", table))
	}
	return nil
}
