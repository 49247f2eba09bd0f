package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wfunc/rally-scorer/internal/config"
	"github.com/wfunc/rally-scorer/internal/logger"
	"go.uber.org/zap"
)

const (
	defaultLockWait  = 30 * time.Second
	defaultLockStale = 5 * time.Minute
	lockPollInterval = 200 * time.Millisecond
	lockSuffix       = ".migration.lock"
)

// migrationLock 多个计分实例共用一个SQLite文件时串行执行迁移
type migrationLock struct {
	path  string
	wait  time.Duration
	stale time.Duration
}

// newMigrationLock 只有落盘的SQLite需要迁移锁，其他驱动返回nil
func newMigrationLock(cfg *config.DatabaseConfig) *migrationLock {
	if cfg.Driver != "sqlite" && cfg.Driver != "sqlite3" {
		return nil
	}
	file := sqliteFile(cfg.DSN)
	if file == "" {
		return nil
	}

	wait, stale := cfg.MigrationLockWait, cfg.MigrationLockStale
	if wait <= 0 {
		wait = defaultLockWait
	}
	if stale <= 0 {
		stale = defaultLockStale
	}
	return &migrationLock{path: file + lockSuffix, wait: wait, stale: stale}
}

// sqliteFile 从DSN中取出数据库文件路径，内存库返回空串
func sqliteFile(dsn string) string {
	file, query, _ := strings.Cut(dsn, "?")
	file = strings.TrimPrefix(file, "file:")
	if file == "" || strings.Contains(file, ":memory:") || strings.Contains(query, "mode=memory") {
		return ""
	}
	return file
}

// acquire 独占创建锁文件，超过 stale 未释放的锁视为上次崩溃遗留
func (l *migrationLock) acquire() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("创建锁目录失败: %w", err)
	}

	deadline := time.Now().Add(l.wait)
	for attempt := 1; ; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			logger.Debug("获取迁移锁成功", zap.String("lock", l.path))
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("创建迁移锁失败: %w", err)
		}

		if l.removeIfStale() {
			continue
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("等待迁移锁超时 %s，可能有其他实例正在迁移", l.wait)
		}

		logger.Debug("等待迁移锁", zap.String("lock", l.path), zap.Int("attempt", attempt))
		time.Sleep(lockPollInterval)
	}
}

// release 关闭并删除锁文件
func (l *migrationLock) release(f *os.File) {
	if f == nil {
		return
	}
	f.Close()
	os.Remove(l.path)
	logger.Debug("释放迁移锁", zap.String("lock", l.path))
}

// removeIfStale 删除过期锁，返回是否删除
func (l *migrationLock) removeIfStale() bool {
	info, err := os.Stat(l.path)
	if err != nil || time.Since(info.ModTime()) <= l.stale {
		return false
	}
	logger.Warn("迁移锁已过期，删除后重试",
		zap.String("lock", l.path),
		zap.Time("modified", info.ModTime()))
	return os.Remove(l.path) == nil
}

// CleanupStaleLocks 清理数据库目录下过期的迁移锁
func CleanupStaleLocks() int {
	if lock == nil {
		return 0
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(lock.path), "*"+lockSuffix))
	removed := 0
	for _, path := range matches {
		stale := &migrationLock{path: path, stale: lock.stale}
		if stale.removeIfStale() {
			removed++
		}
	}
	return removed
}
