package repository

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/rally-scorer/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 创建内存测试数据库并迁移比赛相关模型
func TestDB(t *testing.T) *gorm.DB {
	// 每个测试使用独立的内存库
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Match{},
		&models.MatchState{},
		&models.MatchEvent{},
		&models.MatchResult{},
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		CleanupTestDB(db)
	})
	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	// 关闭数据库连接
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// CreateTestMatch 创建测试比赛
func CreateTestMatch(matchID, status string) *models.Match {
	return &models.Match{
		MatchID:   matchID,
		Title:     "测试比赛 " + matchID,
		Venue:     "体育馆",
		Court:     "1号场",
		PlayType:  "doubles",
		TeamAName: "红队",
		TeamBName: "蓝队",
		Settings: models.JSONMap{
			"play_type":        "doubles",
			"points_per_game":  float64(11),
			"win_by":           float64(2),
			"best_of":          float64(3),
			"side_out_scoring": true,
		},
		Status: status,
	}
}

var entrySeq atomic.Int64

// CreateTestMatchEvent 创建测试审计日志
func CreateTestMatchEvent(matchID string, seq int, eventType string) *models.MatchEvent {
	return &models.MatchEvent{
		EntryID:     fmt.Sprintf("%026d", entrySeq.Add(1)),
		MatchID:     matchID,
		Seq:         seq,
		Type:        eventType,
		RallyWinner: "A",
		GameNumber:  1,
		ScoreA:      seq,
		ServingTeam: "A",
		Status:      models.MatchStatusInProgress,
		OccurredAt:  time.Now(),
	}
}

// CreateTestMatchResult 创建测试比赛结果
func CreateTestMatchResult(matchID, teamA, teamB, winner string, gamesA, gamesB int) *models.MatchResult {
	winnerName := teamA
	if winner == "B" {
		winnerName = teamB
	}
	return &models.MatchResult{
		MatchID:     matchID,
		TeamAName:   teamA,
		TeamBName:   teamB,
		Winner:      winner,
		WinnerName:  winnerName,
		GamesWonA:   gamesA,
		GamesWonB:   gamesB,
		CompletedAt: time.Now(),
	}
}

// AssertMatch 验证比赛
func AssertMatch(t *testing.T, expected, actual *models.Match) {
	assert.Equal(t, expected.MatchID, actual.MatchID)
	assert.Equal(t, expected.PlayType, actual.PlayType)
	assert.Equal(t, expected.TeamAName, actual.TeamAName)
	assert.Equal(t, expected.TeamBName, actual.TeamBName)
	assert.Equal(t, expected.Status, actual.Status)
}
