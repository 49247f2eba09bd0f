package repository

import (
	"context"

	"github.com/wfunc/rally-scorer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchResultRepository 比赛结果仓储接口
type MatchResultRepository interface {
	BaseRepository
	Record(ctx context.Context, result *models.MatchResult) error
	Delete(ctx context.Context, matchID string) error
	FindByMatchID(ctx context.Context, matchID string) (*models.MatchResult, error)
	ListByTeam(ctx context.Context, teamName string, p *Pagination) ([]*models.MatchResult, error)
	GetTeamStanding(ctx context.Context, teamName string) (*TeamStanding, error)
}

// TeamStanding 队伍战绩汇总
type TeamStanding struct {
	TeamName  string `json:"team_name"`
	Played    int64  `json:"played"`
	Wins      int64  `json:"wins"`
	Losses    int64  `json:"losses"`
	GamesWon  int64  `json:"games_won"`
	GamesLost int64  `json:"games_lost"`
}

// matchResultRepo 比赛结果仓储实现
type matchResultRepo struct {
	*BaseRepo
}

// NewMatchResultRepository 创建比赛结果仓储
func NewMatchResultRepository(db *gorm.DB) MatchResultRepository {
	return &matchResultRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// WithTx 使用事务
func (r *matchResultRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &matchResultRepo{BaseRepo: r.BaseRepo.WithTx(tx)}
}

// Record 记录比赛结果，同一场比赛重复记录时覆盖
func (r *matchResultRepo) Record(ctx context.Context, result *models.MatchResult) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "match_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"winner", "winner_name", "games_won_a", "games_won_b", "games",
				"forfeit", "cancelled", "end_reason", "rallies", "completed_at", "updated_at", "deleted_at",
			}),
		}).
		Create(result).Error
}

// Delete 撤销比赛结果
func (r *matchResultRepo) Delete(ctx context.Context, matchID string) error {
	return r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Delete(&models.MatchResult{}).Error
}

// FindByMatchID 根据比赛ID查找
func (r *matchResultRepo) FindByMatchID(ctx context.Context, matchID string) (*models.MatchResult, error) {
	var result models.MatchResult
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListByTeam 分页查询队伍参加的比赛结果
func (r *matchResultRepo) ListByTeam(ctx context.Context, teamName string, p *Pagination) ([]*models.MatchResult, error) {
	var results []*models.MatchResult

	err := r.db.WithContext(ctx).
		Model(&models.MatchResult{}).
		Where("team_a_name = ? OR team_b_name = ?", teamName, teamName).
		Count(&p.Total).Error
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Where("team_a_name = ? OR team_b_name = ?", teamName, teamName).
		Order("completed_at desc").
		Scopes(Paginate(p)).
		Find(&results).Error
	return results, err
}

// GetTeamStanding 汇总队伍战绩（不含取消的比赛）
func (r *matchResultRepo) GetTeamStanding(ctx context.Context, teamName string) (*TeamStanding, error) {
	var results []*models.MatchResult
	err := r.db.WithContext(ctx).
		Where("(team_a_name = ? OR team_b_name = ?) AND cancelled = ?", teamName, teamName, false).
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	standing := &TeamStanding{TeamName: teamName}
	for _, res := range results {
		standing.Played++
		if res.WinnerName == teamName {
			standing.Wins++
		} else {
			standing.Losses++
		}
		if res.TeamAName == teamName {
			standing.GamesWon += int64(res.GamesWonA)
			standing.GamesLost += int64(res.GamesWonB)
		} else {
			standing.GamesWon += int64(res.GamesWonB)
			standing.GamesLost += int64(res.GamesWonA)
		}
	}
	return standing, nil
}
