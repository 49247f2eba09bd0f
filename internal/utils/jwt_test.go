package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// JWTTestSuite JWT工具测试套件
type JWTTestSuite struct {
	suite.Suite
	manager *JWTManager
}

func (suite *JWTTestSuite) SetupTest() {
	suite.manager = NewJWTManager("test-secret-key", "rally-scorer", time.Hour)
}

// 测试创建JWT管理器
func (suite *JWTTestSuite) TestNewJWTManager() {
	manager := NewJWTManager("secret", "issuer", 12*time.Hour)
	suite.NotNil(manager)
	suite.Equal(12*time.Hour, manager.GetTokenExpiry())
}

// 测试生成并验证计分员令牌
func (suite *JWTTestSuite) TestScorerToken() {
	token, err := suite.manager.GenerateToken("scorer-1", RoleScorer, "match-1")
	suite.NoError(err)
	suite.NotEmpty(token)

	claims, err := suite.manager.ValidateToken(token)
	suite.NoError(err)
	suite.Equal(RoleScorer, claims.Role)
	suite.Equal("match-1", claims.MatchID)
	suite.Equal("scorer-1", claims.Subject)
	suite.Equal("rally-scorer", claims.Issuer)

	suite.True(claims.CanScore("match-1"))
	suite.False(claims.CanScore("match-2"))
}

// 测试组织者令牌
func (suite *JWTTestSuite) TestOrganizerToken() {
	token, err := suite.manager.GenerateToken("organizer-1", RoleOrganizer, "")
	suite.NoError(err)

	claims, err := suite.manager.ValidateToken(token)
	suite.NoError(err)
	suite.True(claims.CanScore("match-1"))
	suite.True(claims.CanScore("match-2"))
}

// 测试无效角色
func (suite *JWTTestSuite) TestInvalidRole() {
	_, err := suite.manager.GenerateToken("u", "admin", "match-1")
	suite.ErrorIs(err, ErrInvalidRole)

	// 计分员令牌必须绑定比赛
	_, err = suite.manager.GenerateToken("u", RoleScorer, "")
	suite.ErrorIs(err, ErrInvalidRole)

	claims := &ScorerClaims{Role: "viewer", MatchID: "match-1"}
	suite.False(claims.CanScore("match-1"))
}

// 测试验证无效令牌
func (suite *JWTTestSuite) TestValidateInvalidToken() {
	// 无效格式的令牌
	claims, err := suite.manager.ValidateToken("invalid.token.format")
	suite.Error(err)
	suite.Nil(claims)

	// 错误的签名
	wrongManager := NewJWTManager("wrong-secret", "rally-scorer", time.Hour)
	token, _ := wrongManager.GenerateToken("u", RoleOrganizer, "")
	claims, err = suite.manager.ValidateToken(token)
	suite.Error(err)
	suite.Nil(claims)

	// 签发者不一致
	otherIssuer := NewJWTManager("test-secret-key", "other", time.Hour)
	token, _ = otherIssuer.GenerateToken("u", RoleOrganizer, "")
	claims, err = suite.manager.ValidateToken(token)
	suite.Error(err)
	suite.Nil(claims)
}

// 测试过期令牌
func (suite *JWTTestSuite) TestExpiredToken() {
	expiredManager := NewJWTManager("test-secret-key", "rally-scorer", -time.Hour)

	token, err := expiredManager.GenerateToken("u", RoleScorer, "match-1")
	suite.NoError(err)

	claims, err := suite.manager.ValidateToken(token)
	suite.ErrorIs(err, ErrExpiredToken)
	suite.Nil(claims)
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTTestSuite))
}
