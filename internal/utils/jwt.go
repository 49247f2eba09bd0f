package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidRole  = errors.New("invalid role")
)

// 令牌角色
const (
	RoleOrganizer = "organizer" // 可操作所有比赛
	RoleScorer    = "scorer"    // 只能操作令牌中的比赛
)

// ScorerClaims 计分令牌 Claims
type ScorerClaims struct {
	Role    string `json:"role"`
	MatchID string `json:"match_id,omitempty"`
	jwt.RegisteredClaims
}

// CanScore 是否允许操作指定比赛
func (c *ScorerClaims) CanScore(matchID string) bool {
	switch c.Role {
	case RoleOrganizer:
		return true
	case RoleScorer:
		return c.MatchID != "" && c.MatchID == matchID
	default:
		return false
	}
}

// JWTManager JWT管理器
type JWTManager struct {
	secretKey string
	issuer    string
	expiry    time.Duration
}

// NewJWTManager 创建JWT管理器
func NewJWTManager(secretKey, issuer string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		secretKey: secretKey,
		issuer:    issuer,
		expiry:    expiry,
	}
}

// GenerateToken 生成令牌，计分员令牌必须绑定比赛
func (j *JWTManager) GenerateToken(subject, role, matchID string) (string, error) {
	switch role {
	case RoleOrganizer:
	case RoleScorer:
		if matchID == "" {
			return "", ErrInvalidRole
		}
	default:
		return "", ErrInvalidRole
	}

	now := time.Now()
	claims := &ScorerClaims{
		Role:    role,
		MatchID: matchID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ValidateToken 验证令牌
func (j *JWTManager) ValidateToken(tokenString string) (*ScorerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ScorerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(j.secretKey), nil
	}, jwt.WithIssuer(j.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, err
	}

	claims, ok := token.Claims.(*ScorerClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetTokenExpiry 获取令牌有效期
func (j *JWTManager) GetTokenExpiry() time.Duration {
	return j.expiry
}
