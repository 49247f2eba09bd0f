package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/rally-scorer/internal/errors"
	"github.com/wfunc/rally-scorer/internal/utils"
)

const claimsKey = "scorerClaims"

// AuthMiddleware 计分令牌认证中间件
type AuthMiddleware struct {
	jwt *utils.JWTManager
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(jwt *utils.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		jwt: jwt,
	}
}

// RequireScorer 需要计分权限，param 为路由中的比赛ID参数名
func (m *AuthMiddleware) RequireScorer(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.authenticate(c)
		if !ok {
			return
		}

		if !claims.CanScore(c.Param(param)) {
			abort(c, apperrors.New(apperrors.ErrAuthorization, "令牌无权操作该比赛"))
			return
		}

		c.Next()
	}
}

// RequireOrganizer 需要组织者角色
func (m *AuthMiddleware) RequireOrganizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.authenticate(c)
		if !ok {
			return
		}

		if claims.Role != utils.RoleOrganizer {
			abort(c, apperrors.New(apperrors.ErrAuthorization, "需要组织者权限"))
			return
		}

		c.Next()
	}
}

// authenticate 验证令牌并写入上下文
func (m *AuthMiddleware) authenticate(c *gin.Context) (*utils.ScorerClaims, bool) {
	token := extractToken(c)
	if token == "" {
		abort(c, apperrors.New(apperrors.ErrAuthentication, "缺少认证令牌"))
		return nil, false
	}

	claims, err := m.jwt.ValidateToken(token)
	if err != nil {
		code := apperrors.ErrTokenInvalid
		if errors.Is(err, utils.ErrExpiredToken) {
			code = apperrors.ErrTokenExpired
		}
		abort(c, apperrors.New(code).WithCause(err))
		return nil, false
	}

	c.Set(claimsKey, claims)
	return claims, true
}

// GetClaims 获取已验证的令牌信息
func GetClaims(c *gin.Context) (*utils.ScorerClaims, bool) {
	value, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*utils.ScorerClaims)
	return claims, ok
}

// GetActorID 获取操作人，未认证时为空
func GetActorID(c *gin.Context) string {
	if claims, ok := GetClaims(c); ok {
		return claims.Subject
	}
	return ""
}

func abort(c *gin.Context, err *apperrors.AppError) {
	err.Stack = nil
	c.AbortWithStatusJSON(err.HTTPStatus(), apperrors.NewErrorResponse(err, c.GetHeader("X-Request-ID")))
}

// extractToken 从请求中提取令牌
func extractToken(c *gin.Context) string {
	// 1. 从Authorization Header获取 (Bearer Token)
	bearerToken := c.GetHeader("Authorization")
	if bearerToken != "" {
		parts := strings.Split(bearerToken, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// 2. 从X-Access-Token Header获取
	if token := c.GetHeader("X-Access-Token"); token != "" {
		return token
	}

	return ""
}
