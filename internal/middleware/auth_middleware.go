package middleware

import (
	"strings"

	"mtsp/internal/models"
	"mtsp/internal/services"
	"mtsp/pkg/jwt"
	"mtsp/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 认证中间件
type AuthMiddleware struct {
	userService *services.UserService
	jwtManager  *jwt.JWTManager
}

func NewAuthMiddleware(userService *services.UserService) *AuthMiddleware {
	return &AuthMiddleware{
		userService: userService,
		jwtManager:  jwt.GetJWTManager(),
	}
}

// RequireLogin 验证JWT并把操作者三元组写入上下文。
// 角色与所属企业以数据库当前值为准，不信任令牌中的快照。
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		// 检查Bearer格式
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		tokenString := authHeader[7:] // 去掉 "Bearer "

		claims, err := m.jwtManager.VerifyToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		user, err := m.userService.GetByID(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "用户不存在")
			c.Abort()
			return
		}

		if user.Status != models.UserStatusActive {
			response.Unauthorized(c, "用户已被禁用")
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("actor", services.Actor{
			UserID:     user.ID,
			BusinessID: user.BusinessID,
			Role:       user.Role,
		})

		c.Next()
	}
}

// RequireSuperAdmin 平台级操作（企业创建/删除、跨租户列表）要求超级管理员
func (m *AuthMiddleware) RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, exists := c.Get("user")
		if !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !user.(*models.User).IsSuperAdmin() {
			response.Forbidden(c, "需要平台超级管理员权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetActor 从上下文取出操作者三元组（必须在 RequireLogin 之后调用）
func GetActor(c *gin.Context) services.Actor {
	actor, _ := c.Get("actor")
	return actor.(services.Actor)
}

// GetUser 从上下文取出当前用户
func GetUser(c *gin.Context) *models.User {
	user, _ := c.Get("user")
	return user.(*models.User)
}
