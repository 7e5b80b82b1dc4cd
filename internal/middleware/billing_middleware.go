package middleware

import (
	"mtsp/pkg/config"
	"mtsp/pkg/response"

	"github.com/gin-gonic/gin"
)

// RequireBillingKey 校验外部计费方的Webhook访问密钥。
// 未配置密钥时直接拒绝，避免误开放事件入口。
func RequireBillingKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := config.GetConfig()
		key := c.GetHeader("X-Billing-Key")
		if cfg.Subscription.WebhookKey == "" || key != cfg.Subscription.WebhookKey {
			response.Unauthorized(c, "计费密钥无效")
			c.Abort()
			return
		}
		c.Next()
	}
}
