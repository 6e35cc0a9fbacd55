package security

import (
	"net/http"
	"strings"

	"FreightLink/tools/errs"
	sec "FreightLink/tools/security"

	"github.com/gin-gonic/gin"
)

// —— context key ——
// 后续 handler 统一用这俩 key 读取
const (
	CtxUserIDKey = "userId"        // string
	CtxAuthKey   = "authorization" // string（原始token）
)

type Options struct {
	JWT sec.Options

	// 允许 ?token= 兜底（websocket 客户端常用）
	EnableQueryToken bool
}

func DefaultOptions(secret []byte) *Options {
	return &Options{
		JWT:              sec.DefaultOptions(secret),
		EnableQueryToken: true,
	}
}

// ExtractToken 从 Authorization: Bearer 头或 ?token= 查询参数取凭证。
func ExtractToken(c *gin.Context, allowQuery bool) string {
	if authz := strings.TrimSpace(c.GetHeader("Authorization")); authz != "" {
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return strings.TrimSpace(authz[len("bearer "):])
		}
	}
	if allowQuery {
		return strings.TrimSpace(c.Query("token"))
	}
	return ""
}

// Middleware 校验凭证并把 userId 写入请求上下文。
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c, opts.EnableQueryToken)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrAuthentication.WithDetail("missing credential"))
			return
		}
		claims, err := sec.Verify(opts.JWT, token)
		if err != nil || claims.UserID() == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired)
			return
		}

		c.Set(CtxUserIDKey, claims.UserID())
		c.Set(CtxAuthKey, token)
		c.Next()
	}
}
