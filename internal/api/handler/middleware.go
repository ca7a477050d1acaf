package handler

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
)

// ClientIDKey 客户端 ID 在 RequestContext 中的键
const ClientIDKey = "client_id"

// ClientIdentity 从 cookie 读取客户端 ID，没有或格式不对时生成新的 UUID 并写回 cookie
func ClientIdentity(cookieName string, maxAgeDays int) app.HandlerFunc {
	maxAge := maxAgeDays * 24 * 3600
	return func(ctx context.Context, c *app.RequestContext) {
		raw := string(c.Cookie(cookieName))
		id, err := uuid.FromString(raw)
		if raw == "" || err != nil || id.IsNil() {
			id, err = uuid.NewV4()
			if err != nil {
				glog.CtxErrorf(ctx, "生成客户端ID失败: %v", err)
				c.AbortWithStatusJSON(consts.StatusInternalServerError, ErrorResponse{Error: "无法生成客户端标识", Kind: "internal"})
				return
			}
			c.SetCookie(cookieName, id.String(), maxAge, "/", "", protocol.CookieSameSiteLaxMode, false, true)
		}
		c.Set(ClientIDKey, id.String())
		c.Next(ctx)
	}
}

// AccessLog 请求日志
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		glog.CtxInfof(ctx, "%s %s -> %d (%s)", string(c.Method()), string(c.Path()), c.Response.StatusCode(), time.Since(start))
	}
}
