package service

import (
	"context"
	"net/http"
	"strconv"

	mw "FreightLink/middleware"
	midsec "FreightLink/middleware/security"
	"FreightLink/module/chat/message"
	chatmodel "FreightLink/module/chat/model"
	chatsvc "FreightLink/service/chat"
	"FreightLink/tools/errs"

	"github.com/gin-gonic/gin"
)

// ===== 消息 REST 接口 =====

// MessageReader 消息查询面，Mongo 实现见 module/chat/message。
type MessageReader interface {
	History(ctx context.Context, freightJobID string, page, limit int) ([]*chatmodel.MessageModel, int64, error)
	MarkRead(ctx context.Context, messageID string) error
}

// MessageAPI 历史消息与已读回执的 HTTP 面。
type MessageAPI struct {
	store MessageReader
	auth  *midsec.Options
}

func NewMessageAPI(store MessageReader, auth *midsec.Options) *MessageAPI {
	return &MessageAPI{store: store, auth: auth}
}

// RegisterRoutes 挂载 /api/messages 路由组，全部走 JWT 鉴权。
func (a *MessageAPI) RegisterRoutes(r gin.IRoutes) {
	opt := mw.RouteOpt{IsAuth: true, Auth: a.auth}
	mw.GET(r, "/api/messages/:freightJobId", a.history, opt)
	mw.POST(r, "/api/messages/:id/read", a.markRead, opt)
}

// history GET /api/messages/:freightJobId?page=&limit=
// 按 sentAt 升序翻页返回房间历史。
func (a *MessageAPI) history(c *gin.Context) {
	freightJobID := c.Param("freightJobId")
	if err := chatsvc.ValidateFreightJobID(freightJobID); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	// 先归一化再回显，响应里的 page/limit 就是实际服务的那一页
	page, limit = message.NormalizePage(page, limit)

	items, total, err := a.store.History(c.Request.Context(), freightJobID, page, limit)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"page":  page,
		"limit": limit,
		"total": total,
	})
}

// markRead POST /api/messages/:id/read
func (a *MessageAPI) markRead(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		abortWithError(c, http.StatusBadRequest, errs.ErrValidation.WrapMsg("missing message id"))
		return
	}
	if err := a.store.MarkRead(c.Request.Context(), id); err != nil {
		status := http.StatusInternalServerError
		if errs.IsCode(err, errs.ErrValidation.Code) {
			status = http.StatusNotFound
		}
		abortWithError(c, status, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func abortWithError(c *gin.Context, status int, err error) {
	if ce, ok := errs.Unwrap(err); ok {
		c.AbortWithStatusJSON(status, gin.H{"code": ce.Code, "msg": ce.Msg})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"code": errs.ErrInternal.Code, "msg": errs.ErrInternal.Msg})
}
