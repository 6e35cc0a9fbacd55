package chat

import (
	"context"
	"net/http"
	"time"

	"FreightLink/logger"
	midsec "FreightLink/middleware/security"
	errs "FreightLink/tools/errs"
	ids "FreightLink/tools/ids"
	sec "FreightLink/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ===== websocket 接入 =====

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// 移动端与网页端同源策略各异，来源校验交给接入层
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS 握手入口：先验 token 再升级，验不过直接 401，不建连接。
func (s *Server) HandleWS(c *gin.Context) {
	token := midsec.ExtractToken(c, true)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			gin.H{"code": errs.ErrAuthentication.Code, "msg": "missing token"})
		return
	}
	claims, err := sec.Verify(s.auth, token)
	if err != nil {
		logger.Warn("ws auth failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			gin.H{"code": errs.ErrAuthentication.Code, "msg": errs.ErrAuthentication.Msg})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(ids.GenerateString(), claims.UserID(), ws, s.conf.SendQueueSize, s.clock())
	s.conns.Add(client)

	// Redis 登记失败不致命，降级为仅本节点可见
	regCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if _, err := s.reg.CreateConnection(regCtx, client.UserID, client.SocketID); err != nil {
		logger.Warn("register connection failed",
			zap.String("socketId", client.SocketID), zap.Error(err))
	}
	cancel()

	logger.Info("client connected",
		zap.String("socketId", client.SocketID),
		zap.String("userId", client.UserID))

	go s.writePump(client)
	s.readPump(client)
}

// readPump 连接独占的读循环，退出即触发断开收尾。
func (s *Server) readPump(c *Client) {
	defer s.handleDisconnect(c)

	c.WS.SetReadLimit(maxFrame)
	_ = c.WS.SetReadDeadline(time.Now().Add(pongWait))
	c.WS.SetPongHandler(func(string) error {
		_ = c.WS.SetReadDeadline(time.Now().Add(pongWait))
		hbCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := s.reg.UpdateHeartbeat(hbCtx, c.SocketID); err != nil {
			logger.Warn("heartbeat refresh failed",
				zap.String("socketId", c.SocketID), zap.Error(err))
		}
		return nil
	})

	hctx := &HandlerContext{Srv: s}
	for {
		_, raw, err := c.WS.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("ws read error",
					zap.String("socketId", c.SocketID), zap.Error(err))
			}
			return
		}
		frame, err := ParseFrameJSON(raw)
		if err != nil {
			c.Enqueue(BuildErrorEvent("malformed frame"))
			continue
		}
		s.disp.Dispatch(hctx, frame, c)
	}
}

// writePump 连接独占的写泵，Send 关闭或写失败即收摊。
func (s *Server) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.WS.Close()
	}()

	for {
		select {
		case payload, ok := <-c.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.WS.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
