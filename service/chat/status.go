package chat

import (
	"context"
	"encoding/json"

	"FreightLink/logger"
	"FreightLink/service/natsx"
	errs "FreightLink/tools/errs"

	"go.uber.org/zap"
)

// ===== 货运单状态变更接入 =====

// statusUpdateMsg 订单服务发到 NATS 的状态事件体。
type statusUpdateMsg struct {
	FreightJobID string `json:"freightJobId"`
	Status       any    `json:"status"`
}

// SubscribeStatusUpdates 订阅订单侧的状态变更主题，转发进对应房间。
// 同一队列组内多节点分摊消费。
func (s *Server) SubscribeStatusUpdates(nc *natsx.NatsxClient, subject string) error {
	return nc.Subscribe(subject, "freightlink-gateway", func(_ context.Context, m natsx.NatsxMessage) error {
		var msg statusUpdateMsg
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			logger.Warn("bad status update payload",
				zap.String("subject", m.Subject), zap.Error(err))
			return errs.WrapMsg(err, "decode status update")
		}
		if err := ValidateFreightJobID(msg.FreightJobID); err != nil {
			logger.Warn("status update with bad freightJobId",
				zap.String("freightJobId", msg.FreightJobID))
			return err
		}
		s.BroadcastStatusUpdate(msg.FreightJobID, msg.Status)
		return nil
	})
}
