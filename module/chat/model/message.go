package model

import (
	"time"

	"FreightLink/service/mgo"

	"go.mongodb.org/mongo-driver/mongo"
)

const MessageTableName = "message"

// MessageModel 一条聊天消息。创建后除 IsRead 外不可变。
type MessageModel struct {
	ID           string    `bson:"_id" json:"id"`
	FreightJobID string    `bson:"freight_job_id" json:"freightJobId"` // 房间ID（货运单ID）
	SenderID     string    `bson:"sender_id" json:"senderId"`
	Content      string    `bson:"content" json:"messageContent"`
	IsRead       bool      `bson:"is_read" json:"isRead"`
	SentAt       time.Time `bson:"sent_at" json:"sentAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

func (MessageModel) GetTableName() string { return MessageTableName }

func (m MessageModel) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(MessageTableName)
}
