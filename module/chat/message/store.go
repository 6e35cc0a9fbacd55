package message

import (
	"context"
	"time"

	chatmodel "FreightLink/module/chat/model"
	"FreightLink/tools/errs"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store 消息落库与查询（网关只做 create / read）。
type Store struct {
	MsgColl *mongo.Collection
}

func NewStore() *Store {
	msg := chatmodel.MessageModel{}
	return &Store{MsgColl: msg.Collection()}
}

// Create inserts a new message; the store assigns id and sentAt.
func (s *Store) Create(ctx context.Context, freightJobID, senderID, content string) (*chatmodel.MessageModel, error) {
	now := time.Now().UTC()
	m := &chatmodel.MessageModel{
		ID:           uuid.NewString(),
		FreightJobID: freightJobID,
		SenderID:     senderID,
		Content:      content,
		IsRead:       false,
		SentAt:       now,
		UpdatedAt:    now,
	}
	if _, err := s.MsgColl.InsertOne(ctx, m); err != nil {
		return nil, errs.WrapMsg(err, "insert message", "job", freightJobID, "sender", senderID)
	}
	return m, nil
}

// NormalizePage clamps paging params to their effective values; callers echo
// the result so clients see the page actually served.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// History returns one page of a room's messages ordered oldest-first,
// plus the total count for pagination metadata.
func (s *Store) History(ctx context.Context, freightJobID string, page, limit int) ([]*chatmodel.MessageModel, int64, error) {
	page, limit = NormalizePage(page, limit)
	filter := bson.M{"freight_job_id": freightJobID}

	total, err := s.MsgColl.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errs.WrapMsg(err, "count messages", "job", freightJobID)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: 1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := s.MsgColl.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, errs.WrapMsg(err, "find messages", "job", freightJobID)
	}
	defer cur.Close(ctx)

	out := make([]*chatmodel.MessageModel, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, errs.WrapMsg(err, "decode messages", "job", freightJobID)
	}
	return out, total, nil
}

// MarkRead flips the isRead flag, the model's only mutable field.
func (s *Store) MarkRead(ctx context.Context, messageID string) error {
	res, err := s.MsgColl.UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{"$set": bson.M{"is_read": true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return errs.WrapMsg(err, "mark read", "id", messageID)
	}
	if res.MatchedCount == 0 {
		return errs.ErrValidation.WrapMsg("message not found", "id", messageID)
	}
	return nil
}
