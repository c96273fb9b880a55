package chat

import (
	"context"
	"log"

	"chatrelay/internal/errs"
	"chatrelay/internal/model"

	"gorm.io/gorm"
)

// MessageService 单聊消息存储
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// SaveMessage 保存一条消息到数据库
func (s *MessageService) SaveMessage(ctx context.Context, message *model.Message) error {
	if err := s.db.WithContext(ctx).Create(message).Error; err != nil {
		return errs.Store("SaveMessage", err)
	}

	log.Printf("消息已保存: ID=%s, 发送者=%s, 接收者=%s, 类型=%s",
		message.ID, message.SenderID, message.ReceiverID, message.Type)
	return nil
}

// GetMessagesForUser 获取用户收到的消息，按时间升序
func (s *MessageService) GetMessagesForUser(ctx context.Context, userID string) ([]model.Message, error) {
	var messages []model.Message
	err := s.db.WithContext(ctx).
		Where("receiver_id = ?", userID).
		Order("sent_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, errs.Store("GetMessagesForUser", err)
	}
	return messages, nil
}

// GetMessagesForConversation 获取两个用户之间的双向消息，按时间升序
func (s *MessageService) GetMessagesForConversation(ctx context.Context, userA, userB string) ([]model.Message, error) {
	var messages []model.Message
	err := s.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("sent_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, errs.Store("GetMessagesForConversation", err)
	}
	return messages, nil
}

// MarkConversationRead 将 peer 发给 reader 的消息标记为已读，返回更新条数
func (s *MessageService) MarkConversationRead(ctx context.Context, readerID, peerID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", readerID, peerID, false).
		Update("is_read", true)
	if result.Error != nil {
		return 0, errs.Store("MarkConversationRead", result.Error)
	}
	return result.RowsAffected, nil
}
