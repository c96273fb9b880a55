package relay

import (
	"context"
	"log"

	"chatrelay/internal/connection"
	"chatrelay/internal/constants"
	"chatrelay/internal/model"
	"chatrelay/internal/protocol"

	"github.com/google/uuid"
)

// handleMessageSend 保存消息，推送给在线的接收者，并回显给发送者
func (r *Relay) handleMessageSend(ctx context.Context, conn connection.Connection, evt *protocol.Event) error {
	var p protocol.MessageSendPayload
	if err := r.decode(evt, &p); err != nil {
		return err
	}

	msg := &model.Message{
		ID:         p.ID,
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		Content:    p.Content,
		Type:       p.Type,
		Timestamp:  r.clock.Next(),
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Type == "" {
		msg.Type = constants.MessageTypeText
	}

	if err := r.messages.SaveMessage(ctx, msg); err != nil {
		log.Printf("保存消息 %s 失败，继续投递: %v", msg.ID, err)
	}

	if r.push(msg.ReceiverID, protocol.MustEvent(constants.EventMessageReceive, msg)) {
		log.Printf("消息 %s 已推送给用户 %s", msg.ID, msg.ReceiverID)
	}

	// 发送者仍在线时回显到当前连接
	if r.presence.IsOnline(msg.SenderID) {
		r.delivery.Deliver(conn, protocol.MustEvent(constants.EventMessageSent, msg))
	}
	return nil
}

// handleTyping 输入状态只转发给在线的接收者，不持久化
func (r *Relay) handleTyping(conn connection.Connection, evt *protocol.Event) error {
	var p protocol.TypingPayload
	if err := r.decode(evt, &p); err != nil {
		return err
	}
	if p.UserID == "" {
		p.UserID = conn.UserID()
	}

	r.push(p.ReceiverID, protocol.MustEvent(constants.EventUserTyping, protocol.TypingNotice{
		UserID:   p.UserID,
		ChatID:   p.ChatID,
		IsTyping: p.IsTyping,
	}))
	return nil
}
