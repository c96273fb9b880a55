package relay

import (
	"context"
	"errors"
	"fmt"
	"log"

	"chatrelay/internal/connection"
	"chatrelay/internal/constants"
	"chatrelay/internal/errs"
	"chatrelay/internal/model"
	"chatrelay/internal/protocol"

	"github.com/google/uuid"
)

// handleFriendRequest 创建待处理的好友请求并推送给在线的目标用户，发送者不会收到推送
func (r *Relay) handleFriendRequest(ctx context.Context, conn connection.Connection, evt *protocol.Event) error {
	var p protocol.FriendRequestPayload
	if err := r.decode(evt, &p); err != nil {
		return err
	}

	fromID := p.FromUserID
	if fromID == "" {
		fromID = conn.UserID()
	}
	if fromID == "" {
		return fmt.Errorf("%w: 无法确定请求发起人", errs.ErrInvalidEvent)
	}
	if fromID == p.FriendID {
		return fmt.Errorf("%w: 不能添加自己为好友", errs.ErrInvalidEvent)
	}

	fromUser, err := r.users.GetUserByID(ctx, fromID)
	if err != nil {
		return fmt.Errorf("查询发起人 %s: %w", fromID, err)
	}
	toUser, err := r.users.GetUserByID(ctx, p.FriendID)
	if err != nil {
		return fmt.Errorf("查询目标用户 %s: %w", p.FriendID, err)
	}

	req := &model.FriendRequest{
		ID:         constants.FriendRequestIDPrefix + uuid.New().String(),
		FromUserID: fromUser.ID,
		ToUserID:   toUser.ID,
		Status:     constants.FriendRequestPending,
		Timestamp:  r.clock.Next(),
	}
	if err := r.friends.SaveFriendRequest(ctx, req); err != nil {
		log.Printf("保存好友请求 %s 失败，继续投递: %v", req.ID, err)
	}

	view := protocol.FriendRequestView{
		ID:        req.ID,
		FromUser:  r.userView(fromUser),
		ToUser:    r.userView(toUser),
		Status:    req.Status,
		Timestamp: req.Timestamp,
	}
	r.push(toUser.ID, protocol.MustEvent(constants.EventFriendRequest, view))
	return nil
}

// handleFriendResponse 更新请求状态，接受时建立双向好友关系，并分别推送给双方
func (r *Relay) handleFriendResponse(ctx context.Context, evt *protocol.Event) error {
	var p protocol.FriendResponsePayload
	if err := r.decode(evt, &p); err != nil {
		return err
	}

	status := p.Status
	resolved := false

	err := r.friends.UpdateFriendRequestStatus(ctx, p.RequestID, p.Status)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrNotFound):
		return fmt.Errorf("好友请求 %s: %w", p.RequestID, err)
	case errors.Is(err, errs.ErrRequestResolved):
		log.Printf("好友请求 %s 已处理，忽略新的状态 %s", p.RequestID, p.Status)
		resolved = true
	default:
		log.Printf("更新好友请求 %s 状态失败，继续投递: %v", p.RequestID, err)
	}

	req, err := r.friends.GetFriendRequestByID(ctx, p.RequestID)
	if err != nil {
		return fmt.Errorf("读取好友请求 %s: %w", p.RequestID, err)
	}
	if resolved {
		// 已处于终态的请求不再改变，推送存储中的状态
		status = req.Status
	}

	if status == constants.FriendRequestAccepted {
		if err := r.friends.AddBidirectionalFriendship(ctx, req.FromUserID, req.ToUserID); err != nil {
			log.Printf("建立好友关系 %s <-> %s 失败: %v", req.FromUserID, req.ToUserID, err)
		}
	}

	view := protocol.FriendRequestView{
		ID:        req.ID,
		FromUser:  r.userView(req.FromUser),
		ToUser:    r.userView(req.ToUser),
		Status:    status,
		Timestamp: req.Timestamp,
	}
	evtOut := protocol.MustEvent(constants.EventFriendResponse, view)
	r.push(req.FromUserID, evtOut)
	r.push(req.ToUserID, evtOut)
	return nil
}
