package friend

import (
	"context"
	"errors"
	"time"

	"chatrelay/internal/constants"
	"chatrelay/internal/errs"
	"chatrelay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatusAll 查询时不按状态过滤
const StatusAll = "all"

// FriendService 好友请求与好友关系存储
type FriendService struct {
	db *gorm.DB
}

func NewFriendService(db *gorm.DB) *FriendService {
	return &FriendService{db: db}
}

// SaveFriendRequest 按ID插入或更新好友请求
func (s *FriendService) SaveFriendRequest(ctx context.Context, req *model.FriendRequest) error {
	row := model.FriendRequest{
		ID:         req.ID,
		FromUserID: req.FromUserID,
		ToUserID:   req.ToUserID,
		Status:     req.Status,
		Timestamp:  req.Timestamp,
	}
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "requested_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return errs.Store("SaveFriendRequest", err)
	}
	return nil
}

// UpdateFriendRequestStatus 将待处理的请求变更为终态
func (s *FriendService) UpdateFriendRequestStatus(ctx context.Context, id, status string) error {
	result := s.db.WithContext(ctx).
		Model(&model.FriendRequest{}).
		Where("id = ? AND status = ?", id, constants.FriendRequestPending).
		Update("status", status)
	if result.Error != nil {
		return errs.Store("UpdateFriendRequestStatus", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// 没有更新任何行：请求不存在或已处理
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.FriendRequest{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return errs.Store("UpdateFriendRequestStatus", err)
	}
	if count == 0 {
		return errs.ErrNotFound
	}
	return errs.ErrRequestResolved
}

// GetFriendRequestByID 获取好友请求，附带双方用户资料
func (s *FriendService) GetFriendRequestByID(ctx context.Context, id string) (*model.FriendRequest, error) {
	var req model.FriendRequest
	err := s.db.WithContext(ctx).
		Preload("FromUser").
		Preload("ToUser").
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, errs.Store("GetFriendRequestByID", err)
	}
	if req.FromUser == nil || req.ToUser == nil {
		return nil, errs.ErrNotFound
	}
	return &req, nil
}

// GetFriendRequestsForUser 获取用户收到的好友请求，最新的在前
func (s *FriendService) GetFriendRequestsForUser(ctx context.Context, userID, status string) ([]model.FriendRequest, error) {
	tx := s.db.WithContext(ctx).Preload("FromUser").Where("to_user_id = ?", userID)
	if status != "" && status != StatusAll {
		tx = tx.Where("status = ?", status)
	}

	var requests []model.FriendRequest
	if err := tx.Order("requested_at DESC").Find(&requests).Error; err != nil {
		return nil, errs.Store("GetFriendRequestsForUser", err)
	}
	return requests, nil
}

// AddBidirectionalFriendship 添加双向好友关系，重复添加不报错
func (s *FriendService) AddBidirectionalFriendship(ctx context.Context, userA, userB string) error {
	now := time.Now()
	rows := []model.Friendship{
		{UserID: userA, FriendID: userB, CreatedAt: now},
		{UserID: userB, FriendID: userA, CreatedAt: now},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Store("AddBidirectionalFriendship", err)
	}
	return nil
}

// GetFriendsForUser 获取好友列表
func (s *FriendService) GetFriendsForUser(ctx context.Context, userID string) ([]model.User, error) {
	var friends []model.User
	err := s.db.WithContext(ctx).
		Table("users").
		Select("users.*").
		Joins("JOIN friends ON users.id = friends.friend_id").
		Where("friends.user_id = ?", userID).
		Order("users.username_key").
		Find(&friends).Error
	if err != nil {
		return nil, errs.Store("GetFriendsForUser", err)
	}
	return friends, nil
}
