package model

import (
	"time"

	"gorm.io/gorm"
)

// User 用户模型
type User struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Username    string    `gorm:"type:varchar(50);not null" json:"username"`
	UsernameKey string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"-"` // 小写用户名，保证大小写不敏感唯一
	Avatar      string    `gorm:"type:varchar(255);default:''" json:"avatar"`
	Password    string    `gorm:"type:varchar(100);not null" json:"-"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// Message 单聊消息，时间戳为毫秒
type Message struct {
	ID         string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	SenderID   string `gorm:"type:varchar(64);not null;index:idx_message_pair" json:"senderId"`
	ReceiverID string `gorm:"type:varchar(64);not null;index:idx_message_pair;index:idx_message_inbox" json:"receiverId"`
	Content    string `gorm:"type:text;not null" json:"content"`
	Type       string `gorm:"type:varchar(10);not null;default:'text'" json:"type"` // text/image/file
	Timestamp  int64  `gorm:"column:sent_at;not null;index:idx_message_inbox" json:"timestamp"`
	IsRead     bool   `gorm:"not null;default:false" json:"isRead"`
}

// FriendRequest 好友请求，状态只允许从 pending 变更一次
type FriendRequest struct {
	ID         string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	FromUserID string `gorm:"type:varchar(64);not null;index" json:"fromUserId"`
	ToUserID   string `gorm:"type:varchar(64);not null;index" json:"toUserId"`
	Status     string `gorm:"type:varchar(10);not null;default:'pending'" json:"status"` // pending/accepted/rejected
	Timestamp  int64  `gorm:"column:requested_at;not null" json:"timestamp"`

	FromUser *User `gorm:"foreignKey:FromUserID" json:"fromUser,omitempty"`
	ToUser   *User `gorm:"foreignKey:ToUserID" json:"toUser,omitempty"`
}

// Friendship 好友关系，每对好友存两条有向记录
type Friendship struct {
	UserID    string `gorm:"primaryKey;type:varchar(64)"`
	FriendID  string `gorm:"primaryKey;type:varchar(64)"`
	CreatedAt time.Time
}

// TableName 指定表名
func (Friendship) TableName() string {
	return "friends"
}

// SetupDatabase 初始化数据库表结构
func SetupDatabase(db *gorm.DB) error {
	// 自动迁移表结构
	return db.AutoMigrate(
		&User{},
		&Message{},
		&FriendRequest{},
		&Friendship{},
	)
}
