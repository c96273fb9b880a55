package constants

// 用户状态常量
const (
	UserStatusOnline  = "online"  // 用户在线
	UserStatusOffline = "offline" // 用户离线
)

// 消息类型常量
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// 好友请求状态常量
const (
	FriendRequestPending  = "pending"  // 待确认
	FriendRequestAccepted = "accepted" // 已接受
	FriendRequestRejected = "rejected" // 已拒绝
)

// 实时事件名称
const (
	EventUserLogin      = "user:login"
	EventUserConnect    = "user:connect"
	EventUserDisconnect = "user:disconnect"
	EventUserTyping     = "user:typing"
	EventMessageSend    = "message:send"
	EventMessageReceive = "message:receive"
	EventMessageSent    = "message:sent"
	EventFriendRequest  = "friend:request"
	EventFriendResponse = "friend:response"
)

// ID 前缀
const (
	UserIDPrefix          = "user_"
	FriendRequestIDPrefix = "req_"
)

// 时间常量
const (
	StatusExpirationTime = 600 // 10分钟，单位秒
)

// Redis键前缀
const (
	RedisKeyUserStatus   = "user:%s:status"
	RedisKeyUserLastSeen = "user:%s:last_seen"
	RedisKeyOnlineUsers  = "online_users"
)

// 错误信息
const (
	ErrInvalidParams     = "参数无效"
	ErrUnauthorized      = "未授权"
	ErrPasswordIncorrect = "用户名或密码不正确"
	ErrUsernameRequired  = "用户名必填"
	ErrPasswordRequired  = "密码必填"
	ErrInternal          = "服务器内部错误"
)
