package user

// LoginRequest 登录请求，用户名不存在时自动注册
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}
