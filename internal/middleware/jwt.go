package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chatrelay/internal/config"
	"chatrelay/internal/constants"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextUserID 认证通过后写入 gin.Context 的用户ID键
const ContextUserID = "userID"

// JWT 中间件验证 token
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从请求头获取 token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": constants.ErrUnauthorized})
			return
		}

		// 验证 token 格式
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "无效的token格式"})
			return
		}

		userID, err := ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "无效的token"})
			return
		}

		// 将用户ID存储在上下文中
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

// ValidateToken 验证JWT token，返回用户ID
func ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("意外的签名方法: %v", token.Header["alg"])
		}
		return []byte(config.GlobalConfig.JWT.Secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("无效的token")
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("无效的用户ID")
	}
	return userID, nil
}

// GenerateToken 生成 JWT token，有效期取自 jwt.expire（小时）
func GenerateToken(userID string) (string, error) {
	now := time.Now()
	expire := now.Add(time.Duration(config.GlobalConfig.JWT.Expire) * time.Hour)

	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     expire.Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.GlobalConfig.JWT.Secret))
}
