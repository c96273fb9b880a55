package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestLogger API请求日志中间件，为每个请求分配请求ID
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.New().String()
		c.Set("requestID", requestID)
		c.Header("X-Request-ID", requestID)

		startTime := time.Now()
		c.Next()

		log.Printf("[%s] 请求: %s %s, 状态: %d, 延迟: %s",
			requestID, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(startTime))
		if len(c.Errors) > 0 {
			log.Printf("[%s] 错误: %s", requestID, c.Errors.String())
		}
	}
}
