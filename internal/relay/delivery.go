package relay

import (
	"log"

	"chatrelay/internal/connection"
	"chatrelay/internal/protocol"
)

// Delivery 推送事件到实时连接。
//
// 当前实现是尽力而为：没有确认、重试或背压，失败只记录日志。
// 需要重试或限流时替换实现即可，调用方不变。
type Delivery interface {
	Deliver(conn connection.Connection, evt *protocol.Event) bool
}

// BestEffort 直接调用 Connection.Push
type BestEffort struct{}

func (BestEffort) Deliver(conn connection.Connection, evt *protocol.Event) bool {
	if err := conn.Push(evt); err != nil {
		log.Printf("推送事件 %s 到连接 %s (用户 %s) 失败: %v", evt.Name, conn.ID(), conn.UserID(), err)
		return false
	}
	return true
}
