package ws

import (
	"context"
	"log"

	"chatrelay/internal/connection"
	"chatrelay/internal/protocol"
	"chatrelay/internal/relay"
)

type broadcast struct {
	evt    *protocol.Event
	except string // 不接收广播的连接句柄
}

// Hub 负责管理所有实时连接并广播事件
//
// 与在线表不同，Hub 包含尚未绑定用户的连接，以及被同一用户新连接取代的旧连接。
type Hub struct {
	// 已注册的连接，按连接句柄索引
	clients map[string]connection.Connection

	// 连接注册请求
	register chan connection.Connection

	// 连接取消注册请求
	unregister chan connection.Connection

	// 广播请求
	broadcast chan broadcast

	// 关闭所有连接的请求，处理完成后关闭传入的通道
	closeAll chan chan struct{}

	delivery relay.Delivery
	stopped  chan struct{}
}

// NewHub 创建一个新的Hub实例
func NewHub(delivery relay.Delivery) *Hub {
	if delivery == nil {
		delivery = relay.BestEffort{}
	}
	return &Hub{
		clients:    make(map[string]connection.Connection),
		register:   make(chan connection.Connection),
		unregister: make(chan connection.Connection),
		broadcast:  make(chan broadcast, 256),
		closeAll:   make(chan chan struct{}),
		delivery:   delivery,
		stopped:    make(chan struct{}),
	}
}

// Run 开始Hub的事件处理循环，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-h.register:
			h.clients[conn.ID()] = conn
			log.Printf("连接已加入: %s (共 %d 个)", conn.ID(), len(h.clients))
		case conn := <-h.unregister:
			if _, ok := h.clients[conn.ID()]; ok {
				delete(h.clients, conn.ID())
				log.Printf("连接已移除: %s (剩余 %d 个)", conn.ID(), len(h.clients))
			}
		case b := <-h.broadcast:
			for id, conn := range h.clients {
				if id == b.except {
					continue
				}
				h.delivery.Deliver(conn, b.evt)
			}
		case done := <-h.closeAll:
			for id, conn := range h.clients {
				if err := conn.Close(); err != nil {
					log.Printf("关闭连接 %s 失败: %v", id, err)
				}
			}
			log.Printf("已关闭 %d 个连接", len(h.clients))
			close(done)
		}
	}
}

// Add 注册连接
func (h *Hub) Add(conn connection.Connection) {
	select {
	case h.register <- conn:
	case <-h.stopped:
	}
}

// Remove 取消注册连接
func (h *Hub) Remove(conn connection.Connection) {
	select {
	case h.unregister <- conn:
	case <-h.stopped:
	}
}

// Broadcast 把事件推送给除 except 之外的所有连接，except 可以为 nil
func (h *Hub) Broadcast(evt *protocol.Event, except connection.Connection) {
	b := broadcast{evt: evt}
	if except != nil {
		b.except = except.ID()
	}
	select {
	case h.broadcast <- b:
	case <-h.stopped:
	}
}

// CloseAll 关闭所有已注册的连接并等待完成；连接随后通过 Remove 自行注销
func (h *Hub) CloseAll() {
	done := make(chan struct{})
	select {
	case h.closeAll <- done:
		<-done
	case <-h.stopped:
	}
}
