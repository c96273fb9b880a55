package connection

import (
	"log"
	"sync"
	"time"

	"chatrelay/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocketConnection 实现 WebSocket 连接
type WebSocketConnection struct {
	id      string
	conn    *websocket.Conn
	encoder protocol.EventEncoder
	opts    Options
	send    chan *protocol.Event
	done    chan struct{}

	closeOnce sync.Once
	mu        sync.RWMutex
	userID    string
}

// NewWebSocketConnection 创建新的 WebSocket 连接
func NewWebSocketConnection(conn *websocket.Conn, encoder protocol.EventEncoder, opts Options) *WebSocketConnection {
	opts = opts.withDefaults()
	return &WebSocketConnection{
		id:      uuid.New().String(),
		conn:    conn,
		encoder: encoder,
		opts:    opts,
		send:    make(chan *protocol.Event, opts.SendBuffer),
		done:    make(chan struct{}),
	}
}

// ID 获取连接句柄
func (c *WebSocketConnection) ID() string {
	return c.id
}

// UserID 获取绑定的用户 ID
func (c *WebSocketConnection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// BindUser 绑定用户 ID
func (c *WebSocketConnection) BindUser(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

// Push 非阻塞地把事件放入发送队列
func (c *WebSocketConnection) Push(evt *protocol.Event) error {
	// 检查连接是否已关闭
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- evt:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrConnectionBufferFull
	}
}

// Close 关闭 WebSocket 连接，可重复调用
func (c *WebSocketConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Done 获取完成通道
func (c *WebSocketConnection) Done() <-chan struct{} {
	return c.done
}

// StartReading 开始从WebSocket读取事件，阻塞直到连接断开
func (c *WebSocketConnection) StartReading(handler func(*protocol.Event)) {
	defer c.Close()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("连接 %s 读取错误: %v", c.id, err)
			}
			return
		}

		evt, err := c.encoder.Decode(data)
		if err != nil {
			log.Printf("连接 %s 收到无法解析的事件: %v", c.id, err)
			continue
		}
		handler(evt)
	}
}

// StartWriting 开始向WebSocket写入事件，连接关闭时返回
func (c *WebSocketConnection) StartWriting() {
	ticker := time.NewTicker(c.opts.PingPeriod())
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case evt := <-c.send:
			data, err := c.encoder.Encode(evt)
			if err != nil {
				log.Printf("连接 %s 编码事件 %s 失败: %v", c.id, evt.Name, err)
				continue
			}

			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("连接 %s 写入失败: %v", c.id, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
