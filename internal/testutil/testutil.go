// Package testutil 测试辅助：临时 sqlite 数据库与内存连接。
package testutil

import (
	"path/filepath"
	"sync"
	"testing"

	"chatrelay/internal/connection"
	"chatrelay/internal/database"
	"chatrelay/internal/protocol"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB 在 t.TempDir() 中创建已迁移的 sqlite 数据库
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "relay.db"), logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// FakeConn 记录推送事件的内存连接
type FakeConn struct {
	id   string
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	userID string
	events []*protocol.Event
	closed bool
}

func NewFakeConn() *FakeConn {
	return &FakeConn{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

func (c *FakeConn) ID() string { return c.id }

func (c *FakeConn) Push(evt *protocol.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return connection.ErrConnectionClosed
	}
	c.events = append(c.events, evt)
	return nil
}

func (c *FakeConn) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *FakeConn) BindUser(userID string) {
	c.mu.Lock()
	c.userID = userID
	c.mu.Unlock()
}

func (c *FakeConn) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
	return nil
}

func (c *FakeConn) Done() <-chan struct{} { return c.done }

// Events 已推送的事件
func (c *FakeConn) Events() []*protocol.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*protocol.Event(nil), c.events...)
}

// Named 按名称过滤已推送的事件
func (c *FakeConn) Named(name string) []*protocol.Event {
	var out []*protocol.Event
	for _, evt := range c.Events() {
		if evt.Name == name {
			out = append(out, evt)
		}
	}
	return out
}

var _ connection.Connection = (*FakeConn)(nil)
