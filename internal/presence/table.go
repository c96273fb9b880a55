// Package presence 维护进程内的在线用户表。
//
// 表只存在于进程生命周期内，重启后为空。同一用户的后一次注册会覆盖前一次（后写者胜），
// 一个连接句柄任意时刻最多对应一个用户，反之亦然。
package presence

import (
	"sort"
	"sync"
	"time"

	"chatrelay/internal/connection"
	"chatrelay/internal/constants"
)

// Profile 注册时的用户资料
type Profile struct {
	Username string
	Avatar   string
}

// Entry 在线记录
type Entry struct {
	UserID      string
	Profile     Profile
	Conn        connection.Connection
	Status      string
	ConnectedAt time.Time
	LastSeen    time.Time // 仅在移除时设置
}

// Mirror 接收在线状态变化，调用发生在表锁内，实现必须非阻塞
type Mirror interface {
	MarkOnline(entry Entry)
	MarkOffline(entry Entry)
}

// Table 并发安全的在线用户表
type Table struct {
	mu       sync.RWMutex
	byUser   map[string]*Entry
	byHandle map[string]string // 连接句柄 -> 用户ID
	lastSeen map[string]time.Time
	mirror   Mirror
	now      func() time.Time
}

// NewTable 创建在线表，mirror 可以为 nil
func NewTable(mirror Mirror) *Table {
	return &Table{
		byUser:   make(map[string]*Entry),
		byHandle: make(map[string]string),
		lastSeen: make(map[string]time.Time),
		mirror:   mirror,
		now:      time.Now,
	}
}

// Register 插入或覆盖用户的在线记录
//
// 句柄此前绑定了其他用户时，该用户随之离线，displaced 返回其被移除的记录，否则为 nil。
// 同一用户被新句柄取代不算离线，不会返回 displaced。
func (t *Table) Register(userID string, conn connection.Connection, profile Profile) (entry Entry, displaced *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prevUser, ok := t.byHandle[conn.ID()]; ok && prevUser != userID {
		if e, ok := t.byUser[prevUser]; ok && e.Conn.ID() == conn.ID() {
			removed := t.removeLocked(e)
			displaced = &removed
		}
	}

	// 同一用户的旧连接被取代
	if prev, ok := t.byUser[userID]; ok {
		delete(t.byHandle, prev.Conn.ID())
	}

	e := &Entry{
		UserID:      userID,
		Profile:     profile,
		Conn:        conn,
		Status:      constants.UserStatusOnline,
		ConnectedAt: t.now(),
	}
	t.byUser[userID] = e
	t.byHandle[conn.ID()] = userID
	delete(t.lastSeen, userID)

	if t.mirror != nil {
		t.mirror.MarkOnline(*e)
	}
	return *e, displaced
}

// Unregister 按连接句柄移除记录；句柄未知时返回 false
func (t *Table) Unregister(conn connection.Connection) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	userID, ok := t.byHandle[conn.ID()]
	if !ok {
		return Entry{}, false
	}
	e, ok := t.byUser[userID]
	if !ok || e.Conn.ID() != conn.ID() {
		delete(t.byHandle, conn.ID())
		return Entry{}, false
	}
	return t.removeLocked(e), true
}

func (t *Table) removeLocked(e *Entry) Entry {
	delete(t.byUser, e.UserID)
	delete(t.byHandle, e.Conn.ID())

	removed := *e
	removed.Status = constants.UserStatusOffline
	removed.LastSeen = t.now()
	t.lastSeen[e.UserID] = removed.LastSeen

	if t.mirror != nil {
		t.mirror.MarkOffline(removed)
	}
	return removed
}

// Lookup 获取用户当前的连接
func (t *Table) Lookup(userID string) (connection.Connection, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.byUser[userID]
	if !ok {
		return nil, false
	}
	return e.Conn, true
}

// IsOnline 检查用户是否在线
func (t *Table) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byUser[userID]
	return ok
}

// LastSeen 获取用户在本进程内最后一次离线的时间
func (t *Table) LastSeen(userID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ts, ok := t.lastSeen[userID]
	return ts, ok
}

// Snapshot 返回调用时刻的在线记录，按连接时间排序
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	entries := make([]Entry, 0, len(t.byUser))
	for _, e := range t.byUser {
		entries = append(entries, *e)
	}
	t.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ConnectedAt.Equal(entries[j].ConnectedAt) {
			return entries[i].UserID < entries[j].UserID
		}
		return entries[i].ConnectedAt.Before(entries[j].ConnectedAt)
	})
	return entries
}

// Len 在线用户数
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byUser)
}
