// Package errs 定义中继核心的错误分类。
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth 登录凭证不匹配
	ErrAuth = errors.New("用户名或密码不正确")
	// ErrNotFound 引用的用户或请求不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrRequestResolved 好友请求已经处于终态
	ErrRequestResolved = errors.New("好友请求已处理")
	// ErrInvalidEvent 实时事件缺少必要字段
	ErrInvalidEvent = errors.New("无效的事件")
)

// StoreError 表示持久化读写失败
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("存储操作 %s 失败: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Store 将 err 包装为 StoreError，nil 原样返回
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}

// IsStore 判断是否为存储错误
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
