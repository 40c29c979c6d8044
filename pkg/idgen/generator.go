// Package idgen 生成图形验证码的请求ID
package idgen

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidID 无效的请求ID
	ErrInvalidID = errors.New("invalid id: not a canonical uuid")
)

// Generator 请求ID生成器接口
// 图形验证码的每次刷新都需要一个新的一次性ID，服务端用它关联验证码文本
type Generator interface {
	// NextID 生成下一个唯一ID（线程安全）
	NextID() string
}

// GeneratorFunc 函数适配器，方便在测试中注入确定的ID序列
type GeneratorFunc func() string

// NextID 实现 Generator 接口
func (f GeneratorFunc) NextID() string {
	return f()
}

// UUIDGenerator 基于 github.com/google/uuid 的随机 UUID 生成器
type UUIDGenerator struct{}

// NextID 实现 Generator 接口
func (UUIDGenerator) NextID() string {
	return uuid.NewString()
}

// Validate 校验ID是否为标准格式的 UUID（小写、无括号）
func Validate(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	if parsed.String() != id {
		return fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	return nil
}
