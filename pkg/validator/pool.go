package validator

import (
	"sync"
)

// ============================================================================
// 对象池优化 - 减少内存分配和 GC 压力
// ============================================================================

// maxPooledErrors 归还对象池时允许保留的错误列表容量上限
const maxPooledErrors = 64

// validationContextPool ValidationContext 对象池
// 表单每次输入都会触发验证，复用上下文减少频繁的小对象分配
var validationContextPool = sync.Pool{
	New: func() any {
		return &ValidationContext{
			Errors: make([]*FieldError, 0, 8), // 注册表单字段不多，预分配8个错误容量
		}
	},
}

// acquireValidationContext 从对象池获取 ValidationContext
// 使用后必须调用 releaseValidationContext 归还
func acquireValidationContext(scene ValidateScene) *ValidationContext {
	ctx := validationContextPool.Get().(*ValidationContext)
	ctx.Scene = scene
	ctx.Message = ""
	ctx.Errors = ctx.Errors[:0] // 清空错误列表，保留底层数组
	return ctx
}

// releaseValidationContext 将 ValidationContext 归还到对象池
// 归还后不能再访问 ctx.Errors 中的内容
func releaseValidationContext(ctx *ValidationContext) {
	if ctx == nil {
		return
	}

	// 防止内存泄漏：容量过大时重新分配
	if cap(ctx.Errors) > maxPooledErrors {
		ctx.Errors = make([]*FieldError, 0, 8)
	} else {
		for i := range ctx.Errors {
			ctx.Errors[i] = nil
		}
		ctx.Errors = ctx.Errors[:0]
	}

	ctx.Scene = SceneNone
	ctx.Message = ""

	validationContextPool.Put(ctx)
}
