package register

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"katydid-register/pkg/types"
)

// ErrFormInvalid 存在无效字段，提交被拦截
var ErrFormInvalid = errors.New("register: form has invalid fields")

// InvalidError 提交被拦截时的无效字段详情
type InvalidError struct {
	Fields   types.Field
	Messages map[types.Field]string
}

// Error 实现 error 接口
func (e *InvalidError) Error() string {
	return fmt.Sprintf("register: form has invalid fields: %s", e.Fields)
}

// Unwrap 使 errors.Is(err, ErrFormInvalid) 成立
func (e *InvalidError) Unwrap() error {
	return ErrFormInvalid
}

// Validate 提交门禁
//
// 重新校验所有字段（用户名与手机号格式正确时同时发起唯一性检查），
// 等待所有进行中的唯一性检查结束后再判断：全部有效返回 nil，否则返回 *InvalidError。
// ctx 结束时返回 ctx.Err()，此时不能认为表单有效。
func (f *Form) Validate(ctx context.Context) error {
	f.check(types.Field(SceneSubmit))

	if err := f.Wait(ctx); err != nil {
		return fmt.Errorf("register: wait for uniqueness checks: %w", err)
	}

	snap := f.Snapshot()
	if snap.CanSubmit() {
		return nil
	}
	return &InvalidError{Fields: snap.Invalid, Messages: snap.Messages}
}

// Submit 通过提交门禁后将表单提交给后端
func (f *Form) Submit(ctx context.Context) error {
	if err := f.Validate(ctx); err != nil {
		f.logger.Info("registration blocked", zap.Error(err))
		return err
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	values := f.values
	f.mu.Unlock()

	if err := f.backend.Submit(ctx, values.FormValues()); err != nil {
		f.logger.Warn("registration submit failed", zap.String("username", values.Username), zap.Error(err))
		return fmt.Errorf("register: submit: %w", err)
	}

	f.logger.Info("registration submitted", zap.String("username", values.Username))
	return nil
}
