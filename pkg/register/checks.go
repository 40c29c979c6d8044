package register

import (
	"context"

	"go.uber.org/zap"

	"katydid-register/pkg/types"
	"katydid-register/pkg/validator"
)

// CheckUsername 校验用户名格式，格式正确时异步检查是否已注册
func (f *Form) CheckUsername() { f.check(types.FieldUsername) }

// CheckPassword 校验密码格式
func (f *Form) CheckPassword() { f.check(types.FieldPassword) }

// CheckPassword2 校验确认密码与密码一致
func (f *Form) CheckPassword2() { f.check(types.FieldPassword2) }

// CheckMobile 校验手机号格式，格式正确时异步检查是否已注册
func (f *Form) CheckMobile() { f.check(types.FieldMobile) }

// CheckImageCode 校验图形验证码长度
func (f *Form) CheckImageCode() { f.check(types.FieldImageCode) }

// CheckSmsCode 校验短信验证码长度
func (f *Form) CheckSmsCode() { f.check(types.FieldSmsCode) }

// CheckAllow 校验是否勾选用户协议
func (f *Form) CheckAllow() { f.check(types.FieldAllow) }

// check 校验 fields 中的字段并通知订阅者，返回格式正确的字段
// 用户名与手机号格式正确时发起唯一性检查
func (f *Form) check(fields types.Field) types.Field {
	f.mu.Lock()
	passed := f.validateLocked(fields)
	values := f.values
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.publish(snap)

	for _, field := range []types.Field{types.FieldUsername, types.FieldMobile} {
		if passed.Contain(field) {
			f.startUniquenessCheck(field, values.text(field))
		}
	}
	return passed
}

// validateLocked 按字段场景执行本地校验，更新字段状态，返回通过的字段
func (f *Form) validateLocked(fields types.Field) types.Field {
	fields &= types.FieldAll
	reg := registration(f.values)
	errs := f.validator.Validate(&reg, validator.ValidateScene(fields))

	var failed types.Field
	for _, e := range errs {
		if field, ok := types.ParseField(e.Namespace); ok {
			failed.Set(field)
		}
	}
	failed &= fields

	for _, field := range fields.Split() {
		f.setErrorLocked(field, failed.Contain(field), formatMessages[field])
	}
	return fields &^ failed
}

// startUniquenessCheck 异步检查用户名或手机号是否已注册
// 网络错误只记录日志，字段保持原状态
func (f *Form) startUniquenessCheck(field types.Field, value string) {
	if !f.beginPending() {
		return
	}

	go func() {
		defer f.endPending()

		ctx, cancel := context.WithTimeout(f.ctx, f.checkTimeout)
		defer cancel()

		var (
			count int
			err   error
		)
		switch field {
		case types.FieldUsername:
			count, err = f.backend.UsernameCount(ctx, value)
		case types.FieldMobile:
			count, err = f.backend.MobileCount(ctx, value)
		default:
			return
		}

		if err != nil {
			f.logger.Warn("uniqueness check failed",
				zap.String("field", field.Name()),
				zap.String("value", value),
				zap.Error(err))
			return
		}

		f.applyUniqueness(field, value, count)
	}()
}

// applyUniqueness 写入唯一性检查结果
// 检查期间字段值已被修改时丢弃结果，避免旧结果覆盖新输入
func (f *Form) applyUniqueness(field types.Field, value string, count int) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if f.values.text(field) != value {
		f.mu.Unlock()
		f.logger.Debug("stale uniqueness result dropped",
			zap.String("field", field.Name()),
			zap.String("value", value))
		return
	}
	f.setErrorLocked(field, count == 1, existsMessages[field])
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.publish(snap)
}

// beginPending 登记一个进行中的检查，表单已关闭时返回 false
func (f *Form) beginPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if f.pending == 0 {
		f.idle = make(chan struct{})
	}
	f.pending++
	return true
}

func (f *Form) endPending() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending--
	if f.pending == 0 {
		close(f.idle)
	}
}

// Wait 等待所有进行中的唯一性检查结束
func (f *Form) Wait(ctx context.Context) error {
	f.mu.Lock()
	if f.pending == 0 {
		f.mu.Unlock()
		return nil
	}
	idle := f.idle
	f.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
