package register

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"katydid-register/pkg/api"
	"katydid-register/pkg/types"
)

var (
	// ErrSMSInFlight 短信验证码请求或冷却进行中，本次调用被忽略
	ErrSMSInFlight = errors.New("register: sms code request in flight")
	// ErrInvalidInput 手机号或图形验证码格式错误，未发送请求
	ErrInvalidInput = errors.New("register: mobile or image code invalid")
	// ErrSMSRejected 后端拒绝发送短信验证码
	ErrSMSRejected = errors.New("register: sms code rejected")
)

// RejectedError 后端拒绝发送短信验证码的详情
type RejectedError struct {
	Code    api.ResponseCode
	Message string
	// Field 被标记为无效的字段：图形验证码或短信验证码
	Field types.Field
}

// Error 实现 error 接口
func (e *RejectedError) Error() string {
	return fmt.Sprintf("register: sms code rejected (code %s): %s", e.Code, e.Message)
}

// Unwrap 使 errors.Is(err, ErrSMSRejected) 成立
func (e *RejectedError) Unwrap() error {
	return ErrSMSRejected
}

// GenerateImageCode 生成新的图形验证码请求ID与图片地址，旧的图形验证码随之作废
func (f *Form) GenerateImageCode() {
	f.mu.Lock()
	f.generateImageCodeLocked()
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.publish(snap)
}

func (f *Form) generateImageCodeLocked() {
	f.imageID = f.ids.NextID()
	f.imageURL = f.backend.ImageCodeURL(f.imageID)
}

// SendSMSCode 请求发送短信验证码
//
// 同一时间只允许一个请求：请求或冷却进行中时直接返回 ErrSMSInFlight，不改变任何状态。
// 发送前校验手机号与图形验证码，任一无效则返回 ErrInvalidInput。
// 发送成功后开始冷却倒计时，倒计时结束时恢复按钮文字并刷新图形验证码。
// 后端拒绝时返回 *RejectedError：4001 标记图形验证码无效，其他错误码标记短信验证码无效。
// 网络错误只记录日志并返回包装后的错误。
func (f *Form) SendSMSCode(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.sending {
		f.mu.Unlock()
		return ErrSMSInFlight
	}
	f.sending = true
	f.mu.Unlock()

	required := types.Field(SceneSMS)
	if passed := f.check(required); passed != required {
		f.finishSending()
		return ErrInvalidInput
	}

	f.mu.Lock()
	mobile, imageCode, imageID := f.values.Mobile, f.values.ImageCode, f.imageID
	f.mu.Unlock()

	resp, err := f.backend.SendSMSCode(ctx, mobile, imageCode, imageID)
	if err != nil {
		f.logger.Warn("send sms code failed",
			zap.String("mobile", mobile),
			zap.Error(err))
		f.finishSending()
		return fmt.Errorf("register: send sms code: %w", err)
	}

	if resp.OK() {
		return f.startCooldown(mobile)
	}

	rejected := &RejectedError{Code: resp.Code, Message: resp.ErrMsg, Field: types.FieldSmsCode}
	if resp.Code == api.CodeImageCodeError {
		rejected.Field = types.FieldImageCode
	}
	f.logger.Info("sms code rejected",
		zap.String("mobile", mobile),
		zap.String("code", string(resp.Code)),
		zap.String("errmsg", resp.ErrMsg))

	f.mu.Lock()
	f.setErrorLocked(rejected.Field, true, resp.ErrMsg)
	f.sending = false
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.publish(snap)
	return rejected
}

// startCooldown 短信发送成功后开始冷却倒计时
func (f *Form) startCooldown(mobile string) error {
	f.mu.Lock()
	if f.closed {
		f.sending = false
		f.mu.Unlock()
		return ErrClosed
	}
	err := f.countdown.Start(f.countdownTotal, f.onCooldownTick, f.onCooldownDone)
	f.mu.Unlock()

	if err != nil {
		f.finishSending()
		return fmt.Errorf("register: start cooldown: %w", err)
	}
	f.logger.Info("sms code sent", zap.String("mobile", mobile), zap.Int("cooldown", f.countdownTotal))
	return nil
}

func (f *Form) onCooldownTick(remaining int) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.smsLabel = fmt.Sprintf("%ds", remaining)
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.publish(snap)
}

func (f *Form) onCooldownDone() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.smsLabel = DefaultSmsCodeLabel
	f.generateImageCodeLocked()
	f.sending = false
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.publish(snap)
}

// finishSending 清除发送标记并通知订阅者
func (f *Form) finishSending() {
	f.mu.Lock()
	f.sending = false
	snap := f.snapshotLocked()
	f.mu.Unlock()

	f.publish(snap)
}
