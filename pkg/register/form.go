// Package register 实现注册页面的表单模型：字段校验、唯一性检查、图形/短信验证码流程与提交门禁
//
// Form 对应页面上的一次注册会话。用户输入通过 Set* 写入，Check* 触发单个字段的校验，
// 状态变化通过 Subscribe 注册的回调通知界面。Form 的所有方法都可以在多个 goroutine 中并发调用。
package register

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"katydid-register/pkg/api"
	"katydid-register/pkg/countdown"
	"katydid-register/pkg/idgen"
	"katydid-register/pkg/types"
	"katydid-register/pkg/validator"
)

// 默认配置
const (
	DefaultCountdown    = 60
	DefaultTick         = time.Second
	DefaultCheckTimeout = 10 * time.Second
)

var (
	// ErrClosed 表单已关闭
	ErrClosed = errors.New("register: form closed")
)

// Backend 表单依赖的后端接口，*api.Client 实现了该接口
type Backend interface {
	UsernameCount(ctx context.Context, username string) (int, error)
	MobileCount(ctx context.Context, mobile string) (int, error)
	ImageCodeURL(uuid string) string
	SendSMSCode(ctx context.Context, mobile, imageCode, uuid string) (*api.SMSCodeResponse, error)
	Submit(ctx context.Context, form url.Values) error
}

var _ Backend = (*api.Client)(nil)

// Snapshot 表单状态快照
type Snapshot struct {
	Values

	// ImageCodeID 当前图形验证码请求ID
	ImageCodeID string `json:"image_code_id"`
	// ImageCodeURL 当前图形验证码图片地址
	ImageCodeURL string `json:"image_code_url"`
	// SmsCodeLabel 短信验证码按钮文字
	SmsCodeLabel string `json:"sms_code_label"`
	// Sending 短信验证码请求或冷却进行中
	Sending bool `json:"sending"`
	// Invalid 无效字段集合
	Invalid types.Field `json:"invalid"`
	// Messages 无效字段的提示信息
	Messages map[types.Field]string `json:"-"`
}

// Error 返回单个字段的校验状态
func (s Snapshot) Error(field types.Field) types.FieldError {
	if !s.Invalid.Contain(field) {
		return types.FieldError{}
	}
	return types.FieldError{Invalid: true, Message: s.Messages[field]}
}

// CanSubmit 所有字段均有效
func (s Snapshot) CanSubmit() bool {
	return s.Invalid.IsEmpty()
}

// Option 表单配置项
type Option func(*Form)

// WithValidator 使用自定义的校验器
func WithValidator(v *validator.Validator) Option {
	return func(f *Form) {
		if v != nil {
			f.validator = v
		}
	}
}

// WithIDGenerator 使用自定义的图形验证码请求ID生成器
func WithIDGenerator(gen idgen.Generator) Option {
	return func(f *Form) {
		if gen != nil {
			f.ids = gen
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(f *Form) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithCountdown 设置短信冷却时长：total 个 tick
func WithCountdown(total int, tick time.Duration) Option {
	return func(f *Form) {
		if total > 0 {
			f.countdownTotal = total
		}
		if tick > 0 {
			f.tick = tick
		}
	}
}

// WithCheckTimeout 设置唯一性检查的超时时间
func WithCheckTimeout(timeout time.Duration) Option {
	return func(f *Form) {
		if timeout > 0 {
			f.checkTimeout = timeout
		}
	}
}

// Form 注册表单
type Form struct {
	backend        Backend
	validator      *validator.Validator
	ids            idgen.Generator
	logger         *zap.Logger
	countdown      *countdown.Countdown
	countdownTotal int
	tick           time.Duration
	checkTimeout   time.Duration

	// ctx 表单生命周期，Close 时取消，进行中的唯一性检查随之结束
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	values   Values
	imageID  string
	imageURL string
	smsLabel string
	sending  bool
	invalid  types.Field
	messages map[types.Field]string
	closed   bool

	// pending 进行中的唯一性检查数量，idle 在其归零时关闭
	pending int
	idle    chan struct{}

	subMu  sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// New 创建表单并生成第一个图形验证码
// 初始状态与页面一致：未勾选协议视为无效，其余字段有效
func New(backend Backend, opts ...Option) *Form {
	f := &Form{
		backend:        backend,
		validator:      validator.Default(),
		ids:            idgen.UUIDGenerator{},
		logger:         zap.NewNop(),
		countdownTotal: DefaultCountdown,
		tick:           DefaultTick,
		checkTimeout:   DefaultCheckTimeout,
		smsLabel:       DefaultSmsCodeLabel,
		invalid:        types.FieldAllow,
		messages:       make(map[types.Field]string),
		subs:           make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.countdown = countdown.New(f.tick)
	f.ctx, f.cancel = context.WithCancel(context.Background())

	f.GenerateImageCode()
	return f
}

// Subscribe 订阅状态变化，返回取消订阅函数
// 回调在触发变化的 goroutine 中同步执行（可能是调用方、唯一性检查或冷却倒计时的 goroutine），
// 多个 goroutine 可能同时执行同一个回调，回调需要自行同步。
// 执行时不持有表单锁，可以在回调中读取或修改表单，包括调用 Close
func (f *Form) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	f.subMu.Lock()
	defer f.subMu.Unlock()

	id := f.nextID
	f.nextID++
	f.subs[id] = fn

	return func() {
		f.subMu.Lock()
		defer f.subMu.Unlock()
		delete(f.subs, id)
	}
}

// Snapshot 返回当前状态快照
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Close 关闭表单：取消冷却倒计时与进行中的唯一性检查
func (f *Form) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()

	f.cancel()
	// 不等待倒计时 goroutine：Close 可能就在倒计时回调中被调用，
	// 之后到达的回调看到 closed 后不再修改状态
	f.countdown.Cancel()
}

// SetUsername 写入用户名
func (f *Form) SetUsername(s string) { f.update(func(v *Values) { v.Username = s }) }

// SetPassword 写入密码
func (f *Form) SetPassword(s string) { f.update(func(v *Values) { v.Password = s }) }

// SetPassword2 写入确认密码
func (f *Form) SetPassword2(s string) { f.update(func(v *Values) { v.Password2 = s }) }

// SetMobile 写入手机号
func (f *Form) SetMobile(s string) { f.update(func(v *Values) { v.Mobile = s }) }

// SetAllow 勾选或取消勾选用户协议
func (f *Form) SetAllow(b bool) { f.update(func(v *Values) { v.Allow = b }) }

// SetImageCode 写入图形验证码
func (f *Form) SetImageCode(s string) { f.update(func(v *Values) { v.ImageCode = s }) }

// SetSmsCode 写入短信验证码
func (f *Form) SetSmsCode(s string) { f.update(func(v *Values) { v.SmsCode = s }) }

// SetValues 一次写入所有表单值
func (f *Form) SetValues(values Values) { f.update(func(v *Values) { *v = values }) }

func (f *Form) update(fn func(v *Values)) {
	f.mu.Lock()
	fn(&f.values)
	snap := f.snapshotLocked()
	f.mu.Unlock()
	f.publish(snap)
}

// setErrorLocked 设置字段状态，有效时清除提示
func (f *Form) setErrorLocked(field types.Field, invalid bool, message string) {
	f.invalid.Assign(field, invalid)
	if invalid {
		f.messages[field] = message
	} else {
		delete(f.messages, field)
	}
}

func (f *Form) snapshotLocked() Snapshot {
	messages := make(map[types.Field]string, len(f.messages))
	for field, msg := range f.messages {
		messages[field] = msg
	}
	return Snapshot{
		Values:       f.values,
		ImageCodeID:  f.imageID,
		ImageCodeURL: f.imageURL,
		SmsCodeLabel: f.smsLabel,
		Sending:      f.sending,
		Invalid:      f.invalid,
		Messages:     messages,
	}
}

// publish 通知所有订阅者，调用方不能持有 f.mu
func (f *Form) publish(snap Snapshot) {
	f.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
