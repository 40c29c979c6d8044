package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field 注册表单字段标识，使用位运算记录多个字段的无效状态
// 空集合(FieldNone)表示所有字段均有效，表单可以提交
type Field int64

// 注册表单字段位
const (
	FieldNone Field = 0 // 无字段

	FieldUsername  Field = 1 << iota // 用户名
	FieldPassword                    // 密码
	FieldPassword2                   // 确认密码
	FieldMobile                      // 手机号
	FieldImageCode                   // 图形验证码
	FieldSmsCode                     // 短信验证码
	FieldAllow                       // 同意协议

	// FieldAll 所有字段
	FieldAll = FieldUsername | FieldPassword | FieldPassword2 | FieldMobile |
		FieldImageCode | FieldSmsCode | FieldAllow
)

// fieldNames 字段位与表单字段名(json/form name)的对应关系，顺序即展示顺序
var fieldNames = []struct {
	field Field
	name  string
}{
	{FieldUsername, "username"},
	{FieldPassword, "password"},
	{FieldPassword2, "password2"},
	{FieldMobile, "mobile"},
	{FieldImageCode, "image_code"},
	{FieldSmsCode, "sms_code"},
	{FieldAllow, "allow"},
}

// ParseField 通过表单字段名查找字段位
func ParseField(name string) (Field, bool) {
	for _, fn := range fieldNames {
		if fn.name == name {
			return fn.field, true
		}
	}
	return FieldNone, false
}

// Name 返回单个字段位对应的表单字段名，组合位返回空字符串
func (f Field) Name() string {
	for _, fn := range fieldNames {
		if fn.field == f {
			return fn.name
		}
	}
	return ""
}

// Set 设置指定的字段位
func (f *Field) Set(flag Field) {
	*f |= flag
}

// Unset 取消指定的字段位
func (f *Field) Unset(flag Field) {
	*f &^= flag
}

// Assign 根据 on 设置或取消字段位
func (f *Field) Assign(flag Field, on bool) {
	if on {
		f.Set(flag)
	} else {
		f.Unset(flag)
	}
}

// Contain 检查是否包含指定的字段位
func (f Field) Contain(flag Field) bool {
	return f&flag == flag
}

// IsEmpty 是否不包含任何字段
func (f Field) IsEmpty() bool {
	return f&FieldAll == FieldNone
}

// Split 拆分为单个字段位列表（按展示顺序）
func (f Field) Split() []Field {
	var fields []Field
	for _, fn := range fieldNames {
		if f&fn.field != 0 {
			fields = append(fields, fn.field)
		}
	}
	return fields
}

// Names 返回包含的字段名列表（按展示顺序）
func (f Field) Names() []string {
	var names []string
	for _, field := range f.Split() {
		names = append(names, field.Name())
	}
	return names
}

// String 实现 fmt.Stringer 接口
func (f Field) String() string {
	if f.IsEmpty() {
		return "none"
	}
	return strings.Join(f.Names(), "|")
}

// MarshalJSON 实现 json.Marshaler 接口，输出字段名数组
func (f Field) MarshalJSON() ([]byte, error) {
	names := f.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// UnmarshalJSON 实现 json.Unmarshaler 接口
func (f *Field) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var parsed Field
	for _, name := range names {
		field, ok := ParseField(name)
		if !ok {
			return fmt.Errorf("unknown field %q", name)
		}
		parsed.Set(field)
	}
	*f = parsed
	return nil
}

// FieldError 单个字段的校验状态
// Invalid 为 true 时 Message 为展示给用户的提示，可能为空（如密码只有状态没有提示）
type FieldError struct {
	Invalid bool   `json:"invalid"`
	Message string `json:"message,omitempty"`
}

// String 返回友好的状态信息
func (e FieldError) String() string {
	if !e.Invalid {
		return "ok"
	}
	if e.Message == "" {
		return "invalid"
	}
	return e.Message
}
