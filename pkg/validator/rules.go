package validator

import (
	"regexp"
	"unicode/utf8"
)

// 注册表单自定义标签名
const (
	TagUsername = "username" // 用户名：5-20位字母、数字、下划线、中划线
	TagPassword = "password" // 密码：8-20位字母、数字
	TagMobile   = "mobile"   // 大陆手机号：1开头，第二位3-9，共11位数字
)

// 验证码长度
const (
	ImageCodeLen = 4 // 图形验证码长度
	SmsCodeLen   = 6 // 短信验证码长度
)

// 正则在包初始化时编译，写错会在启动时 panic
var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{5,20}$`)
	passwordRegex = regexp.MustCompile(`^[a-zA-Z0-9]{8,20}$`)
	mobileRegex   = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// builtinTags New() 时自动注册的自定义标签
var builtinTags = map[string]ValidationFunc{
	TagUsername: StringMatcher(IsUsername),
	TagPassword: StringMatcher(IsPassword),
	TagMobile:   StringMatcher(IsMobile),
}

// IsUsername 用户名格式校验
func IsUsername(s string) bool {
	return usernameRegex.MatchString(s)
}

// IsPassword 密码格式校验
func IsPassword(s string) bool {
	return passwordRegex.MatchString(s)
}

// IsPasswordConfirmed 确认密码必须与密码逐字符一致
func IsPasswordConfirmed(password, confirm string) bool {
	return password == confirm
}

// IsMobile 手机号格式校验
func IsMobile(s string) bool {
	return mobileRegex.MatchString(s)
}

// IsImageCode 图形验证码长度校验
func IsImageCode(s string) bool {
	return utf8.RuneCountInString(s) == ImageCodeLen
}

// IsSmsCode 短信验证码长度校验
func IsSmsCode(s string) bool {
	return utf8.RuneCountInString(s) == SmsCodeLen
}
