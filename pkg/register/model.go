package register

import (
	"net/url"

	"katydid-register/pkg/types"
	"katydid-register/pkg/validator"
)

// 字段提示信息
const (
	MsgUsernameFormat = "enter a username of 5-20 characters."
	MsgUsernameExists = "username already exists"
	MsgMobileFormat   = "mobile number format is invalid."
	MsgMobileExists   = "this mobile number is already registered."
	MsgImageCode      = "enter the image verification code."
	MsgSmsCode        = "enter the SMS verification code."
)

// DefaultSmsCodeLabel 短信验证码按钮的空闲文字
const DefaultSmsCodeLabel = "Get SMS code"

// formatMessages 格式错误时的提示，未列出的字段只有状态没有提示
var formatMessages = map[types.Field]string{
	types.FieldUsername:  MsgUsernameFormat,
	types.FieldMobile:    MsgMobileFormat,
	types.FieldImageCode: MsgImageCode,
	types.FieldSmsCode:   MsgSmsCode,
}

// existsMessages 唯一性检查不通过时的提示
var existsMessages = map[types.Field]string{
	types.FieldUsername: MsgUsernameExists,
	types.FieldMobile:   MsgMobileExists,
}

// 校验场景，与字段位一一对应，可以按位组合
const (
	SceneSMS    = validator.ValidateScene(types.FieldMobile | types.FieldImageCode)
	SceneSubmit = validator.ValidateScene(types.FieldAll)
)

// Values 用户输入的表单值
type Values struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	Mobile    string `json:"mobile"`
	Allow     bool   `json:"allow"`
	ImageCode string `json:"image_code"`
	SmsCode   string `json:"sms_code"`
}

// text 返回字符串字段的当前值
func (v *Values) text(field types.Field) string {
	switch field {
	case types.FieldUsername:
		return v.Username
	case types.FieldPassword:
		return v.Password
	case types.FieldPassword2:
		return v.Password2
	case types.FieldMobile:
		return v.Mobile
	case types.FieldImageCode:
		return v.ImageCode
	case types.FieldSmsCode:
		return v.SmsCode
	}
	return ""
}

// FormValues 转换为提交给后端的表单
func (v *Values) FormValues() url.Values {
	form := url.Values{}
	form.Set("username", v.Username)
	form.Set("password", v.Password)
	form.Set("password2", v.Password2)
	form.Set("mobile", v.Mobile)
	form.Set("sms_code", v.SmsCode)
	if v.Allow {
		form.Set("allow", "on")
	}
	return form
}

// registration 校验用模型，场景即需要校验的字段位
type registration Values

// RuleValidation 实现 validator.RuleValidator 接口
func (r *registration) RuleValidation() map[validator.ValidateScene]map[string]string {
	return map[validator.ValidateScene]map[string]string{
		validator.ValidateScene(types.FieldUsername):  {"username": validator.TagUsername},
		validator.ValidateScene(types.FieldPassword):  {"password": validator.TagPassword},
		validator.ValidateScene(types.FieldMobile):    {"mobile": validator.TagMobile},
		validator.ValidateScene(types.FieldImageCode): {"image_code": "len=4"},
		validator.ValidateScene(types.FieldSmsCode):   {"sms_code": "len=6"},
		validator.ValidateScene(types.FieldAllow):     {"allow": "required"},
	}
}

// CustomValidation 实现 validator.CustomValidator 接口
func (r *registration) CustomValidation(scene validator.ValidateScene, report validator.FuncReportError) {
	if scene&validator.ValidateScene(types.FieldPassword2) == 0 {
		return
	}
	if !validator.IsPasswordConfirmed(r.Password, r.Password2) {
		report("password2", "eqfield", "password")
	}
}
