package validator

import (
	"reflect"

	"github.com/go-playground/validator/v10"
)

// ValidationFunc 自定义验证函数类型（封装第三方库）
// 用于注册自定义验证标签
type ValidationFunc func(fl FieldLevel) bool

// FieldLevel 字段级别验证上下文（封装第三方库）
// 用于在自定义验证函数中访问字段信息
type FieldLevel interface {
	// Field 返回当前字段的反射值
	Field() reflect.Value

	// Param 返回验证标签的参数
	Param() string

	// FieldName 返回字段名
	FieldName() string
}

// fieldLevelWrapper 封装第三方库的 FieldLevel
type fieldLevelWrapper struct {
	fl validator.FieldLevel
}

// Field 实现 FieldLevel 接口
func (w *fieldLevelWrapper) Field() reflect.Value {
	return w.fl.Field()
}

// Param 实现 FieldLevel 接口
func (w *fieldLevelWrapper) Param() string {
	return w.fl.Param()
}

// FieldName 实现 FieldLevel 接口
func (w *fieldLevelWrapper) FieldName() string {
	return w.fl.FieldName()
}

// StringMatcher 将字符串谓词适配为 ValidationFunc
// 非字符串字段一律视为验证失败
func StringMatcher(match func(string) bool) ValidationFunc {
	return func(fl FieldLevel) bool {
		field := fl.Field()
		if field.Kind() != reflect.String {
			return false
		}
		return match(field.String())
	}
}
