package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// errorMessageEstimateLen 单条错误信息的预估长度，用于预分配字符串缓冲
const errorMessageEstimateLen = 48

// ValidationContext 验证上下文，用于传递验证环境信息并收集错误
type ValidationContext struct {
	// Scene 验证场景
	Scene ValidateScene `json:"scene"`
	// Message 总体错误消息（可选）
	Message string `json:"message,omitempty"`
	// Errors 所有验证错误的集合（可选）
	Errors []*FieldError `json:"errors,omitempty"`
}

// FieldError 单个字段的验证错误
// 国际化时，可以通过 Namespace + Tag 和 Param 字段查找对应的翻译
type FieldError struct {
	// FieldName 结构体字段名
	FieldName string `json:"field_name,omitempty"`
	// JsonName JSON 字段名（即表单字段名）
	JsonName string `json:"json_name"`
	// Tag 验证标签（如 required, mobile, len 等）
	Tag string `json:"tag"`
	// Param 验证参数（如 len=4 中的 "4"）
	Param string `json:"param,omitempty"`
	// Value 字段的实际值
	Value any `json:"value,omitempty"`
	// Message 友好的错误消息（可选，用于直接显示给用户）
	Message string `json:"message,omitempty"`
	// Namespace 字段的完整命名空间
	Namespace string `json:"namespace,omitempty"`
}

// NewValidationContext 创建验证上下文
func NewValidationContext(scene ValidateScene) *ValidationContext {
	return &ValidationContext{
		Scene:  scene,
		Errors: make([]*FieldError, 0),
	}
}

// NewFieldError 创建字段错误
// namespace: 字段名（同时作为 JsonName 和 Namespace）
// tag: 验证标签
// param: 验证参数
func NewFieldError(namespace, tag, param string) *FieldError {
	return &FieldError{
		JsonName:  namespace,
		Tag:       tag,
		Param:     param,
		Namespace: namespace,
	}
}

// Error 实现 error 接口
func (vc *ValidationContext) Error() string {
	if len(vc.Errors) == 0 {
		if len(vc.Message) == 0 {
			return "validation passed: no errors"
		}
		return fmt.Sprintf("validation failed: %s", vc.Message)
	}

	var builder strings.Builder
	builder.Grow(len(vc.Errors) * errorMessageEstimateLen)

	for i, err := range vc.Errors {
		if i > 0 {
			builder.WriteString("; ")
		}
		builder.WriteString(err.String())
	}

	return builder.String()
}

// String 返回友好的错误信息
func (fe *FieldError) String() string {
	if fe.Message != "" {
		return fmt.Sprintf("field '%s': %s", fe.JsonName, fe.Message)
	}
	return fmt.Sprintf("field '%s' validation failed on tag '%s'", fe.JsonName, fe.Tag)
}

// Error 实现 error 接口
func (fe *FieldError) Error() string {
	return fe.String()
}

// HasErrors 检查是否有验证错误
func (vc *ValidationContext) HasErrors() bool {
	return len(vc.Errors) > 0
}

// AddError 通过 FieldError 添加字段错误
func (vc *ValidationContext) AddError(err *FieldError) {
	if err != nil {
		vc.Errors = append(vc.Errors, err)
	}
}

// AddErrorByValidator 通过 validator.FieldError 添加字段错误
func (vc *ValidationContext) AddErrorByValidator(err validator.FieldError) {
	vc.Errors = append(vc.Errors, &FieldError{
		FieldName: err.StructField(),
		JsonName:  err.Field(),
		Tag:       err.Tag(),
		Param:     err.Param(),
		Value:     err.Value(),
		Namespace: err.Field(),
	})
}

// AddErrorByDetail 通过详细信息添加字段错误
func (vc *ValidationContext) AddErrorByDetail(namespace, tag, param string, value any, message string) {
	vc.Errors = append(vc.Errors, &FieldError{
		JsonName:  namespace,
		Tag:       tag,
		Param:     param,
		Value:     value,
		Message:   message,
		Namespace: namespace,
	})
}

// WithMessage 设置友好的错误消息
func (fe *FieldError) WithMessage(message string) *FieldError {
	fe.Message = message
	return fe
}
