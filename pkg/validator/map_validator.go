package validator

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// maxMapKeyLength 最大键名长度，防止恶意超长键名
const maxMapKeyLength = 256

// MapValidators 按场景划分的 map 验证器
type MapValidators struct {
	Validators map[ValidateScene]*MapValidator
}

// MapValidator map 字段验证器，用于验证表单提交这类动态键值
type MapValidator struct {
	// ParentNameSpace 命名空间前缀，用于生成错误路径，如 register.username
	ParentNameSpace string

	// RequiredKeys 必填的键
	RequiredKeys []string

	// AllowedKeys 允许的键白名单（为空则不限制）
	AllowedKeys []string

	// KeyValidators 特定键的验证函数，返回 error 表示验证失败
	KeyValidators map[string]func(value any) error

	allowedOnce    sync.Once
	allowedKeysMap map[string]bool
}

// ValidateMaps 按场景选取验证器验证 kvs
func ValidateMaps(scene ValidateScene, kvs map[string]any, validators *MapValidators) []*FieldError {
	if validators == nil || len(validators.Validators) == 0 {
		return nil
	}
	v, ok := validators.Validators[scene]
	if !ok {
		return nil
	}
	return ValidateMap(kvs, v)
}

// ValidateMap 验证 map[string]any
// 依次检查必填键、白名单、自定义验证器，收集所有错误后返回，nil 表示通过
func ValidateMap(kvs map[string]any, v *MapValidator) []*FieldError {
	if v == nil {
		return nil
	}
	if kvs == nil {
		if len(v.RequiredKeys) > 0 {
			return []*FieldError{
				NewFieldError("map", "required", "").
					WithMessage("map field cannot be nil when required keys are specified"),
			}
		}
		return nil
	}

	ctx := acquireValidationContext(SceneNone)
	defer releaseValidationContext(ctx)

	if len(v.RequiredKeys) > 0 {
		v.collectRequiredKeyErrors(kvs, ctx)
	}
	if len(v.AllowedKeys) > 0 {
		v.collectAllowedKeyErrors(kvs, ctx)
	}
	if len(v.KeyValidators) > 0 {
		v.collectCustomKeyErrors(kvs, ctx)
	}

	if !ctx.HasErrors() {
		return nil
	}
	errs := make([]*FieldError, len(ctx.Errors))
	copy(errs, ctx.Errors)
	return errs
}

// ValidateValues 验证表单数据，每个键取第一个值
func ValidateValues(values url.Values, v *MapValidator) []*FieldError {
	if values == nil {
		return ValidateMap(nil, v)
	}
	kvs := make(map[string]any, len(values))
	for key := range values {
		kvs[key] = values.Get(key)
	}
	return ValidateMap(kvs, v)
}

func (mv *MapValidator) collectRequiredKeyErrors(kvs map[string]any, ctx *ValidationContext) {
	for _, key := range mv.RequiredKeys {
		if _, exists := kvs[key]; !exists {
			ctx.AddErrorByDetail(mv.getNamespace(key), "required", "", nil,
				fmt.Sprintf("required key '%s' is missing", key))
		}
	}
}

func (mv *MapValidator) collectAllowedKeyErrors(kvs map[string]any, ctx *ValidationContext) {
	mv.allowedOnce.Do(func() {
		mv.allowedKeysMap = make(map[string]bool, len(mv.AllowedKeys))
		for _, key := range mv.AllowedKeys {
			mv.allowedKeysMap[key] = true
		}
	})

	for _, key := range sortedKeys(kvs) {
		if len(key) > maxMapKeyLength {
			ctx.AddErrorByDetail("map", "key_len", fmt.Sprint(maxMapKeyLength), len(key),
				fmt.Sprintf("key name exceeds maximum length %d", maxMapKeyLength))
			continue
		}
		if !mv.allowedKeysMap[key] {
			ctx.AddErrorByDetail(mv.getNamespace(key), "allowed", "", key,
				fmt.Sprintf("key '%s' is not in the allowed list", key))
		}
	}
}

// collectCustomKeyErrors 验证函数 panic 时记为该键的错误，不影响其他键
func (mv *MapValidator) collectCustomKeyErrors(kvs map[string]any, ctx *ValidationContext) {
	keys := make([]string, 0, len(mv.KeyValidators))
	for key := range mv.KeyValidators {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fn := mv.KeyValidators[key]
		value, exists := kvs[key]
		if fn == nil || !exists {
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					ctx.AddErrorByDetail(mv.getNamespace(key), "validator_panic", "", value,
						fmt.Sprintf("validator function panicked: %v", r))
				}
			}()
			if err := fn(value); err != nil {
				ctx.AddErrorByDetail(mv.getNamespace(key), "custom", "", value, err.Error())
			}
		}()
	}
}

func (mv *MapValidator) getNamespace(key string) string {
	if mv.ParentNameSpace == "" {
		return key
	}
	var builder strings.Builder
	builder.Grow(len(mv.ParentNameSpace) + len(key) + 1)
	builder.WriteString(mv.ParentNameSpace)
	builder.WriteByte('.')
	builder.WriteString(key)
	return builder.String()
}

// StringKey 将字符串判定函数包装为 KeyValidators 可用的验证函数
func StringKey(match func(string) bool, message string) func(value any) error {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if !match(s) {
			return errors.New(message)
		}
		return nil
	}
}

func sortedKeys(kvs map[string]any) []string {
	keys := make([]string, 0, len(kvs))
	for key := range kvs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
