package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidateScene 验证场景标识符，使用位运算支持场景组合验证
// 设计目标：
//   - 使用 int64 类型，支持位运算（按位或、按位与）
//   - 允许场景组合：SceneSMS | SceneSubmit 表示同时适用于发送短信和提交场景
//   - 支持场景匹配：使用 scene & targetScene != 0 判断是否包含目标场景
//
// 使用示例：
//
//	const (
//	    SceneSMS    ValidateScene = 1 << 0 // 发送短信验证码前的校验
//	    SceneSubmit ValidateScene = 1 << 1 // 提交表单前的校验
//	)
//
//	if scene & SceneSubmit != 0 {
//	    // 执行提交场景的验证
//	}
type ValidateScene int64

// 预定义的通用验证场景常量
const (
	SceneNone ValidateScene = 0  // 无场景
	SceneAll  ValidateScene = -1 // 所有场景(111...111)
)

// ============================================================================
// 核心验证接口
// ============================================================================

// RuleValidator 规则验证器接口 - 定义字段验证规则
// 设计目标：单一职责 - 只负责提供基础的格式验证规则
//
// 示例：
//
//	func (r *Registration) RuleValidation() map[ValidateScene]map[string]string {
//	    return map[ValidateScene]map[string]string{
//	        SceneSMS:    {"Mobile": "mobile", "ImageCode": "len=4"},
//	        SceneSubmit: {"Username": "username", "Mobile": "mobile"},
//	    }
//	}
type RuleValidator interface {
	// RuleValidation 返回场景化的验证规则映射
	// 返回格式：map[场景标识][字段名]规则字符串
	// 字段名可以是结构体字段名，也可以是 json tag 名
	// 规则字符串格式遵循 go-playground/validator 的标签语法
	RuleValidation() map[ValidateScene]map[string]string
}

// CustomValidator 自定义验证器接口 - 跨字段验证和复杂业务逻辑验证
//
// 使用场景：
//   - 跨字段验证（如：密码和确认密码必须一致）
//   - 场景化的跨字段验证
//
// 示例：
//
//	func (r *Registration) CustomValidation(scene ValidateScene, report FuncReportError) {
//	    if r.Password != r.Password2 {
//	        report("password2", "eqfield", "password")
//	    }
//	}
type CustomValidator interface {
	// CustomValidation 执行业务验证逻辑
	// 所有错误都通过 report 函数报告，无需返回值
	CustomValidation(scene ValidateScene, report FuncReportError)
}

// FuncReportError 错误报告函数类型
// 用途：在 CustomValidator 中使用，向验证器报告错误而无需手动构造 FieldError 对象
//
// 参数：
//   - namespace: 命名空间（字段路径，一般为 json 字段名）
//   - tag: 验证标签（如："required", "eqfield"）
//   - param: 验证参数
type FuncReportError func(namespace, tag, param string)

// Validator 验证器，提供结构体字段验证与单值验证
// 设计原则：
//   - 单例模式：默认验证器全局唯一，减少资源消耗
//   - 工厂模式：New() 方法创建独立的验证器实例
//
// 特性：
//   - 支持场景化验证、自定义跨字段验证
//   - 内置注册表单相关的自定义标签（username、password、mobile）
//   - 类型信息缓存，避免重复的反射操作
type Validator struct {
	// validate 底层验证器实例（go-playground/validator）
	validate *validator.Validate
	// typeCache 类型信息缓存，key: reflect.Type, value: *typeCache
	typeCache *sync.Map
}

// typeCache 类型信息缓存结构，用于避免重复的类型断言和反射操作
type typeCache struct {
	// isRuleValidator 是否实现了 RuleValidator 接口
	isRuleValidator bool
	// isCustomValidator 是否实现了 CustomValidator 接口
	isCustomValidator bool
	// validationRules 缓存的验证规则（来自 RuleValidator）
	validationRules map[ValidateScene]map[string]string
}

var (
	// defaultValidator 默认验证器实例，全局单例
	defaultValidator *Validator
	// once 确保默认验证器只初始化一次（线程安全）
	once sync.Once
)

// Default 获取默认验证器实例（单例模式）
// 线程安全，可在多个 goroutine 中并发调用
func Default() *Validator {
	once.Do(func() {
		defaultValidator = New()
	})
	return defaultValidator
}

// Validate 使用默认验证器验证对象
// 返回：验证错误列表，nil 表示验证通过
func Validate(obj any, scene ValidateScene) []*FieldError {
	return Default().Validate(obj, scene)
}

// New 创建新的验证器实例
// 返回的验证器已注册 json tag 字段名函数以及注册表单自定义标签
func New() *Validator {
	v := validator.New()

	// 使用 json tag 作为字段名，验证错误中显示表单字段名而不是结构体字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	val := &Validator{
		validate:  v,
		typeCache: &sync.Map{},
	}

	// 内置标签注册失败只可能是标签名为空，属于编程错误
	for tag, fn := range builtinTags {
		if err := val.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}

	return val
}

// RegisterValidation 注册自定义验证标签
// 参数：
//
//	tag: 标签名（如 "mobile"）
//	fn: 验证函数，返回 true 表示通过
func (v *Validator) RegisterValidation(tag string, fn ValidationFunc) error {
	if tag == "" || fn == nil {
		return errors.New("validator: tag and func are required")
	}
	return v.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(&fieldLevelWrapper{fl: fl})
	})
}

// Validate 验证模型，支持指定场景
//
// 验证流程（按顺序执行）：
//  1. 执行字段规则验证（RuleValidator 场景化规则，或 struct tag）
//  2. 执行结构规则验证（CustomValidator 跨字段规则）
//
// 错误收集策略：收集所有错误后统一返回，而非遇到第一个错误就停止
//
// 返回：
//
//	验证错误列表，nil 表示验证通过
func (v *Validator) Validate(obj any, scene ValidateScene) []*FieldError {
	if obj == nil {
		return []*FieldError{
			NewFieldError("struct", "required", "").
				WithMessage("validation target cannot be nil"),
		}
	}

	cache := v.getOrCacheTypeInfo(obj)

	ctx := acquireValidationContext(scene)
	defer releaseValidationContext(ctx)

	if cache.isRuleValidator {
		v.validateFieldsByRules(obj, cache.validationRules, ctx)
	} else {
		v.validateFieldsByTags(obj, ctx)
	}

	if cache.isCustomValidator {
		v.validateStructRules(obj, scene, ctx)
	}

	return v.buildValidationResult(ctx)
}

// validateFieldsByRules 通过 RuleValidator 接口验证字段（场景化规则）
func (v *Validator) validateFieldsByRules(obj any, rules map[ValidateScene]map[string]string, ctx *ValidationContext) {
	if rules == nil || ctx == nil {
		return
	}

	// 匹配当前场景的规则
	matchedRules := make(map[string]string)
	for scene, sceneRules := range rules {
		if scene&ctx.Scene != 0 {
			for fieldName, rule := range sceneRules {
				matchedRules[fieldName] = rule
			}
		}
	}

	if len(matchedRules) == 0 {
		return
	}

	val := reflect.ValueOf(obj)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for fieldName, rule := range matchedRules {
		if rule == "" {
			continue
		}

		field, structField, ok := v.lookupField(val, typ, fieldName)
		if !ok || !field.CanInterface() {
			continue
		}

		if err := v.validate.Var(field.Interface(), rule); err != nil {
			v.addFieldErrors(structField, err, ctx)
		}
	}
}

// validateFieldsByTags 通过 struct tag 验证字段（标准方式）
func (v *Validator) validateFieldsByTags(obj any, ctx *ValidationContext) {
	if err := v.validate.Struct(obj); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			ctx.AddErrorByDetail("struct", "required", "", obj, err.Error())
			return
		}
		v.addFieldErrors(reflect.StructField{}, err, ctx)
	}
}

// validateStructRules 执行结构规则验证（多字段协同验证）
func (v *Validator) validateStructRules(obj any, scene ValidateScene, ctx *ValidationContext) {
	customValidator, ok := obj.(CustomValidator)
	if !ok {
		return
	}

	report := func(namespace, tag, param string) {
		ctx.AddErrorByDetail(namespace, tag, param, nil, "")
	}

	customValidator.CustomValidation(scene, report)
}

// buildValidationResult 构建验证结果
// 上下文会归还对象池，因此返回错误列表的副本
func (v *Validator) buildValidationResult(ctx *ValidationContext) []*FieldError {
	if ctx.HasErrors() {
		errs := make([]*FieldError, len(ctx.Errors))
		copy(errs, ctx.Errors)
		return errs
	}

	if len(ctx.Message) != 0 {
		return []*FieldError{
			NewFieldError("", "", "").WithMessage(ctx.Message),
		}
	}

	return nil
}

// getOrCacheTypeInfo 获取或缓存类型信息
// 线程安全：使用 sync.Map 的 LoadOrStore 方法避免并发问题
func (v *Validator) getOrCacheTypeInfo(obj any) *typeCache {
	typ := reflect.TypeOf(obj)
	if typ == nil {
		return &typeCache{}
	}

	if cached, ok := v.typeCache.Load(typ); ok {
		return cached.(*typeCache)
	}

	cache := &typeCache{}
	if ruleValidator, ok := obj.(RuleValidator); ok {
		cache.isRuleValidator = true
		cache.validationRules = ruleValidator.RuleValidation()
	}
	_, cache.isCustomValidator = obj.(CustomValidator)

	actual, _ := v.typeCache.LoadOrStore(typ, cache)
	return actual.(*typeCache)
}

// addFieldErrors 添加字段验证错误到上下文
// 适配器模式：将底层验证器的错误转换为内部错误类型
// structField 非零时表示单值验证，底层错误不带字段名，需要用它补齐
func (v *Validator) addFieldErrors(structField reflect.StructField, err error, ctx *ValidationContext) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		ctx.AddErrorByDetail("", "", "", nil, err.Error())
		return
	}

	for _, e := range validationErrors {
		if structField.Name == "" {
			ctx.AddErrorByValidator(e)
			continue
		}
		jsonName := jsonTagName(structField)
		ctx.AddError(&FieldError{
			FieldName: structField.Name,
			JsonName:  jsonName,
			Tag:       e.Tag(),
			Param:     e.Param(),
			Value:     e.Value(),
			Namespace: jsonName,
		})
	}
}

// lookupField 按结构体字段名或 json tag 查找字段
func (v *Validator) lookupField(val reflect.Value, typ reflect.Type, name string) (reflect.Value, reflect.StructField, bool) {
	if sf, ok := typ.FieldByName(name); ok && len(sf.Index) == 1 {
		return val.Field(sf.Index[0]), sf, true
	}

	numField := typ.NumField()
	for i := 0; i < numField; i++ {
		sf := typ.Field(i)
		if strings.SplitN(sf.Tag.Get("json"), ",", 2)[0] == name {
			return val.Field(i), sf, true
		}
	}
	return reflect.Value{}, reflect.StructField{}, false
}

// jsonTagName 返回字段的 json 名称，没有 json tag 时使用结构体字段名
func jsonTagName(sf reflect.StructField) string {
	name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return sf.Name
	}
	return name
}
