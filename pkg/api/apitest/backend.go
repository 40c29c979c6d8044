// Package apitest 提供基于 gin 的进程内假后端，实现注册页面依赖的全部接口，供测试使用
package apitest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"katydid-register/pkg/validator"
)

// DefaultImageText 假后端为每个图形验证码请求生成的验证码文本
const DefaultImageText = "ab12"

// registerKeys 注册表单提交的字段
var registerKeys = []string{"username", "password", "password2", "mobile", "sms_code", "allow"}

// registerForm 服务端对注册表单的校验，与后端视图的行为保持一致
var registerForm = &validator.MapValidator{
	RequiredKeys: registerKeys,
	AllowedKeys:  registerKeys,
	KeyValidators: map[string]func(value any) error{
		"username": validator.StringKey(validator.IsUsername, "invalid username"),
		"password": validator.StringKey(validator.IsPassword, "invalid password"),
		"mobile":   validator.StringKey(validator.IsMobile, "invalid mobile"),
		"sms_code": validator.StringKey(validator.IsSmsCode, "invalid sms code"),
		"allow": validator.StringKey(func(s string) bool {
			return s == "on"
		}, "user agreement not accepted"),
	},
}

// SMSFunc 自定义短信发送结果
// 返回 code 与 errmsg，ok 为 false 时使用默认逻辑
type SMSFunc func(mobile, imageCode, uuid string) (code, errmsg string, ok bool)

// Backend 假后端
// 默认行为：
//   - 已注册的用户名/手机号返回 count=1，否则 count=0
//   - 图形验证码文本固定为 ImageText，请求图片后才可用于发送短信
//   - 图形验证码正确时短信发送成功(code=0)，否则返回 4001
//   - 注册表单校验失败返回 400，成功则记录并重定向
type Backend struct {
	// Server 底层测试服务器
	Server *httptest.Server

	mu          sync.Mutex
	imageText   string
	usernames   map[string]bool
	mobiles     map[string]bool
	imageCodes  map[string]string // uuid -> 验证码文本
	smsFunc     SMSFunc
	countDelay  time.Duration
	failures    map[string]int // 路径前缀 -> 状态码
	hits        map[string]int
	submissions []url.Values
}

// New 创建并启动假后端，测试结束时需要调用 Close
func New() *Backend {
	gin.SetMode(gin.TestMode)

	b := &Backend{
		imageText:  DefaultImageText,
		usernames:  make(map[string]bool),
		mobiles:    make(map[string]bool),
		imageCodes: make(map[string]string),
		failures:   make(map[string]int),
		hits:       make(map[string]int),
	}

	engine := gin.New()
	engine.Use(b.middleware)
	engine.GET("/usernames/:username/count", b.usernameCount)
	engine.GET("/mobiles/:mobile/count/", b.mobileCount)
	engine.GET("/image_codes/:uuid/", b.imageCode)
	engine.GET("/sms_codes/:mobile/", b.smsCode)
	engine.POST("/register/", b.register)

	b.Server = httptest.NewServer(engine)
	return b
}

// URL 假后端根地址
func (b *Backend) URL() string {
	return b.Server.URL
}

// Close 关闭假后端
func (b *Backend) Close() {
	b.Server.Close()
}

// AddUser 标记用户名与手机号已注册，空字符串忽略
func (b *Backend) AddUser(username, mobile string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if username != "" {
		b.usernames[username] = true
	}
	if mobile != "" {
		b.mobiles[mobile] = true
	}
}

// SetImageCode 直接登记某个 uuid 的图形验证码文本，省去请求图片
func (b *Backend) SetImageCode(uuid, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.imageCodes[uuid] = text
}

// SetSMSFunc 自定义短信发送结果
func (b *Backend) SetSMSFunc(fn SMSFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.smsFunc = fn
}

// SetCountDelay 让唯一性查询延迟返回
func (b *Backend) SetCountDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.countDelay = d
}

// Fail 让以 prefix 开头的路径返回指定状态码，status 为 0 时取消
func (b *Backend) Fail(prefix string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, prefix)
		return
	}
	b.failures[prefix] = status
}

// Hits 以 prefix 开头的路径被请求的次数
func (b *Backend) Hits(prefix string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for path, n := range b.hits {
		if strings.HasPrefix(path, prefix) {
			total += n
		}
	}
	return total
}

// Submissions 已收到的表单提交
func (b *Backend) Submissions() []url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]url.Values, len(b.submissions))
	copy(out, b.submissions)
	return out
}

func (b *Backend) middleware(c *gin.Context) {
	path := c.Request.URL.Path

	b.mu.Lock()
	b.hits[path]++
	status := 0
	for prefix, code := range b.failures {
		if strings.HasPrefix(path, prefix) {
			status = code
			break
		}
	}
	b.mu.Unlock()

	if status != 0 {
		c.AbortWithStatusJSON(status, gin.H{"errmsg": http.StatusText(status)})
		return
	}
	c.Next()
}

func (b *Backend) usernameCount(c *gin.Context) {
	b.delay()
	b.mu.Lock()
	count := boolToCount(b.usernames[c.Param("username")])
	b.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"code": "0", "errmsg": "OK", "count": count})
}

func (b *Backend) mobileCount(c *gin.Context) {
	b.delay()
	b.mu.Lock()
	count := boolToCount(b.mobiles[c.Param("mobile")])
	b.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"code": "0", "errmsg": "OK", "count": count})
}

func (b *Backend) imageCode(c *gin.Context) {
	b.mu.Lock()
	b.imageCodes[c.Param("uuid")] = b.imageText
	b.mu.Unlock()
	c.Data(http.StatusOK, "image/jpeg", []byte("fake-jpeg:"+b.imageText))
}

func (b *Backend) smsCode(c *gin.Context) {
	mobile := c.Param("mobile")
	imageCode := c.Query("image_code")
	uuid := c.Query("uuid")

	b.mu.Lock()
	fn := b.smsFunc
	expected, issued := b.imageCodes[uuid]
	if issued {
		// 图形验证码一次性使用
		delete(b.imageCodes, uuid)
	}
	b.mu.Unlock()

	if fn != nil {
		if code, errmsg, ok := fn(mobile, imageCode, uuid); ok {
			c.JSON(http.StatusOK, gin.H{"code": code, "errmsg": errmsg})
			return
		}
	}

	if !issued {
		c.JSON(http.StatusOK, gin.H{"code": "4001", "errmsg": "image code expired"})
		return
	}
	if !strings.EqualFold(expected, imageCode) {
		c.JSON(http.StatusOK, gin.H{"code": "4001", "errmsg": "image code is incorrect"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": "0", "errmsg": "SMS code sent"})
}

func (b *Backend) register(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	form := c.Request.PostForm
	errs := validator.ValidateValues(form, registerForm)
	if form.Get("password") != form.Get("password2") {
		errs = append(errs, validator.NewFieldError("password2", "eqfield", "password").
			WithMessage("passwords do not match"))
	}
	if len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errmsg": "invalid registration form", "errors": errs})
		return
	}

	b.mu.Lock()
	b.submissions = append(b.submissions, form)
	b.mu.Unlock()
	c.Redirect(http.StatusFound, "/")
}

func (b *Backend) delay() {
	b.mu.Lock()
	d := b.countDelay
	b.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

func boolToCount(ok bool) int {
	if ok {
		return 1
	}
	return 0
}
