package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// 默认配置
const (
	DefaultTimeout    = 10 * time.Second
	DefaultActionPath = "/register/"

	// maxErrorBodyLen 错误响应体最多保留的字节数
	maxErrorBodyLen = 512
	// maxImageSize 图形验证码图片的最大字节数
	maxImageSize = 1 << 20
)

var (
	// ErrUnexpectedStatus 后端返回了非预期的 HTTP 状态码
	ErrUnexpectedStatus = errors.New("api: unexpected status")
	// ErrInvalidBaseURL 后端地址不是合法的绝对 URL
	ErrInvalidBaseURL = errors.New("api: invalid base url")
)

// StatusError 携带 HTTP 状态码与部分响应体的错误
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

// Error 实现 error 接口
func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// Unwrap 使 errors.Is(err, ErrUnexpectedStatus) 成立
func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// Client 注册页面使用的后端接口客户端
// 线程安全，可在多个 goroutine 中并发使用
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	actionPath string
	logger     *zap.Logger
}

// Option 客户端配置项
type Option func(*Client)

// WithHTTPClient 使用自定义的 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout 设置单次请求超时时间
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithActionPath 设置表单提交地址（相对 baseURL）
func WithActionPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.actionPath = path
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New 创建后端客户端
// baseURL: 后端站点根地址，如 http://127.0.0.1:8000
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			// 表单提交成功时后端一般会重定向，重定向本身视为成功，不跟随
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		actionPath: DefaultActionPath,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// UsernameCount 查询用户名已注册的数量
// GET /usernames/{username}/count
func (c *Client) UsernameCount(ctx context.Context, username string) (int, error) {
	var resp CountResponse
	if err := c.getJSON(ctx, c.resolve("usernames", username, "count"), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// MobileCount 查询手机号已注册的数量
// GET /mobiles/{mobile}/count/
func (c *Client) MobileCount(ctx context.Context, mobile string) (int, error) {
	var resp CountResponse
	if err := c.getJSON(ctx, c.resolve("mobiles", mobile, "count")+"/", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// ImageCodeURL 返回图形验证码图片地址，不发起请求
// GET /image_codes/{uuid}/
func (c *Client) ImageCodeURL(uuid string) string {
	return c.resolve("image_codes", uuid) + "/"
}

// FetchImageCode 下载图形验证码图片
// 返回图片内容与 Content-Type
func (c *Client) FetchImageCode(ctx context.Context, uuid string) ([]byte, string, error) {
	endpoint := c.ImageCodeURL(uuid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", err
	}

	res, err := c.do(req)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, "", newStatusError(req, res)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxImageSize))
	if err != nil {
		return nil, "", fmt.Errorf("api: read image code: %w", err)
	}
	return data, res.Header.Get("Content-Type"), nil
}

// SendSMSCode 请求向手机号发送短信验证码
// GET /sms_codes/{mobile}/?image_code={code}&uuid={uuid}
// 业务上的拒绝（图形验证码错误、发送过于频繁等）通过 SMSCodeResponse.Code 表达，不作为 error 返回
func (c *Client) SendSMSCode(ctx context.Context, mobile, imageCode, uuid string) (*SMSCodeResponse, error) {
	query := url.Values{}
	query.Set("image_code", imageCode)
	query.Set("uuid", uuid)

	var resp SMSCodeResponse
	if err := c.getJSON(ctx, c.resolve("sms_codes", mobile)+"/", query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit 以 application/x-www-form-urlencoded 提交注册表单
// 2xx 与 3xx 均视为提交成功
func (c *Client) Submit(ctx context.Context, form url.Values) error {
	endpoint := c.baseURL.String() + "/" + strings.TrimLeft(c.actionPath, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest || res.StatusCode < http.StatusOK {
		return newStatusError(req, res)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

// getJSON 发起 GET 请求并解析 JSON 响应
func (c *Client) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return newStatusError(req, res)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// do 执行请求并记录耗时
func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("api: %s %s: %w", req.Method, req.URL.Path, err)
	}
	c.logger.Debug("request done",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// resolve 拼接路径，每一段都做转义
func (c *Client) resolve(segments ...string) string {
	var sb strings.Builder
	sb.WriteString(c.baseURL.String())
	for _, seg := range segments {
		sb.WriteByte('/')
		sb.WriteString(url.PathEscape(seg))
	}
	return sb.String()
}

func newStatusError(req *http.Request, res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyLen))
	return &StatusError{
		Method:     req.Method,
		URL:        req.URL.Path,
		StatusCode: res.StatusCode,
		Body:       string(body),
	}
}
