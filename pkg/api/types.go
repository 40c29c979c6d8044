package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ResponseCode 业务响应码
// 后端可能返回字符串 "0" 也可能返回数字 0，两种形式都接受
type ResponseCode string

// 已知的业务响应码
const (
	CodeOK             ResponseCode = "0"    // 成功
	CodeImageCodeError ResponseCode = "4001" // 图形验证码错误
)

// UnmarshalJSON 实现 json.Unmarshaler 接口
func (c *ResponseCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ResponseCode(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("api: response code must be string or number: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("api: response code %s is not an integer", n)
	}
	*c = ResponseCode(n.String())
	return nil
}

// CountResponse 用户名/手机号注册数量
type CountResponse struct {
	Count int `json:"count"`
}

// SMSCodeResponse 发送短信验证码的结果
type SMSCodeResponse struct {
	Code   ResponseCode `json:"code"`
	ErrMsg string       `json:"errmsg,omitempty"`
}

// OK 是否发送成功
func (r *SMSCodeResponse) OK() bool {
	return r.Code == CodeOK
}
