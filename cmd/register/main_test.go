package main

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"katydid-register/pkg/api"
	"katydid-register/pkg/api/apitest"
	"katydid-register/pkg/config"
	"katydid-register/pkg/register"
	"katydid-register/pkg/types"
)

func TestCLI_Render(t *testing.T) {
	messages := map[types.Field]string{
		types.FieldUsername: register.MsgUsernameFormat,
		types.FieldMobile:   register.MsgMobileFormat,
	}

	tests := []struct {
		name    string
		invalid []types.Field
		want    string
	}{
		{"初始同意协议无效不输出", []types.Field{types.FieldAllow}, ""},
		{"新增无效字段", []types.Field{types.FieldAllow | types.FieldUsername}, "  ! username: " + register.MsgUsernameFormat + "\n"},
		{"状态不变只输出一次", []types.Field{types.FieldUsername, types.FieldUsername}, "  ! username: " + register.MsgUsernameFormat + "\n"},
		{"恢复后再次无效会重新输出", []types.Field{types.FieldUsername, 0, types.FieldUsername}, strings.Repeat("  ! username: "+register.MsgUsernameFormat+"\n", 2)},
		{"没有提示的字段", []types.Field{types.FieldPassword}, "  ! password: invalid\n"},
		{"只输出新增的字段", []types.Field{types.FieldUsername, types.FieldUsername | types.FieldMobile}, "  ! username: " + register.MsgUsernameFormat + "\n  ! mobile: " + register.MsgMobileFormat + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			render := (&cli{out: &out}).render()
			for _, invalid := range tt.invalid {
				render(register.Snapshot{Invalid: invalid, Messages: messages})
			}
			assert.Equal(t, tt.want, out.String())
		})
	}
}

// 观察者回调来自多个 goroutine 时输出不会交错
func TestCLI_RenderConcurrentPublishers(t *testing.T) {
	backend := apitest.New()
	t.Cleanup(backend.Close)
	client, err := api.New(backend.URL())
	require.NoError(t, err)

	form := register.New(client)
	t.Cleanup(form.Close)

	var out bytes.Buffer
	app := &cli{out: &out}
	form.Subscribe(app.render())

	const workers, rounds = 8, 2000
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				if (i+j)%2 == 0 {
					form.SetPassword("short")
				} else {
					form.SetPassword("abcdef12")
				}
				form.CheckPassword()
			}
		}(i)
	}
	wg.Wait()

	app.mu.Lock()
	defer app.mu.Unlock()
	for _, line := range strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		assert.Equal(t, "  ! password: invalid", line)
	}
}

func TestCLI_Run(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())

	backend := apitest.New()
	t.Cleanup(backend.Close)
	backend.AddUser("taken_01", "")

	input := strings.Join([]string{
		"ab",          // 用户名格式错误，重新输入
		"taken_01",    // 用户名已存在，重新输入
		"user_01",     // 用户名
		"abcdef12",    // 密码
		"abcdef13",    // 两次密码不一致，重新输入
		"abcdef12",    // 确认密码
		"13812345678", // 手机号
		"y",           // 同意协议
		"zz99",        // 图形验证码错误，刷新后重试
		apitest.DefaultImageText,
		"123456", // 短信验证码
	}, "\n") + "\n"

	var out bytes.Buffer
	app := &cli{
		in:  bufio.NewReader(strings.NewReader(input)),
		out: &out,
		log: zap.NewNop(),
		cfg: &config.Config{
			Backend: config.BackendConfig{
				BaseURL:      backend.URL(),
				Timeout:      5 * time.Second,
				ActionPath:   "/register/",
				CheckTimeout: 5 * time.Second,
			},
			SMS: config.SMSConfig{Countdown: 60, Tick: time.Second},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, app.run(ctx))

	app.mu.Lock()
	output := out.String()
	app.mu.Unlock()
	assert.Contains(t, output, "  ! username: "+register.MsgUsernameFormat)
	assert.Contains(t, output, "  ! username: "+register.MsgUsernameExists)
	assert.Contains(t, output, "  ! password2: invalid")
	assert.Contains(t, output, "SMS code sent.")
	assert.Contains(t, output, "Registration submitted.")
	assert.Equal(t, 2, strings.Count(output, "Image code saved to"))

	submissions := backend.Submissions()
	require.Len(t, submissions, 1)
	assert.Equal(t, "user_01", submissions[0].Get("username"))
	assert.Equal(t, "13812345678", submissions[0].Get("mobile"))
	assert.Equal(t, "123456", submissions[0].Get("sms_code"))
}

func TestCLI_RunRejectsAgreement(t *testing.T) {
	backend := apitest.New()
	t.Cleanup(backend.Close)

	input := "user_01\nabcdef12\nabcdef12\n13812345678\nn\n"
	var out bytes.Buffer
	app := &cli{
		in:  bufio.NewReader(strings.NewReader(input)),
		out: &out,
		log: zap.NewNop(),
		cfg: &config.Config{
			Backend: config.BackendConfig{BaseURL: backend.URL(), Timeout: 5 * time.Second, ActionPath: "/register/", CheckTimeout: 5 * time.Second},
			SMS:     config.SMSConfig{Countdown: 60, Tick: time.Second},
		},
	}

	err := app.run(context.Background())
	require.Error(t, err)
	assert.Empty(t, backend.Submissions())
	assert.Zero(t, backend.Hits("/sms_codes/"))
}
