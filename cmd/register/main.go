// Command register 在终端中完成注册流程：填写表单、获取图形验证码与短信验证码、提交注册
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"katydid-register/pkg/api"
	"katydid-register/pkg/config"
	"katydid-register/pkg/idgen"
	"katydid-register/pkg/logger"
	"katydid-register/pkg/register"
	"katydid-register/pkg/types"
)

func main() {
	flags := pflag.NewFlagSet("register", pflag.ExitOnError)
	config.BindFlags(flags)
	username := flags.String("username", "", "username (prompted when empty)")
	mobile := flags.String("mobile", "", "mobile number (prompted when empty)")
	agree := flags.Bool("agree", false, "agree to the user agreement")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli{
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		log:     log,
		cfg:     cfg,
		prefill: register.Values{Username: *username, Mobile: *mobile, Allow: *agree},
	}
	if err := app.run(ctx); err != nil {
		log.Error("registration failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "registration failed:", err)
		os.Exit(1)
	}
}

type cli struct {
	in      *bufio.Reader
	out     io.Writer
	log     *zap.Logger
	cfg     *config.Config
	prefill register.Values

	client *api.Client
	form   *register.Form

	// mu 保护 out 与 last，观察者回调可能来自冷却与唯一性检查的 goroutine
	mu   sync.Mutex
	last types.Field
}

func (c *cli) run(ctx context.Context) error {
	client, err := api.New(c.cfg.Backend.BaseURL,
		api.WithTimeout(c.cfg.Backend.Timeout),
		api.WithActionPath(c.cfg.Backend.ActionPath),
		api.WithLogger(c.log.Named("api")))
	if err != nil {
		return err
	}
	c.client = client

	c.form = register.New(client,
		register.WithLogger(c.log.Named("form")),
		register.WithCountdown(c.cfg.SMS.Countdown, c.cfg.SMS.Tick),
		register.WithCheckTimeout(c.cfg.Backend.CheckTimeout))
	defer c.form.Close()

	c.form.Subscribe(c.render())

	if err := c.askField(ctx, "Username", c.prefill.Username, c.form.SetUsername, c.form.CheckUsername, types.FieldUsername); err != nil {
		return err
	}
	if err := c.askField(ctx, "Password", "", c.form.SetPassword, c.form.CheckPassword, types.FieldPassword); err != nil {
		return err
	}
	if err := c.askField(ctx, "Confirm password", "", c.form.SetPassword2, c.form.CheckPassword2, types.FieldPassword2); err != nil {
		return err
	}
	if err := c.askField(ctx, "Mobile", c.prefill.Mobile, c.form.SetMobile, c.form.CheckMobile, types.FieldMobile); err != nil {
		return err
	}
	if err := c.askAgreement(); err != nil {
		return err
	}
	if err := c.requestSMSCode(ctx); err != nil {
		return err
	}
	if err := c.askField(ctx, "SMS code", "", c.form.SetSmsCode, c.form.CheckSmsCode, types.FieldSmsCode); err != nil {
		return err
	}

	if err := c.form.Submit(ctx); err != nil {
		var invalid *register.InvalidError
		if errors.As(err, &invalid) {
			for _, field := range invalid.Fields.Split() {
				c.printf("  %s: %s\n", field.Name(), orInvalid(invalid.Messages[field]))
			}
		}
		return err
	}
	c.printf("Registration submitted.\n")
	return nil
}

// render 只输出新变为无效的字段
func (c *cli) render() func(register.Snapshot) {
	return func(s register.Snapshot) {
		c.mu.Lock()
		defer c.mu.Unlock()

		changed := s.Invalid &^ c.last
		c.last = s.Invalid
		for _, field := range changed.Split() {
			if field == types.FieldAllow {
				continue
			}
			fmt.Fprintf(c.out, "  ! %s: %s\n", field.Name(), orInvalid(s.Messages[field]))
		}
	}
}

func (c *cli) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// askField 读取字段直到本地格式校验通过，用户名与手机号还会等待唯一性检查
func (c *cli) askField(ctx context.Context, label, prefill string, set func(string), check func(), field types.Field) error {
	value := prefill
	for {
		if value == "" {
			var err error
			if value, err = c.prompt(label); err != nil {
				return err
			}
		}
		set(value)
		check()
		if err := c.form.Wait(ctx); err != nil {
			return err
		}
		if !c.form.Snapshot().Invalid.Contain(field) {
			return nil
		}
		value = ""
	}
}

func (c *cli) askAgreement() error {
	if !c.prefill.Allow {
		answer, err := c.prompt("Agree to the user agreement? [y/N]")
		if err != nil {
			return err
		}
		c.prefill.Allow = strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
	}
	c.form.SetAllow(c.prefill.Allow)
	c.form.CheckAllow()
	if !c.prefill.Allow {
		return errors.New("the user agreement must be accepted")
	}
	return nil
}

// requestSMSCode 下载图形验证码、读取用户输入并请求短信验证码，图形验证码错误时重试
func (c *cli) requestSMSCode(ctx context.Context) error {
	for {
		snap := c.form.Snapshot()
		path, err := c.saveImageCode(ctx, snap.ImageCodeID)
		if err != nil {
			return err
		}
		c.printf("Image code saved to %s (%s)\n", path, snap.ImageCodeURL)

		code, err := c.prompt("Image code")
		if err != nil {
			return err
		}
		c.form.SetImageCode(code)

		err = c.form.SendSMSCode(ctx)
		switch {
		case err == nil:
			c.printf("SMS code sent.\n")
			return nil
		case errors.Is(err, register.ErrInvalidInput):
			if c.form.Snapshot().Invalid.Contain(types.FieldMobile) {
				return err
			}
		case errors.Is(err, register.ErrSMSRejected):
			var rejected *register.RejectedError
			if errors.As(err, &rejected) && rejected.Field != types.FieldImageCode {
				return err
			}
			c.form.GenerateImageCode()
		default:
			return err
		}
	}
}

// saveImageCode 下载图形验证码图片到临时目录，id 会出现在文件名中，必须是标准 UUID
func (c *cli) saveImageCode(ctx context.Context, id string) (string, error) {
	if err := idgen.Validate(id); err != nil {
		return "", err
	}
	data, _, err := c.client.FetchImageCode(ctx, id)
	if err != nil {
		return "", err
	}
	path := filepath.Join(os.TempDir(), "image_code_"+id+".jpg")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func (c *cli) prompt(label string) (string, error) {
	c.printf("%s: ", label)
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func orInvalid(msg string) string {
	if msg == "" {
		return "invalid"
	}
	return msg
}
