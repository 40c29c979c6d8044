// Package config 加载注册客户端配置：默认值 < 配置文件 < 环境变量(REGISTER_*) < 命令行参数
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 REGISTER_BACKEND_BASE_URL
const EnvPrefix = "REGISTER"

// Config 注册客户端配置
type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	SMS     SMSConfig     `mapstructure:"sms"`
	Log     LogConfig     `mapstructure:"log"`
}

// BackendConfig 后端接口配置
type BackendConfig struct {
	// BaseURL 后端站点根地址
	BaseURL string `mapstructure:"base_url"`
	// Timeout 单次请求超时
	Timeout time.Duration `mapstructure:"timeout"`
	// ActionPath 注册表单提交地址
	ActionPath string `mapstructure:"action_path"`
	// CheckTimeout 唯一性检查超时
	CheckTimeout time.Duration `mapstructure:"check_timeout"`
}

// SMSConfig 短信验证码冷却配置
type SMSConfig struct {
	// Countdown 冷却 tick 数
	Countdown int `mapstructure:"countdown"`
	// Tick 每个 tick 的时长
	Tick time.Duration `mapstructure:"tick"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level debug/info/warn/error
	Level string `mapstructure:"level"`
	// File 日志文件，为空时输出到标准错误
	File string `mapstructure:"file"`
	// MaxSize 单个日志文件最大 MB
	MaxSize int `mapstructure:"max_size"`
	// MaxBackups 保留的旧日志文件数
	MaxBackups int `mapstructure:"max_backups"`
	// MaxAge 旧日志保留天数
	MaxAge int `mapstructure:"max_age"`
}

// defaults 默认配置
var defaults = map[string]any{
	"backend.base_url":      "http://127.0.0.1:8000",
	"backend.timeout":       10 * time.Second,
	"backend.action_path":   "/register/",
	"backend.check_timeout": 10 * time.Second,
	"sms.countdown":         60,
	"sms.tick":              time.Second,
	"log.level":             "info",
	"log.file":              "",
	"log.max_size":          100,
	"log.max_backups":       3,
	"log.max_age":           28,
}

// BindFlags 在 flags 上注册可覆盖配置的命令行参数
// 参数名为配置键中的 "." 与 "_" 替换为 "-"，如 --backend-base-url
func BindFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "config file (yaml/json/toml)")
	flags.String("backend-base-url", "", "backend base url")
	flags.Duration("backend-timeout", 0, "per-request timeout")
	flags.String("backend-action-path", "", "registration form action path")
	flags.Int("sms-countdown", 0, "sms code cooldown in ticks")
	flags.String("log-level", "", "log level")
	flags.String("log-file", "", "log file, empty for stderr")
}

// Load 加载配置
// flags 可以为 nil；未显式设置的命令行参数不会覆盖其他来源
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindChangedFlags(v, flags); err != nil {
			return nil, err
		}
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read %s: %w", f.Value.String(), err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindChangedFlags 只绑定用户显式设置的参数
func bindChangedFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Name == "config" || !f.Changed {
			return
		}
		key := flagKey(f.Name)
		if key == "" {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	return bindErr
}

// flagKey 命令行参数名转换为配置键，未知参数返回空字符串
func flagKey(name string) string {
	for key := range defaults {
		if strings.NewReplacer(".", "-", "_", "-").Replace(key) == name {
			return key
		}
	}
	return ""
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error
	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required"))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, errors.New("backend.timeout must be positive"))
	}
	if c.Backend.CheckTimeout <= 0 {
		errs = append(errs, errors.New("backend.check_timeout must be positive"))
	}
	if c.SMS.Countdown <= 0 {
		errs = append(errs, errors.New("sms.countdown must be positive"))
	}
	if c.SMS.Tick <= 0 {
		errs = append(errs, errors.New("sms.tick must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
