// Package logger 基于 zap 构建日志记录器，配置了文件时使用 lumberjack 按大小切割
package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"katydid-register/pkg/config"
)

// New 根据日志配置创建 zap.Logger
// File 为空时以 console 格式输出到标准错误，否则以 JSON 格式写入文件
func New(cfg config.LogConfig) (*zap.Logger, error) {
	return newWithStderr(cfg, os.Stderr)
}

func newWithStderr(cfg config.LogConfig, stderr io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(orDefault(cfg.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var (
		encoder zapcore.Encoder
		sink    zapcore.WriteSyncer
	)
	if cfg.File == "" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
		sink = zapcore.AddSync(stderr)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   true,
		})
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller()), nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
