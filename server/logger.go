package server

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 进程级日志，InitLogger 之前丢弃所有输出
var Log = zap.NewNop().Sugar()

// LogConfig 日志输出位置与级别
type LogConfig struct {
	File   string
	Level  string
	Stderr bool
}

// InitLogger 将 Log 指向滚动文件，可选同时输出到 stderr
func InitLogger(cfg LogConfig) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	Log = logger.Sugar()
	return nil
}

func newLogger(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	encoder := zapcore.NewConsoleEncoder(encCfg)

	var cores []zapcore.Core
	if cfg.File != "" {
		// 单文件 10MB，保留 3 个备份，7 天
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     7,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(lj), level))
	}
	if cfg.Stderr || cfg.File == "" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// SyncLogger 刷新缓冲日志。部分平台对终端或管道 Sync 会返回 EINVAL/ENOTTY，这类错误忽略
func SyncLogger() error {
	return syncErr(Log.Sync())
}

func syncErr(err error) error {
	var kept error
	for _, err := range multierr.Errors(err) {
		if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
			continue
		}
		kept = multierr.Append(kept, err)
	}
	return kept
}
