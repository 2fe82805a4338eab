// Package logging 结构化日志
//
// 基于 zap 的 SugaredLogger，统一 component 字段与常用上下文字段。
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ContextKey 上下文键类型
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	ActorIDKey   ContextKey = "actor_id"
	ProductIDKey ContextKey = "product_id"
)

// Logger 结构化日志器
type Logger struct {
	*zap.SugaredLogger
	component string
}

// Config 日志配置
type Config struct {
	Level     string `json:"level" yaml:"level"`
	Format    string `json:"format" yaml:"format"` // json or console
	Output    string `json:"output" yaml:"output"` // stdout, stderr, or file path
	Component string `json:"component" yaml:"-"`
}

// New 创建新的日志器
func New(cfg Config) *Logger {
	level := zapcore.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Format == "console" || cfg.Format == "text" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	switch cfg.Output {
	case "stdout", "":
		zcfg.OutputPaths = []string{"stdout"}
	case "stderr":
		zcfg.OutputPaths = []string{"stderr"}
	default:
		zcfg.OutputPaths = []string{cfg.Output}
	}

	base, err := zcfg.Build()
	if err != nil {
		// 输出路径不可用时退回 stdout
		zcfg.OutputPaths = []string{"stdout"}
		base = zap.Must(zcfg.Build())
	}

	sugar := base.Sugar()
	if cfg.Component != "" {
		sugar = sugar.With("component", cfg.Component)
	}
	return &Logger{SugaredLogger: sugar, component: cfg.Component}
}

// Default 创建默认日志器
func Default(component string) *Logger {
	return New(Config{
		Level:     os.Getenv("LOG_LEVEL"),
		Format:    os.Getenv("LOG_FORMAT"),
		Output:    "stdout",
		Component: component,
	})
}

// Nop 丢弃所有输出，测试使用
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Component 返回组件名
func (l *Logger) Component() string {
	return l.component
}

// Named 派生子组件日志器
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With("component", component),
		component:     component,
	}
}

// WithContext 从上下文提取请求信息
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var fields []interface{}
	if v, ok := ctx.Value(RequestIDKey).(string); ok && v != "" {
		fields = append(fields, "request_id", v)
	}
	if v, ok := ctx.Value(ActorIDKey).(int64); ok && v != 0 {
		fields = append(fields, "actor_id", v)
	}
	if v, ok := ctx.Value(ProductIDKey).(int64); ok && v != 0 {
		fields = append(fields, "product_id", v)
	}
	if len(fields) == 0 {
		return l
	}
	return &Logger{SugaredLogger: l.SugaredLogger.With(fields...), component: l.component}
}

// WithProductID 添加商品 ID
func (l *Logger) WithProductID(id int64) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With("product_id", id), component: l.component}
}

// WithError 添加错误信息
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{SugaredLogger: l.SugaredLogger.With("error", err.Error()), component: l.component}
}

// WithDuration 添加持续时间
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With("duration_ms", float64(d.Milliseconds())), component: l.component}
}

// HTTPRequestLog HTTP 请求日志
func (l *Logger) HTTPRequestLog(method, path string, status int, duration time.Duration, clientIP string) {
	l.Infow("HTTP request",
		"method", method,
		"path", path,
		"status", status,
		"duration_ms", float64(duration.Milliseconds()),
		"client_ip", clientIP,
	)
}
