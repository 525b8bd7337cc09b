package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Lvzhenqian/sshsftp/configs"
	"github.com/Lvzhenqian/sshsftp/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

type colors int

const (
	Error colors = 31 + iota
	Info
	Panic
	_
	Fatal
	Debug
	Trace
	_
	Weak colors = 2
	Bold colors = 1
	Warn        = Panic
)

var Dict = zerolog.Dict

func init() {
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		return errors.ErrorStack(err)
	}
}

type ZeroLoggerConfig struct {
	// 每个日志文件最大多少 MB
	MaxSize int
	// 最大保存多少天前的日志
	MaxAge int
	// 最大保留多少个旧日志
	MaxBackups int
	// 是否压缩旧日志
	Compress bool
	// Filename 文件路径名，为空时 file 输出到 console
	Filename string
	// LogLevel 日志级别
	LogLevel string
	// CallerPathPrefix stdout输出文件名路径忽略前缀。
	// 可以通过环境变量名：CONSOLE_CALLER_PATH_PREFIX 修改
	CallerPathPrefix string
	// Console 默认 os.Stdout
	Console io.Writer
}

// ZeroLogger keeps two sinks: file gets every level, multi (console + file)
// gets warnings and errors.
type ZeroLogger struct {
	mu          sync.RWMutex
	file        zerolog.Context
	multi       zerolog.Context
	fileWriter  io.Writer
	multiWriter io.Writer
	level       zerolog.Level
	fields      map[string]string
	hook        zerolog.Hook
}

func consoleFormatCaller(prefix string) zerolog.Formatter {
	return func(i interface{}) string {
		var c string
		if cc, ok := i.(string); ok {
			c = cc
		}
		if len(c) > 0 {
			if rel, err := filepath.Rel(prefix, c); err == nil && prefix != "" {
				c = rel
			}
			c += fmt.Sprintf("\x1b[%d;%dm%s\x1b[0m", Debug, Weak, " >")
		}
		return c
	}
}

func NewLogger(conf *ZeroLoggerConfig) (*ZeroLogger, error) {
	level, err := zerolog.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}

	consoleCallerPrefix := conf.CallerPathPrefix
	if prefix, ok := os.LookupEnv("CONSOLE_CALLER_PATH_PREFIX"); ok {
		consoleCallerPrefix = prefix
	}
	out := conf.Console
	if out == nil {
		out = os.Stdout
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			value, ok := i.(string)
			if !ok {
				return fmt.Sprintf("%4s", i)
			}
			return colorLevel(value)
		},
		FormatErrFieldName: func(i interface{}) string {
			value, ok := i.(string)
			if !ok {
				return fmt.Sprintf("%4s", i)
			}
			return fmt.Sprintf("\x1b[%d;%dm%s\x1b[0m=", Warn, Weak, value)
		},
		FormatCaller: consoleFormatCaller(consoleCallerPrefix),
	}

	l := &ZeroLogger{level: level}
	if conf.Filename == "" {
		l.fileWriter = consoleWriter
		l.multiWriter = consoleWriter
	} else {
		fileWriter := &lumberjack.Logger{
			Filename:   conf.Filename,
			MaxSize:    conf.MaxSize,
			MaxAge:     conf.MaxAge,
			MaxBackups: conf.MaxBackups,
			LocalTime:  true,
			Compress:   conf.Compress,
		}
		l.fileWriter = fileWriter
		l.multiWriter = zerolog.MultiLevelWriter(consoleWriter, fileWriter)
	}
	l.rebuild()
	return l, nil
}

// NewFromSettings builds a logger from the log section of client settings.
func NewFromSettings(s configs.LogSettings) (*ZeroLogger, error) {
	return NewLogger(&ZeroLoggerConfig{
		MaxSize:    s.MaxSize,
		MaxAge:     s.MaxAge,
		MaxBackups: s.MaxBackups,
		Compress:   s.Compress,
		Filename:   s.Filename,
		LogLevel:   s.Level,
	})
}

// Nop discards everything.
func Nop() *ZeroLogger {
	l := &ZeroLogger{
		fileWriter:  io.Discard,
		multiWriter: io.Discard,
		level:       zerolog.Disabled,
	}
	l.rebuild()
	return l
}

func (l *ZeroLogger) rebuild() {
	file := zerolog.New(l.fileWriter).Level(l.level)
	multi := zerolog.New(l.multiWriter).Level(l.level)
	if l.hook != nil {
		file = file.Hook(l.hook)
		multi = multi.Hook(l.hook)
	}
	fc := file.With().Timestamp().CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount)
	mc := multi.With().Timestamp().CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount)
	for k, v := range l.fields {
		fc = fc.Str(k, v)
		mc = mc.Str(k, v)
	}
	l.file = fc
	l.multi = mc
}

func colorLevel(s string) string {

	format := func(color, style colors) string {
		title := s
		if len(title) > 0 {
			title = strings.ToUpper(title[:1]) + title[1:]
		}
		return fmt.Sprintf("|\x1b[%d;%dm%-5s\x1b[0m|", color, style, title)
	}
	same := func(v string) bool {
		return strings.EqualFold(s, v)
	}
	switch {
	case same("panic"):
		return format(Panic, Bold)
	case same("fatal"):
		return format(Fatal, Bold)
	case same("error"):
		return format(Error, Bold)
	case same("warn"):
		return format(Warn, Weak)
	case same("info"):
		return format(Info, Bold)
	case same("debug"):
		return format(Debug, Bold)
	default:
		return format(Trace, Bold)
	}
}

// With returns a child logger that adds key=value to every entry.
func (l *ZeroLogger) With(key, value string) *ZeroLogger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fields := make(map[string]string, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	child := &ZeroLogger{
		fileWriter:  l.fileWriter,
		multiWriter: l.multiWriter,
		level:       l.level,
		fields:      fields,
		hook:        l.hook,
	}
	child.rebuild()
	return child
}

func (l *ZeroLogger) SetLevel(level string) error {
	newLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = newLevel
	l.rebuild()
	return nil
}
func (l *ZeroLogger) GetLevel() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level.String()
}

// Name and Watch let the logger follow level changes of a settings file.
func (l *ZeroLogger) Name() string {
	return "log"
}
func (l *ZeroLogger) Watch(update <-chan configs.Settings) {
	for s := range update {
		if s.Log.Level == "" || s.Log.Level == l.GetLevel() {
			continue
		}
		if err := l.SetLevel(s.Log.Level); err != nil {
			l.WithErrorf(err, "reload log level %q", s.Log.Level)
		}
	}
}

func (l *ZeroLogger) File() zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.file.Logger()
}
func (l *ZeroLogger) FileWithSkipFrame(i int) zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.file.CallerWithSkipFrameCount(i).Logger()
}
func (l *ZeroLogger) Multi() zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.multi.Logger()
}
func (l *ZeroLogger) MultiWithSkipFrame(i int) zerolog.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.multi.CallerWithSkipFrameCount(i).Logger()
}
func (l *ZeroLogger) Error(msg string) {
	multi := l.MultiWithSkipFrame(3)
	multi.Error().Stack().Msg(msg)
}
func (l *ZeroLogger) Errorf(f string, value ...interface{}) {
	multi := l.MultiWithSkipFrame(3)
	multi.Error().Stack().Msgf(f, value...)
}
func (l *ZeroLogger) WithError(err error, msg string) {
	multi := l.MultiWithSkipFrame(3)
	multi.Error().Stack().Err(err).Msg(msg)
}
func (l *ZeroLogger) WithErrorf(err error, format string, args ...interface{}) {
	multi := l.MultiWithSkipFrame(3)
	multi.Error().Stack().Err(err).Msgf(format, args...)
}
func (l *ZeroLogger) Warn(msg string) {
	multi := l.MultiWithSkipFrame(3)
	multi.Warn().Msg(msg)
}
func (l *ZeroLogger) Warnf(f string, value ...interface{}) {
	multi := l.MultiWithSkipFrame(3)
	multi.Warn().Msgf(f, value...)
}
func (l *ZeroLogger) Info(msg string) {
	file := l.FileWithSkipFrame(3)
	file.Info().Msg(msg)
}
func (l *ZeroLogger) Infof(f string, value ...interface{}) {
	file := l.FileWithSkipFrame(3)
	file.Info().Msgf(f, value...)
}
func (l *ZeroLogger) Debug(msg string) {
	file := l.FileWithSkipFrame(3)
	file.Debug().Msg(msg)
}
func (l *ZeroLogger) Debugf(f string, value ...interface{}) {
	file := l.FileWithSkipFrame(3)
	file.Debug().Msgf(f, value...)
}
func (l *ZeroLogger) Trace(msg string) {
	file := l.FileWithSkipFrame(3)
	file.Trace().Msg(msg)
}
func (l *ZeroLogger) Tracef(f string, value ...interface{}) {
	file := l.FileWithSkipFrame(3)
	file.Trace().Msgf(f, value...)
}

func (l *ZeroLogger) WithWarp(err error, msg string) error {
	e := errors.Wrap(err)
	multi := l.MultiWithSkipFrame(3)
	multi.Error().Err(e).Msg(msg)
	return e
}

func (l *ZeroLogger) WithWarpf(err error, format string, args ...interface{}) error {
	e := errors.Wrapf(err, format, args...)
	multi := l.MultiWithSkipFrame(3)
	multi.Error().Err(e).Msgf(format, args...)
	return e
}

func (l *ZeroLogger) TimeRecord(t time.Time, f string, value ...interface{}) {
	file := l.FileWithSkipFrame(3)
	file.Debug().Str("Since", time.Since(t).String()).Msgf(f, value...)
}

// WithCtx returns a child logger tagged with the trace and span ids of ctx.
// Without a span it returns l unchanged.
func (l *ZeroLogger) WithCtx(ctx context.Context) *ZeroLogger {
	s := trace.SpanContextFromContext(ctx)
	if !s.HasTraceID() {
		return l
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	child := &ZeroLogger{
		fileWriter:  l.fileWriter,
		multiWriter: l.multiWriter,
		level:       l.level,
		fields:      l.fields,
		hook: traceHook{
			traceID: s.TraceID().String(),
			spanID:  s.SpanID().String(),
		},
	}
	child.rebuild()
	return child
}

type traceHook struct {
	traceID string
	spanID  string
}

func (h traceHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level != zerolog.NoLevel {
		e.Str("trace_id", h.traceID).Str("span_id", h.spanID)
	}
}
