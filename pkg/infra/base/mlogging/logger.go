// 指示: miu200521358
// Package mlogging は log/slog を使ったロガー実装を提供する。
package mlogging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/miu200521358/mu_autorig/pkg/shared/base/logging"
)

// messageBuffer は出力メッセージを保持する。
type messageBuffer struct {
	mu    sync.Mutex
	lines []string
}

// Lines は保持中のメッセージを返す。
func (b *messageBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

// Clear は保持中のメッセージを破棄する。
func (b *messageBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
}

func (b *messageBuffer) append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
}

// settings はレベルと詳細区分の設定を表す。派生ロガーと共有する。
type settings struct {
	mu      sync.RWMutex
	level   *slog.LevelVar
	current logging.LogLevel
	verbose map[logging.VerboseIndex]bool
}

// Logger は slog.Logger をラップしたロガーを表す。
type Logger struct {
	slogger  *slog.Logger
	settings *settings
	buffer   *messageBuffer
}

// NewLogger はロガーを生成する。writer が nil の場合はメッセージバッファにのみ記録する。
func NewLogger(writer io.Writer) *Logger {
	level := &slog.LevelVar{}
	level.Set(slog.LevelInfo)
	out := writer
	if out == nil {
		out = io.Discard
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return &Logger{
		slogger: slog.New(handler),
		settings: &settings{
			level:   level,
			current: logging.LOG_LEVEL_INFO,
			verbose: map[logging.VerboseIndex]bool{},
		},
		buffer: &messageBuffer{},
	}
}

// WithRunID は構築実行IDを属性に持つロガーを返す。バッファと詳細設定は共有する。
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		slogger:  l.slogger.With(slog.String("run", runID)),
		settings: l.settings,
		buffer:   l.buffer,
	}
}

// Level は現在のログレベルを返す。
func (l *Logger) Level() logging.LogLevel {
	l.settings.mu.RLock()
	defer l.settings.mu.RUnlock()
	return l.settings.current
}

// SetLevel はログレベルを設定する。
func (l *Logger) SetLevel(level logging.LogLevel) {
	l.settings.mu.Lock()
	defer l.settings.mu.Unlock()
	l.settings.current = level
	l.settings.level.Set(toSlogLevel(level))
}

// EnableVerbose は詳細ログ区分を有効化する。
func (l *Logger) EnableVerbose(index logging.VerboseIndex, enabled bool) {
	l.settings.mu.Lock()
	defer l.settings.mu.Unlock()
	l.settings.verbose[index] = enabled
}

// IsVerboseEnabled は詳細ログ区分が有効か判定する。
func (l *Logger) IsVerboseEnabled(index logging.VerboseIndex) bool {
	l.settings.mu.RLock()
	defer l.settings.mu.RUnlock()
	return l.settings.verbose[index]
}

// MessageBuffer はメッセージバッファを返す。
func (l *Logger) MessageBuffer() logging.IMessageBuffer {
	return l.buffer
}

func (l *Logger) Debug(format string, params ...any) {
	l.log(logging.LOG_LEVEL_DEBUG, format, params...)
}

func (l *Logger) Info(format string, params ...any) {
	l.log(logging.LOG_LEVEL_INFO, format, params...)
}

func (l *Logger) Warn(format string, params ...any) {
	l.log(logging.LOG_LEVEL_WARN, format, params...)
}

func (l *Logger) Error(format string, params ...any) {
	l.log(logging.LOG_LEVEL_ERROR, format, params...)
}

// Verbose は有効な詳細区分のときだけDEBUGで出力する。
func (l *Logger) Verbose(index logging.VerboseIndex, format string, params ...any) {
	if !l.IsVerboseEnabled(index) {
		return
	}
	message := fmt.Sprintf(format, params...)
	l.buffer.append(message)
	l.slogger.Log(context.Background(), slog.LevelDebug, message, slog.Int("verbose", int(index)))
}

func (l *Logger) log(level logging.LogLevel, format string, params ...any) {
	if level < l.Level() {
		return
	}
	message := fmt.Sprintf(format, params...)
	l.buffer.append(message)
	l.slogger.Log(context.Background(), toSlogLevel(level), message)
}

func toSlogLevel(level logging.LogLevel) slog.Level {
	switch level {
	case logging.LOG_LEVEL_DEBUG:
		return slog.LevelDebug
	case logging.LOG_LEVEL_WARN:
		return slog.LevelWarn
	case logging.LOG_LEVEL_ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
