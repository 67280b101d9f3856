// 指示: miu200521358
// Package logging はアプリ全体で共有するロガー契約と既定ロガーを提供する。
package logging

import "sync"

// LogLevel はログレベルを表す。
type LogLevel int

const (
	LOG_LEVEL_DEBUG LogLevel = iota
	LOG_LEVEL_INFO
	LOG_LEVEL_WARN
	LOG_LEVEL_ERROR
)

// String はレベル名を返す。
func (l LogLevel) String() string {
	switch l {
	case LOG_LEVEL_DEBUG:
		return "DEBUG"
	case LOG_LEVEL_INFO:
		return "INFO"
	case LOG_LEVEL_WARN:
		return "WARN"
	default:
		return "ERROR"
	}
}

// VerboseIndex は詳細ログの出力先区分を表す。
type VerboseIndex int

const (
	// VERBOSE_INDEX_RIG はリグ構築の詳細ログ。
	VERBOSE_INDEX_RIG VerboseIndex = iota
	// VERBOSE_INDEX_GRAPH は評価グラフの詳細ログ。
	VERBOSE_INDEX_GRAPH
)

// IMessageBuffer は出力済みメッセージの保持領域を表す。
type IMessageBuffer interface {
	Lines() []string
	Clear()
}

// ILogger はロガーの契約を表す。
type ILogger interface {
	Debug(format string, params ...any)
	Info(format string, params ...any)
	Warn(format string, params ...any)
	Error(format string, params ...any)
	Level() LogLevel
	SetLevel(level LogLevel)
	IsVerboseEnabled(index VerboseIndex) bool
	Verbose(index VerboseIndex, format string, params ...any)
	MessageBuffer() IMessageBuffer
}

var (
	defaultMu     sync.RWMutex
	defaultLogger ILogger
)

// DefaultLogger は既定ロガーを返す。未設定の場合は nil。
func DefaultLogger() ILogger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger は既定ロガーを差し替える。
func SetDefaultLogger(logger ILogger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}
