// 指示: miu200521358
package mlogging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/miu200521358/mu_autorig/pkg/shared/base/logging"
)

func TestLoggerFiltersByLevel(t *testing.T) {
	logger := NewLogger(nil)
	logger.SetLevel(logging.LOG_LEVEL_INFO)
	logger.Debug("詳細: %d", 1)
	logger.Info("構築開始: %s", "akona")

	lines := logger.MessageBuffer().Lines()
	if len(lines) != 1 || lines[0] != "構築開始: akona" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestLoggerWithRunIDWritesAttribute(t *testing.T) {
	var out bytes.Buffer
	logger := NewLogger(&out).WithRunID("run-1")
	logger.Warn("任意ゾーンなし: %s", "neck")

	if !strings.Contains(out.String(), "run=run-1") {
		t.Fatalf("run id attribute missing: %s", out.String())
	}
	if !strings.Contains(out.String(), "level=WARN") {
		t.Fatalf("level missing: %s", out.String())
	}
}

func TestLoggerVerboseRequiresEnable(t *testing.T) {
	logger := NewLogger(nil)
	logger.Verbose(logging.VERBOSE_INDEX_GRAPH, "op=%s", "blend")
	if len(logger.MessageBuffer().Lines()) != 0 {
		t.Fatalf("verbose must be disabled by default")
	}
	logger.EnableVerbose(logging.VERBOSE_INDEX_GRAPH, true)
	logger.Verbose(logging.VERBOSE_INDEX_GRAPH, "op=%s", "blend")
	if lines := logger.MessageBuffer().Lines(); len(lines) != 1 || lines[0] != "op=blend" {
		t.Fatalf("unexpected verbose lines: %v", lines)
	}
}
