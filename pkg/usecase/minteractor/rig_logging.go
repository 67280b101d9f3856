// 指示: miu200521358
package minteractor

import "github.com/miu200521358/mu_autorig/pkg/shared/base/logging"

// logRigInfo はリグ構築のINFOログを出力し、詳細ログにも転送する。
func logRigInfo(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Info(format, params...)
	if logger.IsVerboseEnabled(logging.VERBOSE_INDEX_RIG) {
		logger.Verbose(logging.VERBOSE_INDEX_RIG, "[INFO] "+format, params...)
	}
}

// logRigDebug はリグ構築のDEBUGログを出力する。
func logRigDebug(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Debug(format, params...)
	if logger.IsVerboseEnabled(logging.VERBOSE_INDEX_RIG) {
		logger.Verbose(logging.VERBOSE_INDEX_RIG, "[DEBUG] "+format, params...)
	}
}

// logRigWarn はリグ構築のWARNログを出力する。
func logRigWarn(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil {
		return
	}
	logger.Warn(format, params...)
}

// logGraphVerbose は評価グラフ接続の詳細ログを出力する。
func logGraphVerbose(format string, params ...any) {
	logger := logging.DefaultLogger()
	if logger == nil || !logger.IsVerboseEnabled(logging.VERBOSE_INDEX_GRAPH) {
		return
	}
	logger.Verbose(logging.VERBOSE_INDEX_GRAPH, format, params...)
}
